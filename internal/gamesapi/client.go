package gamesapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"github.com/nreyes-dev/ttt-cli/internal/domain"
)

var (
	// ErrGameNotFound maps a 404 on a game resource: the id is unknown or
	// not owned by the current identity.
	ErrGameNotFound = errors.New("game not found")

	// ErrInvalidMove maps the server rejecting a move (occupied cell or
	// finished game).
	ErrInvalidMove = errors.New("invalid move")

	// ErrNoHistory maps a 404 on the history endpoint: the identity simply
	// has no games yet. Callers treat this as an empty list.
	ErrNoHistory = errors.New("no game history")
)

// APIError carries a non-2xx response that has no more specific mapping.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("games api error: status=%d body=%s", e.Status, e.Body)
}

// HeaderProvider allows injecting per-request headers, typically the
// X-Player-Id identity header once one is known.
type HeaderProvider func() map[string]string

type Client struct {
	baseURL string
	http    *fasthttp.Client
	headers HeaderProvider

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithMaxConnsPerHost(n int) Option {
	return func(c *Client) { c.http.MaxConnsPerHost = n }
}

func WithHeaderProvider(h HeaderProvider) Option {
	return func(c *Client) { c.headers = h }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 64},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateGame asks the server to allocate a new game. The response is the
// initial detail and, on a first-ever game, may carry a minted player id.
func (c *Client) CreateGame(ctx context.Context) (*domain.GameDetail, error) {
	var detail domain.GameDetail
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/game", nil, &detail, false); err != nil {
		return nil, mapStatus(err, nil)
	}
	return &detail, nil
}

// GetGame fetches the full detail for one game.
func (c *Client) GetGame(ctx context.Context, gameID string) (*domain.GameDetail, error) {
	var detail domain.GameDetail
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/game/"+gameID, nil, &detail, true); err != nil {
		return nil, mapStatus(err, map[int]error{fasthttp.StatusNotFound: ErrGameNotFound})
	}
	return &detail, nil
}

type moveRequest struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// SubmitMove sends one human move. The server applies it, plays the CPU
// reply if the game is still ongoing, and returns the resulting detail.
func (c *Client) SubmitMove(ctx context.Context, gameID string, x, y int) (*domain.GameDetail, error) {
	var detail domain.GameDetail
	err := c.doJSON(ctx, fasthttp.MethodPost, "/game/"+gameID+"/move", moveRequest{X: x, Y: y}, &detail, false)
	if err != nil {
		return nil, mapStatus(err, map[int]error{
			fasthttp.StatusNotFound:   ErrGameNotFound,
			fasthttp.StatusBadRequest: ErrInvalidMove,
			fasthttp.StatusConflict:   ErrInvalidMove,
		})
	}
	return &detail, nil
}

type historyResponse struct {
	Games []domain.GameSummary `json:"games"`
}

// GetHistory fetches the ordered history list, oldest first. A 404 means
// the identity has no games yet and surfaces as ErrNoHistory.
func (c *Client) GetHistory(ctx context.Context) ([]domain.GameSummary, error) {
	var resp historyResponse
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/game/history", nil, &resp, true); err != nil {
		return nil, mapStatus(err, map[int]error{fasthttp.StatusNotFound: ErrNoHistory})
	}
	return resp.Games, nil
}

// mapStatus converts status-specific API errors into their sentinels,
// wrapping so callers keep the HTTP detail.
func mapStatus(err error, table map[int]error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	if mapped, ok := table[apiErr.Status]; ok {
		return fmt.Errorf("%w: %s", mapped, apiErr.Error())
	}
	return err
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any, retry bool) error {
	url := c.baseURL + path
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(url)
	req.Header.SetContentType("application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())

	if c.headers != nil {
		for k, v := range c.headers() {
			if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
				req.Header.Set(k, v)
			}
		}
	}

	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	attempts := 1
	if retry {
		attempts = c.retryMax
		if attempts <= 0 {
			attempts = 1
		}
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		deadline := c.computeDeadline(ctx)
		err := c.http.DoDeadline(req, resp, deadline)
		if err != nil {
			if attempt == attempts || !retry {
				return fmt.Errorf("request failed: %w", err)
			}
			lastErr = err
			if sleepErr := c.sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		status := resp.StatusCode()
		if status < 200 || status >= 300 {
			err := &APIError{Status: status, Body: truncate(string(resp.Body()), 512)}
			if attempt == attempts || !retry || !shouldRetryStatus(status) {
				return err
			}
			lastErr = err
			if sleepErr := c.sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		if out != nil {
			if err := json.Unmarshal(resp.Body(), out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	}

	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	if dl, ok := ctx.Deadline(); ok {
		clientDL := time.Now().Add(c.defaultTimeout)
		if dl.Before(clientDL) {
			return dl
		}
		return clientDL
	}
	return time.Now().Add(c.defaultTimeout)
}

func (c *Client) sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	base := 100 * time.Millisecond
	return time.Duration(1<<uint(attempt-1)) * base // 100ms, 200ms ...
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
