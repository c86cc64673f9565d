// apicheck probes the tic-tac-toe API with the configured identity and
// reports what it can reach. Useful before pointing ttt-cli at a server.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/nreyes-dev/ttt-cli/internal/gamesapi"
)

func main() {
	baseURL := strings.TrimSpace(os.Getenv("API_BASE_URL"))
	playerID := strings.TrimSpace(os.Getenv("PLAYER_ID"))

	if baseURL == "" {
		log.Fatal("API_BASE_URL is required")
	}

	headers := func() map[string]string {
		m := map[string]string{}
		if playerID != "" {
			m["X-Player-Id"] = playerID
		}
		return m
	}

	client := gamesapi.NewClient(baseURL,
		gamesapi.WithHeaderProvider(headers),
		gamesapi.WithTimeout(8*time.Second),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	games, err := client.GetHistory(ctx)
	switch {
	case err == nil:
		log.Printf("/game/history ok: %d game(s)", len(games))
	case errors.Is(err, gamesapi.ErrNoHistory):
		log.Printf("/game/history ok: no games yet for this identity")
	default:
		log.Fatalf("/game/history error: %v", err)
	}

	if playerID == "" {
		log.Println("PLAYER_ID not set; history was requested anonymously")
	}
}
