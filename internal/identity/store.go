// Package identity persists the opaque player token that scopes every
// server request to one client installation.
package identity

import "sync"

// Store holds at most one player token. Get returns "" when no token is
// known; that is not an error. Set overwrites, but the session controller
// only ever calls it once, after the first create response mints a token.
type Store interface {
	Get() (string, error)
	Set(token string) error
	Forget() error
}

// MemStore is an in-process store for tests and throwaway sessions.
type MemStore struct {
	mu    sync.RWMutex
	token string
}

func NewMemStore() *MemStore { return &MemStore{} }

func (m *MemStore) Get() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, nil
}

func (m *MemStore) Set(token string) error {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	return nil
}

func (m *MemStore) Forget() error {
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()
	return nil
}
