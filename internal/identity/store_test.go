package identity

import (
	"fmt"
	"path/filepath"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestFileStoreLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "player_id")
	s := NewFileStore(path)

	if tok, err := s.Get(); err != nil || tok != "" {
		t.Fatalf("fresh store: tok=%q err=%v", tok, err)
	}
	if err := s.Set("abc"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if tok, err := s.Get(); err != nil || tok != "abc" {
		t.Fatalf("after Set: tok=%q err=%v", tok, err)
	}
	// Idempotent re-set with the same value.
	if err := s.Set("abc"); err != nil {
		t.Fatalf("re-Set: %v", err)
	}
	if err := s.Forget(); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	if tok, err := s.Get(); err != nil || tok != "" {
		t.Fatalf("after Forget: tok=%q err=%v", tok, err)
	}
	// Forgetting an absent token is not an error.
	if err := s.Forget(); err != nil {
		t.Fatalf("double Forget: %v", err)
	}
}

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	s, err := NewRedisStore(fmt.Sprintf("redis://%s/0", mr.Addr()))
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRedisStoreLifecycle(t *testing.T) {
	s := newRedisStore(t)

	if tok, err := s.Get(); err != nil || tok != "" {
		t.Fatalf("fresh store: tok=%q err=%v", tok, err)
	}
	if err := s.Set("abc"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if tok, err := s.Get(); err != nil || tok != "abc" {
		t.Fatalf("after Set: tok=%q err=%v", tok, err)
	}
	if err := s.Forget(); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	if tok, err := s.Get(); err != nil || tok != "" {
		t.Fatalf("after Forget: tok=%q err=%v", tok, err)
	}
}

func TestRedisStoreRejectsBadURL(t *testing.T) {
	if _, err := NewRedisStore("not-a-url"); err == nil {
		t.Fatalf("expected error for malformed redis url")
	}
	if _, err := NewRedisStore(""); err == nil {
		t.Fatalf("expected error for empty redis url")
	}
}

func TestMemStoreLifecycle(t *testing.T) {
	s := NewMemStore()
	if err := s.Set("abc"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if tok, _ := s.Get(); tok != "abc" {
		t.Fatalf("Get = %q", tok)
	}
	if err := s.Forget(); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	if tok, _ := s.Get(); tok != "" {
		t.Fatalf("after Forget: %q", tok)
	}
}
