package identity

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore keeps the token in a single file, the terminal-client analog of
// the browser's localStorage slot.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: strings.TrimSpace(path)}
}

func (f *FileStore) Get() (string, error) {
	raw, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read player id file: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

func (f *FileStore) Set(token string) error {
	dir := filepath.Dir(f.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create player id dir: %w", err)
		}
	}
	if err := os.WriteFile(f.path, []byte(strings.TrimSpace(token)+"\n"), 0o600); err != nil {
		return fmt.Errorf("write player id file: %w", err)
	}
	return nil
}

func (f *FileStore) Forget() error {
	err := os.Remove(f.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove player id file: %w", err)
	}
	return nil
}
