package blob

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// DiskStore keeps payloads under a local directory, keyed by sanitized
// file name. Used for single-node deployments and tests.
type DiskStore struct {
	root string
}

var _ Storage = (*DiskStore)(nil)

func NewDiskStore(root string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &DiskStore{root: root}, nil
}

func (s *DiskStore) Put(ctx context.Context, key string, data []byte) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func (s *DiskStore) Get(ctx context.Context, key string) ([]byte, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

func (s *DiskStore) path(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || strings.ContainsAny(key, "/\\") || strings.Contains(key, "..") {
		return "", ErrInvalidPointer
	}
	return filepath.Join(s.root, key), nil
}
