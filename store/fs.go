package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"fximport/logger"
)

// FSStore serves blobs from a local directory, one file per key. Used for
// offline runs and tests; the layout matches what an S3 sync of the bucket
// prefix would produce.
type FSStore struct {
	root string
	log  *logger.Log
}

// NewFSStore creates a directory-backed blob store, creating root when
// missing.
func NewFSStore(root string) (*FSStore, error) {
	if root == "" {
		return nil, fmt.Errorf("data root must not be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create data root %s: %w", root, err)
	}
	return &FSStore{root: root, log: logger.GetLogger()}, nil
}

func (s *FSStore) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// Get reads a blob, returning ErrNotFound for missing keys.
func (s *FSStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	logger.IncrementStoreRead(len(data))
	return data, nil
}

// Put writes a blob, creating parent directories as needed.
func (s *FSStore) Put(_ context.Context, key string, data []byte) error {
	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", key, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	logger.IncrementStoreWrite(int64(len(data)))
	s.log.WithComponent("fs_store").WithFields(logger.Fields{
		"key":  key,
		"size": len(data),
	}).Debug("blob written")
	return nil
}

// Exists reports whether a blob file is present.
func (s *FSStore) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", key, err)
	}
	return true, nil
}
