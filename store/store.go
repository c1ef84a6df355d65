// Package store abstracts the key-value blob store the imported FX files
// live in. Keys are the file names produced by the keys package; values are
// raw CSV (or archived Parquet) bytes.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no blob exists under the requested key.
// Callers treat it as "subscription has no data", not as a failure.
var ErrNotFound = errors.New("blob not found")

// Blob is the storage collaborator consumed by feeds and the archiver.
type Blob interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Exists(ctx context.Context, key string) (bool, error)
}
