package storage

import "context"

// Storage reads inputs and writes run outputs.
type Storage interface {
	Save(ctx context.Context, path string, data []byte) error
	Load(ctx context.Context, path string) ([]byte, error)
	List(ctx context.Context, pattern string) ([]string, error)
	Exists(ctx context.Context, path string) bool
}

var _ Storage = (*FileSystem)(nil)
