package domain

import "context"

// Cover is an extracted cover image ready to be served.
type Cover struct {
	Source      string
	Data        []byte
	ContentType string
}

// FileStore defines operations for storing and retrieving blobs by key.
type FileStore interface {
	Save(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
