package core

import (
	"context"
	"errors"
	"io"

	"github.com/markdave123-py/quickread/internal/models"
)

// ErrObjectNotFound is returned by BlobStore.Get when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// BlobStore defines interactions with S3, GCS or any durable object storage.
// Implementations are bound to a single bucket chosen at construction time.
type BlobStore interface {
	// Put stores size bytes read from body under key.
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// MetadataSink records archived documents.
// It abstracts Postgres/Firestore so the pipeline never depends on a specific DB.
type MetadataSink interface {
	InsertDocument(ctx context.Context, doc *models.Document) error
	Close() error
}
