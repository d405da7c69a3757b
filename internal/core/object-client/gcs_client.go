package objectclient

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"

	"github.com/markdave123-py/quickread/internal/core"
)

// GCSClient stores archives in a Cloud Storage bucket using application
// default credentials.
type GCSClient struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
}

func NewGCSClient(ctx context.Context, bucket string, logger zerolog.Logger) (*GCSClient, error) {
	if bucket == "" {
		return nil, fmt.Errorf("GCS bucket name not set")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	logger.Info().Str("bucket", bucket).Msg("connected to Cloud Storage")
	return &GCSClient{client: client, bucket: client.Bucket(bucket), name: bucket}, nil
}

func (c *GCSClient) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	w := c.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.CopyN(w, body, size); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcs write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs close writer %s: %w", key, err)
	}
	return nil
}

func (c *GCSClient) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := c.bucket.Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", core.ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("gcs read %s: %w", key, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gcs read body %s: %w", key, err)
	}
	return data, nil
}

func (c *GCSClient) List(ctx context.Context, prefix string) ([]string, error) {
	it := c.bucket.Objects(ctx, &storage.Query{Prefix: prefix})

	var keys []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("gcs list %s: %w", prefix, err)
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}

func (c *GCSClient) Close() error {
	return c.client.Close()
}
