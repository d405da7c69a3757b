package objectclient

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/markdave123-py/quickread/internal/config"
	"github.com/markdave123-py/quickread/internal/core"
)

var (
	_ core.BlobStore = (*S3Client)(nil)
	_ core.BlobStore = (*GCSClient)(nil)
	_ core.BlobStore = (*MemoryClient)(nil)
)

// NewBlobStore builds the blob store selected by BLOB_BACKEND.
func NewBlobStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (core.BlobStore, error) {
	switch cfg.BlobBackend {
	case "s3":
		c, err := NewS3Client(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "gcs":
		c, err := NewGCSClient(ctx, cfg.GCSBucket, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "memory", "":
		logger.Warn().Msg("using in-memory blob store, archives are lost on restart")
		return NewMemoryClient(), nil
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.BlobBackend)
	}
}
