package db

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/markdave123-py/quickread/internal/config"
	"github.com/markdave123-py/quickread/internal/core"
)

var (
	_ core.MetadataSink = (*DatabaseClient)(nil)
	_ core.MetadataSink = (*FirestoreClient)(nil)
)

// NewMetadataSink builds the sink selected by METADATA_BACKEND. It returns a
// nil sink for "none"; the offloader then skips metadata rows.
func NewMetadataSink(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (core.MetadataSink, error) {
	switch cfg.MetadataBackend {
	case "none", "":
		return nil, nil
	case "postgres":
		c, err := NewDatabaseClient(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "firestore":
		c, err := NewFirestoreClient(ctx, cfg.FirestoreProjectID, cfg.FirestoreCollection, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown metadata backend %q", cfg.MetadataBackend)
	}
}
