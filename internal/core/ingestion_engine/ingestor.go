package ingestion_engine

import (
	"context"
	"io"
)

type Ingestor interface {
	Receive(ctx context.Context, r io.Reader, filename string, declaredSize int64) (*BufferedDocument, error)
	NewSession(doc *BufferedDocument) (*ExtractionSession, error)
	Config() IngestConfig
}
