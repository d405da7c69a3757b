package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/markdave123-py/quickread/internal/config"
	"github.com/markdave123-py/quickread/internal/core"
	db "github.com/markdave123-py/quickread/internal/core/database"
	"github.com/markdave123-py/quickread/internal/core/ingestion_engine"
	objectclient "github.com/markdave123-py/quickread/internal/core/object-client"
	"github.com/markdave123-py/quickread/internal/services"
)

type App struct {
	BlobStore    core.BlobStore
	MetadataSink core.MetadataSink
	Offloader    *ingestion_engine.Offloader
	Pipeline     *ingestion_engine.Pipeline
	Server       *Server

	logger      zerolog.Logger
	stopWorkers context.CancelFunc
}

func NewApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	blobs, err := objectclient.NewBlobStore(appCtx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("blob store: %w", err)
	}
	logger.Info().Str("backend", cfg.BlobBackend).Msg("blob store initialized")

	sink, err := db.NewMetadataSink(appCtx, cfg, logger)
	if err != nil {
		closeIfCloser(blobs)
		return nil, fmt.Errorf("metadata sink: %w", err)
	}
	logger.Info().Str("backend", cfg.MetadataBackend).Msg("metadata sink initialized")

	opener := ingestion_engine.NewPDFOpener(cfg.StrictPDFCheck, logger)
	pipeline := ingestion_engine.NewPipeline(IngestConfig(cfg), opener, logger)
	offloader := ingestion_engine.NewOffloader(blobs, sink, OffloadConfig(cfg), logger)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	offloader.Start(workerCtx, cfg.PersistWorkers)

	svc := services.NewDocumentService(pipeline, offloader, blobs, logger)
	server := NewServer(cfg, svc, logger)

	return &App{
		BlobStore:    blobs,
		MetadataSink: sink,
		Offloader:    offloader,
		Pipeline:     pipeline,
		Server:       server,
		logger:       logger,
		stopWorkers:  stopWorkers,
	}, nil
}

// IngestConfig maps the service configuration onto the pipeline settings.
func IngestConfig(cfg *config.Config) ingestion_engine.IngestConfig {
	return ingestion_engine.IngestConfig{
		MaxUploadBytes:   cfg.MaxUploadBytes,
		ChunkSize:        cfg.ChunkSizeBytes,
		SpoolDir:         cfg.SpoolDir,
		SpoolMemoryBytes: cfg.SpoolMemoryBytes,
		Policy:           ingestion_engine.ExtractionPolicy(cfg.ExtractionPolicy),
		Workers:          cfg.ExtractionWorker,
		ReclaimEvery:     cfg.ReclaimEvery,
		Persistence:      ingestion_engine.PersistenceMode(cfg.PersistenceMode),
		StoragePrefix:    cfg.StoragePrefix,
	}
}

// OffloadConfig maps the service configuration onto the offloader settings.
func OffloadConfig(cfg *config.Config) ingestion_engine.OffloadConfig {
	return ingestion_engine.OffloadConfig{
		Workers:      cfg.PersistWorkers,
		QueueSize:    cfg.PersistQueueSize,
		Retries:      cfg.PersistRetries,
		Backoff:      cfg.PersistBackoff,
		Timeout:      cfg.PersistTimeout,
		MetadataWait: cfg.MetadataWait,
	}
}

// Close drains pending archival tasks until ctx ends, then releases backends.
func (a *App) Close(ctx context.Context) {
	if err := a.Offloader.Shutdown(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("archival tasks still pending at shutdown")
	}
	a.stopWorkers()

	if a.MetadataSink != nil {
		if err := a.MetadataSink.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("close metadata sink")
		}
	}
	closeIfCloser(a.BlobStore)
}

func closeIfCloser(v any) {
	if c, ok := v.(io.Closer); ok {
		_ = c.Close()
	}
}
