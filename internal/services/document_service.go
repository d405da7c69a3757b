package services

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/markdave123-py/quickread/internal/core"
	"github.com/markdave123-py/quickread/internal/core/ingestion_engine"
	"github.com/markdave123-py/quickread/internal/models"
	"github.com/markdave123-py/quickread/internal/observability"
)

// DocumentService ties an upload to its extraction session and its
// archival task, and serves the archive back.
type DocumentService struct {
	ingestor  ingestion_engine.Ingestor
	offloader *ingestion_engine.Offloader
	storage   core.BlobStore
	logger    zerolog.Logger
}

func NewDocumentService(ing ingestion_engine.Ingestor, off *ingestion_engine.Offloader, storage core.BlobStore, logger zerolog.Logger) *DocumentService {
	return &DocumentService{
		ingestor:  ing,
		offloader: off,
		storage:   storage,
		logger:    observability.Component(logger, "document_service"),
	}
}

// Accept buffers the upload, lets the offloader read it from the same buffer
// and binds the buffer to a new extraction session. Archival failures never
// surface here.
func (s *DocumentService) Accept(ctx context.Context, r io.Reader, filename string, declaredSize int64) (*ingestion_engine.ExtractionSession, *ingestion_engine.PersistenceTask, error) {
	doc, err := s.ingestor.Receive(ctx, r, filename, declaredSize)
	if err != nil {
		return nil, nil, err
	}

	cfg := s.ingestor.Config()
	key := ObjectKey(cfg.StoragePrefix, doc.ID, doc.FileName)
	task := ingestion_engine.NewPersistenceTask(doc.ID, key, doc.FileName, doc.ContentType, doc.ReaderAt(), doc.Size, doc.Retain())

	if cfg.Persistence == ingestion_engine.PersistInline {
		if err := s.offloader.RunInline(ctx, task); err != nil {
			s.logger.Warn().Err(err).Str("doc_id", doc.ID).Msg("inline archival failed, continuing with extraction")
		}
	} else {
		s.offloader.Submit(task)
	}

	session, err := s.ingestor.NewSession(doc)
	if err != nil {
		task.Resolve(-1)
		_ = doc.Close()
		return nil, nil, err
	}
	return session, task, nil
}

// Extract opens the document, passes the page count to the archival task
// and streams every page record to emit.
func (s *DocumentService) Extract(ctx context.Context, session *ingestion_engine.ExtractionSession, task *ingestion_engine.PersistenceTask, emit func(models.PageRecord) error) error {
	total, err := session.Open(ctx)
	if err != nil {
		task.Resolve(-1)
		return err
	}
	task.Resolve(total)
	return session.Run(ctx, emit)
}

// ListArchived returns archive keys under prefix, or under the configured
// storage prefix when prefix is empty.
func (s *DocumentService) ListArchived(ctx context.Context, prefix string) (string, []string, error) {
	if prefix = strings.TrimSpace(prefix); prefix == "" {
		prefix = s.ingestor.Config().StoragePrefix + "/"
	}
	keys, err := s.storage.List(ctx, prefix)
	if err != nil {
		return prefix, nil, fmt.Errorf("list archive: %w", err)
	}
	if keys == nil {
		keys = []string{}
	}
	return prefix, keys, nil
}

func (s *DocumentService) GetArchived(ctx context.Context, key string) ([]byte, error) {
	return s.storage.Get(ctx, key)
}

// ObjectKey creates a consistent storage key layout: prefix/docID/filename.
func ObjectKey(prefix, docID, filename string) string {
	filename = filepath.Base(strings.TrimSpace(filename))
	filename = strings.ReplaceAll(filename, " ", "_")
	return path.Join(prefix, docID, filename)
}
