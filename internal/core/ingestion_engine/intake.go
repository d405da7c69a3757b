package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"code.sajari.com/docconv"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/markdave123-py/quickread/internal/observability"
)

// BufferedDocument is a fully received upload. It is owned by the request
// that created it and must be closed on every exit path.
type BufferedDocument struct {
	ID           string
	FileName     string
	DeclaredSize int64
	Size         int64
	ContentType  string

	spool     *Spool
	refs      atomic.Int32
	claimed   atomic.Bool
	closeOnce sync.Once
}

// ReaderAt gives random access to the received bytes.
func (d *BufferedDocument) ReaderAt() io.ReaderAt { return d.spool.ReaderAt() }

// OnDisk reports whether the upload was spilled to a temp file.
func (d *BufferedDocument) OnDisk() bool { return d.spool.OnDisk() }

// Retain keeps the buffer readable for another holder after the owner closes
// it. The returned func drops that hold and is safe to call more than once.
// Retain must be called before Close.
func (d *BufferedDocument) Retain() (release func() error) {
	d.refs.Add(1)
	var once sync.Once
	return func() error {
		var err error
		once.Do(func() { err = d.unref() })
		return err
	}
}

// Close drops the owner's hold. The buffer and any temp file go away once
// every Retain hold is released too. Idempotent.
func (d *BufferedDocument) Close() error {
	var err error
	d.closeOnce.Do(func() { err = d.unref() })
	return err
}

func (d *BufferedDocument) unref() error {
	if d.refs.Add(-1) > 0 {
		return nil
	}
	return d.spool.Remove()
}

// claim marks the document as bound to a session.
func (d *BufferedDocument) claim() error {
	if !d.claimed.CompareAndSwap(false, true) {
		return ErrSessionExists
	}
	return nil
}

// Intake receives uploads into bounded buffers.
type Intake struct {
	cfg    IngestConfig
	logger zerolog.Logger
}

func NewIntake(cfg IngestConfig, logger zerolog.Logger) *Intake {
	return &Intake{cfg: cfg.withDefaults(), logger: observability.Component(logger, "intake")}
}

// Receive validates the filename and reads r in fixed-size chunks until EOF.
// maxBytes <= 0 falls back to the configured cap. declaredSize is informative
// only; pass -1 when unknown.
func (i *Intake) Receive(ctx context.Context, r io.Reader, filename string, declaredSize, maxBytes int64) (*BufferedDocument, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDocumentType, name)
	}
	if maxBytes <= 0 {
		maxBytes = i.cfg.MaxUploadBytes
	}
	if declaredSize > maxBytes {
		return nil, fmt.Errorf("%w: declared %d bytes, limit %d", ErrPayloadTooLarge, declaredSize, maxBytes)
	}

	spool := NewSpool(i.cfg.SpoolDir, i.cfg.SpoolMemoryBytes)
	buf := make([]byte, i.cfg.ChunkSize)

	for {
		if err := ctx.Err(); err != nil {
			_ = spool.Remove()
			return nil, fmt.Errorf("receive %s: %w", name, err)
		}

		n, err := r.Read(buf)
		if n > 0 {
			if spool.Size()+int64(n) > maxBytes {
				_ = spool.Remove()
				return nil, fmt.Errorf("%w: limit %d bytes", ErrPayloadTooLarge, maxBytes)
			}
			if _, werr := spool.Write(buf[:n]); werr != nil {
				_ = spool.Remove()
				return nil, fmt.Errorf("buffer %s: %w", name, werr)
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			_ = spool.Remove()
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
	}

	doc := &BufferedDocument{
		ID:           uuid.NewString(),
		FileName:     name,
		DeclaredSize: declaredSize,
		Size:         spool.Size(),
		ContentType:  docconv.MimeTypeByExtension(name),
		spool:        spool,
	}
	doc.refs.Store(1)

	i.logger.Debug().
		Str("doc_id", doc.ID).
		Str("file", doc.FileName).
		Int64("bytes", doc.Size).
		Bool("on_disk", spool.OnDisk()).
		Msg("upload received")

	return doc, nil
}
