package ingestion_engine

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/markdave123-py/quickread/internal/core"
	"github.com/markdave123-py/quickread/internal/models"
	"github.com/markdave123-py/quickread/internal/observability"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var _ Ingestor = (*Pipeline)(nil)

// Pipeline wires intake, opener and reclaimer into extraction sessions.
// Every combination of policy, response mode and persistence mode goes
// through this one type.
type Pipeline struct {
	cfg       IngestConfig
	intake    *Intake
	opener    core.DocumentOpener
	reclaimer *Reclaimer
	logger    zerolog.Logger
}

// NewPipeline constructs the pipeline around a document opener.
func NewPipeline(cfg IngestConfig, opener core.DocumentOpener, logger zerolog.Logger) *Pipeline {
	cfg = cfg.withDefaults()
	return &Pipeline{
		cfg:       cfg,
		intake:    NewIntake(cfg, logger),
		opener:    opener,
		reclaimer: NewReclaimer(cfg.ReclaimEvery),
		logger:    observability.Component(logger, "pipeline"),
	}
}

// Config returns the effective configuration.
func (p *Pipeline) Config() IngestConfig { return p.cfg }

// Receive buffers an upload under the configured size cap.
func (p *Pipeline) Receive(ctx context.Context, r io.Reader, filename string, declaredSize int64) (*BufferedDocument, error) {
	return p.intake.Receive(ctx, r, filename, declaredSize, p.cfg.MaxUploadBytes)
}

// NewSession binds doc to a new extraction session. A document can only be
// bound once.
func (p *Pipeline) NewSession(doc *BufferedDocument) (*ExtractionSession, error) {
	if err := doc.claim(); err != nil {
		return nil, err
	}
	return &ExtractionSession{
		doc:       doc,
		opener:    p.opener,
		policy:    p.cfg.Policy,
		workers:   p.cfg.Workers,
		reclaimer: p.reclaimer,
		logger:    p.logger.With().Str("doc_id", doc.ID).Logger(),
	}, nil
}

// SessionState tracks an ExtractionSession through its lifecycle.
type SessionState int32

const (
	StateCreated SessionState = iota
	StateOpened
	StateExtracting
	StateCompleted
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateOpened:
		return "opened"
	case StateExtracting:
		return "extracting"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ExtractionSession drives one document from open to a terminal state.
// Both terminal states close the accessor and delete the buffered upload.
type ExtractionSession struct {
	doc       *BufferedDocument
	opener    core.DocumentOpener
	acc       core.PageAccessor
	policy    ExtractionPolicy
	workers   int
	reclaimer *Reclaimer
	logger    zerolog.Logger

	state   atomic.Int32
	total   int
	emitted int

	releaseOnce sync.Once
}

func (s *ExtractionSession) State() SessionState { return SessionState(s.state.Load()) }

// TotalPages is zero until the document has been opened.
func (s *ExtractionSession) TotalPages() int { return s.total }

// Emitted is the number of records handed to the emit callback.
func (s *ExtractionSession) Emitted() int { return s.emitted }

// Document returns the buffered upload the session owns.
func (s *ExtractionSession) Document() *BufferedDocument { return s.doc }

// Open parses the document and fixes the page count. On failure the session
// moves to Failed and releases its resources.
func (s *ExtractionSession) Open(ctx context.Context) (int, error) {
	if st := s.State(); st != StateCreated {
		return 0, fmt.Errorf("open session in state %s", st)
	}

	acc, err := s.opener.Open(ctx, s.doc.ReaderAt(), s.doc.Size)
	if err != nil {
		s.fail()
		return 0, err
	}

	s.acc = acc
	s.total = acc.TotalPages()
	s.state.Store(int32(StateOpened))
	s.logger.Debug().Int("pages", s.total).Str("policy", string(s.policy)).Msg("document opened")
	return s.total, nil
}

// Run extracts every page and hands the records to emit in page order.
// It opens the document first when Open has not been called yet.
//
// A failing emit or a cancelled ctx stops extraction and returns an error
// wrapping ErrStreamTransport. A complete pass in which no page produced text
// returns ErrNoExtractableText with the session in Completed.
func (s *ExtractionSession) Run(ctx context.Context, emit func(models.PageRecord) error) error {
	if s.State() == StateCreated {
		if _, err := s.Open(ctx); err != nil {
			return err
		}
	}
	if st := s.State(); st != StateOpened {
		return fmt.Errorf("run session in state %s", st)
	}
	defer s.release()

	s.state.Store(int32(StateExtracting))

	withText := 0
	deliver := func(rec models.PageRecord) error {
		switch rec.Status {
		case models.PageStatusFailed:
			s.logger.Warn().Err(rec.Err).Int("page", rec.PageIndex).Msg(pageError(rec))
		case models.PageStatusOK:
			withText++
		}
		if err := emit(rec); err != nil {
			return fmt.Errorf("%w: page %d: %w", ErrStreamTransport, rec.PageIndex, err)
		}
		s.emitted++
		s.reclaimer.Tick(s.emitted)
		return nil
	}

	var err error
	if s.policy == PolicyParallel && s.total > 1 {
		err = s.runParallel(ctx, deliver)
	} else {
		err = s.runSequential(ctx, deliver)
	}
	if err != nil {
		s.state.Store(int32(StateFailed))
		s.logger.Info().Err(err).Int("emitted", s.emitted).Int("pages", s.total).Msg("extraction stopped")
		return err
	}

	s.state.Store(int32(StateCompleted))
	if withText == 0 {
		return fmt.Errorf("%w: %d pages", ErrNoExtractableText, s.total)
	}
	s.logger.Debug().Int("pages", s.total).Msg("extraction completed")
	return nil
}

// Close releases the session without running it. Safe after Run.
func (s *ExtractionSession) Close() {
	if st := s.State(); st == StateCreated || st == StateOpened {
		s.state.Store(int32(StateFailed))
	}
	s.release()
}

func (s *ExtractionSession) runSequential(ctx context.Context, deliver func(models.PageRecord) error) error {
	for i := 1; i <= s.total; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrStreamTransport, err)
		}
		if err := deliver(ExtractPage(s.acc, i, s.total)); err != nil {
			return err
		}
		runtime.Gosched()
	}
	return nil
}

// runParallel extracts pages on a bounded errgroup. Each worker owns exactly
// one slot of results and closes the matching ready channel when the slot is
// written; the caller emits strictly by index.
func (s *ExtractionSession) runParallel(ctx context.Context, deliver func(models.PageRecord) error) error {
	total := s.total
	results := make([]models.PageRecord, total)
	ready := make([]chan struct{}, total)
	for i := range ready {
		ready[i] = make(chan struct{})
	}

	gctx, cancel := context.WithCancel(ctx)
	var g errgroup.Group
	g.SetLimit(workerCount(s.workers, total))

	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		for i := 0; i < total; i++ {
			if gctx.Err() != nil {
				return
			}
			g.Go(func() error {
				defer close(ready[i])
				if gctx.Err() != nil {
					return nil
				}
				results[i] = ExtractPage(s.acc, i+1, total)
				return nil
			})
		}
	}()

	// workers must be gone before the accessor is closed
	defer func() {
		cancel()
		<-dispatched
		_ = g.Wait()
	}()

	for i := 0; i < total; i++ {
		select {
		case <-ready[i]:
		case <-ctx.Done():
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrStreamTransport, err)
		}
		rec := results[i]
		results[i] = models.PageRecord{}
		if err := deliver(rec); err != nil {
			return err
		}
	}
	return nil
}

func (s *ExtractionSession) fail() {
	s.state.Store(int32(StateFailed))
	s.release()
}

func (s *ExtractionSession) release() {
	s.releaseOnce.Do(func() {
		if s.acc != nil {
			if err := s.acc.Close(); err != nil {
				s.logger.Warn().Err(err).Msg("close page accessor")
			}
		}
		if err := s.doc.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("remove upload buffer")
		}
	})
}
