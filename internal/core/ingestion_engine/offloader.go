package ingestion_engine

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/markdave123-py/quickread/internal/core"
	"github.com/markdave123-py/quickread/internal/models"
	"github.com/markdave123-py/quickread/internal/observability"
	"github.com/rs/zerolog"
)

// TaskStatus is the outcome of a PersistenceTask.
type TaskStatus int32

const (
	TaskPending TaskStatus = iota
	TaskSucceeded
	TaskFailed
)

func (s TaskStatus) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskSucceeded:
		return "succeeded"
	case TaskFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}

// PersistenceTask archives one upload. It reads the upload straight from its
// source and may outlive the request that created it; release is called once
// the source is no longer needed.
type PersistenceTask struct {
	DocID       string
	Key         string
	FileName    string
	ContentType string
	Size        int64
	CreatedAt   time.Time

	source      io.ReaderAt
	release     func() error
	releaseOnce sync.Once
	status      atomic.Int32
	err         error
	pages       chan int
	resolveOnce sync.Once
	done        chan struct{}
}

// NewPersistenceTask archives size bytes of source. release may be nil.
func NewPersistenceTask(docID, key, fileName, contentType string, source io.ReaderAt, size int64, release func() error) *PersistenceTask {
	return &PersistenceTask{
		DocID:       docID,
		Key:         key,
		FileName:    fileName,
		ContentType: contentType,
		Size:        size,
		CreatedAt:   time.Now().UTC(),
		source:      source,
		release:     release,
		pages:       make(chan int, 1),
		done:        make(chan struct{}),
	}
}

func (t *PersistenceTask) Status() TaskStatus { return TaskStatus(t.status.Load()) }

// Err is the final put error; only meaningful once Done is closed.
func (t *PersistenceTask) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Done is closed when the task has finished, metadata included.
func (t *PersistenceTask) Done() <-chan struct{} { return t.done }

// Wait blocks until the task finishes or ctx ends.
func (t *PersistenceTask) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Resolve hands the page count to the task for its metadata row. A negative
// count means the document never opened and no row is written. Only the
// first call counts.
func (t *PersistenceTask) Resolve(pages int) {
	t.resolveOnce.Do(func() { t.pages <- pages })
}

// Offloader archives uploads off the request path. Failures are logged and
// recorded on the task; nothing is reported back to the request.
type Offloader struct {
	store  core.BlobStore
	sink   core.MetadataSink
	cfg    OffloadConfig
	jobs   chan *PersistenceTask
	active sync.WaitGroup
	logger zerolog.Logger
}

// NewOffloader builds an offloader. sink may be nil to skip metadata rows.
func NewOffloader(store core.BlobStore, sink core.MetadataSink, cfg OffloadConfig, logger zerolog.Logger) *Offloader {
	cfg = cfg.withDefaults()
	return &Offloader{
		store:  store,
		sink:   sink,
		cfg:    cfg,
		jobs:   make(chan *PersistenceTask, cfg.QueueSize),
		logger: observability.Component(logger, "offloader"),
	}
}

// Start runs numWorkers goroutines draining the task queue until ctx ends.
// numWorkers <= 0 uses the configured count.
func (o *Offloader) Start(ctx context.Context, numWorkers int) {
	if numWorkers <= 0 {
		numWorkers = o.cfg.Workers
	}
	for w := 1; w <= numWorkers; w++ {
		go func(w int) {
			for {
				select {
				case <-ctx.Done():
					o.logger.Debug().Int("worker", w).Msg("offloader worker shutting down")
					return
				case t := <-o.jobs:
					o.process(t)
				}
			}
		}(w)
	}
}

// Submit schedules t without blocking. When the queue is full the task gets
// a goroutine of its own.
func (o *Offloader) Submit(t *PersistenceTask) {
	o.active.Add(1)
	select {
	case o.jobs <- t:
	default:
		o.logger.Debug().Str("key", t.Key).Msg("persist queue full, running task on its own goroutine")
		go o.process(t)
	}
}

// RunInline stores the payload before returning, on a context detached from
// ctx's cancellation. The metadata row is still written in the background.
// The returned error is informational; callers are expected to carry on.
func (o *Offloader) RunInline(ctx context.Context, t *PersistenceTask) error {
	o.active.Add(1)
	err := o.Persist(context.WithoutCancel(ctx), t.Key, t.source, t.Size, t.ContentType)
	o.releaseSource(t)
	if err != nil {
		o.finish(t, err)
		o.active.Done()
		return err
	}
	go func() {
		defer o.active.Done()
		o.record(t)
		o.finish(t, nil)
	}()
	return nil
}

// Persist streams size bytes of src under key, retrying with exponential
// backoff. Each attempt rereads src from the start under its own timeout.
func (o *Offloader) Persist(ctx context.Context, key string, src io.ReaderAt, size int64, contentType string) error {
	var err error
	backoff := o.cfg.Backoff
	for attempt := 1; attempt <= o.cfg.Retries; attempt++ {
		actx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
		err = o.store.Put(actx, key, io.NewSectionReader(src, 0, size), size, contentType)
		cancel()
		if err == nil {
			return nil
		}

		o.logger.Warn().Err(err).Str("key", key).Int("attempt", attempt).Msg("blob put failed")
		if attempt == o.cfg.Retries {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("persist %s: %w", key, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("persist %s after %d attempts: %w", key, o.cfg.Retries, err)
}

// Shutdown waits for submitted tasks to finish or ctx to end.
func (o *Offloader) Shutdown(ctx context.Context) error {
	idle := make(chan struct{})
	go func() {
		o.active.Wait()
		close(idle)
	}()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("offloader drain: %w", ctx.Err())
	}
}

func (o *Offloader) process(t *PersistenceTask) {
	defer o.active.Done()

	err := o.Persist(context.Background(), t.Key, t.source, t.Size, t.ContentType)
	o.releaseSource(t)
	if err != nil {
		o.finish(t, err)
		return
	}
	o.record(t)
	o.finish(t, nil)
}

// record writes the metadata row once the page count is known.
func (o *Offloader) record(t *PersistenceTask) {
	if o.sink == nil {
		return
	}

	var pages int
	select {
	case pages = <-t.pages:
	case <-time.After(o.cfg.MetadataWait):
		o.logger.Warn().Str("key", t.Key).Msg("page count never resolved, skipping metadata")
		return
	}
	if pages < 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.Timeout)
	defer cancel()

	doc := &models.Document{
		ID:          t.DocID,
		FileName:    t.FileName,
		StorageKey:  t.Key,
		PageCount:   pages,
		ContentType: t.ContentType,
		SizeBytes:   t.Size,
		CreatedAt:   t.CreatedAt,
	}
	if err := o.sink.InsertDocument(ctx, doc); err != nil {
		o.logger.Error().Err(err).Str("key", t.Key).Msg("insert document metadata")
	}
}

// releaseSource hands the upload buffer back as soon as the put is over, so a
// task waiting for its page count holds no bytes.
func (o *Offloader) releaseSource(t *PersistenceTask) {
	t.releaseOnce.Do(func() {
		t.source = nil
		if t.release == nil {
			return
		}
		if err := t.release(); err != nil {
			o.logger.Warn().Err(err).Str("key", t.Key).Msg("release upload buffer")
		}
	})
}

func (o *Offloader) finish(t *PersistenceTask, err error) {
	t.err = err
	if err != nil {
		t.status.Store(int32(TaskFailed))
		o.logger.Error().Err(err).Str("key", t.Key).Msg("archival failed")
	} else {
		t.status.Store(int32(TaskSucceeded))
		o.logger.Info().Str("key", t.Key).Msg("document archived")
	}
	close(t.done)
}
