package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/quickread/internal/core"
	"github.com/markdave123-py/quickread/internal/core/ingestion_engine"
	objectclient "github.com/markdave123-py/quickread/internal/core/object-client"
	"github.com/markdave123-py/quickread/internal/models"
)

type stubAccessor struct{ pages []string }

func (a *stubAccessor) TotalPages() int { return len(a.pages) }
func (a *stubAccessor) PageText(i int) (string, error) { return a.pages[i-1], nil }
func (a *stubAccessor) Close() error { return nil }

type stubOpener struct {
	pages []string
	err   error
}

func (o stubOpener) Open(context.Context, io.ReaderAt, int64) (core.PageAccessor, error) {
	if o.err != nil {
		return nil, o.err
	}
	return &stubAccessor{pages: o.pages}, nil
}

type failingStore struct{ *objectclient.MemoryClient }

func (failingStore) Put(context.Context, string, io.Reader, int64, string) error {
	return errors.New("bucket offline")
}

type recordingSink struct {
	mu   sync.Mutex
	docs []models.Document
}

func (s *recordingSink) InsertDocument(_ context.Context, d *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = append(s.docs, *d)
	return nil
}

func (s *recordingSink) Close() error { return nil }

func newService(t *testing.T, opener core.DocumentOpener, store core.BlobStore, sink core.MetadataSink, persistence ingestion_engine.PersistenceMode) *DocumentService {
	t.Helper()
	pipeline := ingestion_engine.NewPipeline(ingestion_engine.IngestConfig{
		SpoolDir:      t.TempDir(),
		Persistence:   persistence,
		StoragePrefix: "uploads",
	}, opener, zerolog.Nop())

	off := ingestion_engine.NewOffloader(store, sink, ingestion_engine.OffloadConfig{
		Workers:   1,
		QueueSize: 4,
		Retries:   2,
		Backoff:   time.Millisecond,
		Timeout:   time.Second,
	}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	off.Start(ctx, 0)

	return NewDocumentService(pipeline, off, store, zerolog.Nop())
}

func waitFor(t *testing.T, task *ingestion_engine.PersistenceTask) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	select {
	case <-task.Done():
	case <-ctx.Done():
		t.Fatal("persistence task did not finish")
	}
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "uploads/abc/annual_report.pdf", ObjectKey("uploads", "abc", " annual report.pdf "))
	assert.Equal(t, "uploads/abc/passwd.pdf", ObjectKey("uploads", "abc", "../../etc/passwd.pdf"))
	assert.Equal(t, "abc/x.pdf", ObjectKey("", "abc", "x.pdf"))
}

func TestDocumentService_AcceptAndExtract(t *testing.T) {
	for _, mode := range []ingestion_engine.PersistenceMode{ingestion_engine.PersistBackground, ingestion_engine.PersistInline} {
		t.Run(string(mode), func(t *testing.T) {
			store, sink := objectclient.NewMemoryClient(), &recordingSink{}
			pages := []string{"the first page has plenty of words", "the second page has plenty of words"}
			svc := newService(t, stubOpener{pages: pages}, store, sink, mode)

			session, task, err := svc.Accept(context.Background(), strings.NewReader("%PDF-1.4 data"), "my report.pdf", -1)
			require.NoError(t, err)

			var got []models.PageRecord
			err = svc.Extract(context.Background(), session, task, func(rec models.PageRecord) error {
				got = append(got, rec)
				return nil
			})
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, ingestion_engine.StateCompleted, session.State())

			waitFor(t, task)
			assert.Equal(t, ingestion_engine.TaskSucceeded, task.Status())
			assert.True(t, strings.HasSuffix(task.Key, "/my_report.pdf"))

			data, err := svc.GetArchived(context.Background(), task.Key)
			require.NoError(t, err)
			assert.Equal(t, "%PDF-1.4 data", string(data))

			sink.mu.Lock()
			defer sink.mu.Unlock()
			require.Len(t, sink.docs, 1)
			assert.Equal(t, 2, sink.docs[0].PageCount)
			assert.Equal(t, task.Key, sink.docs[0].StorageKey)
		})
	}
}

func TestDocumentService_StoreFailureDoesNotAffectExtraction(t *testing.T) {
	store := failingStore{objectclient.NewMemoryClient()}
	svc := newService(t, stubOpener{pages: []string{"a page that carries plenty of text"}}, store, nil, ingestion_engine.PersistBackground)

	session, task, err := svc.Accept(context.Background(), strings.NewReader("pdf"), "a.pdf", -1)
	require.NoError(t, err)

	var got []models.PageRecord
	require.NoError(t, svc.Extract(context.Background(), session, task, func(rec models.PageRecord) error {
		got = append(got, rec)
		return nil
	}))
	assert.Len(t, got, 1)

	waitFor(t, task)
	assert.Equal(t, ingestion_engine.TaskFailed, task.Status())
}

func TestDocumentService_UnreadableSkipsMetadata(t *testing.T) {
	store, sink := objectclient.NewMemoryClient(), &recordingSink{}
	svc := newService(t, stubOpener{err: ingestion_engine.ErrUnreadableDocument}, store, sink, ingestion_engine.PersistBackground)

	session, task, err := svc.Accept(context.Background(), strings.NewReader("junk"), "a.pdf", -1)
	require.NoError(t, err)

	err = svc.Extract(context.Background(), session, task, func(models.PageRecord) error {
		t.Fatal("unexpected emit")
		return nil
	})
	assert.ErrorIs(t, err, ingestion_engine.ErrUnreadableDocument)

	waitFor(t, task)
	assert.Equal(t, ingestion_engine.TaskSucceeded, task.Status(), "the raw upload is still archived")
	assert.Empty(t, sink.docs)
}

func TestDocumentService_RejectsNonPDF(t *testing.T) {
	store := objectclient.NewMemoryClient()
	svc := newService(t, stubOpener{}, store, nil, ingestion_engine.PersistBackground)

	_, _, err := svc.Accept(context.Background(), strings.NewReader("hello"), "notes.txt", -1)
	assert.ErrorIs(t, err, ingestion_engine.ErrInvalidDocumentType)

	keys, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestDocumentService_ListArchived(t *testing.T) {
	store := objectclient.NewMemoryClient()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "uploads/1/a.pdf", strings.NewReader("a"), 1, "application/pdf"))
	require.NoError(t, store.Put(ctx, "elsewhere/b.pdf", strings.NewReader("b"), 1, "application/pdf"))
	svc := newService(t, stubOpener{}, store, nil, ingestion_engine.PersistBackground)

	prefix, keys, err := svc.ListArchived(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "uploads/", prefix)
	assert.Equal(t, []string{"uploads/1/a.pdf"}, keys)

	_, keys, err = svc.ListArchived(ctx, "nothing-here/")
	require.NoError(t, err)
	assert.NotNil(t, keys)
	assert.Empty(t, keys)
}
