package ingestion_engine

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/markdave123-py/quickread/internal/core"
	"github.com/markdave123-py/quickread/internal/models"
)

var errPageBroken = errors.New("broken page")

// fakeAccessor serves canned pages. Entries equal to "!fail" return an error,
// "!panic" panics.
type fakeAccessor struct {
	pages    []string
	jitter   time.Duration
	closes   atomic.Int32
	closed   atomic.Bool
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	mu       sync.Mutex
	rng      *rand.Rand
}

func newFakeAccessor(pages ...string) *fakeAccessor {
	return &fakeAccessor{pages: pages, rng: rand.New(rand.NewSource(7))}
}

func (f *fakeAccessor) TotalPages() int { return len(f.pages) }

func (f *fakeAccessor) PageText(index int) (string, error) {
	if f.closed.Load() {
		return "", ErrAccessorClosed
	}
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	if f.jitter > 0 {
		f.mu.Lock()
		d := time.Duration(f.rng.Int63n(int64(f.jitter)))
		f.mu.Unlock()
		time.Sleep(d)
	}

	switch p := f.pages[index-1]; p {
	case "!fail":
		return "", errPageBroken
	case "!panic":
		panic("parser exploded")
	default:
		return p, nil
	}
}

func (f *fakeAccessor) Close() error {
	f.closes.Add(1)
	f.closed.Store(true)
	return nil
}

type fakeOpener struct {
	acc *fakeAccessor
	err error
}

func (o *fakeOpener) Open(ctx context.Context, src io.ReaderAt, size int64) (core.PageAccessor, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.acc, nil
}

// memStore is a BlobStore that can be told to fail the first n puts.
type memStore struct {
	mu       sync.Mutex
	objects  map[string][]byte
	failures int
	puts     int
	block    chan struct{}
}

func newMemStore() *memStore { return &memStore{objects: map[string][]byte{}} }

func (m *memStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.failures > 0 {
		m.failures--
		return errors.New("store unavailable")
	}
	m.objects[key] = data
	return nil
}

func (m *memStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, core.ErrObjectNotFound
	}
	return data, nil
}

func (m *memStore) List(ctx context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *memStore) putCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}

type memSink struct {
	mu   sync.Mutex
	docs []models.Document
}

func (s *memSink) InsertDocument(ctx context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = append(s.docs, *doc)
	return nil
}

func (s *memSink) Close() error { return nil }

func (s *memSink) all() []models.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Document(nil), s.docs...)
}
