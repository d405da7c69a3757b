package ingestion_engine

import (
	"runtime"
	"time"
)

// ExtractionPolicy selects how pages are scheduled.
type ExtractionPolicy string

const (
	PolicySequential ExtractionPolicy = "sequential"
	PolicyParallel   ExtractionPolicy = "parallel"
)

// ResponseMode selects how results reach the caller.
type ResponseMode string

const (
	ModeStream    ResponseMode = "stream"
	ModeAggregate ResponseMode = "aggregate"
)

// PersistenceMode selects whether archival runs before extraction or beside it.
type PersistenceMode string

const (
	PersistBackground PersistenceMode = "background"
	PersistInline     PersistenceMode = "inline"
)

// IngestConfig tunes the extraction pipeline.
//
// MaxUploadBytes:   hard cap on the uploaded file size.
// ChunkSize:        read size used while spooling the upload.
// SpoolDir:         directory for spilled spools.
// SpoolMemoryBytes: bytes kept in memory before the spool spills to disk.
// Policy:           sequential (default) or parallel extraction.
// Workers:          parallel worker cap; 0 means GOMAXPROCS.
// ReclaimEvery:     pages between reclamation passes; 0 disables.
// Persistence:      background (default) or inline archival.
// StoragePrefix:    first segment of every archive key.
type IngestConfig struct {
	MaxUploadBytes   int64
	ChunkSize        int
	SpoolDir         string
	SpoolMemoryBytes int64
	Policy           ExtractionPolicy
	Workers          int
	ReclaimEvery     int
	Persistence      PersistenceMode
	StoragePrefix    string
}

// OffloadConfig tunes the persistence offloader.
//
// Workers:      goroutines draining the task queue.
// QueueSize:    buffered tasks before Submit spills into its own goroutine.
// Retries:      put attempts per task.
// Backoff:      initial delay between attempts, doubled each time.
// Timeout:      budget for a single put attempt.
// MetadataWait: how long a task waits for the page count before skipping metadata.
type OffloadConfig struct {
	Workers      int
	QueueSize    int
	Retries      int
	Backoff      time.Duration
	Timeout      time.Duration
	MetadataWait time.Duration
}

const (
	defaultChunkSize = 64 << 10
	defaultMaxUpload = 10 << 20
)

func (c IngestConfig) withDefaults() IngestConfig {
	if c.ChunkSize <= 0 {
		c.ChunkSize = defaultChunkSize
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = defaultMaxUpload
	}
	if c.Policy == "" {
		c.Policy = PolicySequential
	}
	if c.Persistence == "" {
		c.Persistence = PersistBackground
	}
	if c.StoragePrefix == "" {
		c.StoragePrefix = "uploads"
	}
	return c
}

func (c OffloadConfig) withDefaults() OffloadConfig {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.QueueSize < 0 {
		c.QueueSize = 0
	}
	if c.Retries <= 0 {
		c.Retries = 1
	}
	if c.Backoff <= 0 {
		c.Backoff = 500 * time.Millisecond
	}
	if c.Timeout <= 0 {
		c.Timeout = 2 * time.Minute
	}
	if c.MetadataWait <= 0 {
		c.MetadataWait = 10 * time.Minute
	}
	return c
}

// workerCount is min(available parallelism, pages), never below one.
func workerCount(configured, pages int) int {
	n := configured
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	if n > pages {
		n = pages
	}
	if n < 1 {
		n = 1
	}
	return n
}
