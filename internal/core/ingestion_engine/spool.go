package ingestion_engine

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// Spool holds an upload while it is being received. It keeps the bytes in
// memory up to memLimit and moves everything to a temp file in dir once the
// limit is crossed. A Spool is written by one goroutine and becomes read-only
// once intake finishes.
type Spool struct {
	dir      string
	memLimit int64

	buf  bytes.Buffer
	file *os.File
	size int64

	removeOnce sync.Once
	removeErr  error
}

// NewSpool creates an empty spool. memLimit <= 0 sends every byte to disk.
func NewSpool(dir string, memLimit int64) *Spool {
	return &Spool{dir: dir, memLimit: memLimit}
}

// Write appends p, spilling to disk when the memory budget is exceeded.
func (s *Spool) Write(p []byte) (int, error) {
	if s.file == nil && s.size+int64(len(p)) > s.memLimit {
		if err := s.spill(); err != nil {
			return 0, err
		}
	}

	var (
		n   int
		err error
	)
	if s.file != nil {
		n, err = s.file.Write(p)
	} else {
		n, err = s.buf.Write(p)
	}
	s.size += int64(n)
	return n, err
}

func (s *Spool) spill() error {
	f, err := os.CreateTemp(s.dir, "quickread-spool-*.pdf")
	if err != nil {
		return fmt.Errorf("create spool file: %w", err)
	}
	if _, err := f.Write(s.buf.Bytes()); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return fmt.Errorf("spill spool to disk: %w", err)
	}
	s.buf = bytes.Buffer{}
	s.file = f
	return nil
}

// Size reports the number of bytes written so far.
func (s *Spool) Size() int64 { return s.size }

// OnDisk reports whether the spool has spilled to a temp file.
func (s *Spool) OnDisk() bool { return s.file != nil }

// Path is the temp file path, empty while the spool is in memory.
func (s *Spool) Path() string {
	if s.file == nil {
		return ""
	}
	return s.file.Name()
}

// ReaderAt gives random access to the spooled bytes.
func (s *Spool) ReaderAt() io.ReaderAt {
	if s.file != nil {
		return s.file
	}
	return bytes.NewReader(s.buf.Bytes())
}

// Remove deletes the spool. Safe to call more than once.
func (s *Spool) Remove() error {
	s.removeOnce.Do(func() {
		if s.file != nil {
			name := s.file.Name()
			closeErr := s.file.Close()
			rmErr := os.Remove(name)
			if rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				s.removeErr = rmErr
			} else if closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
				s.removeErr = closeErr
			}
		}
		s.buf = bytes.Buffer{}
	})
	return s.removeErr
}
