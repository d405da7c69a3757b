package core

import (
	"context"
	"io"
)

// PageAccessor gives indexed access to the text of a parsed document.
// It must be closed exactly once by its owner.
type PageAccessor interface {
	// TotalPages is fixed for the lifetime of the accessor.
	TotalPages() int
	// PageText returns the raw text of a 1-based page, possibly empty.
	PageText(index int) (string, error)
	Close() error
}

// DocumentOpener parses a buffered document and hands out a PageAccessor.
// The page count must be available without extracting any text.
type DocumentOpener interface {
	Open(ctx context.Context, src io.ReaderAt, size int64) (PageAccessor, error)
}
