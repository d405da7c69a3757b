package ingestion_engine

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/ledongthuc/pdf"
	"github.com/markdave123-py/quickread/internal/core"
	"github.com/markdave123-py/quickread/internal/observability"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog"
)

var _ core.DocumentOpener = (*PDFOpener)(nil)

// PDFOpener opens buffered PDFs with ledongthuc/pdf. With strict set, input
// is first run through pdfcpu's relaxed validator so structurally broken
// files are rejected up front.
type PDFOpener struct {
	strict bool
	logger zerolog.Logger
}

func NewPDFOpener(strict bool, logger zerolog.Logger) *PDFOpener {
	return &PDFOpener{strict: strict, logger: observability.Component(logger, "opener")}
}

// Open parses the document and returns an accessor with the page count
// already known. Any parser failure, including a panic, is reported as
// ErrUnreadableDocument.
func (o *PDFOpener) Open(ctx context.Context, src io.ReaderAt, size int64) (acc core.PageAccessor, err error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: empty document", ErrUnreadableDocument)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if o.strict {
		conf := model.NewDefaultConfiguration()
		conf.ValidationMode = model.ValidationRelaxed
		if verr := api.Validate(io.NewSectionReader(src, 0, size), conf); verr != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnreadableDocument, verr)
		}
	}

	defer func() {
		if r := recover(); r != nil {
			o.logger.Warn().Interface("panic", r).Msg("pdf parser panicked while opening")
			acc, err = nil, fmt.Errorf("%w: parser panic: %v", ErrUnreadableDocument, r)
		}
	}()

	reader, err := pdf.NewReader(src, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableDocument, err)
	}

	total := reader.NumPage()
	if total <= 0 {
		return nil, fmt.Errorf("%w: document has no pages", ErrUnreadableDocument)
	}

	return &pdfAccessor{reader: reader, total: total}, nil
}

// pdfAccessor serves page text from an open pdf.Reader. The reader only
// holds the parsed xref table and reads objects through the ReaderAt, so
// concurrent PageText calls are safe.
type pdfAccessor struct {
	reader *pdf.Reader
	total  int
	closed atomic.Bool
}

func (a *pdfAccessor) TotalPages() int { return a.total }

func (a *pdfAccessor) PageText(index int) (text string, err error) {
	if a.closed.Load() {
		return "", ErrAccessorClosed
	}
	if index < 1 || index > a.total {
		return "", fmt.Errorf("page %d out of range 1..%d", index, a.total)
	}

	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("page %d: parser panic: %v", index, r)
		}
	}()

	page := a.reader.Page(index)
	if page.V.IsNull() {
		return "", nil
	}
	text, err = page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("page %d: %w", index, err)
	}
	return text, nil
}

// Close is idempotent. The underlying ReaderAt belongs to the BufferedDocument
// and is released there.
func (a *pdfAccessor) Close() error {
	a.closed.Store(true)
	return nil
}
