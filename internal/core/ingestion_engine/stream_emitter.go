package ingestion_engine

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"

	"github.com/markdave123-py/quickread/internal/models"
)

const ndjsonContentType = "application/x-ndjson"

// Emitter receives page records in page order.
type Emitter interface {
	Emit(rec models.PageRecord) error
}

var (
	_ Emitter = (*NDJSONEmitter)(nil)
	_ Emitter = (*AggregateEmitter)(nil)
)

// NDJSONEmitter writes one JSON line per page and flushes after each line.
// Headers are committed on the first record, so a caller can still send a
// regular error response if the session fails before any page is out.
type NDJSONEmitter struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	enc     *json.Encoder
	started bool
}

func NewNDJSONEmitter(w http.ResponseWriter) *NDJSONEmitter {
	return &NDJSONEmitter{w: w, rc: http.NewResponseController(w), enc: json.NewEncoder(w)}
}

// Started reports whether the status line and any record have been written.
func (e *NDJSONEmitter) Started() bool { return e.started }

func (e *NDJSONEmitter) Emit(rec models.PageRecord) error {
	if !e.started {
		h := e.w.Header()
		h.Set("Content-Type", ndjsonContentType)
		h.Set("Cache-Control", "no-cache")
		h.Set("X-Content-Type-Options", "nosniff")
		e.w.WriteHeader(http.StatusOK)
		e.started = true
	}

	if err := e.enc.Encode(rec.Event()); err != nil {
		return err
	}
	if err := e.flush(); err != nil {
		return err
	}
	runtime.Gosched()
	return nil
}

// Fail terminates a started stream with a single error line. It is a no-op
// before the first record.
func (e *NDJSONEmitter) Fail(cause error) error {
	if !e.started {
		return nil
	}
	if err := e.enc.Encode(models.ErrorEvent{Error: cause.Error()}); err != nil {
		return err
	}
	return e.flush()
}

func (e *NDJSONEmitter) flush() error {
	if err := e.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}

// AggregateEmitter collects the normalized text of every page, one entry per
// page; failed pages contribute an empty string.
type AggregateEmitter struct {
	pages []string
	total int
}

func NewAggregateEmitter() *AggregateEmitter { return &AggregateEmitter{} }

func (a *AggregateEmitter) Emit(rec models.PageRecord) error {
	if a.pages == nil {
		a.pages = make([]string, 0, rec.TotalPages)
	}
	a.pages = append(a.pages, rec.Text)
	a.total = rec.TotalPages
	return nil
}

// Response builds the single JSON payload.
func (a *AggregateEmitter) Response() models.AggregatedResponse {
	pages := a.pages
	if pages == nil {
		pages = []string{}
	}
	return models.AggregatedResponse{Status: "success", Pages: pages, Total: a.total}
}
