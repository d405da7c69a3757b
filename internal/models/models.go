package models

import (
	"time"
)

// Document is the metadata row written once a PDF has been archived.
type Document struct {
	ID          string    `db:"id" json:"id" firestore:"id"`
	FileName    string    `db:"file_name" json:"file_name" firestore:"fileName"`
	StorageKey  string    `db:"storage_key" json:"storage_key" firestore:"storageKey"` // blob store key
	PageCount   int       `db:"page_count" json:"page_count" firestore:"pageCount"`
	ContentType string    `db:"content_type" json:"content_type" firestore:"contentType"`
	SizeBytes   int64     `db:"size_bytes" json:"size_bytes" firestore:"sizeBytes"`
	CreatedAt   time.Time `db:"created_at" json:"created_at" firestore:"createdAt"`
}

// PageStatus tags the outcome of extracting a single page.
type PageStatus string

const (
	PageStatusOK     PageStatus = "ok"
	PageStatusEmpty  PageStatus = "empty"
	PageStatusFailed PageStatus = "failed"
)

// PageRecord is the result of extracting one page.
//
// PageIndex:  1-based position inside the document.
// TotalPages: page count fixed when the document was opened.
// RawText:    text as returned by the parser.
// Text:       normalized text, empty for failed pages.
// Err:        why a failed page failed; never sent to clients.
type PageRecord struct {
	PageIndex  int
	TotalPages int
	RawText    string
	Text       string
	Status     PageStatus
	Err        error
}

// PageEvent is the wire form of a PageRecord in the NDJSON stream.
type PageEvent struct {
	PageIndex  int    `json:"page_index"`
	TotalPages int    `json:"total_pages"`
	Text       string `json:"text"`
}

// ErrorEvent terminates a stream that failed after it started.
type ErrorEvent struct {
	Error string `json:"error"`
}

// AggregatedResponse is returned when the caller asks for a single payload.
type AggregatedResponse struct {
	Status string   `json:"status"`
	Pages  []string `json:"pages"`
	Total  int      `json:"total"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	StatusCode int    `json:"status_code"`
	Detail     string `json:"detail"`
}

// ArchiveListing lists archived object keys under a prefix.
type ArchiveListing struct {
	Prefix string   `json:"prefix"`
	Keys   []string `json:"keys"`
}

// Event converts a record to its wire form.
func (p PageRecord) Event() PageEvent {
	return PageEvent{PageIndex: p.PageIndex, TotalPages: p.TotalPages, Text: p.Text}
}
