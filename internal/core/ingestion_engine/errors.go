package ingestion_engine

import "errors"

var (
	// ErrInvalidDocumentType is returned before any byte is read when the filename is not a .pdf.
	ErrInvalidDocumentType = errors.New("only PDF files are allowed")
	// ErrPayloadTooLarge is returned when the upload exceeds the configured cap.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrUnreadableDocument covers corrupt, encrypted and unparseable input.
	ErrUnreadableDocument = errors.New("unreadable document")
	// ErrNoExtractableText is returned after a full pass that produced no text.
	ErrNoExtractableText = errors.New("no extractable text")
	// ErrStreamTransport means the consumer went away or a write failed.
	ErrStreamTransport = errors.New("stream transport error")
	// ErrSessionExists guards the one-session-per-document rule.
	ErrSessionExists = errors.New("document already has an extraction session")
	// ErrAccessorClosed is returned when a closed PageAccessor is used.
	ErrAccessorClosed = errors.New("page accessor closed")
)
