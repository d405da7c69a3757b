package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/markdave123-py/quickread/internal/core"
	"github.com/markdave123-py/quickread/internal/core/ingestion_engine"
	"github.com/markdave123-py/quickread/internal/models"
)

// errBadRequest marks client mistakes detected in the handler itself.
var errBadRequest = errors.New("bad request")

func badRequest(detail string) error {
	return fmt.Errorf("%w: %s", errBadRequest, detail)
}

// classify maps an error to its HTTP status and the detail shown to clients.
func classify(err error, maxUpload int64) (int, string) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "PDF processing timed out"
	case errors.Is(err, ingestion_engine.ErrInvalidDocumentType):
		return http.StatusBadRequest, "Only PDF files are allowed"
	case errors.Is(err, ingestion_engine.ErrPayloadTooLarge), errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge, fmt.Sprintf("File too large, limit is %d bytes", maxUpload)
	case errors.Is(err, ingestion_engine.ErrNoExtractableText):
		return http.StatusUnprocessableEntity, "No extractable text found in PDF"
	case errors.Is(err, ingestion_engine.ErrUnreadableDocument):
		return http.StatusInternalServerError, "Could not read PDF document"
	case errors.Is(err, core.ErrObjectNotFound):
		return http.StatusNotFound, "Document not found"
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "Failed to process PDF"
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, logger zerolog.Logger, err error, maxUpload int64) {
	status, detail := classify(err, maxUpload)
	ev := logger.Warn()
	if status >= http.StatusInternalServerError {
		ev = logger.Error()
	}
	ev.Err(err).Int("status", status).Msg("request failed")
	writeJSON(w, status, models.ErrorResponse{StatusCode: status, Detail: detail})
}
