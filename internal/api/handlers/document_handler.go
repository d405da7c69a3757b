package handlers

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/markdave123-py/quickread/internal/config"
	"github.com/markdave123-py/quickread/internal/core/ingestion_engine"
	"github.com/markdave123-py/quickread/internal/models"
	"github.com/markdave123-py/quickread/internal/observability"
	"github.com/markdave123-py/quickread/internal/services"
)

// multipartOverhead covers boundaries and part headers on top of the file cap.
const multipartOverhead = 64 << 10

type DocumentHandler struct {
	svc         *services.DocumentService
	defaultMode ingestion_engine.ResponseMode
	maxUpload   int64
	logger      zerolog.Logger
}

func NewDocumentHandler(svc *services.DocumentService, cfg *config.Config, logger zerolog.Logger) *DocumentHandler {
	return &DocumentHandler{
		svc:         svc,
		defaultMode: ingestion_engine.ResponseMode(cfg.ResponseMode),
		maxUpload:   cfg.MaxUploadBytes,
		logger:      observability.Component(logger, "document_handler"),
	}
}

// UploadDocument accepts a multipart "file" field and answers with an NDJSON
// stream of pages or, with ?mode=aggregate, one JSON document. The upload is
// archived in the background either way.
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)

	mode, err := h.responseMode(r)
	if err != nil {
		writeError(w, logger, err, h.maxUpload)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartOverhead)
	part, err := filePart(r)
	if err != nil {
		writeError(w, logger, err, h.maxUpload)
		return
	}
	defer part.Close()

	session, task, err := h.svc.Accept(r.Context(), part, part.FileName(), -1)
	if err != nil {
		writeError(w, logger, err, h.maxUpload)
		return
	}
	defer session.Close()

	logger = logger.With().Str("doc_id", session.Document().ID).Str("file", session.Document().FileName).Logger()

	switch mode {
	case ingestion_engine.ModeAggregate:
		em := ingestion_engine.NewAggregateEmitter()
		if err := h.svc.Extract(r.Context(), session, task, em.Emit); err != nil {
			if clientGone(r, err) {
				logger.Info().Err(err).Msg("client went away during extraction")
				return
			}
			writeError(w, logger, err, h.maxUpload)
			return
		}
		writeJSON(w, http.StatusOK, em.Response())

	default:
		em := ingestion_engine.NewNDJSONEmitter(w)
		err := h.svc.Extract(r.Context(), session, task, em.Emit)
		switch {
		case err == nil:
		case clientGone(r, err):
			logger.Info().Err(err).Int("emitted", session.Emitted()).Msg("stream closed by client")
		case em.Started():
			status, detail := classify(err, h.maxUpload)
			logger.Warn().Err(err).Int("status", status).Msg("stream terminated with error")
			if ferr := em.Fail(errors.New(detail)); ferr != nil {
				logger.Info().Err(ferr).Msg("could not write terminal error line")
			}
		default:
			writeError(w, logger, err, h.maxUpload)
		}
	}
}

// ListDocuments returns archived keys, optionally under ?prefix=.
func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	prefix, keys, err := h.svc.ListArchived(r.Context(), r.URL.Query().Get("prefix"))
	if err != nil {
		writeError(w, h.requestLogger(r), err, h.maxUpload)
		return
	}
	writeJSON(w, http.StatusOK, models.ArchiveListing{Prefix: prefix, Keys: keys})
}

// GetDocument returns the archived bytes stored under the wildcard key.
func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if key == "" {
		writeError(w, h.requestLogger(r), badRequest("document key is required"), h.maxUpload)
		return
	}

	data, err := h.svc.GetArchived(r.Context(), key)
	if err != nil {
		writeError(w, h.requestLogger(r), err, h.maxUpload)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *DocumentHandler) responseMode(r *http.Request) (ingestion_engine.ResponseMode, error) {
	switch q := strings.ToLower(r.URL.Query().Get("mode")); q {
	case "":
		if h.defaultMode == "" {
			return ingestion_engine.ModeStream, nil
		}
		return h.defaultMode, nil
	case string(ingestion_engine.ModeStream), string(ingestion_engine.ModeAggregate):
		return ingestion_engine.ResponseMode(q), nil
	default:
		return "", badRequest("mode must be stream or aggregate")
	}
}

// clientGone reports a transport failure caused by the client: a write error
// or a cancelled request. A server deadline is not one; it still owes the
// client an error.
func clientGone(r *http.Request, err error) bool {
	if !errors.Is(err, ingestion_engine.ErrStreamTransport) {
		return false
	}
	return !errors.Is(r.Context().Err(), context.DeadlineExceeded)
}

func (h *DocumentHandler) requestLogger(r *http.Request) zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return observability.Component(*l, "document_handler")
	}
	return h.logger
}

// filePart advances the multipart stream to the "file" field without
// buffering the whole form.
func filePart(r *http.Request) (*multipart.Part, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, badRequest("expected a multipart/form-data body")
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, badRequest("missing file field")
		}
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return nil, err
			}
			return nil, badRequest("malformed multipart body")
		}
		if part.FormName() == "file" && part.FileName() != "" {
			return part, nil
		}
		_ = part.Close()
	}
}
