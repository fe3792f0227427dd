package http

import (
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "nsecli/internal/errors"
	"nsecli/internal/middleware"
	"nsecli/internal/pipeline"
)

// SessionHandler exposes the scrape session lifecycle: create, inspect,
// download held files, consolidate, and clean up.
type SessionHandler struct {
	service      SessionService
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(service SessionService, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *SessionHandler {
	return &SessionHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "session_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the session routes.
func (h *SessionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/", h.CreateSession)

	r.Route("/{sessionID}", func(r chi.Router) {
		r.Use(h.SessionCtx)
		r.Get("/", h.GetSession)
		r.Get("/preview", h.GetPreview)
		r.Get("/files/{filename}", h.DownloadFile)
		r.Post("/consolidate", h.Consolidate)
		r.Delete("/", h.DeleteSession)
	})

	return r
}

// SessionCtx validates the session id path parameter.
func (h *SessionHandler) SessionCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "sessionID") == "" {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("sessionID", "Session id is required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

type createSessionRequest struct {
	From  string   `json:"from" validate:"required"`
	To    string   `json:"to" validate:"required"`
	Kinds []string `json:"kinds" validate:"omitempty,dive,oneof=mcap pr"`
}

// CreateSession handles POST /api/sessions. The acquired days are held in
// memory by the session and never written to the day cache.
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	var req createSessionRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	from, err := parseDate("from", req.From)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	to, err := parseDate("to", req.To)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	kinds, err := parseKinds(req.Kinds)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	info, err := h.service.Create(r.Context(), pipeline.CreateSessionRequest{
		From:  from,
		To:    to,
		Kinds: kinds,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "session creation failed",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)
		h.errorHandler.HandleError(w, r, mapPipelineError(err))
		return
	}

	h.logger.InfoContext(r.Context(), "session created",
		slog.String("session_id", info.ID),
		slog.Int("files", len(info.Files)),
		slog.String("request_id", reqID),
	)

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, info)
}

// GetSession handles GET /api/sessions/{sessionID}.
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.errorHandler.HandleError(w, r, mapPipelineError(err))
		return
	}
	render.JSON(w, r, info)
}

// GetPreview handles GET /api/sessions/{sessionID}/preview.
func (h *SessionHandler) GetPreview(w http.ResponseWriter, r *http.Request) {
	preview, err := h.service.Preview(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.errorHandler.HandleError(w, r, mapPipelineError(err))
		return
	}
	render.JSON(w, r, preview)
}

// DownloadFile handles GET /api/sessions/{sessionID}/files/{filename},
// streaming one held raw file.
func (h *SessionHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	if filename == "" || filename != filepath.Base(filename) {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("filename", "Invalid filename"))
		return
	}

	data, err := h.service.DownloadFile(chi.URLParam(r, "sessionID"), filename)
	if err != nil {
		h.errorHandler.HandleError(w, r, mapPipelineError(err))
		return
	}

	writeDownload(w, filename, "csv", data)
}

type consolidateRequest struct {
	FastMode bool `json:"fast_mode"`
}

// Consolidate handles POST /api/sessions/{sessionID}/consolidate. On
// success the session's held files are released and the session moves to
// its terminal state.
func (h *SessionHandler) Consolidate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	id := chi.URLParam(r, "sessionID")

	var req consolidateRequest
	if r.ContentLength > 0 {
		if err := decodeAndValidate(r, &req); err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
	}

	result, err := h.service.Consolidate(r.Context(), id, req.FastMode)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "session consolidation failed",
			slog.String("session_id", id),
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)
		h.errorHandler.HandleError(w, r, mapPipelineError(err))
		return
	}

	h.logger.InfoContext(r.Context(), "session consolidated",
		slog.String("session_id", id),
		slog.String("artifact_id", result.Artifact.ID),
		slog.String("request_id", reqID),
	)

	render.JSON(w, r, result)
}

// DeleteSession handles DELETE /api/sessions/{sessionID}. Cleanup is
// idempotent, so deleting an unknown or already cleaned session succeeds.
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	h.service.Cleanup(chi.URLParam(r, "sessionID"))
	render.NoContent(w, r)
}
