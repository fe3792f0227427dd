package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "nsecli/internal/errors"
	"nsecli/internal/middleware"
	"nsecli/internal/pipeline"
)

// ExportHandler exposes the consolidation export engine over cached data.
type ExportHandler struct {
	service      ExportService
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewExportHandler creates a new export handler.
func NewExportHandler(service ExportService, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ExportHandler {
	return &ExportHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "export_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the export routes.
func (h *ExportHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/", h.CreateExport)

	return r
}

type exportRequest struct {
	From     string   `json:"from" validate:"required"`
	To       string   `json:"to" validate:"required"`
	Kinds    []string `json:"kinds" validate:"omitempty,dive,oneof=mcap pr"`
	FastMode bool     `json:"fast_mode"`
}

// CreateExport handles POST /api/exports. A scope with no cached data at
// all answers 422; partially covered scopes export what exists.
func (h *ExportHandler) CreateExport(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	var req exportRequest
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

	h.logger.InfoContext(r.Context(), "export requested",
		slog.String("request_id", reqID),
		slog.String("from", req.From),
		slog.String("to", req.To),
		slog.Bool("fast_mode", req.FastMode),
	)

	result, err := h.service.Export(r.Context(), pipeline.ExportRequest{
		From:     from,
		To:       to,
		Kinds:    kinds,
		FastMode: req.FastMode,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "export failed",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)
		h.errorHandler.HandleError(w, r, mapPipelineError(err))
		return
	}

	render.JSON(w, r, result)
}
