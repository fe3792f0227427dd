package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "nsecli/internal/errors"
	"nsecli/internal/middleware"
	"nsecli/internal/pipeline"
	"nsecli/pkg/contracts/domain"
)

// DashboardHandler runs batched dashboard builds. Per-batch progress is
// pushed over the websocket hub while the HTTP response carries the final
// accumulated result.
type DashboardHandler struct {
	service      DashboardService
	broadcaster  ProgressBroadcaster
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewDashboardHandler creates a new dashboard handler. broadcaster may be
// nil, in which case progress is only logged.
func NewDashboardHandler(service DashboardService, broadcaster ProgressBroadcaster, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DashboardHandler {
	return &DashboardHandler{
		service:      service,
		broadcaster:  broadcaster,
		logger:       logger.With(slog.String("component", "dashboard_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the dashboard routes.
func (h *DashboardHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/", h.BuildDashboard)

	return r
}

type dashboardRequest struct {
	TargetSymbolCount int    `json:"target_symbol_count" validate:"omitempty,min=1"`
	BatchSize         int    `json:"batch_size" validate:"omitempty,min=1"`
	RankingKind       string `json:"ranking_kind" validate:"omitempty,oneof=mcap pr"`
}

// BuildDashboard handles POST /api/dashboard.
func (h *DashboardHandler) BuildDashboard(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	var req dashboardRequest
	if r.ContentLength > 0 {
		if err := decodeAndValidate(r, &req); err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
	}

	h.logger.InfoContext(r.Context(), "dashboard build requested",
		slog.String("request_id", reqID),
		slog.Int("target_symbol_count", req.TargetSymbolCount),
		slog.Int("batch_size", req.BatchSize),
	)

	result, err := h.service.Build(r.Context(), pipeline.DashboardRequest{
		TargetSymbolCount: req.TargetSymbolCount,
		BatchSize:         req.BatchSize,
		RankingKind:       domain.DataKind(req.RankingKind),
	}, h.progressFunc(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "dashboard build failed",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)
		h.errorHandler.HandleError(w, r, mapPipelineError(err))
		return
	}

	render.JSON(w, r, result)
}

// progressFunc bridges pipeline progress events to the websocket hub.
func (h *DashboardHandler) progressFunc(r *http.Request) pipeline.ProgressFunc {
	return func(p domain.BatchProgress) {
		h.logger.DebugContext(r.Context(), "batch progress",
			slog.Int("current_batch", p.CurrentBatch),
			slog.Int("total_batches", p.TotalBatches),
			slog.Int("symbols_processed", p.SymbolsProcessed),
		)
		if h.broadcaster != nil {
			h.broadcaster.BroadcastBatchProgress(p)
		}
	}
}
