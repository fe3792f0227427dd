package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "nsecli/internal/errors"
	"nsecli/internal/middleware"
	"nsecli/internal/pipeline"
	"nsecli/pkg/contracts/domain"
)

// PipelineHandler runs the full acquire, export, dashboard chain as one
// composite operation.
type PipelineHandler struct {
	service      PipelineService
	broadcaster  ProgressBroadcaster
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewPipelineHandler creates a new pipeline handler. broadcaster may be
// nil, in which case progress is only logged.
func NewPipelineHandler(service PipelineService, broadcaster ProgressBroadcaster, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *PipelineHandler {
	return &PipelineHandler{
		service:      service,
		broadcaster:  broadcaster,
		logger:       logger.With(slog.String("component", "pipeline_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the pipeline routes.
func (h *PipelineHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/", h.RunPipeline)

	return r
}

type pipelineRequest struct {
	From              string   `json:"from" validate:"required"`
	To                string   `json:"to" validate:"required"`
	Kinds             []string `json:"kinds" validate:"omitempty,dive,oneof=mcap pr"`
	RefreshMode       string   `json:"refresh_mode" validate:"omitempty,oneof=missing_only force"`
	TargetSymbolCount int      `json:"target_symbol_count" validate:"omitempty,min=1"`
	BatchSize         int      `json:"batch_size" validate:"omitempty,min=1"`
	RankingKind       string   `json:"ranking_kind" validate:"omitempty,oneof=mcap pr"`
}

// RunPipeline handles POST /api/pipeline. A rejected range answers 400.
// Any other stage failure answers 200 with failed_stage set, so callers
// still receive whatever earlier stages produced.
func (h *PipelineHandler) RunPipeline(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	var req pipelineRequest
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

	h.logger.InfoContext(r.Context(), "pipeline run requested",
		slog.String("request_id", reqID),
		slog.String("from", req.From),
		slog.String("to", req.To),
	)

	result, err := h.service.Run(r.Context(), pipeline.PipelineRequest{
		From:              from,
		To:                to,
		Kinds:             kinds,
		RefreshMode:       domain.RefreshMode(req.RefreshMode),
		TargetSymbolCount: req.TargetSymbolCount,
		BatchSize:         req.BatchSize,
		RankingKind:       domain.DataKind(req.RankingKind),
	}, h.progressFunc(r))
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidRange) {
			h.errorHandler.HandleError(w, r, mapPipelineError(err))
			return
		}
		h.logger.ErrorContext(r.Context(), "pipeline stopped",
			slog.String("failed_stage", result.FailedStage),
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)
	}

	render.JSON(w, r, result)
}

func (h *PipelineHandler) progressFunc(r *http.Request) pipeline.ProgressFunc {
	return func(p domain.BatchProgress) {
		h.logger.DebugContext(r.Context(), "batch progress",
			slog.Int("current_batch", p.CurrentBatch),
			slog.Int("total_batches", p.TotalBatches),
		)
		if h.broadcaster != nil {
			h.broadcaster.BroadcastBatchProgress(p)
		}
	}
}
