package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "nsecli/internal/errors"
	"nsecli/internal/middleware"
	"nsecli/pkg/contracts/domain"
)

// AcquisitionHandler exposes the trading calendar and the range
// acquisition controller.
type AcquisitionHandler struct {
	service      AcquisitionService
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewAcquisitionHandler creates a new acquisition handler.
func NewAcquisitionHandler(service AcquisitionService, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *AcquisitionHandler {
	return &AcquisitionHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "acquisition_handler")),
		errorHandler: errorHandler,
	}
}

// DateRoutes returns the trading-calendar routes, mounted at /api/dates.
func (h *AcquisitionHandler) DateRoutes() chi.Router {
	r := chi.NewRouter()

	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/", h.GetTradingDays)

	return r
}

// DownloadRoutes returns the range acquisition routes, mounted at
// /api/downloads.
func (h *AcquisitionHandler) DownloadRoutes() chi.Router {
	r := chi.NewRouter()

	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/range", h.AcquireRange)

	return r
}

type tradingDaysResponse struct {
	From  string   `json:"from"`
	To    string   `json:"to"`
	Days  []string `json:"days"`
	Count int      `json:"count"`
}

// GetTradingDays handles GET /api/dates. Without query parameters it
// covers the last two years. Days come back newest first.
func (h *AcquisitionHandler) GetTradingDays(w http.ResponseWriter, r *http.Request) {
	to := time.Now()
	from := to.AddDate(-2, 0, 0)

	var err error
	if v := r.URL.Query().Get("to"); v != "" {
		if to, err = parseDate("to", v); err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
	}
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err = parseDate("from", v); err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
	}

	days := h.service.TradingDays(from, to)
	resp := tradingDaysResponse{
		From:  from.Format(dateLayout),
		To:    to.Format(dateLayout),
		Days:  make([]string, 0, len(days)),
		Count: len(days),
	}
	for i := len(days) - 1; i >= 0; i-- {
		resp.Days = append(resp.Days, days[i].Format(dateLayout))
	}

	render.JSON(w, r, resp)
}

type acquireRangeRequest struct {
	From        string   `json:"from" validate:"required"`
	To          string   `json:"to" validate:"required"`
	Kinds       []string `json:"kinds" validate:"omitempty,dive,oneof=mcap pr"`
	RefreshMode string   `json:"refresh_mode" validate:"omitempty,oneof=missing_only force"`
}

// AcquireRange handles POST /api/downloads/range. It always answers with
// a full range summary; per-day failures are recorded inside the summary
// rather than failing the request.
func (h *AcquisitionHandler) AcquireRange(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	var req acquireRangeRequest
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

	mode := domain.RefreshMode(req.RefreshMode)
	if mode == "" {
		mode = domain.RefreshMissingOnly
	}

	h.logger.InfoContext(r.Context(), "range acquisition requested",
		slog.String("request_id", reqID),
		slog.String("from", req.From),
		slog.String("to", req.To),
		slog.String("mode", string(mode)),
	)

	summary, err := h.service.AcquireRange(r.Context(), from, to, kinds, mode)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "range acquisition failed",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)
		h.errorHandler.HandleError(w, r, mapPipelineError(err))
		return
	}

	render.JSON(w, r, summary)
}
