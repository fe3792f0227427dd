package pipeline

import (
	"context"
	"log/slog"
	"time"

	"nsecli/pkg/contracts/domain"
)

// PipelineRequest drives one full acquisition -> export -> dashboard run.
type PipelineRequest struct {
	From              time.Time
	To                time.Time
	Kinds             []domain.DataKind
	RefreshMode       domain.RefreshMode
	TargetSymbolCount int
	BatchSize         int
	RankingKind       domain.DataKind
}

// PipelineResult holds whatever the pipeline produced before it finished or
// stopped. Earlier-stage results are preserved when a later stage fails.
type PipelineResult struct {
	Summary     *domain.RangeSummary    `json:"summary,omitempty"`
	Export      *ExportResult           `json:"export,omitempty"`
	Dashboard   *domain.DashboardResult `json:"dashboard,omitempty"`
	FailedStage string                  `json:"failed_stage,omitempty"`
	StageError  string                  `json:"stage_error,omitempty"`
}

// Orchestrator chains the three pipeline stages as one composite operation.
// A stage's internal partial failures (a failed day, a failed batch) do not
// stop the chain; a hard stage failure does, and whatever earlier stages
// produced is returned alongside the error.
type Orchestrator struct {
	acquirer     *Acquirer
	consolidator *Consolidator
	dashboard    *DashboardBuilder
	logger       *slog.Logger
	onStage      func(stage, status string)
}

// NewOrchestrator creates a pipeline orchestrator.
func NewOrchestrator(acquirer *Acquirer, consolidator *Consolidator, dashboard *DashboardBuilder, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		acquirer:     acquirer,
		consolidator: consolidator,
		dashboard:    dashboard,
		logger:       logger.With(slog.String("component", "orchestrator")),
	}
}

// OnStage registers a callback observing stage transitions. status is one
// of "started", "completed", "failed".
func (o *Orchestrator) OnStage(fn func(stage, status string)) {
	o.onStage = fn
}

func (o *Orchestrator) notify(stage, status string) {
	if o.onStage != nil {
		o.onStage(stage, status)
	}
}

// Run executes acquisition, consolidation and dashboard build in order.
// progress receives dashboard batch events and may be nil.
func (o *Orchestrator) Run(ctx context.Context, req PipelineRequest, progress ProgressFunc) (*PipelineResult, error) {
	result := &PipelineResult{}

	if req.RefreshMode == "" {
		req.RefreshMode = domain.RefreshMissingOnly
	}
	if req.TargetSymbolCount < 1 {
		req.TargetSymbolCount = 100
	}
	if req.BatchSize < 1 {
		req.BatchSize = 50
	}

	o.notify("acquisition", "started")
	summary, err := o.acquirer.AcquireRange(ctx, req.From, req.To, req.Kinds, req.RefreshMode)
	if err != nil {
		result.FailedStage = "acquisition"
		result.StageError = err.Error()
		o.notify("acquisition", "failed")
		return result, err
	}
	result.Summary = summary
	o.notify("acquisition", "completed")

	o.notify("export", "started")
	export, err := o.consolidator.Export(ctx, ExportRequest{
		From:  req.From,
		To:    req.To,
		Kinds: req.Kinds,
		// Averages must be persisted here so the dashboard stage has a
		// ranked universe to draw from.
		FastMode: false,
	})
	if err != nil {
		result.FailedStage = "export"
		result.StageError = err.Error()
		o.notify("export", "failed")
		o.logger.WarnContext(ctx, "pipeline stopped at export", slog.String("error", err.Error()))
		return result, err
	}
	result.Export = export
	o.notify("export", "completed")

	o.notify("dashboard", "started")
	dashboard, err := o.dashboard.Build(ctx, DashboardRequest{
		TargetSymbolCount: req.TargetSymbolCount,
		BatchSize:         req.BatchSize,
		RankingKind:       req.RankingKind,
	}, progress)
	if err != nil {
		result.FailedStage = "dashboard"
		result.StageError = err.Error()
		o.notify("dashboard", "failed")
		o.logger.WarnContext(ctx, "pipeline stopped at dashboard", slog.String("error", err.Error()))
		return result, err
	}
	result.Dashboard = dashboard
	o.notify("dashboard", "completed")

	o.logger.InfoContext(ctx, "pipeline finished",
		slog.Int("days_total", summary.TotalRequested),
		slog.Int("days_failed", summary.FailedCount),
		slog.Int("dashboard_rows", len(dashboard.Rows)))
	o.notify("pipeline", "complete")
	return result, nil
}
