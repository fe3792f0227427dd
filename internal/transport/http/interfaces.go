package http

import (
	"context"
	"time"

	"nsecli/internal/pipeline"
	"nsecli/pkg/contracts/domain"
)

// AcquisitionService drives the trading calendar and range acquisition.
type AcquisitionService interface {
	TradingDays(from, to time.Time) []time.Time
	AcquireRange(ctx context.Context, from, to time.Time, kinds []domain.DataKind, mode domain.RefreshMode) (*domain.RangeSummary, error)
}

// SessionService manages hold-in-memory scrape sessions.
type SessionService interface {
	Create(ctx context.Context, req pipeline.CreateSessionRequest) (*domain.SessionInfo, error)
	Get(id string) (*domain.SessionInfo, error)
	Preview(id string) (*domain.SessionPreview, error)
	DownloadFile(id, filename string) ([]byte, error)
	Consolidate(ctx context.Context, id string, fastMode bool) (*pipeline.ExportResult, error)
	Cleanup(id string)
}

// ExportService runs consolidation exports over cached data.
type ExportService interface {
	Export(ctx context.Context, req pipeline.ExportRequest) (*pipeline.ExportResult, error)
}

// ArtifactService resolves stored artifacts for download.
type ArtifactService interface {
	Open(id string) (domain.ArtifactRef, []byte, error)
}

// DashboardService builds the batched symbol dashboard.
type DashboardService interface {
	Build(ctx context.Context, req pipeline.DashboardRequest, progress pipeline.ProgressFunc) (*domain.DashboardResult, error)
}

// PipelineService runs the acquire -> export -> dashboard chain.
type PipelineService interface {
	Run(ctx context.Context, req pipeline.PipelineRequest, progress pipeline.ProgressFunc) (*pipeline.PipelineResult, error)
}

// ProgressBroadcaster pushes batch progress events to connected clients.
type ProgressBroadcaster interface {
	BroadcastBatchProgress(progress domain.BatchProgress)
}
