package http

import (
	"context"
	"log/slog"
	"time"

	"nsecli/internal/pipeline"
	"nsecli/pkg/contracts/domain"
)

func testLogger() *slog.Logger {
	return slog.Default()
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

type fakeAcquisitionService struct {
	summary    *domain.RangeSummary
	err        error
	gotFrom    time.Time
	gotTo      time.Time
	gotKinds   []domain.DataKind
	gotMode    domain.RefreshMode
	tradingDay []time.Time
}

func (f *fakeAcquisitionService) TradingDays(from, to time.Time) []time.Time {
	f.gotFrom, f.gotTo = from, to
	return f.tradingDay
}

func (f *fakeAcquisitionService) AcquireRange(_ context.Context, from, to time.Time, kinds []domain.DataKind, mode domain.RefreshMode) (*domain.RangeSummary, error) {
	f.gotFrom, f.gotTo, f.gotKinds, f.gotMode = from, to, kinds, mode
	if f.err != nil {
		return nil, f.err
	}
	return f.summary, nil
}

type fakeSessionService struct {
	info        *domain.SessionInfo
	preview     *domain.SessionPreview
	fileData    []byte
	result      *pipeline.ExportResult
	err         error
	cleanupIDs  []string
	gotFastMode bool
}

func (f *fakeSessionService) Create(_ context.Context, req pipeline.CreateSessionRequest) (*domain.SessionInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.info, nil
}

func (f *fakeSessionService) Get(id string) (*domain.SessionInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.info, nil
}

func (f *fakeSessionService) Preview(id string) (*domain.SessionPreview, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.preview, nil
}

func (f *fakeSessionService) DownloadFile(id, filename string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.fileData, nil
}

func (f *fakeSessionService) Consolidate(_ context.Context, id string, fastMode bool) (*pipeline.ExportResult, error) {
	f.gotFastMode = fastMode
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeSessionService) Cleanup(id string) {
	f.cleanupIDs = append(f.cleanupIDs, id)
}

type fakeExportService struct {
	result *pipeline.ExportResult
	err    error
	gotReq pipeline.ExportRequest
}

func (f *fakeExportService) Export(_ context.Context, req pipeline.ExportRequest) (*pipeline.ExportResult, error) {
	f.gotReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeArtifactService struct {
	ref  domain.ArtifactRef
	data []byte
	err  error
}

func (f *fakeArtifactService) Open(id string) (domain.ArtifactRef, []byte, error) {
	if f.err != nil {
		return domain.ArtifactRef{}, nil, f.err
	}
	return f.ref, f.data, nil
}

type fakeDashboardService struct {
	result   *domain.DashboardResult
	err      error
	progress []domain.BatchProgress
	gotReq   pipeline.DashboardRequest
}

func (f *fakeDashboardService) Build(_ context.Context, req pipeline.DashboardRequest, progress pipeline.ProgressFunc) (*domain.DashboardResult, error) {
	f.gotReq = req
	for _, p := range f.progress {
		if progress != nil {
			progress(p)
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakePipelineService struct {
	result *pipeline.PipelineResult
	err    error
}

func (f *fakePipelineService) Run(_ context.Context, req pipeline.PipelineRequest, progress pipeline.ProgressFunc) (*pipeline.PipelineResult, error) {
	return f.result, f.err
}

type fakeBroadcaster struct {
	events []domain.BatchProgress
}

func (f *fakeBroadcaster) BroadcastBatchProgress(p domain.BatchProgress) {
	f.events = append(f.events, p)
}
