package pipeline

import (
	"context"
	"time"

	"nsecli/pkg/contracts/domain"
)

// Provider is the remote market-data source the pipeline stages fetch from.
type Provider interface {
	// FetchDayReport downloads one day's report for kind, returning the raw
	// CSV bytes and the parsed records.
	FetchDayReport(ctx context.Context, date time.Time, kind domain.DataKind) ([]byte, []domain.DailyRecord, error)

	// FetchSymbolBatch fetches live metrics for a bounded set of symbols.
	// Per-symbol failures are returned as data; the error return is reserved
	// for failures of the whole batch call.
	FetchSymbolBatch(ctx context.Context, symbols []string) ([]domain.SymbolMetricRow, []domain.SymbolError, error)
}

// Cache is the persistent store for cached day files and derived averages.
type Cache interface {
	HasCached(date time.Time, kind domain.DataKind) bool
	ReadCached(date time.Time, kind domain.DataKind) ([]domain.DailyRecord, error)
	ReadCachedRaw(date time.Time, kind domain.DataKind) ([]byte, error)
	WriteCached(date time.Time, kind domain.DataKind, data []byte) (int, error)

	ReadSymbolAverages(kind domain.DataKind) ([]domain.SymbolAverage, error)
	WriteSymbolAverages(kind domain.DataKind, averages []domain.SymbolAverage) error
	TopSymbols(kind domain.DataKind, n int) ([]string, error)
}

// ArtifactBuilder turns consolidated tables and dashboard results into
// downloadable binary artifacts.
type ArtifactBuilder interface {
	BuildConsolidated(kind domain.DataKind, table *ConsolidatedTable) ([]byte, string, error)
	BuildDashboard(result *domain.DashboardResult) ([]byte, string, error)
	BuildArchive(files map[string][]byte) ([]byte, string, error)
}

// ArtifactStore persists finished artifacts for later retrieval by id.
type ArtifactStore interface {
	Save(filename, contentKind string, data []byte) (domain.ArtifactRef, error)
}

// Uploader mirrors finished artifacts to an external destination. Upload
// failures are logged, never fatal to an export.
type Uploader interface {
	Upload(ctx context.Context, filename string, data []byte) (string, error)
}
