package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"nsecli/pkg/contracts/domain"
)

// DashboardRequest sizes and scopes one dashboard build. RankingKind decides
// which persisted averages select and order the symbol universe.
type DashboardRequest struct {
	TargetSymbolCount int
	BatchSize         int
	RankingKind       domain.DataKind
}

// ProgressFunc receives a progress event after every batch, success or
// failure. Progress is pushed synchronously; there is no job store to poll.
type ProgressFunc func(domain.BatchProgress)

// DashboardBuilder drives many bounded symbol-metrics calls in sequential
// batches and folds their outcomes into a single result. A batch that fails
// entirely contributes zero rows and one recorded error; later batches still
// run.
type DashboardBuilder struct {
	provider  Provider
	cache     Cache
	builder   ArtifactBuilder
	artifacts ArtifactStore
	logger    *slog.Logger
}

// NewDashboardBuilder creates a batched dashboard builder.
func NewDashboardBuilder(provider Provider, cache Cache, builder ArtifactBuilder, artifacts ArtifactStore, logger *slog.Logger) *DashboardBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &DashboardBuilder{
		provider:  provider,
		cache:     cache,
		builder:   builder,
		artifacts: artifacts,
		logger:    logger.With(slog.String("component", "dashboard_builder")),
	}
}

// Build ranks the symbol universe, partitions it into consecutive batches
// and fetches each batch in index order. progress may be nil.
func (b *DashboardBuilder) Build(ctx context.Context, req DashboardRequest, progress ProgressFunc) (*domain.DashboardResult, error) {
	start := time.Now()
	if req.RankingKind == "" {
		req.RankingKind = domain.KindMarketCap
	}
	if !req.RankingKind.Valid() {
		return nil, fmt.Errorf("%w: unknown data kind %q", ErrInvalidRange, req.RankingKind)
	}
	if req.TargetSymbolCount < 1 || req.BatchSize < 1 {
		return nil, fmt.Errorf("%w: target_symbol_count and batch_size must be positive", ErrInvalidRange)
	}

	symbols, err := b.cache.TopSymbols(req.RankingKind, req.TargetSymbolCount)
	if err != nil {
		return nil, fmt.Errorf("rank symbols: %w", err)
	}
	if len(symbols) == 0 {
		return nil, ErrNoDataAvailable
	}

	totalBatches := (len(symbols) + req.BatchSize - 1) / req.BatchSize
	result := &domain.DashboardResult{}

	b.logger.InfoContext(ctx, "dashboard build started",
		slog.String("ranking_kind", string(req.RankingKind)),
		slog.Int("symbols", len(symbols)),
		slog.Int("batches", totalBatches),
		slog.Int("batch_size", req.BatchSize))

	for batchIndex := 0; batchIndex < totalBatches; batchIndex++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		startIdx := batchIndex * req.BatchSize
		endIdx := startIdx + req.BatchSize
		if endIdx > len(symbols) {
			endIdx = len(symbols)
		}

		batch := domain.BatchResult{
			BatchIndex: batchIndex,
			StartIndex: startIdx,
			EndIndex:   endIdx,
		}
		status := fmt.Sprintf("batch %d/%d complete", batchIndex+1, totalBatches)

		rows, symErrs, err := b.provider.FetchSymbolBatch(ctx, symbols[startIdx:endIdx])
		if err != nil {
			batch.Errors = []domain.SymbolError{{
				Symbol:       fmt.Sprintf("batch %d", batchIndex+1),
				ErrorMessage: err.Error(),
			}}
			status = fmt.Sprintf("batch %d/%d failed: %s", batchIndex+1, totalBatches, err)
			dashboardBatches.WithLabelValues("failed").Inc()
			b.logger.WarnContext(ctx, "dashboard batch failed",
				slog.Int("batch", batchIndex+1),
				slog.String("error", err.Error()))
		} else {
			batch.Rows = rows
			batch.Errors = symErrs
			dashboardBatches.WithLabelValues("ok").Inc()
		}

		result.Batches = append(result.Batches, batch)
		result.Rows = append(result.Rows, batch.Rows...)
		result.Errors = append(result.Errors, batch.Errors...)

		if progress != nil {
			progress(domain.BatchProgress{
				CurrentBatch:     batchIndex + 1,
				TotalBatches:     totalBatches,
				SymbolsProcessed: endIdx,
				TotalSymbols:     len(symbols),
				Status:           status,
			})
		}
	}

	result.Averages = FieldAverages(result.Rows)

	if b.builder != nil && b.artifacts != nil && len(result.Rows) > 0 {
		data, filename, err := b.builder.BuildDashboard(result)
		if err != nil {
			b.logger.WarnContext(ctx, "dashboard artifact build failed",
				slog.String("error", err.Error()))
		} else {
			ref, err := b.artifacts.Save(filename, "xlsx", data)
			if err != nil {
				b.logger.WarnContext(ctx, "dashboard artifact store failed",
					slog.String("error", err.Error()))
			} else {
				result.Artifact = &ref
			}
		}
	}

	dashboardDuration.Observe(time.Since(start).Seconds())
	b.logger.InfoContext(ctx, "dashboard build finished",
		slog.Int("rows", len(result.Rows)),
		slog.Int("errors", len(result.Errors)),
		slog.Duration("elapsed", time.Since(start)))
	return result, nil
}

// FieldAverages computes the arithmetic mean of every dashboard metric field
// over the rows carrying a non-nil value for it. A field with no contributing
// rows maps to nil.
func FieldAverages(rows []domain.SymbolMetricRow) map[string]*float64 {
	averages := make(map[string]*float64, len(domain.MetricFields))
	for _, field := range domain.MetricFields {
		var sum float64
		var count int
		for _, row := range rows {
			if v := row.MetricValue(field); v != nil {
				sum += *v
				count++
			}
		}
		if count == 0 {
			averages[field] = nil
			continue
		}
		mean := sum / float64(count)
		averages[field] = &mean
	}
	return averages
}
