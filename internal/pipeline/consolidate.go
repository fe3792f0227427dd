package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"nsecli/pkg/contracts/domain"
)

// ExportRequest describes one consolidation/export job. A single-day scope
// has From equal to To.
type ExportRequest struct {
	From     time.Time
	To       time.Time
	Kinds    []domain.DataKind
	FastMode bool
}

// ExportResult is the outcome of one export job. Log is an ordered human
// readable trace of the stages executed, informational only.
type ExportResult struct {
	Artifact            domain.ArtifactRef `json:"artifact"`
	Log                 []string           `json:"log"`
	SideEffectPersisted bool               `json:"side_effect_persisted"`
}

// ConsolidatedRow is one symbol's pivoted values across the scope's days.
type ConsolidatedRow struct {
	Symbol           string
	CompanyName      string
	Values           map[string]*float64
	FreeFloat        map[string]*float64
	DaysWithData     int
	Average          *float64
	FreeFloatAverage *float64
}

// ConsolidatedTable is the pivoted symbol-by-date view of one data kind,
// ready for artifact generation. Dates holds the column labels in
// chronological order.
type ConsolidatedTable struct {
	Kind  domain.DataKind
	Dates []string
	Rows  []ConsolidatedRow
}

// dateLabel is the column label format used in consolidated output.
const dateLabel = "02-01-2006"

// Consolidator reads already-available day records, pivots them into
// per-kind tables, persists derived per-symbol averages unless running in
// fast mode, and materializes the final artifact.
type Consolidator struct {
	cache     Cache
	builder   ArtifactBuilder
	artifacts ArtifactStore
	uploader  Uploader
	holidays  map[string]bool
	logger    *slog.Logger
}

// NewConsolidator creates a consolidation/export engine. uploader may be nil
// when mirroring is disabled.
func NewConsolidator(cache Cache, builder ArtifactBuilder, artifacts ArtifactStore, uploader Uploader, holidays map[string]bool, logger *slog.Logger) *Consolidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consolidator{
		cache:     cache,
		builder:   builder,
		artifacts: artifacts,
		uploader:  uploader,
		holidays:  holidays,
		logger:    logger.With(slog.String("component", "consolidator")),
	}
}

// Export consolidates cached day files for the requested scope.
func (c *Consolidator) Export(ctx context.Context, req ExportRequest) (*ExportResult, error) {
	if req.From.After(req.To) {
		return nil, fmt.Errorf("%w: %s is after %s", ErrInvalidRange,
			req.From.Format("2006-01-02"), req.To.Format("2006-01-02"))
	}
	kinds := req.Kinds
	if len(kinds) == 0 {
		kinds = domain.AllKinds()
	}

	byKind := make(map[domain.DataKind]map[time.Time][]domain.DailyRecord, len(kinds))
	var log []string
	for _, kind := range kinds {
		days := make(map[time.Time][]domain.DailyRecord)
		for _, day := range TradingDays(req.From, req.To, c.holidays) {
			if !c.cache.HasCached(day, kind) {
				continue
			}
			records, err := c.cache.ReadCached(day, kind)
			if err != nil {
				c.logger.WarnContext(ctx, "skipping unreadable cached day",
					slog.String("kind", string(kind)),
					slog.String("date", day.Format("2006-01-02")),
					slog.String("error", err.Error()))
				continue
			}
			days[day] = records
		}
		byKind[kind] = days
		log = append(log, fmt.Sprintf("reading %d cached %s days", len(days), kind))
	}

	return c.export(ctx, byKind, req, log)
}

// ExportHeld consolidates session-held records instead of the cache.
func (c *Consolidator) ExportHeld(ctx context.Context, held map[domain.DataKind]map[time.Time][]domain.DailyRecord, req ExportRequest) (*ExportResult, error) {
	var log []string
	for kind, days := range held {
		log = append(log, fmt.Sprintf("reading %d held %s days", len(days), kind))
	}
	return c.export(ctx, held, req, log)
}

func (c *Consolidator) export(ctx context.Context, byKind map[domain.DataKind]map[time.Time][]domain.DailyRecord, req ExportRequest, log []string) (*ExportResult, error) {
	kindOrder := make([]domain.DataKind, 0, len(byKind))
	for _, kind := range domain.AllKinds() {
		if len(byKind[kind]) > 0 {
			kindOrder = append(kindOrder, kind)
		}
	}
	if len(kindOrder) == 0 {
		exportsTotal.WithLabelValues("no_data").Inc()
		return nil, ErrNoDataAvailable
	}

	result := &ExportResult{Log: log}
	files := make(map[string][]byte, len(kindOrder))
	var fileOrder []string

	for _, kind := range kindOrder {
		table := Consolidate(kind, byKind[kind])
		result.Log = append(result.Log,
			fmt.Sprintf("consolidated %d %s symbols across %d days", len(table.Rows), kind, len(table.Dates)))

		if !req.FastMode {
			averages := table.SymbolAverages()
			if err := c.cache.WriteSymbolAverages(kind, averages); err != nil {
				exportsTotal.WithLabelValues("error").Inc()
				return nil, fmt.Errorf("persist %s averages: %w", kind, err)
			}
			result.SideEffectPersisted = true
			result.Log = append(result.Log,
				fmt.Sprintf("persisted %d %s symbol averages", len(averages), kind))
		}

		data, filename, err := c.builder.BuildConsolidated(kind, table)
		if err != nil {
			exportsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("build %s artifact: %w", kind, err)
		}
		files[filename] = data
		fileOrder = append(fileOrder, filename)
		result.Log = append(result.Log, fmt.Sprintf("generated %s", filename))
	}

	var (
		payload     []byte
		filename    string
		contentKind string
	)
	if len(fileOrder) == 1 {
		filename = fileOrder[0]
		payload = files[filename]
		contentKind = "xlsx"
	} else {
		var err error
		payload, filename, err = c.builder.BuildArchive(files)
		if err != nil {
			exportsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("package archive: %w", err)
		}
		contentKind = "zip"
		result.Log = append(result.Log, fmt.Sprintf("packaged %d files into %s", len(fileOrder), filename))
	}

	ref, err := c.artifacts.Save(filename, contentKind, payload)
	if err != nil {
		exportsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("store artifact: %w", err)
	}
	result.Artifact = ref

	if c.uploader != nil {
		if _, err := c.uploader.Upload(ctx, filename, payload); err != nil {
			c.logger.WarnContext(ctx, "artifact mirror upload failed",
				slog.String("filename", filename),
				slog.String("error", err.Error()))
			result.Log = append(result.Log, fmt.Sprintf("upload skipped: %s", err))
		} else {
			result.Log = append(result.Log, fmt.Sprintf("uploaded %s", filename))
		}
	}

	exportsTotal.WithLabelValues("ok").Inc()
	c.logger.InfoContext(ctx, "export finished",
		slog.String("artifact_id", ref.ID),
		slog.String("filename", ref.Filename),
		slog.Bool("fast_mode", req.FastMode))
	return result, nil
}

// Consolidate pivots per-day records of one kind into a symbol-by-date
// table with per-symbol aggregates. Rows are ordered by descending average,
// symbols without a usable average last in symbol order.
func Consolidate(kind domain.DataKind, days map[time.Time][]domain.DailyRecord) *ConsolidatedTable {
	dates := make([]time.Time, 0, len(days))
	for day := range days {
		dates = append(dates, day)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	labels := make([]string, len(dates))
	for i, day := range dates {
		labels[i] = day.Format(dateLabel)
	}

	type acc struct {
		row ConsolidatedRow
	}
	bySymbol := make(map[string]*acc)
	for _, day := range dates {
		label := day.Format(dateLabel)
		for _, record := range days[day] {
			a, ok := bySymbol[record.Symbol]
			if !ok {
				a = &acc{row: ConsolidatedRow{
					Symbol:    record.Symbol,
					Values:    make(map[string]*float64, len(dates)),
					FreeFloat: make(map[string]*float64, len(dates)),
				}}
				bySymbol[record.Symbol] = a
			}
			if record.CompanyName != "" {
				a.row.CompanyName = record.CompanyName
			}
			a.row.Values[label] = record.Value
			if record.FreeFloat != nil {
				a.row.FreeFloat[label] = record.FreeFloat
			}
		}
	}

	rows := make([]ConsolidatedRow, 0, len(bySymbol))
	for _, a := range bySymbol {
		row := a.row
		row.Average, row.DaysWithData = meanOverValues(row.Values)
		row.FreeFloatAverage, _ = meanOverValues(row.FreeFloat)
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		vi, vj := rows[i].Average, rows[j].Average
		switch {
		case vi != nil && vj != nil && *vi != *vj:
			return *vi > *vj
		case vi != nil && vj == nil:
			return true
		case vi == nil && vj != nil:
			return false
		}
		return rows[i].Symbol < rows[j].Symbol
	})

	return &ConsolidatedTable{Kind: kind, Dates: labels, Rows: rows}
}

// SymbolAverages extracts the persistable per-symbol aggregates.
func (t *ConsolidatedTable) SymbolAverages() []domain.SymbolAverage {
	averages := make([]domain.SymbolAverage, len(t.Rows))
	for i, row := range t.Rows {
		averages[i] = domain.SymbolAverage{
			Symbol:           row.Symbol,
			CompanyName:      row.CompanyName,
			DaysWithData:     row.DaysWithData,
			Average:          row.Average,
			FreeFloatAverage: row.FreeFloatAverage,
		}
	}
	return averages
}

// meanOverValues averages the non-nil values of a column map. A map with no
// usable values yields a nil mean. The count returned is the number of
// contributing values.
func meanOverValues(values map[string]*float64) (*float64, int) {
	var sum float64
	var count int
	for _, v := range values {
		if v == nil {
			continue
		}
		sum += *v
		count++
	}
	if count == 0 {
		return nil, 0
	}
	mean := sum / float64(count)
	return &mean, count
}
