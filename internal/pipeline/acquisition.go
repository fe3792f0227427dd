package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"nsecli/pkg/contracts/domain"
)

// Acquirer drives the day gate across an inclusive date range, best effort:
// a failed day never aborts the remaining (day, kind) pairs.
type Acquirer struct {
	gate     *Gate
	holidays map[string]bool
	logger   *slog.Logger
	onDay    func(domain.DayEntry)
}

// NewAcquirer creates a range acquisition controller. holidays is the
// non-trading weekday set keyed by YYYY-MM-DD.
func NewAcquirer(gate *Gate, holidays map[string]bool, logger *slog.Logger) *Acquirer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Acquirer{
		gate:     gate,
		holidays: holidays,
		logger:   logger.With(slog.String("component", "range_acquirer")),
	}
}

// OnDay registers a callback observing each day entry as it is produced.
func (a *Acquirer) OnDay(fn func(domain.DayEntry)) {
	a.onDay = fn
}

// TradingDays returns the trading days of [from, to] under the configured
// holiday calendar.
func (a *Acquirer) TradingDays(from, to time.Time) []time.Time {
	return TradingDays(from, to, a.holidays)
}

// AcquireRange acquires every (trading day, kind) pair of the range in
// chronological order and folds the outcomes into a summary. An inverted
// range is rejected up front; a range with no trading days yields an empty
// summary and no error. Re-invocation with RefreshMissingOnly is idempotent
// for days already cached.
func (a *Acquirer) AcquireRange(ctx context.Context, from, to time.Time, kinds []domain.DataKind, mode domain.RefreshMode) (*domain.RangeSummary, error) {
	if from.After(to) {
		return nil, fmt.Errorf("%w: %s is after %s", ErrInvalidRange,
			from.Format("2006-01-02"), to.Format("2006-01-02"))
	}
	for _, kind := range kinds {
		if !kind.Valid() {
			return nil, fmt.Errorf("%w: unknown data kind %q", ErrInvalidRange, kind)
		}
	}
	if len(kinds) == 0 {
		kinds = domain.AllKinds()
	}

	days := a.TradingDays(from, to)
	summary := &domain.RangeSummary{From: from, To: to}

	a.logger.InfoContext(ctx, "range acquisition started",
		slog.String("from", from.Format("2006-01-02")),
		slog.String("to", to.Format("2006-01-02")),
		slog.Int("trading_days", len(days)),
		slog.Int("kinds", len(kinds)),
		slog.String("refresh_mode", string(mode)))

	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		for _, kind := range kinds {
			entry := a.gate.AcquireDay(ctx, day, kind, mode)
			summary.Add(entry)
			if a.onDay != nil {
				a.onDay(entry)
			}
		}
	}

	a.logger.InfoContext(ctx, "range acquisition finished",
		slog.Int("total", summary.TotalRequested),
		slog.Int("cached", summary.CachedCount),
		slog.Int("fetched", summary.FetchedCount),
		slog.Int("failed", summary.FailedCount))
	return summary, nil
}
