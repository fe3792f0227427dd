package pipeline

import (
	"context"
	"log/slog"
	"time"

	"nsecli/internal/config"
	"nsecli/pkg/contracts/domain"
)

// Gate decides per (date, kind) whether cached data suffices or a remote
// fetch is needed. It performs at most one remote attempt per call and
// exactly one cache write per successful fetch; retry is the caller's
// responsibility and is safe because of the cache check.
type Gate struct {
	provider Provider
	cache    Cache
	logger   *slog.Logger
}

// NewGate creates a day gate over the given provider and cache.
func NewGate(provider Provider, cache Cache, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		provider: provider,
		cache:    cache,
		logger:   logger.With(slog.String("component", "day_gate")),
	}
}

// AcquireDay returns the acquisition outcome for one (date, kind) pair.
// Under RefreshMissingOnly a cached day is served without a remote call;
// otherwise one fetch is attempted and persisted on success. Failures are
// folded into the entry, never returned as an error.
func (g *Gate) AcquireDay(ctx context.Context, date time.Time, kind domain.DataKind, mode domain.RefreshMode) domain.DayEntry {
	entry := domain.DayEntry{
		Date:     date,
		Kind:     kind,
		Filename: config.CachedFilename(date, kind),
	}

	if mode != domain.RefreshForce && g.cache.HasCached(date, kind) {
		records, err := g.cache.ReadCached(date, kind)
		if err == nil {
			entry.Status = domain.DayStatusCached
			entry.RecordCount = len(records)
			dayOutcomes.WithLabelValues(string(kind), string(entry.Status)).Inc()
			return entry
		}
		// Unreadable cache file, fall through to a fresh fetch.
		g.logger.WarnContext(ctx, "cached day unreadable, refetching",
			slog.String("file", entry.Filename),
			slog.String("error", err.Error()))
	}

	raw, _, err := g.provider.FetchDayReport(ctx, date, kind)
	if err != nil {
		entry.Status = domain.DayStatusFailed
		entry.ErrorMessage = err.Error()
		dayOutcomes.WithLabelValues(string(kind), string(entry.Status)).Inc()
		return entry
	}

	count, err := g.cache.WriteCached(date, kind, raw)
	if err != nil {
		entry.Status = domain.DayStatusFailed
		entry.ErrorMessage = err.Error()
		dayOutcomes.WithLabelValues(string(kind), string(entry.Status)).Inc()
		return entry
	}

	entry.Status = domain.DayStatusFetched
	entry.RecordCount = count
	dayOutcomes.WithLabelValues(string(kind), string(entry.Status)).Inc()
	g.logger.DebugContext(ctx, "day fetched",
		slog.String("file", entry.Filename),
		slog.Int("records", count))
	return entry
}

// FetchHeld fetches one day remotely without touching the cache. It backs
// scrape sessions, whose data stays unpersisted until consolidation.
func (g *Gate) FetchHeld(ctx context.Context, date time.Time, kind domain.DataKind) ([]byte, []domain.DailyRecord, error) {
	return g.provider.FetchDayReport(ctx, date, kind)
}
