package domain

import (
	"time"
)

// DataKind identifies a category of per-day NSE report records that is
// fetched and cached independently.
type DataKind string

const (
	// KindMarketCap is the daily market-capitalization report (mcap*.csv).
	KindMarketCap DataKind = "mcap"
	// KindTradedValue is the daily net-traded-value report (pr*.csv).
	KindTradedValue DataKind = "pr"
)

// AllKinds returns every supported data kind in canonical order.
func AllKinds() []DataKind {
	return []DataKind{KindMarketCap, KindTradedValue}
}

// Valid reports whether k is a known data kind.
func (k DataKind) Valid() bool {
	return k == KindMarketCap || k == KindTradedValue
}

// RefreshMode controls whether the day gate may serve a day from cache.
type RefreshMode string

const (
	// RefreshMissingOnly serves cached days without a remote call.
	RefreshMissingOnly RefreshMode = "missing_only"
	// RefreshForce always refetches, overwriting any cached copy.
	RefreshForce RefreshMode = "force"
)

// DayStatus is the outcome of acquiring one (date, kind) pair.
type DayStatus string

const (
	DayStatusCached  DayStatus = "cached"
	DayStatusFetched DayStatus = "fetched"
	DayStatusFailed  DayStatus = "failed"
)

// DayEntry is the immutable per-day acquisition outcome produced by the
// day gate. ErrorMessage is set iff Status is DayStatusFailed.
type DayEntry struct {
	Date         time.Time `json:"date"`
	Kind         DataKind  `json:"kind"`
	Status       DayStatus `json:"status"`
	RecordCount  int       `json:"record_count"`
	Filename     string    `json:"filename,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// DayError is a recorded per-day failure inside a range summary.
type DayError struct {
	Date         time.Time `json:"date"`
	Kind         DataKind  `json:"kind"`
	ErrorMessage string    `json:"error_message"`
}

// RangeSummary is the structured report of a range acquisition. Entries
// preserve chronological order; CachedCount + FetchedCount + FailedCount
// always equals TotalRequested.
type RangeSummary struct {
	From           time.Time  `json:"from"`
	To             time.Time  `json:"to"`
	TotalRequested int        `json:"total_requested"`
	CachedCount    int        `json:"cached_count"`
	FetchedCount   int        `json:"fetched_count"`
	FailedCount    int        `json:"failed_count"`
	Entries        []DayEntry `json:"entries"`
	Errors         []DayError `json:"errors"`
}

// Add folds a day entry into the summary counters.
func (s *RangeSummary) Add(entry DayEntry) {
	s.TotalRequested++
	switch entry.Status {
	case DayStatusCached:
		s.CachedCount++
	case DayStatusFetched:
		s.FetchedCount++
	case DayStatusFailed:
		s.FailedCount++
		s.Errors = append(s.Errors, DayError{
			Date:         entry.Date,
			Kind:         entry.Kind,
			ErrorMessage: entry.ErrorMessage,
		})
	}
	s.Entries = append(s.Entries, entry)
}

// AllFromCache reports whether every requested day was served from cache.
// This is a derived display fact, not a distinct state.
func (s *RangeSummary) AllFromCache() bool {
	return s.TotalRequested > 0 && s.CachedCount == s.TotalRequested
}

// DailyRecord is one parsed row of a daily report file. FreeFloat is only
// populated for the market-cap kind.
type DailyRecord struct {
	Symbol      string    `json:"symbol" validate:"required"`
	CompanyName string    `json:"company_name"`
	Date        time.Time `json:"date"`
	Value       *float64  `json:"value"`
	FreeFloat   *float64  `json:"free_float,omitempty"`
}

// SymbolAverage is the persisted cross-day aggregate for one symbol,
// keyed by (kind, symbol) in the averages store.
type SymbolAverage struct {
	Symbol           string   `json:"symbol" validate:"required"`
	CompanyName      string   `json:"company_name"`
	DaysWithData     int      `json:"days_with_data"`
	Average          *float64 `json:"average"`
	FreeFloatAverage *float64 `json:"free_float_average,omitempty"`
}
