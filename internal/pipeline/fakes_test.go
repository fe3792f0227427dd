package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"nsecli/pkg/contracts/domain"
)

func float64Ptr(v float64) *float64 { return &v }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// fakeProvider serves canned day reports and symbol metrics, and can be
// programmed to fail specific days, symbols or whole batches.
type fakeProvider struct {
	mu          sync.Mutex
	fetchCalls  int
	batchCalls  [][]string
	failDays    map[string]bool
	failSymbols map[string]bool
	failBatch   map[int]bool
	recordCount int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		failDays:    make(map[string]bool),
		failSymbols: make(map[string]bool),
		failBatch:   make(map[int]bool),
		recordCount: 3,
	}
}

func dayKey(date time.Time, kind domain.DataKind) string {
	return string(kind) + date.Format("20060102")
}

func (p *fakeProvider) FetchDayReport(ctx context.Context, date time.Time, kind domain.DataKind) ([]byte, []domain.DailyRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetchCalls++
	if p.failDays[dayKey(date, kind)] {
		return nil, nil, fmt.Errorf("exchange unavailable for %s", date.Format("02-Jan-2006"))
	}
	records := make([]domain.DailyRecord, p.recordCount)
	for i := range records {
		records[i] = domain.DailyRecord{
			Symbol:      fmt.Sprintf("SYM%d", i),
			CompanyName: fmt.Sprintf("Company %d", i),
			Date:        date,
			Value:       float64Ptr(float64(100 * (i + 1))),
		}
	}
	raw := []byte("raw:" + dayKey(date, kind))
	return raw, records, nil
}

func (p *fakeProvider) FetchSymbolBatch(ctx context.Context, symbols []string) ([]domain.SymbolMetricRow, []domain.SymbolError, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	batchIndex := len(p.batchCalls)
	p.batchCalls = append(p.batchCalls, symbols)
	if p.failBatch[batchIndex] {
		return nil, nil, fmt.Errorf("batch call failed")
	}
	var rows []domain.SymbolMetricRow
	var errs []domain.SymbolError
	for _, symbol := range symbols {
		if p.failSymbols[symbol] {
			errs = append(errs, domain.SymbolError{Symbol: symbol, ErrorMessage: "quote failed"})
			continue
		}
		rows = append(rows, domain.SymbolMetricRow{
			Symbol:    symbol,
			Series:    "EQ",
			LastPrice: float64Ptr(10),
		})
	}
	return rows, errs, nil
}

// fakeCache is an in-memory Cache. Raw bytes written through WriteCached are
// replayed as three-record days by ReadCached unless records are set
// directly.
type fakeCache struct {
	mu         sync.Mutex
	raw        map[string][]byte
	records    map[string][]domain.DailyRecord
	averages   map[domain.DataKind][]domain.SymbolAverage
	writeCalls int
	avgWrites  int
	failWrite  bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		raw:      make(map[string][]byte),
		records:  make(map[string][]domain.DailyRecord),
		averages: make(map[domain.DataKind][]domain.SymbolAverage),
	}
}

func (c *fakeCache) put(date time.Time, kind domain.DataKind, records []domain.DailyRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := dayKey(date, kind)
	c.raw[key] = []byte("raw:" + key)
	c.records[key] = records
}

func (c *fakeCache) HasCached(date time.Time, kind domain.DataKind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.raw[dayKey(date, kind)]
	return ok
}

func (c *fakeCache) ReadCached(date time.Time, kind domain.DataKind) ([]domain.DailyRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := dayKey(date, kind)
	if _, ok := c.raw[key]; !ok {
		return nil, fmt.Errorf("not cached: %s", key)
	}
	return c.records[key], nil
}

func (c *fakeCache) ReadCachedRaw(date time.Time, kind domain.DataKind) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.raw[dayKey(date, kind)]
	if !ok {
		return nil, fmt.Errorf("not cached")
	}
	return raw, nil
}

func (c *fakeCache) WriteCached(date time.Time, kind domain.DataKind, data []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWrite {
		return 0, fmt.Errorf("disk full")
	}
	c.writeCalls++
	key := dayKey(date, kind)
	c.raw[key] = data
	records := []domain.DailyRecord{
		{Symbol: "SYM0", Date: date, Value: float64Ptr(100)},
		{Symbol: "SYM1", Date: date, Value: float64Ptr(200)},
		{Symbol: "SYM2", Date: date, Value: float64Ptr(300)},
	}
	c.records[key] = records
	return len(records), nil
}

func (c *fakeCache) ReadSymbolAverages(kind domain.DataKind) ([]domain.SymbolAverage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.averages[kind], nil
}

func (c *fakeCache) WriteSymbolAverages(kind domain.DataKind, averages []domain.SymbolAverage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.avgWrites++
	c.averages[kind] = averages
	return nil
}

func (c *fakeCache) TopSymbols(kind domain.DataKind, n int) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var symbols []string
	for _, avg := range c.averages[kind] {
		if avg.Average != nil {
			symbols = append(symbols, avg.Symbol)
		}
	}
	if n > 0 && len(symbols) > n {
		symbols = symbols[:n]
	}
	return symbols, nil
}

// fakeBuilder produces tiny deterministic artifacts.
type fakeBuilder struct {
	consolidatedCalls int
	dashboardCalls    int
	archiveCalls      int
}

func (b *fakeBuilder) BuildConsolidated(kind domain.DataKind, table *ConsolidatedTable) ([]byte, string, error) {
	b.consolidatedCalls++
	return []byte("workbook:" + string(kind)), fmt.Sprintf("consolidated_%s.xlsx", kind), nil
}

func (b *fakeBuilder) BuildDashboard(result *domain.DashboardResult) ([]byte, string, error) {
	b.dashboardCalls++
	return []byte("dashboard"), "symbol_dashboard.xlsx", nil
}

func (b *fakeBuilder) BuildArchive(files map[string][]byte) ([]byte, string, error) {
	b.archiveCalls++
	return []byte(fmt.Sprintf("archive of %d", len(files))), "consolidated_export.zip", nil
}

// fakeArtifacts records saved artifacts in memory.
type fakeArtifacts struct {
	saved []domain.ArtifactRef
}

func (a *fakeArtifacts) Save(filename, contentKind string, data []byte) (domain.ArtifactRef, error) {
	ref := domain.ArtifactRef{
		ID:          fmt.Sprintf("artifact-%d", len(a.saved)+1),
		Filename:    filename,
		ContentKind: contentKind,
	}
	a.saved = append(a.saved, ref)
	return ref, nil
}

// fakeUploader records upload attempts and can be told to fail.
type fakeUploader struct {
	uploads []string
	fail    bool
}

func (u *fakeUploader) Upload(ctx context.Context, filename string, data []byte) (string, error) {
	if u.fail {
		return "", fmt.Errorf("drive unreachable")
	}
	u.uploads = append(u.uploads, filename)
	return "remote-id-" + filename, nil
}
