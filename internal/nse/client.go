package nse

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"nsecli/internal/config"
	"nsecli/pkg/contracts/domain"
)

const (
	reportsPath     = "/api/reports"
	quotePath       = "/api/NextApi/apiClient/GetQuoteApi"
	bhavcopyArchive = "CM - Bhavcopy (PR.zip)"
)

// seriesFallback is the order in which alternate series are tried when a
// symbol is not listed under the requested one.
var seriesFallback = []string{"BE", "BZ", "SM", "ST", "E1", "E2"}

// Client downloads daily report archives and per-symbol metrics from the
// exchange. All requests share a cookie jar because the exchange rejects
// API calls without the cookies set by its landing page, and go through a
// rate limiter so batch work stays under the exchange's tolerance.
type Client struct {
	cfg        config.ProviderConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger

	warmupOnce sync.Once
	warmupErr  error
}

// NewClient creates a client for the configured provider endpoint.
func NewClient(cfg config.ProviderConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	jar, _ := cookiejar.New(nil)
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Jar:     jar,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), cfg.Burst),
		logger:  logger.With(slog.String("component", "nse_client")),
	}
}

// warmup primes the cookie jar by hitting the landing page once. Failure is
// logged but not fatal, some report endpoints answer without cookies.
func (c *Client) warmup(ctx context.Context) {
	c.warmupOnce.Do(func() {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL, nil)
		if err != nil {
			c.warmupErr = err
			return
		}
		c.setHeaders(req)
		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.warmupErr = err
			c.logger.WarnContext(ctx, "cookie warmup failed", slog.String("error", err.Error()))
			return
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
		c.logger.DebugContext(ctx, "cookie warmup complete", slog.Int("status", resp.StatusCode))
	})
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json,text/plain,*/*")
	req.Header.Set("Connection", "keep-alive")
}

func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)
	return c.httpClient.Do(req)
}

// FetchDayReport downloads the daily report archive for date and returns the
// raw CSV bytes for the requested kind together with the parsed records.
func (c *Client) FetchDayReport(ctx context.Context, date time.Time, kind domain.DataKind) ([]byte, []domain.DailyRecord, error) {
	c.warmup(ctx)

	archives, err := json.Marshal([]map[string]string{{
		"name":     bhavcopyArchive,
		"type":     "archives",
		"category": "capital-market",
		"section":  "equities",
	}})
	if err != nil {
		return nil, nil, err
	}

	params := url.Values{}
	params.Set("archives", string(archives))
	params.Set("date", date.Format("02-Jan-2006"))
	params.Set("type", "equities")
	params.Set("mode", "single")

	resp, err := c.get(ctx, c.cfg.BaseURL+reportsPath+"?"+params.Encode())
	if err != nil {
		return nil, nil, fmt.Errorf("download report for %s: %w", date.Format("02-Jan-2006"), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("download report for %s: status %d", date.Format("02-Jan-2006"), resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, nil, fmt.Errorf("read report body: %w", err)
	}

	csvData, member, err := extractCSV(body, kind)
	if err != nil {
		return nil, nil, fmt.Errorf("report for %s: %w", date.Format("02-Jan-2006"), err)
	}
	c.logger.DebugContext(ctx, "report archive member selected",
		slog.String("date", date.Format("02-Jan-2006")),
		slog.String("kind", string(kind)),
		slog.String("member", member))

	records, err := ParseDailyCSV(kind, date, csvData)
	if err != nil {
		return nil, nil, err
	}
	return csvData, records, nil
}

// extractCSV picks the CSV member matching the data kind out of a report ZIP.
// Selection order follows the exchange archive layout: an exact kind prefix
// first, then the generic bhavcopy names, then any CSV at all.
func extractCSV(archive []byte, kind domain.DataKind) ([]byte, string, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, "", fmt.Errorf("open archive: %w", err)
	}

	var candidate *zip.File
	match := func(pred func(string) bool) *zip.File {
		for _, f := range zr.File {
			name := strings.ToLower(f.Name)
			if strings.HasSuffix(name, ".csv") && pred(name) {
				return f
			}
		}
		return nil
	}

	candidate = match(func(name string) bool { return strings.HasPrefix(name, string(kind)) })
	if candidate == nil {
		candidate = match(func(name string) bool {
			return strings.Contains(name, "bhav") || strings.HasPrefix(name, "bh") || strings.HasPrefix(name, "pr")
		})
	}
	if candidate == nil {
		candidate = match(func(string) bool { return true })
	}
	if candidate == nil {
		names := make([]string, 0, len(zr.File))
		for _, f := range zr.File {
			names = append(names, f.Name)
		}
		return nil, "", fmt.Errorf("no csv member in archive, members: %s", strings.Join(names, ", "))
	}

	rc, err := candidate.Open()
	if err != nil {
		return nil, "", fmt.Errorf("open archive member %s: %w", candidate.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, "", fmt.Errorf("read archive member %s: %w", candidate.Name, err)
	}
	return data, candidate.Name, nil
}

// FetchSymbolBatch fetches metrics for a bounded set of symbols one call at
// a time under the shared rate limiter. Per-symbol failures are recorded and
// skipped; only context cancellation fails the whole batch.
func (c *Client) FetchSymbolBatch(ctx context.Context, symbols []string) ([]domain.SymbolMetricRow, []domain.SymbolError, error) {
	rows := make([]domain.SymbolMetricRow, 0, len(symbols))
	var errs []domain.SymbolError
	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return rows, errs, err
		}
		row, err := c.FetchSymbolMetrics(ctx, symbol, "EQ")
		if err != nil {
			if ctx.Err() != nil {
				return rows, errs, ctx.Err()
			}
			errs = append(errs, domain.SymbolError{Symbol: symbol, ErrorMessage: err.Error()})
			continue
		}
		rows = append(rows, row)
	}
	return rows, errs, nil
}

// quoteResponse mirrors the fields of the exchange quote payload this client
// consumes. The payload nests the same facts in several places, so lookups
// below fall back across sections.
type quoteResponse struct {
	EquityResponse []quoteEquity `json:"equityResponse"`
	Msg            string        `json:"msg"`
	Message        string        `json:"message"`
}

type quoteEquity struct {
	Symbol       string          `json:"symbol"`
	CompanyName  string          `json:"companyName"`
	Series       string          `json:"series"`
	Index        string          `json:"index"`
	IndexList    []string        `json:"indexList"`
	ImpactCost   json.RawMessage `json:"impactCost"`
	FFMC         json.RawMessage `json:"ffmc"`
	TotalMcap    json.RawMessage `json:"totalMarketCap"`
	LastPrice    json.RawMessage `json:"lastPrice"`
	MetaData     quoteMeta       `json:"metaData"`
	TradeInfo    quoteTradeInfo  `json:"tradeInfo"`
	PriceInfo    quotePriceInfo  `json:"priceInfo"`
	SecInfo      quoteSecInfo    `json:"secInfo"`
}

type quoteMeta struct {
	Symbol      string   `json:"symbol"`
	CompanyName string   `json:"companyName"`
	Index       string   `json:"index"`
	IndexList   []string `json:"indexList"`
}

type quoteTradeInfo struct {
	ImpactCost       json.RawMessage `json:"impactCost"`
	FFMC             json.RawMessage `json:"ffmc"`
	TotalMarketCap   json.RawMessage `json:"totalMarketCap"`
	TotalTradedValue json.RawMessage `json:"totalTradedValue"`
	LastPrice        json.RawMessage `json:"lastPrice"`
}

type quotePriceInfo struct {
	TotalTurnover json.RawMessage `json:"totalTurnover"`
}

type quoteSecInfo struct {
	Index   string   `json:"index"`
	Indices []string `json:"indices"`
}

// FetchSymbolMetrics fetches live metrics for one symbol, trying alternate
// series when the requested one is not listed.
func (c *Client) FetchSymbolMetrics(ctx context.Context, symbol, series string) (domain.SymbolMetricRow, error) {
	c.warmup(ctx)

	if series == "" {
		series = "EQ"
	}
	tried := []string{series}
	for _, s := range seriesFallback {
		if s != series {
			tried = append(tried, s)
		}
	}

	var lastErr error
	for _, ser := range tried {
		equity, err := c.fetchQuote(ctx, symbol, ser)
		if err != nil {
			lastErr = err
			if isRetriableQuoteError(err) {
				continue
			}
			return domain.SymbolMetricRow{}, err
		}
		return buildMetricRow(symbol, ser, equity), nil
	}
	return domain.SymbolMetricRow{}, lastErr
}

func (c *Client) fetchQuote(ctx context.Context, symbol, series string) (quoteEquity, error) {
	params := url.Values{}
	params.Set("functionName", "getSymbolData")
	params.Set("marketType", "N")
	params.Set("series", series)
	params.Set("symbol", symbol)

	resp, err := c.get(ctx, c.cfg.BaseURL+quotePath+"?"+params.Encode())
	if err != nil {
		return quoteEquity{}, fmt.Errorf("quote %s (%s): %w", symbol, series, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return quoteEquity{}, &quoteError{
			symbol:    symbol,
			series:    series,
			status:    resp.StatusCode,
			retriable: resp.StatusCode == http.StatusNotFound,
		}
	}

	var payload quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return quoteEquity{}, fmt.Errorf("quote %s (%s): invalid json: %w", symbol, series, err)
	}
	if len(payload.EquityResponse) == 0 {
		msg := payload.Msg
		if msg == "" {
			msg = payload.Message
		}
		if msg == "" {
			msg = "no equity response"
		}
		return quoteEquity{}, &quoteError{symbol: symbol, series: series, message: msg, retriable: true}
	}
	return payload.EquityResponse[0], nil
}

type quoteError struct {
	symbol    string
	series    string
	status    int
	message   string
	retriable bool
}

func (e *quoteError) Error() string {
	if e.status != 0 {
		return fmt.Sprintf("quote %s (%s): status %d", e.symbol, e.series, e.status)
	}
	return fmt.Sprintf("quote %s (%s): %s", e.symbol, e.series, e.message)
}

func isRetriableQuoteError(err error) bool {
	qe, ok := err.(*quoteError)
	return ok && qe.retriable
}

func buildMetricRow(symbol, series string, equity quoteEquity) domain.SymbolMetricRow {
	row := domain.SymbolMetricRow{
		Symbol:      firstNonEmpty(equity.Symbol, equity.MetaData.Symbol, symbol),
		CompanyName: firstNonEmpty(equity.CompanyName, equity.MetaData.CompanyName),
		Series:      firstNonEmpty(equity.Series, series),
	}

	indexList := dedupeStrings(collectIndices(equity))
	if len(indexList) > 0 {
		row.Index = indexList[0]
	}
	row.IndexList = indexList

	row.ImpactCost = firstFloat(equity.ImpactCost, equity.TradeInfo.ImpactCost)
	row.FreeFloatMcap = firstFloat(equity.FFMC, equity.TradeInfo.FFMC)
	row.TotalMarketCap = firstFloat(equity.TotalMcap, equity.TradeInfo.TotalMarketCap)
	row.TotalTradedValue = firstFloat(equity.TradeInfo.TotalTradedValue, equity.PriceInfo.TotalTurnover)
	row.LastPrice = firstFloat(equity.LastPrice, equity.TradeInfo.LastPrice)
	return row
}

func collectIndices(equity quoteEquity) []string {
	var out []string
	for _, single := range []string{equity.Index, equity.MetaData.Index, equity.SecInfo.Index} {
		if single != "" {
			out = append(out, single)
		}
	}
	out = append(out, equity.IndexList...)
	out = append(out, equity.MetaData.IndexList...)
	out = append(out, equity.SecInfo.Indices...)
	return out
}

func dedupeStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// firstFloat decodes the first raw value that yields a usable float. The
// exchange serializes numerics inconsistently, sometimes as numbers and
// sometimes as strings with "-" or "NA" placeholders.
func firstFloat(raws ...json.RawMessage) *float64 {
	for _, raw := range raws {
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		var num float64
		if err := json.Unmarshal(raw, &num); err == nil {
			return &num
		}
		var text string
		if err := json.Unmarshal(raw, &text); err == nil {
			if v := ToFloat(text); v != nil {
				return v
			}
		}
	}
	return nil
}
