package domain

// SymbolMetricRow is one symbol's live quote metrics as returned by the
// remote provider. Numeric fields are nil when the exchange does not
// publish that metric for the symbol.
type SymbolMetricRow struct {
	Symbol           string   `json:"symbol" validate:"required"`
	CompanyName      string   `json:"company_name"`
	Series           string   `json:"series"`
	Index            string   `json:"index,omitempty"`
	IndexList        []string `json:"index_list,omitempty"`
	ImpactCost       *float64 `json:"impact_cost"`
	FreeFloatMcap    *float64 `json:"free_float_mcap"`
	TotalMarketCap   *float64 `json:"total_market_cap"`
	TotalTradedValue *float64 `json:"total_traded_value"`
	LastPrice        *float64 `json:"last_price"`
}

// MetricFields lists the numeric fields of SymbolMetricRow that participate
// in dashboard averages, in output order.
var MetricFields = []string{
	"impact_cost",
	"free_float_mcap",
	"total_market_cap",
	"total_traded_value",
	"last_price",
}

// MetricValue returns the named numeric field of the row, or nil when the
// field is absent or unknown.
func (r SymbolMetricRow) MetricValue(field string) *float64 {
	switch field {
	case "impact_cost":
		return r.ImpactCost
	case "free_float_mcap":
		return r.FreeFloatMcap
	case "total_market_cap":
		return r.TotalMarketCap
	case "total_traded_value":
		return r.TotalTradedValue
	case "last_price":
		return r.LastPrice
	}
	return nil
}

// SymbolError is a recorded per-symbol or per-batch fetch failure.
type SymbolError struct {
	Symbol       string `json:"symbol"`
	ErrorMessage string `json:"error_message"`
}

// BatchResult holds the outcome of one bounded symbol-metrics call.
// A batch that failed entirely has zero rows and one recorded error.
type BatchResult struct {
	BatchIndex int               `json:"batch_index"`
	StartIndex int               `json:"start_index"`
	EndIndex   int               `json:"end_index"`
	Rows       []SymbolMetricRow `json:"rows"`
	Errors     []SymbolError     `json:"errors"`
}

// BatchProgress is pushed to the caller after every batch completes,
// success or failure. It is the only mid-job observation point.
type BatchProgress struct {
	CurrentBatch     int    `json:"current_batch"`
	TotalBatches     int    `json:"total_batches"`
	SymbolsProcessed int    `json:"symbols_processed"`
	TotalSymbols     int    `json:"total_symbols"`
	Status           string `json:"status"`
}

// ArtifactRef points at a materialized downloadable artifact.
type ArtifactRef struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	// ContentKind declares the artifact format ("xlsx", "zip", "csv");
	// callers must not infer it from the filename.
	ContentKind string `json:"content_kind"`
	Path        string `json:"path,omitempty"`
}

// DashboardResult is the final accumulated output of a dashboard build:
// every batch's rows in batch order, every recorded error, and per-field
// means over rows that carry the field.
type DashboardResult struct {
	Rows     []SymbolMetricRow   `json:"rows"`
	Errors   []SymbolError       `json:"errors"`
	Batches  []BatchResult       `json:"batches"`
	Averages map[string]*float64 `json:"averages"`
	Artifact *ArtifactRef        `json:"artifact,omitempty"`
}
