package nse

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"nsecli/pkg/contracts/domain"
)

// Column names as they appear in the exchange daily report CSVs. Market cap
// files use mixed-case headers with trailing padding, traded value files use
// upper snake case.
const (
	mcapSymbolColumn    = "Symbol"
	mcapNameColumn      = "Security Name"
	mcapValueColumn     = "Market Cap(Rs.)"
	mcapFreeFloatColumn = "Free Float Market Cap"

	tradedSecurityColumn = "SECURITY"
	tradedValueColumn    = "NET_TRDVAL"
)

var nonAlnumPattern = regexp.MustCompile(`[^A-Z0-9]`)

// IsSummarySymbol reports whether a symbol cell is an exchange summary row
// (grand totals, listed counts) rather than a tradable security.
func IsSummarySymbol(symbol string) bool {
	text := strings.ToUpper(strings.TrimSpace(symbol))
	if text == "" {
		return false
	}
	normalized := nonAlnumPattern.ReplaceAllString(text, "")
	switch normalized {
	case "TOTAL", "LISTED", "TOTALLISTED", "LISTEDTOTAL":
		return true
	}
	return strings.HasPrefix(text, "TOTAL") || strings.HasPrefix(text, "LISTED")
}

// ParseDailyCSV parses a raw daily report CSV into records for the given data
// kind. Header names are matched after trimming whitespace because the
// exchange pads some of them. Summary rows are dropped, unparseable numeric
// cells become nil values so a symbol still counts as present for the day.
func ParseDailyCSV(kind domain.DataKind, date time.Time, data []byte) ([]domain.DailyRecord, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s csv: %w", kind, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("parse %s csv: empty file", kind)
	}

	header := make(map[string]int, len(rows[0]))
	for i, col := range rows[0] {
		header[strings.TrimSpace(col)] = i
	}

	var symbolCol, nameCol, valueCol, freeFloatCol string
	switch kind {
	case domain.KindTradedValue:
		symbolCol, nameCol, valueCol = tradedSecurityColumn, tradedSecurityColumn, tradedValueColumn
	default:
		symbolCol, nameCol, valueCol = mcapSymbolColumn, mcapNameColumn, mcapValueColumn
		freeFloatCol = mcapFreeFloatColumn
	}
	symbolIdx, ok := header[symbolCol]
	if !ok {
		return nil, fmt.Errorf("parse %s csv: column %q not found", kind, symbolCol)
	}
	valueIdx, ok := header[valueCol]
	if !ok {
		return nil, fmt.Errorf("parse %s csv: column %q not found", kind, valueCol)
	}
	nameIdx := header[nameCol]
	freeFloatIdx, hasFreeFloat := header[freeFloatCol]

	records := make([]domain.DailyRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if symbolIdx >= len(row) {
			continue
		}
		symbol := strings.TrimSpace(row[symbolIdx])
		if symbol == "" || IsSummarySymbol(symbol) {
			continue
		}
		record := domain.DailyRecord{
			Symbol: symbol,
			Date:   date,
		}
		if nameIdx < len(row) {
			record.CompanyName = strings.TrimSpace(row[nameIdx])
		}
		if valueIdx < len(row) {
			record.Value = ToFloat(row[valueIdx])
		}
		if hasFreeFloat && freeFloatIdx < len(row) {
			record.FreeFloat = ToFloat(row[freeFloatIdx])
		}
		records = append(records, record)
	}
	return records, nil
}

// ToFloat converts an exchange numeric cell to a float pointer. The exchange
// uses "", "-" and "NA" for missing values, which all map to nil.
func ToFloat(raw string) *float64 {
	text := strings.TrimSpace(raw)
	switch text {
	case "", "-", "NA":
		return nil
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(text, ",", ""), 64)
	if err != nil {
		return nil
	}
	return &value
}
