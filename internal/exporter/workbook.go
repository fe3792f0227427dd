// Package exporter turns consolidated tables and dashboard results into
// downloadable artifacts: styled Excel workbooks, ZIP packages of several
// workbooks, and an id-addressed artifact store for later retrieval.
package exporter

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"nsecli/internal/pipeline"
	"nsecli/pkg/contracts/domain"
)

// Builder generates Excel workbooks and ZIP archives. It implements the
// pipeline's ArtifactBuilder contract.
type Builder struct{}

// NewBuilder creates an artifact builder.
func NewBuilder() *Builder {
	return &Builder{}
}

func sheetTitle(kind domain.DataKind) string {
	if kind == domain.KindTradedValue {
		return "Net Traded Value"
	}
	return "Market Cap Data"
}

func averageColumn(kind domain.DataKind) string {
	if kind == domain.KindTradedValue {
		return "Average Net Traded Value"
	}
	return "Average Market Cap"
}

type workbookStyles struct {
	header int
	text   int
	count  int
	number int
}

func newStyles(f *excelize.File) (workbookStyles, error) {
	var s workbookStyles
	var err error

	border := []excelize.Border{
		{Type: "left", Style: 1, Color: "000000"},
		{Type: "right", Style: 1, Color: "000000"},
		{Type: "top", Style: 1, Color: "000000"},
		{Type: "bottom", Style: 1, Color: "000000"},
	}

	s.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF", Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"4F81BD"}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
		Border:    border,
	})
	if err != nil {
		return s, err
	}
	s.text, err = f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
		Border:    border,
	})
	if err != nil {
		return s, err
	}
	countFmt := "0"
	s.count, err = f.NewStyle(&excelize.Style{
		Alignment:    &excelize.Alignment{Horizontal: "right", Vertical: "center"},
		Border:       border,
		CustomNumFmt: &countFmt,
	})
	if err != nil {
		return s, err
	}
	numberFmt := "#,##0.00"
	s.number, err = f.NewStyle(&excelize.Style{
		Alignment:    &excelize.Alignment{Horizontal: "right", Vertical: "center"},
		Border:       border,
		CustomNumFmt: &numberFmt,
	})
	return s, err
}

// BuildConsolidated renders one kind's pivoted table as a workbook with a
// main data sheet and an Averages sheet.
func (b *Builder) BuildConsolidated(kind domain.DataKind, table *pipeline.ConsolidatedTable) ([]byte, string, error) {
	f := excelize.NewFile()
	defer f.Close()

	main := sheetTitle(kind)
	if err := f.SetSheetName("Sheet1", main); err != nil {
		return nil, "", err
	}
	if _, err := f.NewSheet("Averages"); err != nil {
		return nil, "", err
	}

	styles, err := newStyles(f)
	if err != nil {
		return nil, "", err
	}

	headers := []interface{}{"Symbol", "Company Name", "Days With Data", averageColumn(kind)}
	if kind == domain.KindMarketCap {
		headers = append(headers, "Average Free Float")
	}
	fixedCols := len(headers)
	for _, date := range table.Dates {
		headers = append(headers, date)
	}

	if err := writeHeaderRow(f, main, headers, styles.header); err != nil {
		return nil, "", err
	}
	avgHeaders := headers[:fixedCols]
	if err := writeHeaderRow(f, "Averages", avgHeaders, styles.header); err != nil {
		return nil, "", err
	}

	for i, row := range table.Rows {
		rowNum := i + 2
		cells := []interface{}{row.Symbol, row.CompanyName, row.DaysWithData, floatCell(row.Average)}
		if kind == domain.KindMarketCap {
			cells = append(cells, floatCell(row.FreeFloatAverage))
		}
		if err := writeRow(f, "Averages", rowNum, cells); err != nil {
			return nil, "", err
		}
		for _, date := range table.Dates {
			cells = append(cells, floatCell(row.Values[date]))
		}
		if err := writeRow(f, main, rowNum, cells); err != nil {
			return nil, "", err
		}
	}

	for _, sheet := range []string{main, "Averages"} {
		if err := styleColumns(f, sheet, styles, fixedCols, len(headers)); err != nil {
			return nil, "", err
		}
		if err := f.SetPanes(sheet, &excelize.Panes{
			Freeze: true, XSplit: 2, YSplit: 1, TopLeftCell: "C2", ActivePane: "bottomRight",
		}); err != nil {
			return nil, "", err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", err
	}
	return buf.Bytes(), fmt.Sprintf("consolidated_%s.xlsx", kind), nil
}

// BuildDashboard renders accumulated dashboard rows plus a trailing AVERAGE
// row holding the per-field means.
func (b *Builder) BuildDashboard(result *domain.DashboardResult) ([]byte, string, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Symbol Dashboard"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, "", err
	}
	styles, err := newStyles(f)
	if err != nil {
		return nil, "", err
	}

	headers := []interface{}{
		"Symbol", "Company Name", "Series", "Index", "Index List",
		"Impact Cost", "Free Float Mcap", "Total Market Cap", "Total Traded Value", "Last Price",
	}
	if err := writeHeaderRow(f, sheet, headers, styles.header); err != nil {
		return nil, "", err
	}

	rowNum := 1
	for _, row := range result.Rows {
		rowNum++
		cells := []interface{}{
			row.Symbol, row.CompanyName, row.Series, row.Index, joinList(row.IndexList),
		}
		for _, field := range domain.MetricFields {
			cells = append(cells, floatCell(row.MetricValue(field)))
		}
		if err := writeRow(f, sheet, rowNum, cells); err != nil {
			return nil, "", err
		}
	}

	rowNum++
	averageRow := []interface{}{"AVERAGE", nil, nil, nil, nil}
	for _, field := range domain.MetricFields {
		averageRow = append(averageRow, floatCell(result.Averages[field]))
	}
	if err := writeRow(f, sheet, rowNum, averageRow); err != nil {
		return nil, "", err
	}

	if err := styleColumns(f, sheet, styles, 5, len(headers)); err != nil {
		return nil, "", err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("symbol_dashboard_%s.xlsx", time.Now().Format("20060102"))
	return buf.Bytes(), filename, nil
}

func writeHeaderRow(f *excelize.File, sheet string, headers []interface{}, style int) error {
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return err
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, rowNum int, cells []interface{}) error {
	start, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, start, &cells)
}

func styleColumns(f *excelize.File, sheet string, styles workbookStyles, fixedCols, totalCols int) error {
	widths := []struct {
		col   string
		width float64
		style int
	}{
		{"A", 15, styles.text},
		{"B", 30, styles.text},
		{"C", 12, styles.count},
	}
	for _, w := range widths {
		if err := f.SetColWidth(sheet, w.col, w.col, w.width); err != nil {
			return err
		}
		if err := f.SetColStyle(sheet, w.col, w.style); err != nil {
			return err
		}
	}
	for i := 4; i <= totalCols; i++ {
		name, err := excelize.ColumnNumberToName(i)
		if err != nil {
			return err
		}
		width := 14.0
		if i <= fixedCols {
			width = 18.0
		}
		if err := f.SetColWidth(sheet, name, name, width); err != nil {
			return err
		}
		if err := f.SetColStyle(sheet, name, styles.number); err != nil {
			return err
		}
	}
	return nil
}

// floatCell keeps empty cells empty: excelize renders a nil interface value
// as no cell content, which is what missing data should look like.
func floatCell(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func joinList(values []string) string {
	return strings.Join(values, ", ")
}
