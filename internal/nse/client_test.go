package nse

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nsecli/internal/config"
	"nsecli/pkg/contracts/domain"
)

func testProviderConfig(baseURL string) config.ProviderConfig {
	return config.ProviderConfig{
		BaseURL:        baseURL,
		UserAgent:      "test-agent",
		Timeout:        5 * time.Second,
		RequestsPerSec: 1000,
		Burst:          100,
	}
}

func buildZip(t *testing.T, members map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range members {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

const mcapCSV = "Trade Date,Symbol,Series,Security Name,Market Cap(Rs.)              ,Free Float Market Cap\n" +
	"03-Dec-2025,RELIANCE,EQ,Reliance Industries,1000.5,600.25\n" +
	"03-Dec-2025,TCS,EQ,Tata Consultancy,-,NA\n" +
	"03-Dec-2025,TOTAL,,Grand Total,99999,99999\n" +
	"03-Dec-2025,LISTED SECURITIES,,Listed,88888,88888\n"

const prCSV = "SECURITY,NET_TRDVAL\n" +
	"RELIANCE,500.75\n" +
	"TOTAL,12345\n"

func TestParseDailyCSV(t *testing.T) {
	date := time.Date(2025, 12, 3, 0, 0, 0, 0, time.UTC)

	t.Run("market cap with padded headers", func(t *testing.T) {
		records, err := ParseDailyCSV(domain.KindMarketCap, date, []byte(mcapCSV))
		require.NoError(t, err)
		require.Len(t, records, 2)

		assert.Equal(t, "RELIANCE", records[0].Symbol)
		assert.Equal(t, "Reliance Industries", records[0].CompanyName)
		require.NotNil(t, records[0].Value)
		assert.Equal(t, 1000.5, *records[0].Value)
		require.NotNil(t, records[0].FreeFloat)
		assert.Equal(t, 600.25, *records[0].FreeFloat)

		assert.Equal(t, "TCS", records[1].Symbol)
		assert.Nil(t, records[1].Value)
		assert.Nil(t, records[1].FreeFloat)
	})

	t.Run("traded value", func(t *testing.T) {
		records, err := ParseDailyCSV(domain.KindTradedValue, date, []byte(prCSV))
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "RELIANCE", records[0].Symbol)
		require.NotNil(t, records[0].Value)
		assert.Equal(t, 500.75, *records[0].Value)
	})

	t.Run("missing symbol column", func(t *testing.T) {
		_, err := ParseDailyCSV(domain.KindMarketCap, date, []byte("A,B\n1,2\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Symbol")
	})
}

func TestIsSummarySymbol(t *testing.T) {
	tests := []struct {
		symbol  string
		summary bool
	}{
		{"TOTAL", true},
		{"total", true},
		{"LISTED", true},
		{"TOTAL LISTED", true},
		{"Listed-Total", true},
		{"TOTAL TRADED", true},
		{"RELIANCE", false},
		{"", false},
		{"LISTEX", false},
	}
	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			assert.Equal(t, tt.summary, IsSummarySymbol(tt.symbol))
		})
	}
}

func TestToFloat(t *testing.T) {
	assert.Nil(t, ToFloat(""))
	assert.Nil(t, ToFloat("-"))
	assert.Nil(t, ToFloat("NA"))
	assert.Nil(t, ToFloat("abc"))

	v := ToFloat(" 12.5 ")
	require.NotNil(t, v)
	assert.Equal(t, 12.5, *v)

	v = ToFloat("1,234.5")
	require.NotNil(t, v)
	assert.Equal(t, 1234.5, *v)
}

func TestFetchDayReport(t *testing.T) {
	date := time.Date(2025, 12, 3, 0, 0, 0, 0, time.UTC)

	t.Run("selects kind-prefixed member", func(t *testing.T) {
		archive := buildZip(t, map[string]string{
			"mcap03122025.csv": mcapCSV,
			"pr03122025.csv":   prCSV,
			"readme.txt":       "ignore",
		})
		var gotDate string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/" {
				return
			}
			require.Equal(t, "/api/reports", r.URL.Path)
			gotDate = r.URL.Query().Get("date")
			w.Write(archive)
		}))
		defer server.Close()

		client := NewClient(testProviderConfig(server.URL), nil)
		raw, records, err := client.FetchDayReport(context.Background(), date, domain.KindMarketCap)
		require.NoError(t, err)
		assert.Equal(t, "03-Dec-2025", gotDate)
		assert.Equal(t, []byte(mcapCSV), raw)
		require.Len(t, records, 2)
		assert.Equal(t, "RELIANCE", records[0].Symbol)
	})

	t.Run("falls back to bhavcopy member", func(t *testing.T) {
		archive := buildZip(t, map[string]string{
			"bh03122025.csv": prCSV,
		})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write(archive)
		}))
		defer server.Close()

		client := NewClient(testProviderConfig(server.URL), nil)
		raw, _, err := client.FetchDayReport(context.Background(), date, domain.KindTradedValue)
		require.NoError(t, err)
		assert.Equal(t, []byte(prCSV), raw)
	})

	t.Run("no csv member", func(t *testing.T) {
		archive := buildZip(t, map[string]string{"readme.txt": "nothing"})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write(archive)
		}))
		defer server.Close()

		client := NewClient(testProviderConfig(server.URL), nil)
		_, _, err := client.FetchDayReport(context.Background(), date, domain.KindMarketCap)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no csv member")
	})

	t.Run("upstream error status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/api/reports" {
				w.WriteHeader(http.StatusServiceUnavailable)
			}
		}))
		defer server.Close()

		client := NewClient(testProviderConfig(server.URL), nil)
		_, _, err := client.FetchDayReport(context.Background(), date, domain.KindMarketCap)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 503")
	})
}

func TestFetchSymbolMetrics(t *testing.T) {
	t.Run("parses quote payload", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/NextApi/apiClient/GetQuoteApi" {
				return
			}
			assert.Equal(t, "getSymbolData", r.URL.Query().Get("functionName"))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"equityResponse":[{
				"symbol":"RELIANCE",
				"companyName":"Reliance Industries",
				"series":"EQ",
				"index":"NIFTY 50",
				"indexList":["NIFTY 50","NIFTY 100"],
				"impactCost":"0.02",
				"lastPrice":2500.5,
				"tradeInfo":{"ffmc":"123.4","totalMarketCap":"-","totalTradedValue":987.6}
			}]}`))
		}))
		defer server.Close()

		client := NewClient(testProviderConfig(server.URL), nil)
		row, err := client.FetchSymbolMetrics(context.Background(), "RELIANCE", "EQ")
		require.NoError(t, err)

		assert.Equal(t, "RELIANCE", row.Symbol)
		assert.Equal(t, "Reliance Industries", row.CompanyName)
		assert.Equal(t, "NIFTY 50", row.Index)
		assert.Equal(t, []string{"NIFTY 50", "NIFTY 100"}, row.IndexList)
		require.NotNil(t, row.ImpactCost)
		assert.Equal(t, 0.02, *row.ImpactCost)
		require.NotNil(t, row.FreeFloatMcap)
		assert.Equal(t, 123.4, *row.FreeFloatMcap)
		assert.Nil(t, row.TotalMarketCap)
		require.NotNil(t, row.TotalTradedValue)
		assert.Equal(t, 987.6, *row.TotalTradedValue)
		require.NotNil(t, row.LastPrice)
		assert.Equal(t, 2500.5, *row.LastPrice)
	})

	t.Run("falls back across series", func(t *testing.T) {
		var seriesTried []string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/NextApi/apiClient/GetQuoteApi" {
				return
			}
			series := r.URL.Query().Get("series")
			seriesTried = append(seriesTried, series)
			if series != "BZ" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write([]byte(`{"equityResponse":[{"symbol":"SMALLCO","series":"BZ"}]}`))
		}))
		defer server.Close()

		client := NewClient(testProviderConfig(server.URL), nil)
		row, err := client.FetchSymbolMetrics(context.Background(), "SMALLCO", "EQ")
		require.NoError(t, err)
		assert.Equal(t, "BZ", row.Series)
		assert.Equal(t, []string{"EQ", "BE", "BZ"}, seriesTried)
	})

	t.Run("empty equity response exhausts fallback", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/NextApi/apiClient/GetQuoteApi" {
				return
			}
			w.Write([]byte(`{"equityResponse":[],"msg":"No data found"}`))
		}))
		defer server.Close()

		client := NewClient(testProviderConfig(server.URL), nil)
		_, err := client.FetchSymbolMetrics(context.Background(), "GHOST", "EQ")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "No data found")
	})

	t.Run("server error is not retried across series", func(t *testing.T) {
		var calls int
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/NextApi/apiClient/GetQuoteApi" {
				return
			}
			calls++
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		client := NewClient(testProviderConfig(server.URL), nil)
		_, err := client.FetchSymbolMetrics(context.Background(), "RELIANCE", "EQ")
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})
}
