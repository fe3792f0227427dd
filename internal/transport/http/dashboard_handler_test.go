package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "nsecli/internal/errors"
	"nsecli/internal/pipeline"
	"nsecli/pkg/contracts/domain"
)

func TestBuildDashboard(t *testing.T) {
	svc := &fakeDashboardService{
		result: &domain.DashboardResult{
			Rows: []domain.SymbolMetricRow{{Symbol: "INFY"}, {Symbol: "TCS"}},
		},
		progress: []domain.BatchProgress{
			{CurrentBatch: 1, TotalBatches: 2, SymbolsProcessed: 50, TotalSymbols: 100},
			{CurrentBatch: 2, TotalBatches: 2, SymbolsProcessed: 100, TotalSymbols: 100},
		},
	}
	broadcaster := &fakeBroadcaster{}
	h := NewDashboardHandler(svc, broadcaster, testLogger(), apierrors.NewErrorHandler(testLogger()))

	body := `{"target_symbol_count":100,"batch_size":50,"ranking_kind":"mcap"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 100, svc.gotReq.TargetSymbolCount)
	assert.Equal(t, domain.KindMarketCap, svc.gotReq.RankingKind)

	require.Len(t, broadcaster.events, 2)
	assert.Equal(t, 100, broadcaster.events[1].SymbolsProcessed)

	var got domain.DashboardResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got.Rows, 2)
}

func TestBuildDashboardEmptyBodyUsesDefaults(t *testing.T) {
	svc := &fakeDashboardService{result: &domain.DashboardResult{}}
	h := NewDashboardHandler(svc, nil, testLogger(), apierrors.NewErrorHandler(testLogger()))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, svc.gotReq.TargetSymbolCount)
	assert.Zero(t, svc.gotReq.BatchSize)
}

func TestBuildDashboardNoUniverse(t *testing.T) {
	svc := &fakeDashboardService{err: pipeline.ErrNoDataAvailable}
	h := NewDashboardHandler(svc, nil, testLogger(), apierrors.NewErrorHandler(testLogger()))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

