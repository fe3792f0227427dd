package http

import (
	"encoding/json"
	"fmt"
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

func TestRunPipeline(t *testing.T) {
	svc := &fakePipelineService{
		result: &pipeline.PipelineResult{
			Summary:   &domain.RangeSummary{TotalRequested: 5, FetchedCount: 5},
			Export:    &pipeline.ExportResult{SideEffectPersisted: true},
			Dashboard: &domain.DashboardResult{},
		},
	}
	h := NewPipelineHandler(svc, nil, testLogger(), apierrors.NewErrorHandler(testLogger()))

	body := `{"from":"2025-12-01","to":"2025-12-05"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got pipeline.PipelineResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.NotNil(t, got.Summary)
	assert.Equal(t, 5, got.Summary.TotalRequested)
	assert.Empty(t, got.FailedStage)
}

func TestRunPipelinePreservesPartialResults(t *testing.T) {
	svc := &fakePipelineService{
		result: &pipeline.PipelineResult{
			Summary:     &domain.RangeSummary{TotalRequested: 5, FailedCount: 5},
			FailedStage: "export",
			StageError:  "no records available",
		},
		err: fmt.Errorf("export: %w", pipeline.ErrNoDataAvailable),
	}
	h := NewPipelineHandler(svc, nil, testLogger(), apierrors.NewErrorHandler(testLogger()))

	body := `{"from":"2025-12-01","to":"2025-12-05"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got pipeline.PipelineResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "export", got.FailedStage)
	require.NotNil(t, got.Summary)
	assert.Equal(t, 5, got.Summary.FailedCount)
	assert.Nil(t, got.Export)
}

func TestRunPipelineRejectsInvalidRange(t *testing.T) {
	svc := &fakePipelineService{
		result: &pipeline.PipelineResult{FailedStage: "acquisition"},
		err:    fmt.Errorf("acquisition: %w", pipeline.ErrInvalidRange),
	}
	h := NewPipelineHandler(svc, nil, testLogger(), apierrors.NewErrorHandler(testLogger()))

	body := `{"from":"2025-12-05","to":"2025-12-01"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_RANGE")
}
