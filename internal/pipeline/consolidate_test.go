package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nsecli/pkg/contracts/domain"
)

func newTestConsolidator(cache *fakeCache, builder *fakeBuilder, artifacts *fakeArtifacts, uploader Uploader) *Consolidator {
	return NewConsolidator(cache, builder, artifacts, uploader, nil, nil)
}

func TestConsolidate_NullExcludedFromAverage(t *testing.T) {
	days := map[time.Time][]domain.DailyRecord{
		day(2024, 1, 1): {{Symbol: "A", CompanyName: "Alpha", Value: float64Ptr(10)}},
		day(2024, 1, 2): {{Symbol: "A", CompanyName: "Alpha", Value: float64Ptr(20)}},
		day(2024, 1, 3): {{Symbol: "A", CompanyName: "Alpha", Value: nil}},
	}

	table := Consolidate(domain.KindMarketCap, days)
	require.Len(t, table.Rows, 1)

	row := table.Rows[0]
	require.NotNil(t, row.Average)
	assert.Equal(t, 15.0, *row.Average)
	assert.Equal(t, 2, row.DaysWithData)
	assert.Equal(t, []string{"01-01-2024", "02-01-2024", "03-01-2024"}, table.Dates)
}

func TestConsolidate_RowsOrderedByAverageDescending(t *testing.T) {
	days := map[time.Time][]domain.DailyRecord{
		day(2024, 1, 1): {
			{Symbol: "SMALL", Value: float64Ptr(10)},
			{Symbol: "BIG", Value: float64Ptr(1000)},
			{Symbol: "EMPTY", Value: nil},
			{Symbol: "MID", Value: float64Ptr(100)},
		},
	}

	table := Consolidate(domain.KindMarketCap, days)
	symbols := make([]string, len(table.Rows))
	for i, row := range table.Rows {
		symbols[i] = row.Symbol
	}
	assert.Equal(t, []string{"BIG", "MID", "SMALL", "EMPTY"}, symbols)
	assert.Nil(t, table.Rows[3].Average)
}

func TestConsolidate_FreeFloatAverages(t *testing.T) {
	days := map[time.Time][]domain.DailyRecord{
		day(2024, 1, 1): {{Symbol: "A", Value: float64Ptr(10), FreeFloat: float64Ptr(4)}},
		day(2024, 1, 2): {{Symbol: "A", Value: float64Ptr(20), FreeFloat: float64Ptr(6)}},
	}

	table := Consolidate(domain.KindMarketCap, days)
	require.Len(t, table.Rows, 1)
	require.NotNil(t, table.Rows[0].FreeFloatAverage)
	assert.Equal(t, 5.0, *table.Rows[0].FreeFloatAverage)
}

func TestExport_NoDataAvailable(t *testing.T) {
	cache := newFakeCache()
	builder := &fakeBuilder{}
	artifacts := &fakeArtifacts{}
	c := newTestConsolidator(cache, builder, artifacts, nil)

	_, err := c.Export(context.Background(), ExportRequest{
		From: day(2024, 1, 1),
		To:   day(2024, 1, 5),
	})
	require.ErrorIs(t, err, ErrNoDataAvailable)
	assert.Empty(t, artifacts.saved)
	assert.Equal(t, 0, builder.consolidatedCalls)
}

func TestExport_SingleKindYieldsSingleFile(t *testing.T) {
	cache := newFakeCache()
	cache.put(day(2024, 1, 1), domain.KindMarketCap, []domain.DailyRecord{
		{Symbol: "A", CompanyName: "Alpha", Value: float64Ptr(10)},
	})
	builder := &fakeBuilder{}
	artifacts := &fakeArtifacts{}
	c := newTestConsolidator(cache, builder, artifacts, nil)

	result, err := c.Export(context.Background(), ExportRequest{
		From:  day(2024, 1, 1),
		To:    day(2024, 1, 1),
		Kinds: []domain.DataKind{domain.KindMarketCap},
	})
	require.NoError(t, err)

	assert.Equal(t, "xlsx", result.Artifact.ContentKind)
	assert.Equal(t, "consolidated_mcap.xlsx", result.Artifact.Filename)
	assert.Equal(t, 0, builder.archiveCalls)
	assert.True(t, result.SideEffectPersisted)
	assert.NotEmpty(t, result.Log)
}

func TestExport_TwoKindsPackagedIntoArchive(t *testing.T) {
	cache := newFakeCache()
	cache.put(day(2024, 1, 1), domain.KindMarketCap, []domain.DailyRecord{
		{Symbol: "A", Value: float64Ptr(10)},
	})
	cache.put(day(2024, 1, 1), domain.KindTradedValue, []domain.DailyRecord{
		{Symbol: "A", Value: float64Ptr(5)},
	})
	builder := &fakeBuilder{}
	artifacts := &fakeArtifacts{}
	c := newTestConsolidator(cache, builder, artifacts, nil)

	result, err := c.Export(context.Background(), ExportRequest{
		From: day(2024, 1, 1),
		To:   day(2024, 1, 1),
	})
	require.NoError(t, err)

	assert.Equal(t, "zip", result.Artifact.ContentKind)
	assert.Equal(t, 1, builder.archiveCalls)
	assert.Equal(t, 2, builder.consolidatedCalls)
}

func TestExport_FastModeSkipsAveragesPersistence(t *testing.T) {
	cache := newFakeCache()
	cache.put(day(2024, 1, 1), domain.KindMarketCap, []domain.DailyRecord{
		{Symbol: "A", Value: float64Ptr(10)},
	})
	c := newTestConsolidator(cache, &fakeBuilder{}, &fakeArtifacts{}, nil)

	result, err := c.Export(context.Background(), ExportRequest{
		From:     day(2024, 1, 1),
		To:       day(2024, 1, 1),
		Kinds:    []domain.DataKind{domain.KindMarketCap},
		FastMode: true,
	})
	require.NoError(t, err)

	assert.False(t, result.SideEffectPersisted)
	assert.Equal(t, 0, cache.avgWrites)
}

func TestExport_PersistsAveragesKeyedByKind(t *testing.T) {
	cache := newFakeCache()
	cache.put(day(2024, 1, 1), domain.KindMarketCap, []domain.DailyRecord{
		{Symbol: "A", Value: float64Ptr(10)},
		{Symbol: "B", Value: float64Ptr(30)},
	})
	c := newTestConsolidator(cache, &fakeBuilder{}, &fakeArtifacts{}, nil)

	_, err := c.Export(context.Background(), ExportRequest{
		From:  day(2024, 1, 1),
		To:    day(2024, 1, 1),
		Kinds: []domain.DataKind{domain.KindMarketCap},
	})
	require.NoError(t, err)

	averages, err := cache.ReadSymbolAverages(domain.KindMarketCap)
	require.NoError(t, err)
	assert.Len(t, averages, 2)
}

func TestExport_UploadFailureIsNotFatal(t *testing.T) {
	cache := newFakeCache()
	cache.put(day(2024, 1, 1), domain.KindMarketCap, []domain.DailyRecord{
		{Symbol: "A", Value: float64Ptr(10)},
	})
	uploader := &fakeUploader{fail: true}
	c := newTestConsolidator(cache, &fakeBuilder{}, &fakeArtifacts{}, uploader)

	result, err := c.Export(context.Background(), ExportRequest{
		From:  day(2024, 1, 1),
		To:    day(2024, 1, 1),
		Kinds: []domain.DataKind{domain.KindMarketCap},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Artifact.ID)

	found := false
	for _, line := range result.Log {
		if strings.Contains(line, "upload skipped") {
			found = true
		}
	}
	assert.True(t, found)
}
