// Package store owns the on-disk layout of cached daily reports and the
// persisted per-symbol averages derived from them.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"nsecli/internal/config"
	"nsecli/internal/nse"
	"nsecli/pkg/contracts/domain"
)

// Store reads and writes cached daily report CSVs and derived averages.
// Cached files keep the exchange's own naming so a populated cache directory
// from earlier runs is picked up as-is.
type Store struct {
	paths  config.PathsConfig
	logger *slog.Logger
}

// New creates a store over the configured directories.
func New(paths config.PathsConfig, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		paths:  paths,
		logger: logger.With(slog.String("component", "store")),
	}
}

func (s *Store) cachedPath(date time.Time, kind domain.DataKind) string {
	return filepath.Join(s.paths.CacheDir, config.CachedFilename(date, kind))
}

// HasCached reports whether a non-empty cached file exists for date and kind.
func (s *Store) HasCached(date time.Time, kind domain.DataKind) bool {
	info, err := os.Stat(s.cachedPath(date, kind))
	return err == nil && !info.IsDir() && info.Size() > 0
}

// ReadCachedRaw returns the raw CSV bytes of a cached day file.
func (s *Store) ReadCachedRaw(date time.Time, kind domain.DataKind) ([]byte, error) {
	data, err := os.ReadFile(s.cachedPath(date, kind))
	if err != nil {
		return nil, fmt.Errorf("read cached %s for %s: %w", kind, date.Format("2006-01-02"), err)
	}
	return data, nil
}

// ReadCached parses a cached day file into records.
func (s *Store) ReadCached(date time.Time, kind domain.DataKind) ([]domain.DailyRecord, error) {
	data, err := s.ReadCachedRaw(date, kind)
	if err != nil {
		return nil, err
	}
	return nse.ParseDailyCSV(kind, date, data)
}

// WriteCached persists raw CSV bytes for date and kind, replacing any
// existing file, and returns the number of data records it holds.
func (s *Store) WriteCached(date time.Time, kind domain.DataKind, data []byte) (int, error) {
	if err := os.MkdirAll(s.paths.CacheDir, 0o755); err != nil {
		return 0, fmt.Errorf("create cache dir: %w", err)
	}
	records, err := nse.ParseDailyCSV(kind, date, data)
	if err != nil {
		return 0, err
	}
	path := s.cachedPath(date, kind)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return 0, fmt.Errorf("write cached %s for %s: %w", kind, date.Format("2006-01-02"), err)
	}
	s.logger.Debug("cached day file written",
		slog.String("file", filepath.Base(path)),
		slog.Int("records", len(records)))
	return len(records), nil
}

// RemoveCached deletes the cached file for date and kind. Missing files are
// not an error, cleanup is idempotent.
func (s *Store) RemoveCached(date time.Time, kind domain.DataKind) error {
	err := os.Remove(s.cachedPath(date, kind))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *Store) averagesPath(kind domain.DataKind) string {
	return filepath.Join(s.paths.AveragesDir, fmt.Sprintf("averages_%s.json", kind))
}

// ReadSymbolAverages loads the persisted averages for kind. A missing file
// yields an empty slice.
func (s *Store) ReadSymbolAverages(kind domain.DataKind) ([]domain.SymbolAverage, error) {
	data, err := os.ReadFile(s.averagesPath(kind))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s averages: %w", kind, err)
	}
	var averages []domain.SymbolAverage
	if err := json.Unmarshal(data, &averages); err != nil {
		return nil, fmt.Errorf("parse %s averages: %w", kind, err)
	}
	return averages, nil
}

// WriteSymbolAverages merges averages into the persisted set for kind,
// replacing entries for symbols that already exist.
func (s *Store) WriteSymbolAverages(kind domain.DataKind, averages []domain.SymbolAverage) error {
	existing, err := s.ReadSymbolAverages(kind)
	if err != nil {
		return err
	}

	merged := make(map[string]domain.SymbolAverage, len(existing)+len(averages))
	for _, avg := range existing {
		merged[avg.Symbol] = avg
	}
	for _, avg := range averages {
		merged[avg.Symbol] = avg
	}

	out := make([]domain.SymbolAverage, 0, len(merged))
	for _, avg := range merged {
		out = append(out, avg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })

	if err := os.MkdirAll(s.paths.AveragesDir, 0o755); err != nil {
		return fmt.Errorf("create averages dir: %w", err)
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.averagesPath(kind), data, 0o644); err != nil {
		return fmt.Errorf("write %s averages: %w", kind, err)
	}
	s.logger.Debug("symbol averages persisted",
		slog.String("kind", string(kind)),
		slog.Int("symbols", len(out)))
	return nil
}

// TopSymbols returns up to n symbols ranked by descending persisted average
// for kind. Symbols without a usable average are skipped.
func (s *Store) TopSymbols(kind domain.DataKind, n int) ([]string, error) {
	averages, err := s.ReadSymbolAverages(kind)
	if err != nil {
		return nil, err
	}

	ranked := make([]domain.SymbolAverage, 0, len(averages))
	for _, avg := range averages {
		if avg.Average != nil {
			ranked = append(ranked, avg)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return *ranked[i].Average > *ranked[j].Average
	})

	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	symbols := make([]string, len(ranked))
	for i, avg := range ranked {
		symbols[i] = avg.Symbol
	}
	return symbols, nil
}
