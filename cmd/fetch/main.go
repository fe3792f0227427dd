package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"nsecli/internal/config"
	"nsecli/internal/exporter"
	"nsecli/internal/infrastructure"
	"nsecli/internal/nse"
	"nsecli/internal/pipeline"
	"nsecli/internal/store"
	"nsecli/pkg/contracts/domain"
)

const dateLayout = "2006-01-02"

// fetch acquires a date range into the local day cache from the command
// line, without running the server. With -export it also produces a
// consolidated workbook from the acquired data.
func main() {
	fromStr := flag.String("from", "", "start date (YYYY-MM-DD)")
	toStr := flag.String("to", "", "end date (YYYY-MM-DD); defaults to the start date")
	kindsStr := flag.String("kinds", "", "comma separated data kinds (mcap,pr); empty means all")
	force := flag.Bool("force", false, "refetch days that are already cached")
	doExport := flag.Bool("export", false, "consolidate the range into a workbook after acquiring")
	fastMode := flag.Bool("fast", false, "skip persisting symbol averages during export")
	flag.Parse()

	if err := run(*fromStr, *toStr, *kindsStr, *force, *doExport, *fastMode); err != nil {
		fmt.Fprintf(os.Stderr, "fetch: %v\n", err)
		os.Exit(1)
	}
}

func run(fromStr, toStr, kindsStr string, force, doExport, fastMode bool) error {
	if fromStr == "" {
		return fmt.Errorf("-from is required")
	}
	from, err := time.Parse(dateLayout, fromStr)
	if err != nil {
		return fmt.Errorf("invalid -from date %q: %w", fromStr, err)
	}
	to := from
	if toStr != "" {
		to, err = time.Parse(dateLayout, toStr)
		if err != nil {
			return fmt.Errorf("invalid -to date %q: %w", toStr, err)
		}
	}

	kinds, err := parseKinds(kindsStr)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	cache := store.New(cfg.Paths, logger)
	provider := nse.NewClient(cfg.Provider, logger)
	gate := pipeline.NewGate(provider, cache, logger)
	acquirer := pipeline.NewAcquirer(gate, cfg.HolidaySet(), logger)

	mode := domain.RefreshMissingOnly
	if force {
		mode = domain.RefreshForce
	}

	ctx := context.Background()
	summary, err := acquirer.AcquireRange(ctx, from, to, kinds, mode)
	if err != nil {
		return err
	}

	fmt.Printf("Acquired %s to %s: %d requested, %d cached, %d fetched, %d failed\n",
		summary.From.Format(dateLayout), summary.To.Format(dateLayout),
		summary.TotalRequested, summary.CachedCount, summary.FetchedCount, summary.FailedCount)
	for _, e := range summary.Errors {
		fmt.Printf("  failed %s %s: %s\n", e.Date.Format(dateLayout), e.Kind, e.ErrorMessage)
	}

	if !doExport {
		return nil
	}

	consolidator := pipeline.NewConsolidator(cache, exporter.NewBuilder(),
		exporter.NewArtifacts(cfg.Paths.ArtifactsDir), nil, cfg.HolidaySet(), logger)
	result, err := consolidator.Export(ctx, pipeline.ExportRequest{
		From:     from,
		To:       to,
		Kinds:    kinds,
		FastMode: fastMode,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Exported %s (%s)\n", result.Artifact.Filename, result.Artifact.Path)
	for _, line := range result.Log {
		fmt.Printf("  %s\n", line)
	}
	return nil
}

func parseKinds(s string) ([]domain.DataKind, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var kinds []domain.DataKind
	for _, part := range strings.Split(s, ",") {
		kind := domain.DataKind(strings.TrimSpace(part))
		if !kind.Valid() {
			return nil, fmt.Errorf("unknown data kind %q", part)
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}
