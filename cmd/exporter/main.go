package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"fars-analytics/internal/config"
	"fars-analytics/internal/dataset"
	"fars-analytics/internal/models"
	"fars-analytics/internal/repository"
	"fars-analytics/internal/services"
	"fars-analytics/pkg/database"
	"fars-analytics/pkg/logging"
	"fars-analytics/pkg/metrics"
)

func main() {
	yearsFlag := flag.String("years", "", "Comma separated years to export, e.g. 2013,2014,2015")
	dataDir := flag.String("data-dir", "", "Directory containing accident_<year>.csv.bz2 files (default FARS_DATA_DIR)")
	flag.Parse()

	years, err := models.ParseYears(*yearsFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid -years: %v\n", err)
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *dataDir != "" {
		cfg.Data.Dir = *dataDir
	}

	logger := logging.NewStructuredLogger("fars-exporter", "1.0.0", logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[EXPORTER_START] Starting monthly count export", logging.Fields{
		"version":  "1.0.0",
		"data_dir": cfg.Data.Dir,
		"years":    *yearsFlag,
	})

	metricsCollector := metrics.NewCollector("fars_exporter")

	if err := run(ctx, cfg, logger, metricsCollector, years); err != nil {
		logger.Fatal(ctx, "[EXPORTER_ERROR] Export failed", logging.Fields{
			"years": *yearsFlag,
		}, err)
	}
}

// run owns the database connection so it is closed before main exits
func run(ctx context.Context, cfg *config.Config, logger *logging.StructuredLogger, metricsCollector *metrics.Collector, years []models.Year) error {
	db, err := database.NewPostgresDB(ctx, cfg.Database.Postgres(), logger, metricsCollector)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	summaryRepo := repository.NewSummaryRepository(db, logger, metricsCollector)
	loader := dataset.NewLoader(cfg.Data.Dir, logger, metricsCollector)
	summaryService := services.NewSummaryService(loader, logger, metricsCollector)

	start := time.Now()
	summary, err := summaryService.SummarizeYears(ctx, years)
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}

	written, err := summaryRepo.ReplaceYears(ctx, summary)
	if err != nil {
		return fmt.Errorf("store counts: %w", err)
	}
	duration := time.Since(start)

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("EXPORT COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Requested Years: %d\n", len(distinctYears(years)))
	fmt.Printf("Exported Years:  %d\n", len(summary.Years))
	fmt.Printf("Rows Written:    %d\n", written)
	fmt.Printf("Duration:        %v\n", duration)

	if skipped := skippedYears(years, summary.Years); len(skipped) > 0 {
		fmt.Printf("\nSkipped %d year(s) that could not be loaded: %v\n", len(skipped), skipped)
	}

	fmt.Println()
	if err := summary.WriteText(os.Stdout); err != nil {
		return fmt.Errorf("print summary: %w", err)
	}

	logger.Info(ctx, "[EXPORTER_COMPLETE] Export completed successfully", logging.Fields{
		"exported_years":   len(summary.Years),
		"rows_written":     written,
		"duration_seconds": duration.Seconds(),
	})
	return nil
}

func distinctYears(years []models.Year) []models.Year {
	seen := make(map[models.Year]bool, len(years))
	var out []models.Year
	for _, y := range years {
		if !seen[y] {
			seen[y] = true
			out = append(out, y)
		}
	}
	return out
}

// skippedYears lists the distinct requested years missing from loaded, in request order
func skippedYears(requested, loaded []models.Year) []models.Year {
	ok := make(map[models.Year]bool, len(loaded))
	for _, y := range loaded {
		ok[y] = true
	}
	var skipped []models.Year
	for _, y := range distinctYears(requested) {
		if !ok[y] {
			skipped = append(skipped, y)
		}
	}
	return skipped
}
