package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"fars-analytics/internal/config"
	"fars-analytics/internal/dataset"
	"fars-analytics/internal/models"
	"fars-analytics/internal/render"
	"fars-analytics/internal/services"
	"fars-analytics/pkg/logging"
	"fars-analytics/pkg/metrics"
)

// report prints the month by year accident table and optionally draws one state map
func main() {
	yearsFlag := flag.String("years", "", "Comma separated years, e.g. 2013,2014,2015")
	dataDir := flag.String("data-dir", "", "Directory containing accident_<year>.csv.bz2 files (default FARS_DATA_DIR)")
	state := flag.Float64("state", math.NaN(), "State code to map")
	mapYear := flag.Float64("map-year", math.NaN(), "Year to map (default: first of -years)")
	out := flag.String("out", "", "Map output file; the extension picks png, svg or pdf")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *dataDir != "" {
		cfg.Data.Dir = *dataDir
	}

	years, err := models.ParseYears(*yearsFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid -years: %v\n", err)
		os.Exit(2)
	}

	logger := logging.NewStructuredLogger("fars-report", "1.0.0", logging.ParseLevel(cfg.Logging.Level))
	logger.SetOutput(os.Stderr)
	metricsCollector := metrics.NewCollector("fars_report")

	ctx := context.Background()
	loader := dataset.NewLoader(cfg.Data.Dir, logger, metricsCollector)
	summaryService := services.NewSummaryService(loader, logger, metricsCollector)

	summary, err := summaryService.SummarizeYears(ctx, years)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Summary failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("════════════════════════════════════════════════════════════════")
	fmt.Println("FARS MONTHLY FATAL ACCIDENTS")
	fmt.Println("════════════════════════════════════════════════════════════════")
	if summary.Empty() {
		fmt.Println("No accident records loaded")
	} else if err := summary.WriteText(os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to print summary: %v\n", err)
		os.Exit(1)
	}

	if math.IsNaN(*state) {
		return
	}

	year := years[0]
	if !math.IsNaN(*mapYear) {
		year = models.NormalizeYear(*mapYear)
	}
	stateCode := models.NormalizeStateCode(*state)

	target := *out
	if target == "" {
		target = fmt.Sprintf("state_%d_%d.%s", stateCode, year, cfg.Render.Format)
	}
	renderer := render.NewPlotRenderer(cfg.Render.WidthCm, cfg.Render.HeightCm, mapFormat(target, cfg.Render.Format))
	mapService := services.NewMapService(loader, renderer, logger, metricsCollector)

	if err := writeMap(ctx, mapService, target, stateCode, year); err != nil {
		fmt.Fprintf(os.Stderr, "Map failed: %v\n", err)
		os.Exit(1)
	}
}

func writeMap(ctx context.Context, mapService *services.MapService, target string, stateCode int, year models.Year) error {
	f, err := os.Create(target)
	if err != nil {
		return err
	}

	outcome, err := mapService.RenderStateMap(ctx, f, stateCode, year)
	closeErr := f.Close()
	if err != nil || outcome == models.OutcomeNoAccidents {
		os.Remove(target)
		if err == nil {
			fmt.Printf("\nState %d has no accidents to plot in %d\n", stateCode, year)
		}
		return err
	}
	if closeErr != nil {
		return closeErr
	}

	fmt.Printf("\nState %d map for %d written to %s\n", stateCode, year, target)
	return nil
}

// mapFormat picks the plot format from the file extension, falling back to the configured one
func mapFormat(target, fallback string) string {
	switch ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(target), ".")); ext {
	case "png", "svg", "pdf":
		return ext
	default:
		return fallback
	}
}
