package services

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"fars-analytics/internal/dataset"
	"fars-analytics/internal/models"
	"fars-analytics/pkg/logging"
	"fars-analytics/pkg/metrics"
)

// DatasetLoader reads one accident file into a dataframe
type DatasetLoader interface {
	LoadDataset(ctx context.Context, filename string) (dataframe.DataFrame, error)
}

// YearResult is the outcome of projecting one requested year.
// Exactly one of Table (when Err is nil) or Err is meaningful.
type YearResult struct {
	Year  models.Year
	Table dataframe.DataFrame
	Err   error
}

// OK reports whether the year loaded and projected
func (r YearResult) OK() bool {
	return r.Err == nil
}

// SummaryService builds month by year accident counts
type SummaryService struct {
	loader  DatasetLoader
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewSummaryService creates a new summary service
func NewSummaryService(loader DatasetLoader, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *SummaryService {
	return &SummaryService{
		loader:  loader,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// ProjectYears loads each year independently and reduces it to (MONTH, year).
// The result has one entry per input year in input order; a year that fails
// is logged as a warning and carried as a failed YearResult.
func (s *SummaryService) ProjectYears(ctx context.Context, years []models.Year) []YearResult {
	results := make([]YearResult, len(years))

	for i, year := range years {
		results[i] = YearResult{Year: year}

		table, err := s.projectYear(ctx, year)
		if err != nil {
			results[i].Err = err
			s.metrics.RecordYearProjectionError(errorType(err))
			s.logger.Warn(ctx, "[PROJECT_YEAR_WARNING] invalid year", logging.Fields{
				"year":  int(year),
				"error": err.Error(),
			})
			continue
		}
		results[i].Table = table
	}

	return results
}

func (s *SummaryService) projectYear(ctx context.Context, year models.Year) (dataframe.DataFrame, error) {
	if err := ctx.Err(); err != nil {
		return dataframe.DataFrame{}, err
	}

	df, err := s.loader.LoadDataset(ctx, dataset.BuildFilename(year))
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("year %d: %w", year, err)
	}

	yearColumn := make([]int, df.Nrow())
	for i := range yearColumn {
		yearColumn[i] = int(year)
	}

	projected := df.
		Mutate(series.New(yearColumn, series.Int, models.ColumnYear)).
		Select([]string{models.ColumnMonth, models.ColumnYear})
	if projected.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("year %d: project columns: %w", year, projected.Err)
	}

	return s.dropMissingMonths(ctx, year, projected)
}

// dropMissingMonths removes rows whose MONTH was blank or not a number.
// They cannot be counted under any month.
func (s *SummaryService) dropMissingMonths(ctx context.Context, year models.Year, projected dataframe.DataFrame) (dataframe.DataFrame, error) {
	months, err := column(projected, models.ColumnMonth)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("year %d: %w", year, err)
	}
	if months.Type() != series.Int {
		return dataframe.DataFrame{}, fmt.Errorf("year %d: %s column is %s, want int", year, models.ColumnMonth, months.Type())
	}

	valid := make([]int, 0, projected.Nrow())
	for i, missing := range months.IsNaN() {
		if !missing {
			valid = append(valid, i)
		}
	}

	dropped := projected.Nrow() - len(valid)
	if dropped == 0 {
		return projected, nil
	}

	s.logger.WithFields(logging.Fields{"year": int(year)}).Warn(ctx, "[PROJECT_YEAR_MISSING_MONTH] rows without MONTH dropped", logging.Fields{
		"dropped": dropped,
		"kept":    len(valid),
	})

	if len(valid) == 0 {
		return emptyProjection(), nil
	}

	kept := projected.Subset(valid)
	if kept.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("year %d: drop rows without MONTH: %w", year, kept.Err)
	}
	return kept, nil
}

func emptyProjection() dataframe.DataFrame {
	return dataframe.New(
		series.New([]int{}, series.Int, models.ColumnMonth),
		series.New([]int{}, series.Int, models.ColumnYear),
	)
}

// SummarizeYears counts accidents per (year, month) over every year that
// loads, pivoted so each year is a column and months are rows. Years that fail
// to load are skipped with a warning; zero successful years gives an empty table.
func (s *SummaryService) SummarizeYears(ctx context.Context, years []models.Year) (*models.SummaryTable, error) {
	timer := s.metrics.NewTimer(s.metrics.SummaryDuration)
	s.metrics.SummaryYears.Observe(float64(len(years)))

	s.logger.Info(ctx, "[SUMMARY_START] Summarizing accident counts", logging.Fields{
		"years": yearsField(years),
		"stage": "INITIALIZATION",
	})

	var (
		loaded   []models.Year
		combined dataframe.DataFrame
		rows     int
	)
	for _, result := range s.ProjectYears(ctx, years) {
		if !result.OK() {
			continue
		}
		loaded = append(loaded, result.Year)

		// a year with no accidents is still a column of the table
		if result.Table.Nrow() == 0 {
			continue
		}
		if rows == 0 {
			combined = result.Table
		} else {
			combined = combined.RBind(result.Table)
			if combined.Err != nil {
				return nil, fmt.Errorf("failed to concatenate year %d: %w", result.Year, combined.Err)
			}
		}
		rows += result.Table.Nrow()
	}

	if rows == 0 {
		summary := models.NewSummaryTable(loaded, nil)
		s.logSummary(ctx, years, summary, timer)
		return summary, nil
	}

	counts, err := countByYearMonth(combined)
	if err != nil {
		return nil, err
	}

	summary := models.NewSummaryTable(loaded, counts)
	s.logSummary(ctx, years, summary, timer)
	return summary, nil
}

func (s *SummaryService) logSummary(ctx context.Context, requested []models.Year, summary *models.SummaryTable, timer *metrics.Timer) {
	duration := timer.ObserveDuration()
	s.logger.Info(ctx, "[SUMMARY_COMPLETE] Accident counts summarized", logging.Fields{
		"requested_years": yearsField(requested),
		"loaded_years":    yearsField(summary.Years),
		"months":          len(summary.Rows),
		"duration_ms":     duration.Milliseconds(),
		"stage":           "COMPLETE",
	})
}

// countByYearMonth groups the projected rows by (year, MONTH) and counts them
func countByYearMonth(df dataframe.DataFrame) ([]models.MonthlyCount, error) {
	groups := df.GroupBy(models.ColumnYear, models.ColumnMonth)
	if groups.Err != nil {
		return nil, fmt.Errorf("failed to group by year and month: %w", groups.Err)
	}

	aggregated := groups.Aggregation(
		[]dataframe.AggregationType{dataframe.Aggregation_COUNT},
		[]string{models.ColumnMonth},
	)
	if aggregated.Err != nil {
		return nil, fmt.Errorf("failed to count accidents: %w", aggregated.Err)
	}

	countColumn := ""
	for _, name := range aggregated.Names() {
		if name != models.ColumnYear && name != models.ColumnMonth {
			countColumn = name
			break
		}
	}
	if countColumn == "" {
		return nil, errors.New("aggregation produced no count column")
	}

	yearColumn, err := column(aggregated, models.ColumnYear)
	if err != nil {
		return nil, err
	}
	monthColumn, err := column(aggregated, models.ColumnMonth)
	if err != nil {
		return nil, err
	}
	countSeries, err := column(aggregated, countColumn)
	if err != nil {
		return nil, err
	}

	yearValues, err := yearColumn.Int()
	if err != nil {
		return nil, fmt.Errorf("invalid year column: %w", err)
	}
	monthValues, err := monthColumn.Int()
	if err != nil {
		return nil, fmt.Errorf("invalid MONTH column: %w", err)
	}
	countValues := countSeries.Float()

	counts := make([]models.MonthlyCount, len(yearValues))
	for i := range yearValues {
		counts[i] = models.MonthlyCount{
			Year:  models.Year(yearValues[i]),
			Month: monthValues[i],
			Count: int(math.Round(countValues[i])),
		}
	}
	return counts, nil
}

// errorType maps an error to a low-cardinality metric label
func errorType(err error) string {
	var parseErr *models.ParseError
	switch {
	case errors.Is(err, models.ErrFileNotFound):
		return "not_found"
	case errors.As(err, &parseErr):
		return "parse_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "projection_error"
	}
}

func yearsField(years []models.Year) []int {
	out := make([]int, len(years))
	for i, y := range years {
		out[i] = int(y)
	}
	return out
}
