package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"fars-analytics/internal/models"
	"fars-analytics/pkg/database"
	"fars-analytics/pkg/logging"
	"fars-analytics/pkg/metrics"
)

// SummaryRepository stores exported month by year accident counts
type SummaryRepository interface {
	// ReplaceYears overwrites every stored count of the summary's years
	ReplaceYears(ctx context.Context, summary *models.SummaryTable) (int, error)
	// GetSummary reads the stored counts of years back as a SummaryTable
	GetSummary(ctx context.Context, years []models.Year) (*models.SummaryTable, error)
	HealthCheck(ctx context.Context) error
}

// summaryRepository implements SummaryRepository on Postgres
type summaryRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewSummaryRepository creates a new summary repository
func NewSummaryRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) SummaryRepository {
	return &summaryRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// ReplaceYears deletes the stored rows of summary.Years and inserts the new
// counts in a single transaction. It returns the number of rows written.
func (r *summaryRepository) ReplaceYears(ctx context.Context, summary *models.SummaryTable) (int, error) {
	if len(summary.Years) == 0 {
		return 0, nil
	}

	start := time.Now()
	counts := summary.Counts()

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM fars_monthly_counts WHERE year = ANY($1)`,
		pq.Array(yearInts(summary.Years)),
	); err != nil {
		r.metrics.RecordDBError("delete_error")
		return 0, fmt.Errorf("failed to clear years: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO fars_monthly_counts (year, month, accident_count, updated_at)
		VALUES ($1, $2, $3, $4)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, c := range counts {
		if _, err := stmt.ExecContext(ctx, int(c.Year), c.Month, c.Count, now); err != nil {
			r.metrics.RecordDBError("insert_error")
			return 0, fmt.Errorf("failed to insert %d-%02d: %w", c.Year, c.Month, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	duration := time.Since(start)
	r.metrics.DBQueryDuration.WithLabelValues("replace_monthly_counts").Observe(duration.Seconds())
	r.logger.Info(ctx, "[REPO_REPLACE_YEARS] Monthly counts stored", logging.Fields{
		"years":       yearInts(summary.Years),
		"rows":        len(counts),
		"duration_ms": duration.Milliseconds(),
	})

	return len(counts), nil
}

// GetSummary reads the stored counts of years. Years with nothing stored are
// not part of the returned table.
func (r *summaryRepository) GetSummary(ctx context.Context, years []models.Year) (*models.SummaryTable, error) {
	query := `
		SELECT year, month, accident_count
		FROM fars_monthly_counts
		WHERE year = ANY($1)
		ORDER BY year, month
	`

	var counts []models.MonthlyCount
	if err := r.db.SelectContext(ctx, "select_monthly_counts", &counts, query, pq.Array(yearInts(years))); err != nil {
		return nil, fmt.Errorf("failed to get monthly counts: %w", err)
	}

	var stored []models.Year
	seen := make(map[models.Year]bool)
	for _, c := range counts {
		if !seen[c.Year] {
			seen[c.Year] = true
			stored = append(stored, c.Year)
		}
	}

	return models.NewSummaryTable(stored, counts), nil
}

// HealthCheck performs a repository health check
func (r *summaryRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

func yearInts(years []models.Year) []int64 {
	out := make([]int64, len(years))
	for i, y := range years {
		out[i] = int64(y)
	}
	return out
}
