package dataset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gota/gota/series"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fars-analytics/internal/models"
	"fars-analytics/pkg/logging"
	"fars-analytics/pkg/metrics"
)

func newTestLoader(t *testing.T, dir string) (*Loader, *metrics.Collector) {
	t.Helper()
	collector := metrics.NewCollectorWith("fars_test", prometheus.NewRegistry())
	return NewLoader(dir, logging.NewNopLogger(), collector), collector
}

func TestBuildFilename(t *testing.T) {
	tests := []struct {
		name string
		year models.Year
		want string
	}{
		{"integer year", 2013, "accident_2013.csv.bz2"},
		{"truncated fractional year", models.NormalizeYear(2013.9), "accident_2013.csv.bz2"},
		{"other year", 2015, "accident_2015.csv.bz2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildFilename(tt.year); got != tt.want {
				t.Errorf("BuildFilename(%v) = %q, want %q", tt.year, got, tt.want)
			}
		})
	}
}

func TestLoader_LoadDataset_Compressed(t *testing.T) {
	loader, collector := newTestLoader(t, "testdata")

	df, err := loader.LoadDataset(context.Background(), BuildFilename(2013))
	require.NoError(t, err)

	assert.Equal(t, 10, df.Nrow())
	assert.Contains(t, df.Names(), models.ColumnState)
	assert.Contains(t, df.Names(), models.ColumnMonth)
	assert.Contains(t, df.Names(), models.ColumnLatitude)
	assert.Contains(t, df.Names(), models.ColumnLongitude)

	months, err := df.Col(models.ColumnMonth).Int()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 3, 3, 7, 3, 5, 12, 12, 3}, months)

	lons := df.Col(models.ColumnLongitude).Float()
	assert.InDelta(t, -86.7, lons[0], 1e-9)
	assert.InDelta(t, 999.9999, lons[3], 1e-9)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.DatasetLoadsTotal.WithLabelValues("ok")))
	assert.Equal(t, 10.0, testutil.ToFloat64(collector.DatasetRowsLoaded))
}

func TestLoader_LoadDataset_NotFound(t *testing.T) {
	loader, collector := newTestLoader(t, "testdata")

	_, err := loader.LoadDataset(context.Background(), "nonexistent.csv.bz2")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrFileNotFound))

	var fnf *models.FileNotFoundError
	require.True(t, errors.As(err, &fnf))
	assert.Equal(t, "nonexistent.csv.bz2", fnf.Filename)
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.DatasetLoadsTotal.WithLabelValues("not_found")))
}

func TestLoader_LoadDataset_PlainCSV(t *testing.T) {
	dir := t.TempDir()
	content := "STATE,MONTH,LATITUDE,LONGITUD\n4,2,33.4,-112.0\n4,2,34.1,-111.9\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "accident_2015.csv.bz2"), []byte(content), 0o644))

	loader, _ := newTestLoader(t, dir)
	df, err := loader.LoadDataset(context.Background(), BuildFilename(2015))
	require.NoError(t, err)

	assert.Equal(t, 2, df.Nrow())
	states, err := df.Col(models.ColumnState).Int()
	require.NoError(t, err)
	assert.Equal(t, []int{4, 4}, states)
}

func TestLoader_LoadDataset_HeaderOnly(t *testing.T) {
	loader, collector := newTestLoader(t, "testdata")

	df, err := loader.LoadDataset(context.Background(), BuildFilename(2016))
	require.NoError(t, err)

	assert.Equal(t, 0, df.Nrow())
	assert.Equal(t, []string{"STATE", "ST_CASE", "MONTH", "DAY", "YEAR", "LATITUDE", "LONGITUD"}, df.Names())
	assert.Equal(t, series.Int, df.Col(models.ColumnMonth).Type())
	assert.Equal(t, series.Float, df.Col(models.ColumnLatitude).Type())
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.DatasetLoadsTotal.WithLabelValues("ok")))
}

func TestLoader_LoadDataset_ParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
	}{
		{"corrupt bzip2 stream", []byte("BZh9this is not a bzip2 block")},
		{"empty file", []byte{}},
		{"ragged rows", []byte("STATE,MONTH\n1,2\n1,2,3\n")},
		{"blank lines only", []byte("\n\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, "accident_2016.csv.bz2"), tt.content, 0o644))

			loader, collector := newTestLoader(t, dir)
			_, err := loader.LoadDataset(context.Background(), BuildFilename(2016))
			require.Error(t, err)

			var parseErr *models.ParseError
			assert.True(t, errors.As(err, &parseErr), "got %T: %v", err, err)
			assert.False(t, errors.Is(err, models.ErrFileNotFound))
			assert.Equal(t, 1.0, testutil.ToFloat64(collector.DatasetLoadsTotal.WithLabelValues("parse_error")))
		})
	}
}

func TestLoader_LoadDataset_Idempotent(t *testing.T) {
	loader, _ := newTestLoader(t, "testdata")

	a, err := loader.LoadDataset(context.Background(), BuildFilename(2014))
	require.NoError(t, err)
	b, err := loader.LoadDataset(context.Background(), BuildFilename(2014))
	require.NoError(t, err)

	assert.Equal(t, a.Records(), b.Records())
}

func TestLoader_LoadDataset_CancelledContext(t *testing.T) {
	loader, _ := newTestLoader(t, "testdata")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := loader.LoadDataset(ctx, BuildFilename(2013))
	assert.ErrorIs(t, err, context.Canceled)
}
