package dataset

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"fars-analytics/internal/models"
	"fars-analytics/pkg/logging"
	"fars-analytics/pkg/metrics"
)

// bzip2 stream magic
var bzip2Magic = []byte("BZh")

// columnTypes pins the columns the services read; everything else is detected
var columnTypes = map[string]series.Type{
	models.ColumnState:     series.Int,
	models.ColumnMonth:     series.Int,
	models.ColumnLongitude: series.Float,
	models.ColumnLatitude:  series.Float,
}

// Loader reads accident files from one directory into dataframes
type Loader struct {
	dir     string
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewLoader creates a loader rooted at dir
func NewLoader(dir string, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *Loader {
	return &Loader{
		dir:     dir,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Dir returns the directory files are resolved against
func (l *Loader) Dir() string {
	return l.dir
}

// LoadDataset reads filename (relative to the loader directory) into a dataframe
// with one row per data line and columns named by the header. bzip2 content is
// detected by its magic bytes; anything else is read as plain CSV.
func (l *Loader) LoadDataset(ctx context.Context, filename string) (dataframe.DataFrame, error) {
	if err := ctx.Err(); err != nil {
		return dataframe.DataFrame{}, err
	}

	timer := l.metrics.NewTimer(l.metrics.DatasetLoadDuration)
	path := filepath.Join(l.dir, filename)

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			l.metrics.RecordDatasetLoad("not_found", 0)
			l.logger.Debug(ctx, "[DATASET_NOT_FOUND] Accident file missing", logging.Fields{
				"filename": filename,
				"dir":      l.dir,
			})
			return dataframe.DataFrame{}, &models.FileNotFoundError{Filename: filename}
		}
		l.metrics.RecordDatasetLoad("io_error", 0)
		return dataframe.DataFrame{}, fmt.Errorf("failed to open %s: %w", filename, err)
	}
	defer file.Close()

	reader, compressed := decompress(file)
	content, err := io.ReadAll(reader)
	if err != nil {
		l.metrics.RecordDatasetLoad("parse_error", 0)
		return dataframe.DataFrame{}, &models.ParseError{Filename: filename, Err: err}
	}

	df := dataframe.ReadCSV(bytes.NewReader(content),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.WithTypes(columnTypes),
	)
	if df.Err != nil {
		// gota refuses a header without data lines; that is a valid year with no accidents
		header, ok := headerOnly(content)
		if !ok {
			l.metrics.RecordDatasetLoad("parse_error", 0)
			return dataframe.DataFrame{}, &models.ParseError{Filename: filename, Err: df.Err}
		}
		df = emptyFrame(header)
		if df.Err != nil {
			l.metrics.RecordDatasetLoad("parse_error", 0)
			return dataframe.DataFrame{}, &models.ParseError{Filename: filename, Err: df.Err}
		}
	}

	duration := timer.ObserveDuration()
	l.metrics.RecordDatasetLoad("ok", df.Nrow())

	l.logger.Info(ctx, "[DATASET_LOAD] Accident file loaded", logging.Fields{
		"filename":    filename,
		"rows":        df.Nrow(),
		"columns":     df.Ncol(),
		"compressed":  compressed,
		"duration_ms": duration.Milliseconds(),
	})

	return df, nil
}

// decompress wraps r in a bzip2 reader when the stream starts with the bzip2 magic
func decompress(r io.Reader) (io.Reader, bool) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(len(bzip2Magic))
	if err == nil && string(magic) == string(bzip2Magic) {
		return bzip2.NewReader(br), true
	}
	return br, false
}

// headerOnly reports whether content holds exactly one CSV record and returns it
func headerOnly(content []byte) ([]string, bool) {
	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil || len(header) == 0 {
		return nil, false
	}
	if _, err := r.Read(); err != io.EOF {
		return nil, false
	}
	return header, true
}

// emptyFrame builds a zero-row dataframe with the given columns, typed like ReadCSV would
func emptyFrame(header []string) dataframe.DataFrame {
	columns := make([]series.Series, len(header))
	for i, name := range header {
		switch columnTypes[name] {
		case series.Int:
			columns[i] = series.New([]int{}, series.Int, name)
		case series.Float:
			columns[i] = series.New([]float64{}, series.Float, name)
		default:
			columns[i] = series.New([]string{}, series.String, name)
		}
	}
	return dataframe.New(columns...)
}
