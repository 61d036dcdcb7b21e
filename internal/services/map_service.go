package services

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"fars-analytics/internal/dataset"
	"fars-analytics/internal/models"
	"fars-analytics/pkg/logging"
	"fars-analytics/pkg/metrics"
)

// MapRenderer draws a state map into w
type MapRenderer interface {
	Render(w io.Writer, m *models.StateMap) error
}

// MapService renders the accidents of one state in one year
type MapService struct {
	loader   DatasetLoader
	renderer MapRenderer
	logger   *logging.StructuredLogger
	metrics  *metrics.Collector
}

// NewMapService creates a new map service
func NewMapService(loader DatasetLoader, renderer MapRenderer, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *MapService {
	return &MapService{
		loader:   loader,
		renderer: renderer,
		logger:   logger,
		metrics:  metricsCollector,
	}
}

// StateMap loads year, checks stateCode against the file's STATE values and
// returns the plottable accidents. ok is false when nothing can be drawn.
func (s *MapService) StateMap(ctx context.Context, stateCode int, year models.Year) (*models.StateMap, bool, error) {
	df, err := s.loader.LoadDataset(ctx, dataset.BuildFilename(year))
	if err != nil {
		return nil, false, err
	}

	stateColumn, err := column(df, models.ColumnState)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", dataset.BuildFilename(year), err)
	}
	states, err := stateColumn.Int()
	if err != nil {
		return nil, false, fmt.Errorf("invalid %s column in %s: %w", models.ColumnState, dataset.BuildFilename(year), err)
	}
	if !containsInt(states, stateCode) {
		return nil, false, &models.InvalidStateError{State: stateCode}
	}

	filtered := df.Filter(dataframe.F{
		Colname:    models.ColumnState,
		Comparator: series.Eq,
		Comparando: stateCode,
	})
	if filtered.Err != nil {
		return nil, false, fmt.Errorf("failed to filter state %d: %w", stateCode, filtered.Err)
	}
	if filtered.Nrow() == 0 {
		return &models.StateMap{State: stateCode, Year: year}, false, nil
	}

	points, err := accidentPoints(filtered, stateCode)
	if err != nil {
		return nil, false, err
	}

	m, ok := models.NewStateMap(stateCode, year, points)
	return m, ok, nil
}

// RenderStateMap draws the state's accidents for year into w. A state with
// no plottable accidents is not an error: OutcomeNoAccidents is returned and
// nothing is written.
func (s *MapService) RenderStateMap(ctx context.Context, w io.Writer, stateCode int, year models.Year) (models.RenderOutcome, error) {
	timer := s.metrics.NewTimer(s.metrics.MapRenderDuration)

	m, ok, err := s.StateMap(ctx, stateCode, year)
	if err != nil {
		s.metrics.RecordMapRender("error")
		return models.OutcomeNoAccidents, err
	}

	log := s.logger.WithFields(logging.Fields{
		"state": stateCode,
		"year":  int(year),
	})

	if !ok {
		s.metrics.RecordMapRender(models.OutcomeNoAccidents.String())
		log.Info(ctx, "[MAP_NO_ACCIDENTS] no accidents to plot", logging.Fields{})
		return models.OutcomeNoAccidents, nil
	}

	if err := s.renderer.Render(w, m); err != nil {
		s.metrics.RecordMapRender("error")
		return models.OutcomeNoAccidents, fmt.Errorf("failed to render state %d map: %w", stateCode, err)
	}

	duration := timer.ObserveDuration()
	s.metrics.RecordMapRender(models.OutcomePlotted.String())
	log.Info(ctx, "[MAP_RENDERED] State map rendered", logging.Fields{
		"points":      len(m.Points),
		"duration_ms": duration.Milliseconds(),
	})

	return models.OutcomePlotted, nil
}

func accidentPoints(df dataframe.DataFrame, stateCode int) ([]models.AccidentPoint, error) {
	columns := make(map[string]series.Series, 3)
	for _, name := range []string{models.ColumnMonth, models.ColumnLongitude, models.ColumnLatitude} {
		col, err := column(df, name)
		if err != nil {
			return nil, err
		}
		columns[name] = col
	}

	// a blank MONTH is 0; the map does not use it
	months := columns[models.ColumnMonth].Float()
	longitudes := columns[models.ColumnLongitude].Float()
	latitudes := columns[models.ColumnLatitude].Float()

	points := make([]models.AccidentPoint, len(months))
	for i, m := range months {
		month := 0
		if !math.IsNaN(m) {
			month = int(m)
		}
		points[i] = models.NewAccidentPoint(stateCode, month, longitudes[i], latitudes[i])
	}
	return points, nil
}

// column returns a named column; gota hands back a Series with only Err set
// for unknown names, which must not reach Int()/Float()
func column(df dataframe.DataFrame, name string) (series.Series, error) {
	col := df.Col(name)
	if col.Err != nil {
		return series.Series{}, fmt.Errorf("column %s: %w", name, col.Err)
	}
	return col, nil
}

func containsInt(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
