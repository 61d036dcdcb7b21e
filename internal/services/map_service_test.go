package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fars-analytics/internal/dataset"
	"fars-analytics/internal/models"
)

// recordingRenderer remembers what it was asked to draw
type recordingRenderer struct {
	calls []*models.StateMap
	err   error
}

func (r *recordingRenderer) Render(w io.Writer, m *models.StateMap) error {
	r.calls = append(r.calls, m)
	if r.err != nil {
		return r.err
	}
	_, err := w.Write([]byte("map"))
	return err
}

func TestMapService_RenderStateMap_Plotted(t *testing.T) {
	env := newTestEnv(t)
	renderer := &recordingRenderer{}
	svc := NewMapService(env.loader, renderer, env.logger, env.metrics)

	var out bytes.Buffer
	outcome, err := svc.RenderStateMap(context.Background(), &out, 1, 2013)
	require.NoError(t, err)

	assert.Equal(t, models.OutcomePlotted, outcome)
	assert.Equal(t, "map", out.String())
	require.Len(t, renderer.calls, 1)

	m := renderer.calls[0]
	assert.Equal(t, 1, m.State)
	assert.Equal(t, models.Year(2013), m.Year)
	// case 10004 carries both sentinels and is dropped
	assert.Len(t, m.Points, 4)
	assert.InDelta(t, -87.6, m.Longitude.Min, 1e-9)
	assert.InDelta(t, -85.4, m.Longitude.Max, 1e-9)
	assert.InDelta(t, 31.2, m.Latitude.Min, 1e-9)
	assert.InDelta(t, 34.7, m.Latitude.Max, 1e-9)

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.MapRendersTotal.WithLabelValues("plotted")))
}

func TestMapService_StateMap_BlankMonthStillPlotted(t *testing.T) {
	env := newTestEnv(t)
	svc := NewMapService(env.loader, &recordingRenderer{}, env.logger, env.metrics)

	m, ok, err := svc.StateMap(context.Background(), 1, 2015)
	require.NoError(t, err)
	require.True(t, ok)

	months := make([]int, len(m.Points))
	for i, p := range m.Points {
		months[i] = p.Month
	}
	assert.Equal(t, []int{3, 0, 8}, months)
}

func TestMapService_RenderStateMap_LogsStateAndYear(t *testing.T) {
	env := newTestEnv(t)
	svc := NewMapService(env.loader, &recordingRenderer{}, env.logger, env.metrics)

	_, err := svc.RenderStateMap(context.Background(), io.Discard, 6, 2013)
	require.NoError(t, err)

	logs := env.logs.String()
	assert.Contains(t, logs, "[MAP_RENDERED]")
	assert.Contains(t, logs, `"state":6`)
	assert.Contains(t, logs, `"year":2013`)
	assert.Contains(t, logs, `"points":2`)
}

func TestMapService_RenderStateMap_PartialSentinels(t *testing.T) {
	env := newTestEnv(t)
	renderer := &recordingRenderer{}
	svc := NewMapService(env.loader, renderer, env.logger, env.metrics)

	outcome, err := svc.RenderStateMap(context.Background(), io.Discard, 6, 2013)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomePlotted, outcome)

	require.Len(t, renderer.calls, 1)
	// 60002 has a valid latitude but a missing longitude
	assert.Len(t, renderer.calls[0].Points, 2)
	assert.InDelta(t, 34.05, renderer.calls[0].Latitude.Min, 1e-9)
	assert.InDelta(t, 36.7, renderer.calls[0].Latitude.Max, 1e-9)
}

func TestMapService_RenderStateMap_InvalidState(t *testing.T) {
	env := newTestEnv(t)
	renderer := &recordingRenderer{}
	svc := NewMapService(env.loader, renderer, env.logger, env.metrics)

	var out bytes.Buffer
	_, err := svc.RenderStateMap(context.Background(), &out, 999, 2013)
	require.Error(t, err)

	assert.True(t, errors.Is(err, models.ErrInvalidState))
	var invalid *models.InvalidStateError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, 999, invalid.State)
	assert.Empty(t, renderer.calls)
	assert.Zero(t, out.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.MapRendersTotal.WithLabelValues("error")))
}

func TestMapService_RenderStateMap_NoAccidentsToPlot(t *testing.T) {
	env := newTestEnv(t)
	renderer := &recordingRenderer{}
	svc := NewMapService(env.loader, renderer, env.logger, env.metrics)

	var out bytes.Buffer
	// every state 2 record in 2013 has unknown coordinates
	outcome, err := svc.RenderStateMap(context.Background(), &out, 2, 2013)
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeNoAccidents, outcome)
	assert.Empty(t, renderer.calls)
	assert.Zero(t, out.Len())
	assert.Contains(t, env.logs.String(), "no accidents to plot")
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.MapRendersTotal.WithLabelValues("no_accidents")))
}

func TestMapService_RenderStateMap_MissingYearIsHardFailure(t *testing.T) {
	env := newTestEnv(t)
	renderer := &recordingRenderer{}
	svc := NewMapService(env.loader, renderer, env.logger, env.metrics)

	_, err := svc.RenderStateMap(context.Background(), io.Discard, 1, 9999)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrFileNotFound))
	assert.Empty(t, renderer.calls)
}

func TestMapService_RenderStateMap_RendererError(t *testing.T) {
	env := newTestEnv(t)
	renderer := &recordingRenderer{err: errors.New("canvas exploded")}
	svc := NewMapService(env.loader, renderer, env.logger, env.metrics)

	_, err := svc.RenderStateMap(context.Background(), io.Discard, 1, 2014)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "canvas exploded")
}

func TestMapService_StateMap_MissingCoordinateColumns(t *testing.T) {
	env := newTestEnv(t)
	loader := staticLoader{
		dataset.BuildFilename(2013): {{"STATE", "MONTH"}, {"1", "3"}},
	}
	svc := NewMapService(loader, &recordingRenderer{}, env.logger, env.metrics)

	_, _, err := svc.StateMap(context.Background(), 1, 2013)
	assert.Error(t, err)
}

func TestMapService_StateMap_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	svc := NewMapService(env.loader, &recordingRenderer{}, env.logger, env.metrics)

	a, okA, err := svc.StateMap(context.Background(), 1, 2014)
	require.NoError(t, err)
	b, okB, err := svc.StateMap(context.Background(), 1, 2014)
	require.NoError(t, err)

	assert.True(t, okA)
	assert.Equal(t, okA, okB)
	assert.Equal(t, a, b)
}
