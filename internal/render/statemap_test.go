package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fars-analytics/internal/models"
)

func sampleMap(t *testing.T) *models.StateMap {
	t.Helper()
	m, ok := models.NewStateMap(1, 2013, []models.AccidentPoint{
		models.NewAccidentPoint(1, 1, -86.7, 32.6),
		models.NewAccidentPoint(1, 3, -85.4, 31.2),
		models.NewAccidentPoint(1, 7, -87.6, 34.7),
	})
	require.True(t, ok)
	return m
}

func TestPlotRenderer_PNG(t *testing.T) {
	r := NewPlotRenderer(10, 8, "PNG")

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, sampleMap(t)))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG\r\n\x1a\n")), "output is not a PNG")
}

func TestPlotRenderer_SVG(t *testing.T) {
	r := NewPlotRenderer(10, 8, "svg")

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, sampleMap(t)))
	assert.True(t, strings.Contains(buf.String(), "<svg"))
}

func TestPlotRenderer_SinglePoint(t *testing.T) {
	m, ok := models.NewStateMap(6, 2014, []models.AccidentPoint{
		models.NewAccidentPoint(6, 3, -121.4, 38.5),
	})
	require.True(t, ok)

	var buf bytes.Buffer
	require.NoError(t, NewPlotRenderer(10, 8, "png").Render(&buf, m))
	assert.NotZero(t, buf.Len())
}

func TestPlotRenderer_Errors(t *testing.T) {
	var buf bytes.Buffer

	assert.Error(t, NewPlotRenderer(10, 8, "bmp-not-supported").Render(&buf, sampleMap(t)))
	assert.Error(t, NewPlotRenderer(10, 8, "png").Render(&buf, &models.StateMap{State: 2, Year: 2013}))
	assert.Error(t, NewPlotRenderer(10, 8, "png").Render(&buf, nil))
}

func TestPadRange(t *testing.T) {
	lo, hi := padRange(models.Range{Min: -90, Max: -80})
	assert.InDelta(t, -90.5, lo, 1e-9)
	assert.InDelta(t, -79.5, hi, 1e-9)

	lo, hi = padRange(models.Range{Min: 30, Max: 30})
	assert.InDelta(t, 30-minMarginDegrees, lo, 1e-9)
	assert.InDelta(t, 30+minMarginDegrees, hi, 1e-9)
}
