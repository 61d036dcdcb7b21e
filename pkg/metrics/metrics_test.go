package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector_RecordDatasetLoad(t *testing.T) {
	c := NewCollectorWith("fars_test", prometheus.NewRegistry())

	c.RecordDatasetLoad("ok", 12)
	c.RecordDatasetLoad("ok", 3)
	c.RecordDatasetLoad("not_found", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.DatasetLoadsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.DatasetLoadsTotal.WithLabelValues("not_found")))
	assert.Equal(t, 15.0, testutil.ToFloat64(c.DatasetRowsLoaded))
}

func TestCollector_SeparateRegistries(t *testing.T) {
	// two collectors with the same namespace must not collide on separate registries
	a := NewCollectorWith("fars_test", prometheus.NewRegistry())
	b := NewCollectorWith("fars_test", prometheus.NewRegistry())

	a.RecordMapRender("plotted")
	assert.Equal(t, 1.0, testutil.ToFloat64(a.MapRendersTotal.WithLabelValues("plotted")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.MapRendersTotal.WithLabelValues("plotted")))
}

func TestCollector_DBPoolAndErrors(t *testing.T) {
	c := NewCollectorWith("fars_test", prometheus.NewRegistry())

	c.UpdateDBConnectionPool(2, 3, 5)
	c.RecordDBError("exec_error")
	c.RecordYearProjectionError("not_found")
	c.RecordAPIRequest("/api/fars/summary", "GET", "200")
	c.RecordAPIError("bad_request", "/api/fars/map")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.DBConnectionPool.WithLabelValues("in_use")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.DBConnectionPool.WithLabelValues("idle")))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.DBConnectionPool.WithLabelValues("total")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.DBErrorsTotal.WithLabelValues("exec_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.YearProjectionErrors.WithLabelValues("not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.APIRequestsTotal.WithLabelValues("/api/fars/summary", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.APIErrorsTotal.WithLabelValues("bad_request", "/api/fars/map")))
}

func TestTimer_ObserveDuration(t *testing.T) {
	c := NewCollectorWith("fars_test", prometheus.NewRegistry())

	timer := c.NewTimer(c.SummaryDuration)
	time.Sleep(time.Millisecond)
	d := timer.ObserveDuration()

	assert.GreaterOrEqual(t, d, time.Millisecond)
	assert.Equal(t, 1, testutil.CollectAndCount(c.SummaryDuration))
}
