package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"zenithmaint/internal/domain"
)

func TestObserveTask(t *testing.T) {
	m := New()
	ran := time.Unix(1700000000, 0)
	task := domain.Task{ID: "verify-backups", LastRun: &ran}

	m.ObserveTask(task, domain.Result{Success: true, Duration: 20 * time.Millisecond})
	m.ObserveTask(task, domain.Result{Success: false, Duration: 5 * time.Millisecond})
	m.ObserveTask(task, domain.Result{Success: true})

	assert.Equal(t, float64(2), testutil.ToFloat64(m.TaskRuns.WithLabelValues("verify-backups", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TaskRuns.WithLabelValues("verify-backups", "failure")))
	assert.Equal(t, float64(1700000000), testutil.ToFloat64(m.TaskLastRun.WithLabelValues("verify-backups")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.TaskDuration))
}

func TestRunningGaugeAndHandler(t *testing.T) {
	m := New()
	m.SetRunning(true)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Running))
	m.SetRunning(false)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.Running))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "zenith_maintenance_scheduler_running 0")
}
