package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"zenithmaint/internal/domain"
	"zenithmaint/internal/metrics"
	"zenithmaint/internal/scheduler"
)

func newTestServer(t *testing.T) (*httptest.Server, *scheduler.Service) {
	t.Helper()
	defs := []domain.TaskDefinition{
		{
			ID: "ok-task", Name: "OK", Frequency: domain.FrequencyDaily, Priority: domain.PriorityHigh, Enabled: true,
			Run: func(ctx context.Context) (domain.Result, error) {
				return domain.Result{Success: true, Message: "done"}, nil
			},
		},
	}
	sched, err := scheduler.New(defs, scheduler.WithTickInterval(time.Hour))
	require.NoError(t, err)
	t.Cleanup(func() { <-sched.Stop().Done() })

	m := metrics.New()
	srv := httptest.NewServer(NewServer(sched, Options{Metrics: m.Handler()}))
	t.Cleanup(srv.Close)
	return srv, sched
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestScheduleAndStats(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/maintenance/schedule")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var sched struct {
		Tasks     []map[string]any `json:"tasks"`
		IsRunning bool             `json:"is_running"`
	}
	decode(t, resp, &sched)
	require.Len(t, sched.Tasks, 1)
	assert.Equal(t, "ok-task", sched.Tasks[0]["id"])
	assert.False(t, sched.IsRunning)

	resp, err = http.Get(srv.URL + "/api/maintenance/stats")
	require.NoError(t, err)
	var stats map[string]any
	decode(t, resp, &stats)
	assert.EqualValues(t, 1, stats["total_tasks"])
	assert.EqualValues(t, 1, stats["enabled_tasks"])
}

func TestRunTask(t *testing.T) {
	srv, sched := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/maintenance/tasks/ok-task/run", "application/json", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var res map[string]any
	decode(t, resp, &res)
	assert.Equal(t, true, res["success"])
	assert.Equal(t, "done", res["message"])

	task, ok := sched.Task("ok-task")
	require.True(t, ok)
	assert.NotNil(t, task.LastRun)

	resp, err = http.Post(srv.URL+"/api/maintenance/tasks/missing/run", "application/json", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	decode(t, resp, &res)
	assert.Equal(t, false, res["success"])
	assert.Equal(t, "Task missing not found", res["message"])
}

func put(t *testing.T, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPut, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp
}

func TestSetEnabled(t *testing.T) {
	srv, sched := newTestServer(t)

	resp := put(t, srv.URL+"/api/maintenance/tasks/ok-task/enabled", `{"enabled":false}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	task, _ := sched.Task("ok-task")
	assert.False(t, task.Enabled)

	resp = put(t, srv.URL+"/api/maintenance/tasks/missing/enabled", `{"enabled":true}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = put(t, srv.URL+"/api/maintenance/tasks/ok-task/enabled", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = put(t, srv.URL+"/api/maintenance/tasks/ok-task/enabled", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetTask(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/maintenance/tasks/ok-task")
	require.NoError(t, err)
	var task map[string]any
	decode(t, resp, &task)
	assert.Equal(t, "high", task["priority"])

	resp, err = http.Get(srv.URL + "/api/maintenance/tasks/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStartStop(t *testing.T) {
	srv, sched := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/maintenance/start", "application/json", nil)
	require.NoError(t, err)
	var state stateResp
	decode(t, resp, &state)
	assert.True(t, state.Running)
	assert.True(t, sched.IsRunning())

	resp, err = http.Post(srv.URL+"/api/maintenance/stop", "application/json", nil)
	require.NoError(t, err)
	decode(t, resp, &state)
	assert.False(t, state.Running)
	assert.False(t, sched.IsRunning())
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDebugRoutesDisabledByDefault(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/debug/pprof/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
