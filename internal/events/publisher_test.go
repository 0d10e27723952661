package events

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"zenithmaint/internal/domain"
)

type fakeConn struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (f *fakeConn) Publish(subj string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subj)
	f.payloads = append(f.payloads, data)
	return nil
}

func TestPublishTaskEvent(t *testing.T) {
	fc := &fakeConn{}
	p := NewPublisher(fc, "")
	ran := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	task := domain.Task{ID: "verify-backups", Name: "Verify backups", Priority: domain.PriorityCritical, LastRun: &ran, NextRun: ran.Add(24 * time.Hour)}
	res := domain.Result{Success: false, Message: "Task failed: db down", Duration: 1500 * time.Millisecond, Errors: []string{"db down"}}

	require.NoError(t, p.Publish(task, res))
	assert.Equal(t, []string{DefaultSubject + ".verify-backups", DefaultSubject}, fc.subjects)

	var ev map[string]any
	require.NoError(t, json.Unmarshal(fc.payloads[0], &ev))
	assert.Equal(t, "verify-backups", ev["task_id"])
	assert.Equal(t, "critical", ev["priority"])
	result := ev["result"].(map[string]any)
	assert.Equal(t, false, result["success"])
	assert.Equal(t, float64(1500), result["duration"])
	assert.Equal(t, []any{"db down"}, result["errors"])
}

func TestObserveSwallowsPublishErrors(t *testing.T) {
	p := NewPublisher(&fakeConn{err: errors.New("nats: connection closed")}, "custom")
	assert.Equal(t, "custom.x", p.TaskSubject("x"))
	assert.Error(t, p.Publish(domain.Task{ID: "x"}, domain.Result{}))
	assert.NotPanics(t, func() { p.Observe(domain.Task{ID: "x"}, domain.Result{}) })
}
