package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrequencyNext(t *testing.T) {
	base := time.Date(2024, 3, 10, 8, 15, 0, 0, time.UTC)
	tests := []struct {
		freq Frequency
		from time.Time
		want time.Time
	}{
		{FrequencyHourly, base, base.Add(time.Hour)},
		{FrequencyDaily, base, time.Date(2024, 3, 11, 8, 15, 0, 0, time.UTC)},
		{FrequencyWeekly, base, time.Date(2024, 3, 17, 8, 15, 0, 0, time.UTC)},
		{FrequencyMonthly, base, time.Date(2024, 4, 10, 8, 15, 0, 0, time.UTC)},
		// calendar overflow rolls into the following month
		{FrequencyMonthly, time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC), time.Date(2023, 3, 3, 0, 0, 0, 0, time.UTC)},
		{FrequencyMonthly, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got := tt.freq.Next(tt.from)
		if !got.Equal(tt.want) {
			t.Errorf("%s.Next(%v) = %v, want %v", tt.freq, tt.from, got, tt.want)
		}
	}
}

func TestFrequencyNextIsMonotonic(t *testing.T) {
	t1 := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	for _, f := range []Frequency{FrequencyHourly, FrequencyDaily, FrequencyWeekly, FrequencyMonthly} {
		for _, step := range []time.Duration{time.Nanosecond, time.Second, time.Hour, 36 * time.Hour} {
			t2 := t1.Add(step)
			assert.True(t, f.Next(t2).After(f.Next(t1)), "%s step %v", f, step)
		}
	}
}

func TestPriorityRank(t *testing.T) {
	assert.Less(t, PriorityCritical.Rank(), PriorityHigh.Rank())
	assert.Less(t, PriorityHigh.Rank(), PriorityMedium.Rank())
	assert.Less(t, PriorityMedium.Rank(), PriorityLow.Rank())
	assert.False(t, Priority("urgent").Valid())
	assert.Greater(t, Priority("urgent").Rank(), PriorityLow.Rank())
	assert.False(t, Frequency("yearly").Valid())
}

func TestResultJSONUsesMilliseconds(t *testing.T) {
	b, err := json.Marshal(Result{Success: true, Message: "ok", Duration: 1250 * time.Millisecond})
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"message":"ok","duration":1250}`, string(b))

	var r Result
	require.NoError(t, json.Unmarshal(b, &r))
	assert.Equal(t, 1250*time.Millisecond, r.Duration)

	b, err = json.Marshal(Stats{TotalTasks: 8, EnabledTasks: 7, AverageTaskDuration: 2 * time.Second})
	require.NoError(t, err)
	assert.JSONEq(t, `{"total_tasks":8,"enabled_tasks":7,"tasks_run_today":0,"last_maintenance":null,"average_task_duration":2000}`, string(b))
}
