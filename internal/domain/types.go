package domain

import (
	"context"
	"encoding/json"
	"time"
)

type Frequency string

const (
	FrequencyHourly  Frequency = "hourly"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyHourly, FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// Next returns the time one frequency unit after from. Monthly uses calendar
// arithmetic, so Jan 31 + 1 month normalizes into March.
func (f Frequency) Next(from time.Time) time.Time {
	switch f {
	case FrequencyHourly:
		return from.Add(time.Hour)
	case FrequencyDaily:
		return from.AddDate(0, 0, 1)
	case FrequencyWeekly:
		return from.AddDate(0, 0, 7)
	case FrequencyMonthly:
		return from.AddDate(0, 1, 0)
	}
	return from
}

type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

var priorityRank = map[Priority]int{
	PriorityCritical: 0,
	PriorityHigh:     1,
	PriorityMedium:   2,
	PriorityLow:      3,
}

func (p Priority) Valid() bool {
	_, ok := priorityRank[p]
	return ok
}

// Rank orders priorities ascending: critical runs first.
func (p Priority) Rank() int {
	if r, ok := priorityRank[p]; ok {
		return r
	}
	return len(priorityRank)
}

// RunFunc is the body of a maintenance task. A returned error marks the
// attempt as failed.
type RunFunc func(ctx context.Context) (Result, error)

type TaskDefinition struct {
	ID                string
	Name              string
	Description       string
	Frequency         Frequency
	Priority          Priority
	Enabled           bool
	EstimatedDuration time.Duration // advisory
	Run               RunFunc
}

type TaskState struct {
	Enabled bool
	LastRun *time.Time
	NextRun time.Time
}

// Task is a point-in-time snapshot of a registered task.
type Task struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Description       string     `json:"description"`
	Frequency         Frequency  `json:"frequency"`
	Priority          Priority   `json:"priority"`
	Enabled           bool       `json:"enabled"`
	EstimatedMinutes  int        `json:"estimated_duration"`
	LastRun           *time.Time `json:"last_run"`
	NextRun           time.Time  `json:"next_run"`
	InFlight          bool       `json:"in_flight"`
}

type Result struct {
	Success  bool
	Message  string
	Details  map[string]any
	Duration time.Duration
	Errors   []string
}

type resultJSON struct {
	Success  bool           `json:"success"`
	Message  string         `json:"message"`
	Details  map[string]any `json:"details,omitempty"`
	Duration int64          `json:"duration"` // milliseconds
	Errors   []string       `json:"errors,omitempty"`
}

func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultJSON{
		Success:  r.Success,
		Message:  r.Message,
		Details:  r.Details,
		Duration: r.Duration.Milliseconds(),
		Errors:   r.Errors,
	})
}

func (r *Result) UnmarshalJSON(b []byte) error {
	var v resultJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*r = Result{
		Success:  v.Success,
		Message:  v.Message,
		Details:  v.Details,
		Duration: time.Duration(v.Duration) * time.Millisecond,
		Errors:   v.Errors,
	}
	return nil
}

type Schedule struct {
	Tasks           []Task     `json:"tasks"`
	IsRunning       bool       `json:"is_running"`
	LastMaintenance *time.Time `json:"last_maintenance"`
	NextMaintenance *time.Time `json:"next_maintenance"`
}

type Stats struct {
	TotalTasks          int           `json:"total_tasks"`
	EnabledTasks        int           `json:"enabled_tasks"`
	TasksRunToday       int           `json:"tasks_run_today"`
	LastMaintenance     *time.Time    `json:"last_maintenance"`
	AverageTaskDuration time.Duration `json:"-"`
}

func (s Stats) MarshalJSON() ([]byte, error) {
	type alias Stats
	return json.Marshal(struct {
		alias
		AverageTaskDuration int64 `json:"average_task_duration"` // milliseconds
	}{alias(s), s.AverageTaskDuration.Milliseconds()})
}

// Item types stored in the items table.
const (
	ItemTypeTask     = "task"
	ItemTypeIdea     = "idea"
	ItemTypeNote     = "note"
	ItemTypeReminder = "reminder"
	ItemTypeFinance  = "finance"
	ItemTypeMeeting  = "meeting"
)

var ItemTypes = []string{ItemTypeTask, ItemTypeIdea, ItemTypeNote, ItemTypeReminder, ItemTypeFinance, ItemTypeMeeting}

type Item struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Type        string    `json:"item_type"`
	IsCompleted bool      `json:"is_completed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Subtask struct {
	ID           string    `json:"id"`
	ParentItemID string    `json:"parent_item_id"`
	Title        string    `json:"title"`
	IsCompleted  bool      `json:"is_completed"`
	CreatedAt    time.Time `json:"created_at"`
}
