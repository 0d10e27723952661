package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
	"zenithmaint/internal/domain"
)

const DefaultSubject = "zenith.maintenance.results"

// TaskEvent is published after every maintenance task attempt.
type TaskEvent struct {
	TaskID   string          `json:"task_id"`
	TaskName string          `json:"task_name"`
	Priority domain.Priority `json:"priority"`
	RanAt    *time.Time      `json:"ran_at"`
	NextRun  time.Time       `json:"next_run"`
	Result   domain.Result   `json:"result"`
}

// conn is the part of *nats.Conn the publisher needs.
type conn interface {
	Publish(subj string, data []byte) error
}

type Publisher struct {
	nc      conn
	subject string
}

// Connect dials NATS and returns a publisher for subject.
func Connect(url, subject string) (*Publisher, *nats.Conn, error) {
	nc, err := nats.Connect(url, nats.Name("zenith-maint"))
	if err != nil {
		return nil, nil, fmt.Errorf("connect nats: %w", err)
	}
	return NewPublisher(nc, subject), nc, nil
}

func NewPublisher(nc conn, subject string) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{nc: nc, subject: subject}
}

// TaskSubject is the per-task subject; the base subject carries every event.
func (p *Publisher) TaskSubject(taskID string) string { return p.subject + "." + taskID }

func (p *Publisher) Publish(task domain.Task, res domain.Result) error {
	data, err := json.Marshal(TaskEvent{
		TaskID:   task.ID,
		TaskName: task.Name,
		Priority: task.Priority,
		RanAt:    task.LastRun,
		NextRun:  task.NextRun,
		Result:   res,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	for _, subj := range []string{p.TaskSubject(task.ID), p.subject} {
		if err := p.nc.Publish(subj, data); err != nil {
			return fmt.Errorf("publish event to %s: %w", subj, err)
		}
	}
	return nil
}

// Observe publishes and only logs failures, so a broker outage never
// reaches the scheduler.
func (p *Publisher) Observe(task domain.Task, res domain.Result) {
	if err := p.Publish(task, res); err != nil {
		log.Error().Err(err).Str("task_id", task.ID).Msg("failed to publish maintenance event")
	}
}
