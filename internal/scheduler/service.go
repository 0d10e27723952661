package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"zenithmaint/internal/domain"
)

const (
	DefaultTickInterval = 60 * time.Second
	DefaultHistorySize  = 20
)

// Observer is notified after every task attempt, scheduled or manual.
type Observer func(task domain.Task, res domain.Result)

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithTickInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithObserver(o Observer) Option {
	return func(s *Service) { s.observers = append(s.observers, o) }
}

// WithRunningHook is called with the new state after Start and Stop.
func WithRunningHook(fn func(running bool)) Option {
	return func(s *Service) { s.runningHook = fn }
}

// WithHistorySize bounds how many recent durations are kept per task.
func WithHistorySize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.historySize = n
		}
	}
}

type entry struct {
	def      domain.TaskDefinition
	state    domain.TaskState
	inFlight bool
	history  *durationRing
}

// Service owns the maintenance task registry and runs due tasks on a
// fixed-period tick, one at a time in priority order.
type Service struct {
	mu       sync.Mutex
	tasks    map[string]*entry
	order    []string
	cron     *cron.Cron
	running  bool
	interval time.Duration
	now      func() time.Time

	observers   []Observer
	runningHook func(bool)
	historySize int
}

func New(defs []domain.TaskDefinition, opts ...Option) (*Service, error) {
	s := &Service{
		tasks:       make(map[string]*entry, len(defs)),
		interval:    DefaultTickInterval,
		now:         time.Now,
		historySize: DefaultHistorySize,
	}
	for _, o := range opts {
		o(s)
	}

	created := s.now()
	for _, d := range defs {
		if err := validateDefinition(d); err != nil {
			return nil, err
		}
		if _, dup := s.tasks[d.ID]; dup {
			return nil, fmt.Errorf("duplicate task id %q", d.ID)
		}
		s.tasks[d.ID] = &entry{
			def:     d,
			state:   domain.TaskState{Enabled: d.Enabled, NextRun: d.Frequency.Next(created)},
			history: newDurationRing(s.historySize),
		}
		s.order = append(s.order, d.ID)
	}

	log.Info().Int("tasks", len(s.order)).Msg("maintenance scheduler initialized")
	return s, nil
}

func validateDefinition(d domain.TaskDefinition) error {
	switch {
	case d.ID == "":
		return errors.New("task id is required")
	case !d.Frequency.Valid():
		return fmt.Errorf("task %q: invalid frequency %q", d.ID, d.Frequency)
	case !d.Priority.Valid():
		return fmt.Errorf("task %q: invalid priority %q", d.ID, d.Priority)
	case d.Run == nil:
		return fmt.Errorf("task %q: run function is required", d.ID)
	}
	return nil
}

// Start begins ticking. Ticks run with ctx; calling Start while running only
// logs a warning.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		log.Warn().Msg("maintenance scheduler already running")
		return
	}

	logger := cronLogger{}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	c.Schedule(cron.Every(s.interval), cron.FuncJob(func() { s.Tick(ctx) }))
	c.Start()
	s.cron = c
	s.running = true
	s.mu.Unlock()

	log.Info().Dur("interval", s.interval).Msg("maintenance scheduler started")
	if s.runningHook != nil {
		s.runningHook(true)
	}
}

// Stop cancels future ticks. It does not abort a tick in progress; the
// returned context is done once that tick has finished.
func (s *Service) Stop() context.Context {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		log.Warn().Msg("maintenance scheduler not running")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	c := s.cron
	s.cron = nil
	s.running = false
	s.mu.Unlock()

	done := c.Stop()
	log.Info().Msg("maintenance scheduler stopped")
	if s.runningHook != nil {
		s.runningHook(false)
	}
	return done
}

func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Tick runs one due-task check: every enabled task whose next run has
// passed executes sequentially, critical first, earlier due first within a
// priority.
func (s *Service) Tick(ctx context.Context) {
	due := s.claimDue(s.now())
	if len(due) == 0 {
		return
	}

	ids := make([]string, len(due))
	for i, e := range due {
		ids[i] = e.def.ID
	}
	log.Info().Int("count", len(due)).Strs("tasks", ids).Msg("found due maintenance tasks")

	for i, e := range due {
		if err := ctx.Err(); err != nil {
			s.release(due[i:])
			log.Warn().Err(err).Int("skipped", len(due)-i).Msg("maintenance tick interrupted")
			return
		}
		s.runTask(ctx, e)
	}
}

// selectDueLocked returns due tasks in execution order.
func (s *Service) selectDueLocked(now time.Time) []*entry {
	var due []*entry
	for _, e := range s.tasks {
		if e.state.Enabled && !e.inFlight && !e.state.NextRun.After(now) {
			due = append(due, e)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		a, b := due[i], due[j]
		if ra, rb := a.def.Priority.Rank(), b.def.Priority.Rank(); ra != rb {
			return ra < rb
		}
		if !a.state.NextRun.Equal(b.state.NextRun) {
			return a.state.NextRun.Before(b.state.NextRun)
		}
		return a.def.ID < b.def.ID
	})
	return due
}

// claimDue selects due tasks and marks them in flight so an overlapping
// tick cannot pick them again.
func (s *Service) claimDue(now time.Time) []*entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	due := s.selectDueLocked(now)
	for _, e := range due {
		e.inFlight = true
	}
	return due
}

func (s *Service) release(entries []*entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		e.inFlight = false
	}
}

// runTask executes a claimed task. The schedule always advances, whether
// the attempt succeeded or not.
func (s *Service) runTask(ctx context.Context, e *entry) domain.Result {
	runID := "run_" + uuid.NewString()
	def := e.def

	log.Info().
		Str("task_id", def.ID).
		Str("task_name", def.Name).
		Str("run_id", runID).
		Msg("running maintenance task")

	start := s.now()
	res, err := execute(ctx, def.Run)
	finished := s.now()
	duration := finished.Sub(start)

	if err != nil {
		res = domain.Result{
			Success: false,
			Message: "Task failed: " + err.Error(),
			Errors:  []string{err.Error()},
		}
	}
	res.Duration = duration

	s.mu.Lock()
	st := e.state
	lastRun := finished
	st.LastRun = &lastRun
	st.NextRun = def.Frequency.Next(finished)
	e.state = st
	e.inFlight = false
	e.history.add(duration)
	snap := snapshot(e)
	s.mu.Unlock()

	ev := log.Info()
	if !res.Success {
		ev = log.Error()
	}
	ev.Str("task_id", def.ID).
		Str("task_name", def.Name).
		Str("run_id", runID).
		Bool("success", res.Success).
		Dur("duration", duration).
		Time("next_run", st.NextRun).
		Msg(res.Message)

	for _, o := range s.observers {
		o(snap, res)
	}
	return res
}

func execute(ctx context.Context, run domain.RunFunc) (res domain.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("maintenance task panicked")
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return run(ctx)
}

// RunTaskManually runs a task immediately, ignoring its enabled flag and
// next run. Unknown ids yield a failed result with zero duration.
func (s *Service) RunTaskManually(ctx context.Context, taskID string) domain.Result {
	s.mu.Lock()
	e, ok := s.tasks[taskID]
	if !ok {
		s.mu.Unlock()
		log.Warn().Str("task_id", taskID).Msg("manual run requested for unknown task")
		return domain.Result{Success: false, Message: fmt.Sprintf("Task %s not found", taskID)}
	}
	if e.inFlight {
		s.mu.Unlock()
		log.Warn().Str("task_id", taskID).Msg("manual run requested while task is running")
		return domain.Result{Success: false, Message: fmt.Sprintf("Task %s is already running", taskID)}
	}
	e.inFlight = true
	s.mu.Unlock()

	log.Info().Str("task_id", taskID).Msg("manual maintenance run")
	return s.runTask(ctx, e)
}

// SetTaskEnabled reports false when the task is unknown. The next run is
// left untouched.
func (s *Service) SetTaskEnabled(taskID string, enabled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.tasks[taskID]
	if !ok {
		return false
	}
	st := e.state
	st.Enabled = enabled
	e.state = st
	log.Info().Str("task_id", taskID).Bool("enabled", enabled).Msg("maintenance task toggled")
	return true
}

func (s *Service) Task(taskID string) (domain.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.tasks[taskID]
	if !ok {
		return domain.Task{}, false
	}
	return snapshot(e), true
}

func snapshot(e *entry) domain.Task {
	t := domain.Task{
		ID:               e.def.ID,
		Name:             e.def.Name,
		Description:      e.def.Description,
		Frequency:        e.def.Frequency,
		Priority:         e.def.Priority,
		Enabled:          e.state.Enabled,
		EstimatedMinutes: int(e.def.EstimatedDuration / time.Minute),
		NextRun:          e.state.NextRun,
		InFlight:         e.inFlight,
	}
	if e.state.LastRun != nil {
		lr := *e.state.LastRun
		t.LastRun = &lr
	}
	return t
}

func (s *Service) GetSchedule() domain.Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks := make([]domain.Task, 0, len(s.order))
	for _, id := range s.order {
		tasks = append(tasks, snapshot(s.tasks[id]))
	}
	return domain.Schedule{
		Tasks:           tasks,
		IsRunning:       s.running,
		LastMaintenance: s.lastWindowLocked(),
		NextMaintenance: s.nextWindowLocked(),
	}
}

// GetLastMaintenanceWindow is the latest last run across tasks, nil if
// nothing has run yet.
func (s *Service) GetLastMaintenanceWindow() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastWindowLocked()
}

// GetNextMaintenanceWindow is the earliest next run across tasks.
func (s *Service) GetNextMaintenanceWindow() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextWindowLocked()
}

func (s *Service) lastWindowLocked() *time.Time {
	var last *time.Time
	for _, e := range s.tasks {
		if lr := e.state.LastRun; lr != nil && (last == nil || lr.After(*last)) {
			t := *lr
			last = &t
		}
	}
	return last
}

func (s *Service) nextWindowLocked() *time.Time {
	var next *time.Time
	for _, e := range s.tasks {
		nr := e.state.NextRun
		if nr.IsZero() {
			continue
		}
		if next == nil || nr.Before(*next) {
			t := nr
			next = &t
		}
	}
	return next
}

func (s *Service) GetMaintenanceStats() domain.Stats {
	now := s.now()
	y, m, d := now.Date()

	s.mu.Lock()
	defer s.mu.Unlock()
	stats := domain.Stats{TotalTasks: len(s.tasks), LastMaintenance: s.lastWindowLocked()}

	var total time.Duration
	var samples int
	for _, e := range s.tasks {
		if e.state.Enabled {
			stats.EnabledTasks++
		}
		if lr := e.state.LastRun; lr != nil {
			ly, lm, ld := lr.In(now.Location()).Date()
			if ly == y && lm == m && ld == d {
				stats.TasksRunToday++
			}
		}
		for _, v := range e.history.values() {
			total += v
			samples++
		}
	}
	if samples > 0 {
		stats.AverageTaskDuration = total / time.Duration(samples)
	}
	return stats
}

// cronLogger routes the cron engine's logs through zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg(msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
