package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/pprof"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"zenithmaint/internal/domain"
)

// Scheduler is the control surface the admin API drives.
type Scheduler interface {
	Start(ctx context.Context)
	Stop() context.Context
	IsRunning() bool
	Task(taskID string) (domain.Task, bool)
	RunTaskManually(ctx context.Context, taskID string) domain.Result
	SetTaskEnabled(taskID string, enabled bool) bool
	GetSchedule() domain.Schedule
	GetMaintenanceStats() domain.Stats
}

type Server struct {
	r     *chi.Mux
	sched Scheduler
	// ticks started through the API run under this context
	baseCtx context.Context
}

type Options struct {
	Metrics     http.Handler
	EnableDebug bool
	BaseContext context.Context
}

func NewServer(sched Scheduler, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)

	if opts.BaseContext == nil {
		opts.BaseContext = context.Background()
	}
	s := &Server{r: r, sched: sched, baseCtx: opts.BaseContext}

	r.Get("/health", s.health)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/api/maintenance", func(r chi.Router) {
		r.Get("/schedule", s.getSchedule)
		r.Get("/stats", s.getStats)
		r.Post("/start", s.start)
		r.Post("/stop", s.stop)
		r.Get("/tasks/{id}", s.getTask)
		r.Post("/tasks/{id}/run", s.runTask)
		r.Put("/tasks/{id}/enabled", s.setEnabled)
	})

	// Debug routes (pprof)
	if opts.EnableDebug {
		r.HandleFunc("/debug/pprof/", pprof.Index)
		r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		r.HandleFunc("/debug/pprof/profile", pprof.Profile)
		r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		r.HandleFunc("/debug/pprof/trace", pprof.Trace)
		r.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
		r.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	}

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) getSchedule(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sched.GetSchedule())
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sched.GetMaintenanceStats())
}

type stateResp struct {
	Running bool `json:"running"`
}

func (s *Server) start(w http.ResponseWriter, r *http.Request) {
	s.sched.Start(s.baseCtx)
	writeJSON(w, http.StatusOK, stateResp{Running: s.sched.IsRunning()})
}

func (s *Server) stop(w http.ResponseWriter, r *http.Request) {
	s.sched.Stop()
	writeJSON(w, http.StatusOK, stateResp{Running: s.sched.IsRunning()})
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	t, ok := s.sched.Task(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) runTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res := s.sched.RunTaskManually(r.Context(), id)
	if _, ok := s.sched.Task(id); !ok {
		writeJSON(w, http.StatusNotFound, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type enabledReq struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) setEnabled(w http.ResponseWriter, r *http.Request) {
	var req enabledReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Enabled == nil {
		http.Error(w, "enabled is required", http.StatusBadRequest)
		return
	}
	if !s.sched.SetTaskEnabled(chi.URLParam(r, "id"), *req.Enabled) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
