// Package api exposes the collector's small operator surface over HTTP:
// health, audit log queries, on-demand run triggering and schedule status.
// It binds to loopback by default and carries no authentication; exposing it
// beyond localhost is the deployment's problem, not this package's.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ecomwatch/collector/audit"
	"github.com/ecomwatch/collector/collect"
	"github.com/ecomwatch/collector/config"
)

// Server holds the HTTP handler over the scheduler and the audit log.
type Server struct {
	scheduler *collect.Scheduler
	log       *audit.Log
	schedule  config.Schedule
	logger    *slog.Logger
}

// New builds a Server. logger may be nil.
func New(scheduler *collect.Scheduler, log *audit.Log, schedule config.Schedule, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{scheduler: scheduler, log: log, schedule: schedule, logger: logger}
}

// Router assembles the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	r.Get("/api/logs", func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		if date != "" && !validDate(date) {
			writeJSON(w, 400, map[string]string{"error": "date must be YYYYMMDD"})
			return
		}
		limit := queryInt(r, "limit", 0)
		results, err := s.log.Query(date, limit)
		if err != nil {
			writeError(w, 500, err)
			return
		}
		if results == nil {
			results = []audit.Result{}
		}
		writeJSON(w, 200, results)
	})

	r.Post("/api/run", func(w http.ResponseWriter, _ *http.Request) {
		err := s.scheduler.TriggerAsync()
		if errors.Is(err, collect.ErrRunInProgress) {
			writeJSON(w, 409, map[string]string{"error": "une collecte est déjà en cours"})
			return
		}
		if err != nil {
			writeError(w, 500, err)
			return
		}
		s.logger.Info("api: run triggered")
		writeJSON(w, 202, map[string]string{"status": "started"})
	})

	r.Get("/api/schedule", func(w http.ResponseWriter, _ *http.Request) {
		resp := map[string]any{
			"enabled": s.schedule.Enabled,
			"time":    s.schedule.Time,
			"running": s.scheduler.Busy(),
		}
		if next, ok := s.scheduler.NextRun(); ok {
			resp["next_run"] = next
		}
		writeJSON(w, 200, resp)
	})

	return r
}

// validDate accepts exactly eight digits (YYYYMMDD). The date names an
// audit file on disk, so nothing else may pass through.
func validDate(s string) bool {
	if len(s) != 8 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
