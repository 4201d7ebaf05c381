package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"mercator-hq/conduit/pkg/breaker"
	"mercator-hq/conduit/pkg/cache"
	"mercator-hq/conduit/pkg/limits/ratelimit"
	"mercator-hq/conduit/pkg/maintenance"
	"mercator-hq/conduit/pkg/queue"
	"mercator-hq/conduit/pkg/telemetry/health"
	"mercator-hq/conduit/pkg/telemetry/metrics"
)

// Stats is the body of GET /stats.
type Stats struct {
	Metrics     metrics.DetailedMetrics     `json:"metrics"`
	Cache       cache.Stats                 `json:"cache"`
	Queue       queue.Status                `json:"queue"`
	Circuits    map[string]breaker.Snapshot `json:"circuits"`
	Limits      []ratelimit.Window          `json:"limits"`
	Maintenance []maintenance.JobStatus     `json:"maintenance,omitempty"`
}

// LimitsResponse is the body of GET /limits.
type LimitsResponse struct {
	Limits  map[string]ratelimit.Limit `json:"limits"`
	Windows []ratelimit.Window         `json:"windows"`
}

// QueueResponse is the body of GET /queue.
type QueueResponse struct {
	Status  queue.Status    `json:"status"`
	Pending []queue.Request `json:"pending"`
}

func (s *Server) registerRoutes(r *mux.Router) {
	r.Handle(s.metricsPath, s.dispatcher.Metrics().Handler()).Methods(http.MethodGet)
	r.HandleFunc("/metrics/snapshot", s.handleMetricsSnapshot).Methods(http.MethodGet)

	r.HandleFunc("/healthz", s.handleLiveness).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", s.handleReadiness).Methods(http.MethodGet, http.MethodHead)
	r.Handle("/version", health.VersionHandler(s.version, "", "")).Methods(http.MethodGet)

	r.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)

	r.HandleFunc("/circuits", s.handleCircuits).Methods(http.MethodGet)
	r.HandleFunc("/circuits/{provider}/reset", s.handleCircuitReset).Methods(http.MethodPost)

	r.HandleFunc("/limits", s.handleLimits).Methods(http.MethodGet)
	r.HandleFunc("/limits/reset", s.handleLimitsReset).Methods(http.MethodPost)
	r.HandleFunc("/limits/reset/{provider}", s.handleLimitsReset).Methods(http.MethodPost)

	r.HandleFunc("/queue", s.handleQueue).Methods(http.MethodGet)
	r.HandleFunc("/queue", s.handleQueueClear).Methods(http.MethodDelete)
	r.HandleFunc("/queue/{id}", s.handleQueueAbort).Methods(http.MethodDelete)

	r.HandleFunc("/cache/export", s.handleCacheExport).Methods(http.MethodGet)
	r.HandleFunc("/cache/import", s.handleCacheImport).Methods(http.MethodPost)
	r.HandleFunc("/cache", s.handleCacheClear).Methods(http.MethodDelete)

	r.HandleFunc("/maintenance", s.handleMaintenance).Methods(http.MethodGet)
	r.HandleFunc("/maintenance/{job}/run", s.handleMaintenanceRun).Methods(http.MethodPost)
}

func (s *Server) handleMetricsSnapshot(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = metrics.FormatJSON
	}

	data, err := s.dispatcher.Metrics().Export(format)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if format == metrics.FormatPrometheus {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	_, _ = w.Write(data)
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	if s.checker == nil {
		writeJSON(w, http.StatusOK, health.HealthStatus{Status: health.StatusOK})
		return
	}
	s.checker.LivenessHandler().ServeHTTP(w, r)
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.checker == nil {
		writeJSON(w, http.StatusOK, health.HealthStatus{Status: health.StatusReady})
		return
	}
	s.checker.ReadinessHandler().ServeHTTP(w, r)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	d := s.dispatcher
	stats := Stats{
		Metrics:  d.Metrics().DetailedMetrics(),
		Cache:    d.Cache().Stats(),
		Queue:    d.Queue().Status(),
		Circuits: d.Breaker().AllStats(),
		Limits:   d.Limiter().Snapshot(),
	}
	if s.scheduler != nil {
		stats.Maintenance = s.scheduler.Status()
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCircuits(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.dispatcher.Breaker().AllStats())
}

func (s *Server) handleCircuitReset(w http.ResponseWriter, r *http.Request) {
	provider := mux.Vars(r)["provider"]
	if _, err := s.dispatcher.Registry().Get(provider); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	s.dispatcher.Breaker().Reset(provider)
	s.dispatcher.SyncGauges()
	writeJSON(w, http.StatusOK, s.dispatcher.Breaker().State(provider))
}

func (s *Server) handleLimits(w http.ResponseWriter, r *http.Request) {
	l := s.dispatcher.Limiter()
	writeJSON(w, http.StatusOK, LimitsResponse{
		Limits:  l.Limits(),
		Windows: l.Snapshot(),
	})
}

func (s *Server) handleLimitsReset(w http.ResponseWriter, r *http.Request) {
	provider, ok := mux.Vars(r)["provider"]
	if !ok {
		s.dispatcher.Limiter().ResetAll()
		writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
		return
	}

	s.dispatcher.Limiter().Reset(provider)
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset", "provider": provider})
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	q := s.dispatcher.Queue()
	pending := q.Pending()
	if pending == nil {
		pending = []queue.Request{}
	}
	writeJSON(w, http.StatusOK, QueueResponse{Status: q.Status(), Pending: pending})
}

func (s *Server) handleQueueAbort(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.dispatcher.Queue().Abort(id) {
		writeError(w, http.StatusNotFound, "no queued request with id "+id)
		return
	}
	s.dispatcher.SyncGauges()
	writeJSON(w, http.StatusOK, map[string]string{"status": "aborted", "id": id})
}

func (s *Server) handleQueueClear(w http.ResponseWriter, r *http.Request) {
	n := s.dispatcher.Queue().AbortAll()
	s.dispatcher.SyncGauges()
	writeJSON(w, http.StatusOK, map[string]int{"aborted": n})
}

func (s *Server) handleCacheExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.dispatcher.Cache().WriteJSON(w); err != nil {
		s.logger.Error("cache export failed", "error", err)
	}
}

func (s *Server) handleCacheImport(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, s.maxImportBytes)
	loaded, err := s.dispatcher.Cache().ReadJSON(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("cache snapshot exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.dispatcher.SyncGauges()
	writeJSON(w, http.StatusOK, map[string]int{"loaded": loaded, "size": s.dispatcher.Cache().Size()})
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	s.dispatcher.Cache().Clear()
	s.dispatcher.SyncGauges()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleMaintenance(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		writeJSON(w, http.StatusOK, []maintenance.JobStatus{})
		return
	}
	writeJSON(w, http.StatusOK, s.scheduler.Status())
}

func (s *Server) handleMaintenanceRun(w http.ResponseWriter, r *http.Request) {
	job := mux.Vars(r)["job"]
	if s.scheduler == nil {
		writeError(w, http.StatusNotFound, "maintenance scheduler not configured")
		return
	}

	err := s.scheduler.RunNow(r.Context(), job)
	switch {
	case errors.Is(err, maintenance.ErrUnknownJob):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "completed", "job": job})
	}
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}
