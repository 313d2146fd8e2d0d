// Package httpapi exposes the validation core over HTTP: a REST surface
// for running validations and trigger checks, a report archive lookup, a
// prometheus endpoint, and a websocket stream of report summaries.
package httpapi

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/cream-quant/synthcore/internal/config"
	"github.com/cream-quant/synthcore/internal/metrics"
	"github.com/cream-quant/synthcore/internal/pipeline"
	"github.com/cream-quant/synthcore/internal/registry"
	"github.com/cream-quant/synthcore/internal/store"
	"github.com/cream-quant/synthcore/internal/trigger"
)

// Server wires the pipeline, registry, archive, and metrics behind the
// HTTP surface.
type Server struct {
	cfg      config.Config
	router   *mux.Router
	limiter  *rate.Limiter
	registry registry.Registry
	archive  *store.Store // nil disables archive endpoints
	metrics  *metrics.Collector
	hub      *hub
	upgrader websocket.Upgrader
}

// New builds the server. The archive may be nil when postgres is not
// configured.
func New(cfg config.Config, reg registry.Registry, archive *store.Store, promReg *prometheus.Registry) *Server {
	s := &Server{
		cfg:      cfg,
		limiter:  rate.NewLimiter(rate.Limit(cfg.Server.RateLimitRPS), cfg.Server.RateLimitBurst),
		registry: reg,
		archive:  archive,
		metrics:  metrics.NewCollector(promReg),
		hub:      newHub(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/validate", s.withRateLimit(s.handleValidate)).Methods(http.MethodPost)
	r.HandleFunc("/trigger", s.withRateLimit(s.handleTrigger)).Methods(http.MethodPost)
	r.HandleFunc("/reports/{indicator}", s.withRateLimit(s.handleReports)).Methods(http.MethodGet)
	r.HandleFunc("/ws/reports", s.handleReportStream).Methods(http.MethodGet)
	s.router = r
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return s.router
}

// Close drops all websocket subscribers.
func (s *Server) Close() {
	s.hub.closeAll()
}

func (s *Server) withRateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"archive": s.archive != nil,
	})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req pipeline.ValidationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}

	// A request without its own registry snapshot screens against the
	// live indicator set.
	if req.ExistingIndicators == nil && s.registry != nil {
		existing, err := s.registry.All(r.Context())
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "indicator registry unavailable: "+err.Error())
			return
		}
		req.ExistingIndicators = existing
	}

	// Thresholds the request leaves unset fall back to the configured ones.
	t := req.Thresholds
	if t == nil {
		t = &pipeline.Thresholds{}
	}
	d := s.cfg.Thresholds
	for _, f := range []struct {
		dst **float64
		def *float64
	}{
		{&t.DSRPValue, &d.DSRPValue}, {&t.PBO, &d.PBO}, {&t.ICMean, &d.ICMean}, {&t.ICStd, &d.ICStd},
		{&t.WFEfficiency, &d.WFEfficiency}, {&t.MaxCorrelation, &d.MaxCorrelation}, {&t.MaxVIF, &d.MaxVIF},
	} {
		if *f.dst == nil {
			*f.dst = f.def
		}
	}
	req.Thresholds = t

	started := time.Now()
	report, err := pipeline.Run(r.Context(), &req)
	if err != nil {
		var invalid *pipeline.InvalidInputError
		if errors.As(err, &invalid) {
			writeError(w, http.StatusUnprocessableEntity, invalid.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.metrics.ObserveValidation(report, time.Since(started))

	if s.archive != nil {
		if err := s.archive.Save(r.Context(), report); err != nil {
			log.Error().Err(err).Str("run_id", report.RunID).Msg("report archive write failed")
		}
	}

	s.hub.broadcast(reportEvent{
		RunID:         report.RunID,
		IndicatorID:   report.IndicatorID,
		OverallPassed: report.OverallPassed,
		GatesPassed:   report.GatesPassed,
		PassRate:      report.PassRate,
		Summary:       report.Summary,
	})

	raw, err := report.MarshalCanonical()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(raw)
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var conditions trigger.Conditions
	if err := json.NewDecoder(r.Body).Decode(&conditions); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}

	decision := trigger.Evaluate(conditions, s.cfg.Trigger)
	s.metrics.ObserveTrigger(decision)
	writeJSON(w, http.StatusOK, decision)
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, http.StatusNotImplemented, "report archive not configured")
		return
	}

	indicator := mux.Vars(r)["indicator"]
	rows, err := s.archive.ByIndicator(r.Context(), indicator, 20)
	if err != nil {
		if err == sql.ErrNoRows {
			writeError(w, http.StatusNotFound, "no reports for "+indicator)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleReportStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	s.hub.add(conn)
	log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("report stream subscriber connected")

	// Reader loop detects client disconnect; the stream is write-only.
	go func() {
		defer s.hub.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("response encode failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
