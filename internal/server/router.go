// Package server exposes the daemon's configuration and its HTTP
// observability surface.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/reportsweep/reportsweep/internal/api"
	"github.com/reportsweep/reportsweep/internal/kv"
)

// ConnStatus reports the NATS connection state.
type ConnStatus interface {
	Status() nats.Status
}

// RunHistory serves recorded run summaries.
type RunHistory interface {
	Latest(ctx context.Context) (*kv.RunRecord, error)
	Totals(ctx context.Context) (*kv.RunTotals, error)
	Ping(ctx context.Context) time.Duration
}

// NewRouter builds the HTTP surface: health, run history, and metrics.
func NewRouter(conn ConnStatus, runs RunHistory, startTime time.Time) http.Handler {
	r := chi.NewRouter()
	r.Use(api.RequestID)
	r.Use(api.RequestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		resp := map[string]any{
			"uptime_seconds": int64(time.Since(startTime).Seconds()),
		}

		status := conn.Status()
		if status != nats.CONNECTED {
			resp["status"] = "degraded"
			resp["nats"] = status.String()
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}

		resp["status"] = "ok"
		resp["nats"] = "connected"
		resp["kv_latency_ms"] = runs.Ping(req.Context()).Milliseconds()
		writeJSON(w, http.StatusOK, resp)
	})

	r.Get("/runs/latest", func(w http.ResponseWriter, req *http.Request) {
		rec, err := runs.Latest(req.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
			return
		}
		if rec == nil {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "no runs recorded"})
			return
		}
		writeJSON(w, http.StatusOK, rec)
	})

	r.Get("/runs/totals", func(w http.ResponseWriter, req *http.Request) {
		totals, err := runs.Totals(req.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, totals)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
