// Package admin serves the operational HTTP endpoints next to the gRPC
// listener.
package admin

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const healthTimeout = 2 * time.Second

type Pinger interface {
	Ping(ctx context.Context) error
}

type healthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
	Error  string `json:"error,omitempty"`
}

// NewRouter exposes GET /metrics from gatherer and GET /healthz, which pings
// the appointment store.
func NewRouter(store Pinger, storeName string, gatherer prometheus.Gatherer, log *slog.Logger) *mux.Router {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "http.admin"))

	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), healthTimeout)
		defer cancel()

		resp := healthResponse{Status: "ok", Store: storeName}
		code := http.StatusOK
		if err := store.Ping(ctx); err != nil {
			log.Warn("store ping failed", slog.Any("err", err), slog.String("store", storeName))
			resp.Status = "unavailable"
			resp.Error = err.Error()
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(resp)
	}).Methods(http.MethodGet)

	return r
}

// NewServer wraps handler with the timeouts used for the admin listener.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}
