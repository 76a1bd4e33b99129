// Package statusserver implements the collector's HTTP status surfaces:
// health, version, the connected-shippers list, the collector's own
// Prometheus metrics, and a
// proxy of the indexing backend's own /metrics. Routed with
// github.com/gorilla/mux, matching moby/moby's own api/server/router
// package family.
package statusserver

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"rlog/internal/shippers"
)

// shipperRegistry is the subset of *shippers.Registry the status server
// needs, so tests can substitute a fake.
type shipperRegistry interface {
	Connected() []string
}

var _ shipperRegistry = (*shippers.Registry)(nil)

// New builds the status router. version is the build version string
// (GET /version); reg lists connected shippers (GET /connected-shippers);
// promReg backs GET /metrics; quickwitBaseURL is proxied at
// GET /quickwit/metrics, supplemented from http_status_server.rs.
func New(version string, reg shipperRegistry, promReg *prometheus.Registry, quickwitBaseURL string, log *logrus.Entry) *mux.Router {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("component", "http_status")

	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	r.HandleFunc("/version", func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(version))
	}).Methods(http.MethodGet)

	r.HandleFunc("/connected-shippers", func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(strings.Join(reg.Connected(), "\n")))
	}).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	r.HandleFunc("/quickwit/metrics", quickwitMetricsProxy(quickwitBaseURL, log)).Methods(http.MethodGet)

	return r
}

// quickwitMetricsProxy forwards GET /quickwit/metrics to {quickwitBaseURL}/metrics.
func quickwitMetricsProxy(quickwitBaseURL string, log *logrus.Entry) http.HandlerFunc {
	client := &http.Client{Timeout: 5 * time.Second}
	target := strings.TrimRight(quickwitBaseURL, "/") + "/metrics"

	return func(w http.ResponseWriter, req *http.Request) {
		upstreamReq, err := http.NewRequestWithContext(req.Context(), http.MethodGet, target, nil)
		if err != nil {
			http.Error(w, "unable to build upstream request", http.StatusInternalServerError)
			return
		}
		resp, err := client.Do(upstreamReq)
		if err != nil {
			log.WithError(err).Error("unable to reach quickwit metrics endpoint")
			http.Error(w, "quickwit metrics unavailable", http.StatusBadGateway)
			return
		}
		defer resp.Body.Close()

		w.WriteHeader(resp.StatusCode)
		io.Copy(w, resp.Body)
	}
}
