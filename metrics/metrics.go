// Package metrics exposes Prometheus instrumentation for the provisioning
// server on a standalone listener, kept separate from the API listener so it
// can stay unexposed to nodes.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fleetyard/provisioning-server/common"
)

// serviceLabels is attached to every counter so scrapes from shared
// Prometheus instances can tell this service's series apart.
var serviceLabels = prometheus.Labels{"service": common.PackageName}

var (
	// SpecRequests counts spec requests by outcome: "ok" or the error code
	// returned to the client.
	SpecRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:        "provisioning_spec_requests_total",
		Help:        "Spec requests served, labeled by outcome code.",
		ConstLabels: serviceLabels,
	}, []string{"outcome"})

	// ResolveCache counts resolver cache lookups by result ("hit" or "miss").
	ResolveCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:        "provisioning_resolve_cache_total",
		Help:        "Spec resolver cache lookups by result.",
		ConstLabels: serviceLabels,
	}, []string{"result"})
)

// MetricsServer serves the Prometheus scrape endpoint.
type MetricsServer struct {
	srv *http.Server
}

// New creates a metrics server listening on addr. The counters above are
// registered globally with a constant "service" label.
func New(addr string) (*MetricsServer, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &MetricsServer{
		srv: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}, nil
}

// ListenAndServe blocks serving the scrape endpoint.
func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

// Shutdown gracefully stops the metrics listener.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
