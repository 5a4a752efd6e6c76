// Package metrics owns the prometheus registry the service scrapes from.
// Where the handler is mounted is the caller's concern.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// BuildInfo identifies the running binary. Empty Version reports as "dev".
type BuildInfo struct {
	Version   string
	Revision  string
	BuildDate string
}

// Registry is a private prometheus registry preloaded with runtime, process
// and build collectors. It can be passed anywhere a prometheus.Registerer
// or prometheus.Gatherer is accepted.
type Registry struct {
	*prometheus.Registry
}

func NewRegistry(build BuildInfo) *Registry {
	return newRegistry(build, time.Now())
}

func newRegistry(build BuildInfo, started time.Time) *Registry {
	if build.Version == "" {
		build.Version = "dev"
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "geocached_build_info",
			Help:        "Build identity of this binary, always 1.",
			ConstLabels: prometheus.Labels{"version": build.Version, "revision": build.Revision, "build_date": build.BuildDate},
		}, func() float64 { return 1 }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "geocached_start_time_seconds",
			Help: "Unix time the registry was created.",
		}, func() float64 { return float64(started.Unix()) }),
	)
	return &Registry{Registry: reg}
}

// Handler serves the registry in text or OpenMetrics format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.Registry, promhttp.HandlerOpts{
		Registry:          r.Registry,
		EnableOpenMetrics: true,
	})
}
