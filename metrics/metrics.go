// Package metrics provides Prometheus metrics for the graspable object relay.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"goji.io"
	"goji.io/pat"
)

// Verdict labels.
const (
	VerdictAccepted = "accepted"
	VerdictRejected = "rejected"
)

// Relay holds the counters of one relay node. Labels are kept to fixed enums.
type Relay struct {
	registry *prometheus.Registry

	MarkersEvaluated  *prometheus.CounterVec
	MarkersIgnored    prometheus.Counter
	Acquisitions      prometheus.Counter
	TransformsEmitted prometheus.Counter
	PosesPublished    prometheus.Counter
	PublishFailures   *prometheus.CounterVec
}

// NewRelay registers the relay metrics on a fresh registry.
func NewRelay() *Relay {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Relay{
		registry: reg,
		MarkersEvaluated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "graspable_markers_evaluated_total",
			Help: "Total number of markers run through the acceptance policy, by verdict and failed check.",
		}, []string{"verdict", "reason"}),
		MarkersIgnored: factory.NewCounter(prometheus.CounterOpts{
			Name: "graspable_markers_ignored_total",
			Help: "Total number of markers that arrived after acquisition and were not evaluated.",
		}),
		Acquisitions: factory.NewCounter(prometheus.CounterOpts{
			Name: "graspable_acquisitions_total",
			Help: "Total number of searching to acquired transitions.",
		}),
		TransformsEmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "graspable_transforms_emitted_total",
			Help: "Total number of graspable object transforms broadcast.",
		}),
		PosesPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "graspable_poses_published_total",
			Help: "Total number of graspable object poses published.",
		}),
		PublishFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "graspable_publish_failures_total",
			Help: "Total number of failed publications, by channel (transform or pose).",
		}, []string{"channel"}),
	}
}

// RecordEvaluation counts one policy evaluation. reason is empty for accepted markers.
func (r *Relay) RecordEvaluation(accepted bool, reason string) {
	verdict := VerdictRejected
	if accepted {
		verdict = VerdictAccepted
	}
	r.MarkersEvaluated.WithLabelValues(verdict, reason).Inc()
}

// Registry exposes the registry, mostly for tests and custom exporters.
func (r *Relay) Registry() *prometheus.Registry {
	return r.registry
}

// Handler returns an http.Handler serving the relay metrics at /metrics.
func (r *Relay) Handler() http.Handler {
	mux := goji.NewMux()
	mux.Handle(pat.Get("/metrics"), promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))
	return mux
}
