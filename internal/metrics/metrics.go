// Package metrics counts what a run did and writes the counters as a
// node-exporter textfile.
package metrics

import (
	"strconv"
	"time"

	"github.com/martinsuchenak/fmcsweep/internal/model"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fmcsweep"

// Registry holds the run metrics on a private prometheus registry
type Registry struct {
	registry *prometheus.Registry

	// APIRequests counts controller requests by method and status code
	APIRequests *prometheus.CounterVec
	// RateLimited counts 429 responses that triggered a cooldown
	RateLimited prometheus.Counter
	// Deleted and DeleteFailures count delete attempts by category
	Deleted        *prometheus.CounterVec
	DeleteFailures *prometheus.CounterVec
	// Created and CreateFailures count restore attempts by category
	Created        *prometheus.CounterVec
	CreateFailures *prometheus.CounterVec
	// UnresolvedMembers counts group members not found during restore
	UnresolvedMembers prometheus.Counter
	// Unused is the number of unused objects left after the last phase
	Unused *prometheus.GaugeVec
	// Passes is the number of deletion passes a category needed
	Passes *prometheus.GaugeVec
	// LastRun is the unix time the run finished
	LastRun prometheus.Gauge
}

// New creates a Registry with every metric registered
func New() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		APIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Controller API requests by method and status code",
		}, []string{"method", "status"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_rate_limited_total",
			Help:      "Responses rejected with HTTP 429",
		}),
		Deleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "objects_deleted_total",
			Help:      "Objects deleted by category",
		}, []string{"category"}),
		DeleteFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "object_delete_failures_total",
			Help:      "Failed deletes by category",
		}, []string{"category"}),
		Created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "objects_created_total",
			Help:      "Objects restored by category",
		}, []string{"category"}),
		CreateFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "object_create_failures_total",
			Help:      "Failed restores by category",
		}, []string{"category"}),
		UnresolvedMembers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "group_members_unresolved_total",
			Help:      "Group members dropped during restore because no object had their name",
		}),
		Unused: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "objects_unused",
			Help:      "Unused objects remaining after cleanup by category",
		}, []string{"category"}),
		Passes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cleanup_passes",
			Help:      "Deletion passes run by category",
		}, []string{"category"}),
		LastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
	}

	r.registry.MustRegister(
		r.APIRequests,
		r.RateLimited,
		r.Deleted,
		r.DeleteFailures,
		r.Created,
		r.CreateFailures,
		r.UnresolvedMembers,
		r.Unused,
		r.Passes,
		r.LastRun,
	)
	return r
}

// Gatherer exposes the underlying registry
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

func (r *Registry) ObserveRequest(method string, status int) {
	r.APIRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

func (r *Registry) ObserveRateLimited() {
	r.RateLimited.Inc()
}

// ObserveOutcome counts a delete or create attempt
func (r *Registry) ObserveOutcome(o model.Outcome) {
	category := string(o.Category)
	switch o.Action {
	case model.ActionDelete:
		if o.Succeeded {
			r.Deleted.WithLabelValues(category).Inc()
		} else {
			r.DeleteFailures.WithLabelValues(category).Inc()
		}
	case model.ActionCreate:
		if o.Succeeded {
			r.Created.WithLabelValues(category).Inc()
		} else {
			r.CreateFailures.WithLabelValues(category).Inc()
		}
	}
}

// ObserveUnresolved counts group members that could not be resolved
func (r *Registry) ObserveUnresolved(n int) {
	r.UnresolvedMembers.Add(float64(n))
}

// ObservePhase records the state a cleanup phase left behind
func (r *Registry) ObservePhase(category model.Category, unused, passes int) {
	r.Unused.WithLabelValues(string(category)).Set(float64(unused))
	r.Passes.WithLabelValues(string(category)).Set(float64(passes))
}

// WriteTextfile stamps the finish time and writes every metric to path
func (r *Registry) WriteTextfile(path string, finished time.Time) error {
	r.LastRun.Set(float64(finished.Unix()))
	return prometheus.WriteToTextfile(path, r.registry)
}
