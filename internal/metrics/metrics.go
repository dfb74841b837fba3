package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	polls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "copycord",
			Subsystem: "console",
			Name:      "polls_total",
			Help:      "Number of status polls by result.",
		}, []string{"result"},
	)
	pollInterval = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "copycord",
			Subsystem: "console",
			Name:      "poll_interval_seconds",
			Help:      "Currently scheduled poll interval.",
		},
	)
	merges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "copycord",
			Subsystem: "console",
			Name:      "status_merges_total",
			Help:      "Status merges applied to the model, by source channel.",
		}, []string{"source"},
	)
	reconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "copycord",
			Subsystem: "console",
			Name:      "reconnects_total",
			Help:      "Reconnect attempts per channel.",
		}, []string{"channel"},
	)
	lockTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "copycord",
			Subsystem: "console",
			Name:      "lock_transitions_total",
			Help:      "Editing-lock state transitions.",
		}, []string{"to"},
	)
	toastsShown = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "copycord",
			Subsystem: "console",
			Name:      "toasts_shown_total",
			Help:      "Notifications that reached the user.",
		},
	)
	toastsSuppressed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "copycord",
			Subsystem: "console",
			Name:      "toasts_suppressed_total",
			Help:      "Notifications suppressed by the gate, by reason.",
		}, []string{"reason"},
	)
	logLinesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "copycord",
			Subsystem: "console",
			Name:      "log_lines_dropped_total",
			Help:      "Log lines evicted from the tail ring per role.",
		}, []string{"role"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{polls, pollInterval, merges, reconnects, lockTransitions, toastsShown, toastsSuppressed, logLinesDropped}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler serving Prometheus metrics for the
// DefaultGatherer. The caller wires the route.
func Handler() http.Handler { return promhttp.Handler() }

// Lightweight helpers used by internal packages. They no-op until Register
// has been called.

func IncPoll(result string) {
	if regOK.Load() {
		polls.WithLabelValues(result).Inc()
	}
}

func SetPollInterval(seconds float64) {
	if regOK.Load() {
		pollInterval.Set(seconds)
	}
}

func IncMerge(source string) {
	if regOK.Load() {
		merges.WithLabelValues(source).Inc()
	}
}

func IncReconnect(channel string) {
	if regOK.Load() {
		reconnects.WithLabelValues(channel).Inc()
	}
}

func IncLockTransition(to string) {
	if regOK.Load() {
		lockTransitions.WithLabelValues(to).Inc()
	}
}

func IncToastShown() {
	if regOK.Load() {
		toastsShown.Inc()
	}
}

func IncToastSuppressed(reason string) {
	if regOK.Load() {
		toastsSuppressed.WithLabelValues(reason).Inc()
	}
}

func AddLogLinesDropped(role string, n int) {
	if regOK.Load() && n > 0 {
		logLinesDropped.WithLabelValues(role).Add(float64(n))
	}
}
