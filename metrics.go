package flowz

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	LabelOperator   = "operator"
	LabelKind       = "kind"
	LabelWindowType = "window_type"
)

const (
	dropKindError = "error"
	dropKindNext  = "next"
)

var (
	// DroppedSignals counts signals routed to the drop channel.
	DroppedSignals = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowz",
		Name:      "dropped_signals_total",
		Help:      "Total number of signals that arrived after their subscription terminated",
	}, []string{LabelKind})

	// Resubscriptions counts physical resubscriptions performed by retry operators.
	Resubscriptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowz",
		Subsystem: "retry",
		Name:      "resubscriptions_total",
		Help:      "Total number of resubscriptions after an accepted error",
	}, []string{LabelOperator})

	// WindowsOpened counts windows emitted by windowing operators.
	WindowsOpened = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowz",
		Subsystem: "window",
		Name:      "opened_total",
		Help:      "Total number of windows opened",
	}, []string{LabelOperator, LabelWindowType})

	// CleanupFailures counts resource cleanups that returned an error.
	CleanupFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowz",
		Subsystem: "using",
		Name:      "cleanup_failures_total",
		Help:      "Total number of failed resource cleanups",
	}, []string{LabelOperator})
)
