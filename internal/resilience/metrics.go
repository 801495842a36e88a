package resilience

import "github.com/prometheus/client_golang/prometheus"

var (
	breakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "faktur",
			Name:      "breaker_state",
			Help:      "Current breaker state: 0=closed,1=open,2=half-open",
		},
		[]string{"target"},
	)
	breakerTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faktur",
			Name:      "breaker_transition_total",
			Help:      "Count of breaker state transitions",
		},
		[]string{"target", "from", "to"},
	)
)

func init() {
	prometheus.MustRegister(breakerState, breakerTransitions)
}

func recordState(target string, state State) {
	var v float64
	switch state {
	case Closed:
		v = 0
	case Open:
		v = 1
	case HalfOpen:
		v = 2
	}
	breakerState.WithLabelValues(target).Set(v)
}

func recordTransition(target string, from, to State) {
	breakerTransitions.WithLabelValues(target, from.String(), to.String()).Inc()
}
