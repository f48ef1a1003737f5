package supervisor

import "github.com/prometheus/client_golang/prometheus"

// metrics holds the client's operation counters. Registration is optional;
// a client built without WithRegistry carries no metrics at all.
type metrics struct {
	ops  *prometheus.CounterVec
	errs *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pathkit",
			Subsystem: "supervisor",
			Name:      "ops_total",
			Help:      "File operations issued to the workload supervisor.",
		}, []string{"op"}),
		errs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pathkit",
			Subsystem: "supervisor",
			Name:      "op_errors_total",
			Help:      "File operations that failed, by error kind.",
		}, []string{"op", "kind"}),
	}
	reg.MustRegister(m.ops, m.errs)
	return m
}
