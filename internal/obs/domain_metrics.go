package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// GSTClassificationsTotal counts regime decisions by outcome.
	GSTClassificationsTotal *prometheus.CounterVec
	// LineRecalculationsTotal counts line items recomputed, labelled by what triggered it.
	LineRecalculationsTotal *prometheus.CounterVec
	// DraftOperationsTotal counts draft workflow operations by outcome.
	DraftOperationsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		GSTClassificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gst_classifications_total",
			Help:      "Count of GST regime classifications by regime.",
		}, []string{"regime"})
		LineRecalculationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "line_recalculations_total",
			Help:      "Count of order line items recomputed, by trigger.",
		}, []string{"source"})
		DraftOperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "draft_operations_total",
			Help:      "Count of order draft operations by outcome.",
		}, []string{"operation", "result"})

		for _, vec := range []**prometheus.CounterVec{&GSTClassificationsTotal, &LineRecalculationsTotal, &DraftOperationsTotal} {
			target := vec
			mustRegisterCollector(reg, *target, func(existing prometheus.Collector) {
				if v, ok := existing.(*prometheus.CounterVec); ok {
					*target = v
				}
			})
		}
	})
}

// ObserveClassification records a regime decision when metrics are registered.
func ObserveClassification(regime string) {
	if GSTClassificationsTotal != nil {
		GSTClassificationsTotal.WithLabelValues(regime).Inc()
	}
}

// ObserveRecalculation records n recomputed lines when metrics are registered.
func ObserveRecalculation(source string, n int) {
	if LineRecalculationsTotal != nil && n > 0 {
		LineRecalculationsTotal.WithLabelValues(source).Add(float64(n))
	}
}

// ObserveDraftOperation records a draft workflow outcome when metrics are registered.
func ObserveDraftOperation(operation string, err error) {
	if DraftOperationsTotal == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	DraftOperationsTotal.WithLabelValues(operation, result).Inc()
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
