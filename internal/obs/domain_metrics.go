package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PricingRunsTotal counts ticket repricing runs by the operation that triggered them.
	PricingRunsTotal *prometheus.CounterVec
	// PricingRunDuration records repricing latency in milliseconds.
	PricingRunDuration prometheus.Histogram
	// PromotionInstancesTotal counts formed combo instances per rule.
	PromotionInstancesTotal *prometheus.CounterVec
	// NotificationsTotal counts operator advisories by kind.
	NotificationsTotal *prometheus.CounterVec
	// CatalogRefreshTotal counts rule catalog reloads by source and outcome.
	CatalogRefreshTotal *prometheus.CounterVec
	// CatalogRulesRejected counts catalog rules dropped during validation.
	CatalogRulesRejected *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PricingRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_runs_total",
			Help:      "Count of ticket repricing runs by triggering operation.",
		}, []string{"operation"})
		PricingRunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pricing_run_duration_ms",
			Help:      "Latency of the pricing pipeline in milliseconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50},
		})
		PromotionInstancesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_promotion_instances_total",
			Help:      "Count of combo promotion instances formed, by rule.",
		}, []string{"rule"})
		NotificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_notifications_total",
			Help:      "Count of pricing advisories raised, by kind.",
		}, []string{"kind"})
		CatalogRefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_refresh_total",
			Help:      "Count of rule catalog loads by source and result.",
		}, []string{"source", "result"})
		CatalogRulesRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_rules_rejected_total",
			Help:      "Count of catalog rules dropped by validation, by rule type.",
		}, []string{"type"})

		register(reg, &PricingRunsTotal)
		register(reg, &PricingRunDuration)
		register(reg, &PromotionInstancesTotal)
		register(reg, &NotificationsTotal)
		register(reg, &CatalogRefreshTotal)
		register(reg, &CatalogRulesRejected)
	})
}

// ObservePricingRun records one pipeline run. It is a no-op until
// MustRegisterDomainMetrics has been called.
func ObservePricingRun(operation string, millis float64, promotionRules []string) {
	if PricingRunsTotal == nil {
		return
	}
	PricingRunsTotal.WithLabelValues(operation).Inc()
	PricingRunDuration.Observe(millis)
	for _, rule := range promotionRules {
		PromotionInstancesTotal.WithLabelValues(rule).Inc()
	}
}

// CountNotification increments the advisory counter for kind by n.
func CountNotification(kind string, n int) {
	if NotificationsTotal == nil || n <= 0 {
		return
	}
	NotificationsTotal.WithLabelValues(kind).Add(float64(n))
}

// CountCatalogRefresh records a catalog load outcome.
func CountCatalogRefresh(source, result string) {
	if CatalogRefreshTotal == nil {
		return
	}
	CatalogRefreshTotal.WithLabelValues(source, result).Inc()
}

// CountRejectedRule records a rule dropped by catalog validation.
func CountRejectedRule(ruleType string) {
	if CatalogRulesRejected == nil {
		return
	}
	CatalogRulesRejected.WithLabelValues(ruleType).Inc()
}
