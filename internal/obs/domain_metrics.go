package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// DocumentCreatedTotal counts finalized documents by kind.
	DocumentCreatedTotal *prometheus.CounterVec
	// DocumentRenderTotal counts PDF render outcomes.
	DocumentRenderTotal *prometheus.CounterVec
	// DocumentDeliveryTotal counts render-and-email delivery outcomes.
	DocumentDeliveryTotal *prometheus.CounterVec
	// QuotaRejectedTotal counts document creations rejected by plan quota.
	QuotaRejectedTotal prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers the invoicing domain
// collectors. Safe to call more than once.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		DocumentCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_created_total",
			Help:      "Count of finalized documents by kind.",
		}, []string{"kind"})
		DocumentRenderTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_renders_total",
			Help:      "Count of document render outcomes.",
		}, []string{"result"})
		DocumentDeliveryTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_deliveries_total",
			Help:      "Count of document delivery outcomes.",
		}, []string{"result"})
		QuotaRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_rejected_total",
			Help:      "Document creations rejected by the tenant plan quota.",
		})

		registerDomain(reg, DocumentCreatedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				DocumentCreatedTotal = v
			}
		})
		registerDomain(reg, DocumentRenderTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				DocumentRenderTotal = v
			}
		})
		registerDomain(reg, DocumentDeliveryTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				DocumentDeliveryTotal = v
			}
		})
		registerDomain(reg, QuotaRejectedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				QuotaRejectedTotal = v
			}
		})
	})
}

func registerDomain(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
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
