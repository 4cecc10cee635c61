package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CartRecalculationsTotal counts recalculation passes by outcome.
	CartRecalculationsTotal *prometheus.CounterVec
	// CartRecalculationDuration records recalculation latency in milliseconds.
	CartRecalculationDuration prometheus.Histogram
	// CouponValidationsTotal counts coupon validation outcomes and the rule that decided them.
	CouponValidationsTotal *prometheus.CounterVec
	// ShippingFeeErrorsTotal counts shipping fee resolution failures.
	ShippingFeeErrorsTotal *prometheus.CounterVec
	// GeocoderRequestsTotal counts outbound geocoder lookups by outcome.
	GeocoderRequestsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CartRecalculationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_recalculations_total",
			Help:      "Count of cart recalculation passes by outcome.",
		}, []string{"result"})
		CartRecalculationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cart_recalculation_duration_ms",
			Help:      "Latency of cart recalculation passes in milliseconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250},
		})
		CouponValidationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_validations_total",
			Help:      "Count of coupon validations by outcome and deciding rule.",
		}, []string{"result", "rule"})
		ShippingFeeErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shipping_fee_errors_total",
			Help:      "Count of shipping fee resolution failures by reason.",
		}, []string{"reason"})
		GeocoderRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocoder_requests_total",
			Help:      "Count of geocoder lookups by outcome.",
		}, []string{"result"})

		mustRegisterCollector(reg, CartRecalculationsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CartRecalculationsTotal = v
			}
		})
		mustRegisterCollector(reg, CartRecalculationDuration, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				CartRecalculationDuration = v
			}
		})
		mustRegisterCollector(reg, CouponValidationsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CouponValidationsTotal = v
			}
		})
		mustRegisterCollector(reg, ShippingFeeErrorsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ShippingFeeErrorsTotal = v
			}
		})
		mustRegisterCollector(reg, GeocoderRequestsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				GeocoderRequestsTotal = v
			}
		})
	})
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
