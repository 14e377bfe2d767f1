package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StockMetrics records stock reservation activity.
type StockMetrics struct {
	reservations *prometheus.CounterVec
	adjustments  *prometheus.CounterVec
}

// NewStockMetrics registers the stock metrics on the provided registerer.
func NewStockMetrics(reg prometheus.Registerer) *StockMetrics {
	if reg == nil {
		return &StockMetrics{}
	}
	reservations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_reservations_total",
		Help: "Stock reservation attempts, by outcome.",
	}, []string{"outcome"})
	adjustments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_adjustments_total",
		Help: "Manual stock adjustments, by reason.",
	}, []string{"reason"})
	reg.MustRegister(reservations, adjustments)
	return &StockMetrics{
		reservations: reservations,
		adjustments:  adjustments,
	}
}

// IncReservation records a reservation attempt outcome ("reserved" or "insufficient").
func (s *StockMetrics) IncReservation(outcome string) {
	if s == nil || s.reservations == nil {
		return
	}
	s.reservations.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncAdjustment records a manual stock adjustment.
func (s *StockMetrics) IncAdjustment(reason string) {
	if s == nil || s.adjustments == nil {
		return
	}
	s.adjustments.WithLabelValues(normalizeLabel(reason)).Inc()
}
