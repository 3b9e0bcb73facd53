package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects order-engine counters. Register against a Registerer once
// at wiring time; tests use their own registry.
type Metrics struct {
	OrdersEmitted  prometheus.Counter
	OrdersServed   prometheus.Counter
	OrdersExpired  prometheus.Counter
	OrdersRejected *prometheus.CounterVec
	GameOvers      prometheus.Counter
	SessionsActive prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OrdersEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gastrochef", Name: "orders_emitted_total",
			Help: "Orders offered to sessions.",
		}),
		OrdersServed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gastrochef", Name: "orders_served_total",
			Help: "Orders settled successfully.",
		}),
		OrdersExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gastrochef", Name: "orders_expired_total",
			Help: "Orders that ran out their time-to-live.",
		}),
		OrdersRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gastrochef", Name: "orders_rejected_total",
			Help: "Serve attempts rejected, by reason.",
		}, []string{"reason"}),
		GameOvers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gastrochef", Name: "game_overs_total",
			Help: "Full save resets triggered by economic failure.",
		}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gastrochef", Name: "sessions_active",
			Help: "Currently connected sessions.",
		}),
	}
	reg.MustRegister(m.OrdersEmitted, m.OrdersServed, m.OrdersExpired, m.OrdersRejected, m.GameOvers, m.SessionsActive)
	return m
}

// Rejection reasons.
const (
	ReasonNoActiveOrder     = "no_active_order"
	ReasonRecipeNotFound    = "recipe_not_found"
	ReasonInsufficientStock = "insufficient_stock"
	ReasonPersistence       = "persistence"
)
