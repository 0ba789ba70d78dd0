// Package metrics exposes Prometheus collectors for selection sessions and
// cart activity.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mesh-intelligence/tableside/pkg/types"
)

const namespace = "tableside"

// Session close reasons.
const (
	ReasonConfirmed = "confirmed"
	ReasonCancelled = "cancelled"
	ReasonExpired   = "expired"
)

// Collector owns a private registry so tests and embedded servers do not
// collide on the default one.
type Collector struct {
	registry *prometheus.Registry

	selections        *prometheus.CounterVec
	capRejections     prometheus.Counter
	confirmRejections prometheus.Counter
	sessionsOpened    prometheus.Counter
	sessionsClosed    *prometheus.CounterVec
	sessionsOpen      prometheus.Gauge
	cartAdds          *prometheus.CounterVec
	cartValue         prometheus.Histogram
}

// New builds and registers every collector.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		selections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selections_total",
			Help:      "Option taps by outcome.",
		}, []string{"outcome"}),
		capRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selection_cap_rejections_total",
			Help:      "Taps ignored because the level was at its maximum.",
		}),
		confirmRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "confirm_rejections_total",
			Help:      "Confirm attempts refused for an incomplete selection.",
		}),
		sessionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_opened_total",
			Help:      "Selection sessions opened.",
		}),
		sessionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_closed_total",
			Help:      "Selection sessions closed by reason.",
		}, []string{"reason"}),
		sessionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_open",
			Help:      "Selection sessions currently open.",
		}),
		cartAdds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_adds_total",
			Help:      "Cart additions, split by whether they merged into an existing line.",
		}, []string{"merged"}),
		cartValue: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cart_line_unit_price",
			Help:      "Unit price of lines added to the cart.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
	c.registry.MustRegister(
		c.selections,
		c.capRejections,
		c.confirmRejections,
		c.sessionsOpened,
		c.sessionsClosed,
		c.sessionsOpen,
		c.cartAdds,
		c.cartValue,
	)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveSelect records the result of a tap. Errors other than a cap
// rejection are not counted.
func (c *Collector) ObserveSelect(res types.SelectResult, err error) {
	if err != nil && !errors.Is(err, types.ErrCapExceeded) {
		return
	}
	c.selections.WithLabelValues(res.Outcome.String()).Inc()
	if errors.Is(err, types.ErrCapExceeded) {
		c.capRejections.Inc()
	}
}

// ObserveConfirm records a confirm attempt.
func (c *Collector) ObserveConfirm(err error) {
	if errors.Is(err, types.ErrIncompleteSelection) {
		c.confirmRejections.Inc()
	}
}

// SessionOpened records a new session.
func (c *Collector) SessionOpened() {
	c.sessionsOpened.Inc()
	c.sessionsOpen.Inc()
}

// SessionClosed records a session leaving the registry.
func (c *Collector) SessionClosed(reason string) {
	c.sessionsClosed.WithLabelValues(reason).Inc()
	c.sessionsOpen.Dec()
}

// ObserveCartAdd records a line added to the cart.
func (c *Collector) ObserveCartAdd(line *types.CartLine, merged bool) {
	label := "false"
	if merged {
		label = "true"
	}
	c.cartAdds.WithLabelValues(label).Inc()
	c.cartValue.Observe(line.UnitPrice)
}
