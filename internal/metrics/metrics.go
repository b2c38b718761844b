// Package metrics instruments discovery, the peer client, the HTTP responder
// and event dispatch with Prometheus collectors.
//
// Every server instance gets its own *Metrics registered on the Registerer it
// is given, so several instances never fight over the default registry. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "oscquery"

// Metrics holds the collectors of one server instance.
type Metrics struct {
	registry *prometheus.Registry

	MDNSMessages        prometheus.Counter
	ServicesDiscovered  prometheus.Counter
	Goodbyes            prometheus.Counter
	NegotiationsDropped prometheus.Counter
	PeerFetches         *prometheus.CounterVec
	PeerFetchFailures   *prometheus.CounterVec
	HTTPRequests        *prometheus.CounterVec
	SubscriberFailures  *prometheus.CounterVec
	CurrentPeer         prometheus.Gauge
	Parameters          prometheus.Gauge
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		MDNSMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "mdns_messages_total",
			Help:      "mDNS response messages received.",
		}),
		ServicesDiscovered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "services_discovered_total",
			Help:      "New service instances added to the registry.",
		}),
		Goodbyes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "goodbyes_total",
			Help:      "Goodbye (TTL=0) SRV records processed.",
		}),
		NegotiationsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "negotiations_dropped_total",
			Help:      "Peers dropped because the negotiation queue was full.",
		}),
		PeerFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "fetches_total",
			Help:      "Outbound OSCQuery document fetches by document.",
		}, []string{"document"}),
		PeerFetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "fetch_failures_total",
			Help:      "Failed outbound fetches by document and error type.",
		}, []string{"document", "type"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Requests served by the OSCQuery responder.",
		}, []string{"document", "code"}),
		SubscriberFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "subscriber_failures_total",
			Help:      "Event subscribers that returned an error or panicked.",
		}, []string{"event"}),
		CurrentPeer: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_peer",
			Help:      "1 while a peer is negotiated, 0 otherwise.",
		}),
		Parameters: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "parameters",
			Help:      "Parameters in the last snapshot.",
		}),
	}

	m.registry.MustRegister(
		m.MDNSMessages,
		m.ServicesDiscovered,
		m.Goodbyes,
		m.NegotiationsDropped,
		m.PeerFetches,
		m.PeerFetchFailures,
		m.HTTPRequests,
		m.SubscriberFailures,
		m.CurrentPeer,
		m.Parameters,
	)

	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the collectors in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) MDNSMessage() {
	if m != nil {
		m.MDNSMessages.Inc()
	}
}

func (m *Metrics) ServiceDiscovered() {
	if m != nil {
		m.ServicesDiscovered.Inc()
	}
}

func (m *Metrics) Goodbye() {
	if m != nil {
		m.Goodbyes.Inc()
	}
}

func (m *Metrics) NegotiationDropped() {
	if m != nil {
		m.NegotiationsDropped.Inc()
	}
}

func (m *Metrics) PeerFetch(document string) {
	if m != nil {
		m.PeerFetches.WithLabelValues(document).Inc()
	}
}

func (m *Metrics) PeerFetchFailure(document, errType string) {
	if m != nil {
		m.PeerFetchFailures.WithLabelValues(document, errType).Inc()
	}
}

func (m *Metrics) HTTPRequest(document, code string) {
	if m != nil {
		m.HTTPRequests.WithLabelValues(document, code).Inc()
	}
}

// SubscriberFailure matches events.FailureHook.
func (m *Metrics) SubscriberFailure(event string, _ error) {
	if m != nil {
		m.SubscriberFailures.WithLabelValues(event).Inc()
	}
}

func (m *Metrics) SetCurrentPeer(present bool) {
	if m == nil {
		return
	}
	if present {
		m.CurrentPeer.Set(1)
	} else {
		m.CurrentPeer.Set(0)
	}
}

func (m *Metrics) SetParameters(n int) {
	if m != nil {
		m.Parameters.Set(float64(n))
	}
}
