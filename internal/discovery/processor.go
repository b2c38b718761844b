package discovery

import (
	"net/netip"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/miekg/dns"
	"go.uber.org/zap"

	"github.com/muurk/oscquery/internal/logging"
	"github.com/muurk/oscquery/internal/metrics"
	"github.com/muurk/oscquery/internal/registry"
)

// processor applies the registry rules to received mDNS responses. It never
// blocks: peers worth negotiating are handed to offer, which must not block
// either.
type processor struct {
	log      *zap.Logger
	registry *registry.ServiceRegistry
	prefix   string
	clock    clock.Clock
	metrics  *metrics.Metrics

	// offer queues a peer and reports false when the queue is full
	offer func(Peer) bool
}

// handleMessage processes one mDNS message. Queries are ignored.
func (p *processor) handleMessage(msg *dns.Msg) {
	if !msg.Response {
		return
	}
	p.metrics.MDNSMessage()

	for _, srv := range srvRecords(msg) {
		p.handleSRV(msg, srv)
	}
}

func (p *processor) handleSRV(msg *dns.Msg, srv *dns.SRV) {
	labels := dns.SplitDomainName(srv.Hdr.Name)
	if len(labels) < 3 {
		return
	}
	instance, proto := labels[0], labels[2]

	// the paired OSC record is learnt from HOST_INFO instead
	if proto == "_udp" {
		return
	}

	serviceID := registry.ServiceKey(srv.Hdr.Name, srv.Port)

	if srv.Hdr.Ttl == 0 {
		p.registry.Remove(serviceID)
		p.metrics.Goodbye()
		logging.LogServiceRecord(p.logger(), serviceID, instance, 0, "goodbye")
		return
	}

	if !p.registry.Add(serviceID) {
		logging.LogServiceRecord(p.logger(), serviceID, instance, srv.Hdr.Ttl, "known")
		return
	}
	p.metrics.ServiceDiscovered()
	logging.LogServiceRecord(p.logger(), serviceID, instance, srv.Hdr.Ttl, "added")

	if !strings.HasPrefix(instance, p.prefix) {
		return
	}

	addr, ok := firstA(msg)
	if !ok {
		// forget the key so a complete answer can still be negotiated
		p.registry.Remove(serviceID)
		p.logger().Debug("Peer answer has no A record",
			zap.String("service_id", serviceID),
		)
		return
	}

	peer := Peer{
		Instance:     instance,
		ServiceID:    serviceID,
		HTTP:         netip.AddrPortFrom(addr, srv.Port),
		DiscoveredAt: p.now(),
	}

	if !p.offer(peer) {
		p.registry.Remove(serviceID)
		p.metrics.NegotiationDropped()
		p.logger().Warn("Negotiation queue full, dropping peer",
			zap.String("service_id", serviceID),
			zap.String("peer", peer.HTTP.String()),
		)
		return
	}

	p.logger().Info("Discovered OSCQuery peer",
		zap.String("instance", instance),
		zap.String("http", peer.HTTP.String()),
	)
}

func (p *processor) logger() *zap.Logger {
	return logging.OrGlobal(p.log, "discovery")
}

func (p *processor) now() time.Time {
	if p.clock == nil {
		return time.Now()
	}
	return p.clock.Now()
}

// srvRecords returns the SRV records of the additional section followed by
// those of the answer section.
func srvRecords(msg *dns.Msg) []*dns.SRV {
	var out []*dns.SRV
	for _, section := range [][]dns.RR{msg.Extra, msg.Answer} {
		for _, rr := range section {
			if srv, ok := rr.(*dns.SRV); ok {
				out = append(out, srv)
			}
		}
	}
	return out
}

// firstA returns the first A record address, additional section first.
// Multi-homed peers are not disambiguated.
func firstA(msg *dns.Msg) (netip.Addr, bool) {
	for _, section := range [][]dns.RR{msg.Extra, msg.Answer} {
		for _, rr := range section {
			a, ok := rr.(*dns.A)
			if !ok {
				continue
			}
			if addr, ok := netip.AddrFromSlice(a.A); ok {
				return addr.Unmap(), true
			}
		}
	}
	return netip.Addr{}, false
}
