package discovery

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/muurk/oscquery/internal/registry"
)

const (
	// ServiceTypeOSCJSON is the HTTP introspection service
	ServiceTypeOSCJSON = "_oscjson._tcp"

	// ServiceTypeOSC is the OSC receive service
	ServiceTypeOSC = "_osc._udp"

	// ServiceDomain is the mDNS domain
	ServiceDomain = "local."

	// DefaultTargetPrefix is the instance-name prefix of peers worth negotiating
	DefaultTargetPrefix = "VRChat-Client-"
)

// Peer is a newly discovered OSCQuery HTTP endpoint waiting for negotiation.
type Peer struct {
	// Instance is the first label of the SRV owner name (e.g., "VRChat-Client-1A2B3C")
	Instance string

	// ServiceID is the registry key of the SRV record
	ServiceID string

	// HTTP is the peer's introspection endpoint (first A record, SRV port)
	HTTP netip.AddrPort

	// DiscoveredAt is when the answer was processed
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the peer
func (p Peer) String() string {
	return fmt.Sprintf("%s at %s", p.Instance, p.HTTP)
}

// BaseURL returns the HTTP base URL for the peer
func (p Peer) BaseURL() string {
	return fmt.Sprintf("http://%s", p.HTTP)
}

// serviceFQDN returns "<instance>.<type>.local." for a service type
func serviceFQDN(instance, serviceType string) string {
	return instance + "." + serviceType + "." + ServiceDomain
}

// SelfKeys returns the registry keys of this host's own two records, so its
// own announcements are never negotiated with.
func SelfKeys(serviceName string, httpPort, oscPort uint16) []string {
	name := strings.ToLower(serviceName)
	return []string{
		registry.ServiceKey(serviceFQDN(name, ServiceTypeOSCJSON), httpPort),
		registry.ServiceKey(serviceFQDN(name, ServiceTypeOSC), oscPort),
	}
}
