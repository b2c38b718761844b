package oscquery

import (
	"errors"
	"net/netip"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/muurk/oscquery/internal/discovery"
	"github.com/muurk/oscquery/internal/logging"
	"github.com/muurk/oscquery/internal/metrics"
	"github.com/muurk/oscquery/internal/peerclient"
)

// Defaults applied by New to zero Config fields.
const (
	DefaultServiceIP             = "127.0.0.1"
	DefaultTargetPrefix          = discovery.DefaultTargetPrefix
	DefaultQueueSize             = discovery.DefaultQueueSize
	DefaultWorkers               = discovery.DefaultWorkers
	DefaultInterfacePollInterval = discovery.DefaultPollInterval
	DefaultHTTPTimeout           = peerclient.DefaultTimeout
)

// Metrics is a per-server set of Prometheus collectors. Create one with
// NewMetrics and serve it with its Handler method.
type Metrics = metrics.Metrics

// NewMetrics returns collectors on a fresh registry.
func NewMetrics() *Metrics {
	return metrics.New()
}

// Config holds the server configuration
type Config struct {
	// ServiceName is the mDNS instance name and the HOST_INFO NAME
	ServiceName string

	// ServiceIP is advertised over mDNS, returned as OSC_IP, and is where the
	// OSC receive port is allocated (default 127.0.0.1)
	ServiceIP netip.Addr

	// HTTPBind is the address the HTTP responder listens on (default loopback)
	HTTPBind netip.Addr

	// TargetPrefix selects the peers to negotiate with (default VRChat-Client-)
	TargetPrefix string

	// QueueSize bounds pending negotiations (default 16)
	QueueSize int

	// Workers is the number of concurrent negotiations (default 1)
	Workers int

	// InterfacePollInterval is how often new interfaces are looked for (default 5s)
	InterfacePollInterval time.Duration

	// HTTPTimeout bounds peer fetches (default 10s, negative disables)
	HTTPTimeout time.Duration

	// Metrics receives instrumentation (nil disables)
	Metrics *Metrics

	// Clock drives the interface poller (default wall clock)
	Clock clock.Clock

	// Logger receives the server's logs, including transport, malformed
	// response and subscriber failures (default silent)
	Logger *zap.Logger

	// replaced in tests
	listen     func() (discovery.PacketConn, error)
	announcer  discovery.Announcer
	interfaces discovery.InterfaceLister
}

func (c *Config) applyDefaults() error {
	if c.ServiceName == "" {
		return errors.New("service name is required")
	}
	if !c.ServiceIP.IsValid() {
		c.ServiceIP = netip.MustParseAddr(DefaultServiceIP)
	}
	if !c.ServiceIP.Is4() {
		return errors.New("service IP must be an IPv4 address")
	}
	if !c.HTTPBind.IsValid() {
		c.HTTPBind = netip.MustParseAddr(DefaultServiceIP)
	}
	if !c.HTTPBind.Is4() {
		return errors.New("HTTP bind address must be an IPv4 address")
	}
	if c.TargetPrefix == "" {
		c.TargetPrefix = DefaultTargetPrefix
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.InterfacePollInterval <= 0 {
		c.InterfacePollInterval = DefaultInterfacePollInterval
	}
	switch {
	case c.HTTPTimeout == 0:
		c.HTTPTimeout = DefaultHTTPTimeout
	case c.HTTPTimeout < 0:
		c.HTTPTimeout = 0
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	c.Logger = logging.OrGlobal(c.Logger, "oscquery")
	return nil
}
