package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/miekg/dns"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/muurk/oscquery/internal/logging"
	"github.com/muurk/oscquery/internal/metrics"
	"github.com/muurk/oscquery/internal/registry"
)

const (
	// DefaultQueueSize is the default negotiation queue capacity
	DefaultQueueSize = 16

	// DefaultWorkers is the default number of negotiation workers
	DefaultWorkers = 1

	// maxPacketSize covers jumbo-frame mDNS responses
	maxPacketSize = 9000
)

// PeerHandler negotiates with one discovered peer. It runs on a worker, never
// on the receive loop.
type PeerHandler func(ctx context.Context, peer Peer)

// Config holds the discovery configuration
type Config struct {
	ServiceName  string     // Instance name of both advertised records
	ServiceIP    netip.Addr // Address put into the advertised A records
	HTTPPort     uint16     // Port of the _oscjson._tcp record
	OSCPort      uint16     // Port of the _osc._udp record
	TargetPrefix string     // Instance prefix of peers to negotiate with (default VRChat-Client-)

	QueueSize    int           // Negotiation queue capacity (default 16)
	Workers      int           // Negotiation workers (default 1)
	PollInterval time.Duration // Interface poll interval (default 5s)

	Handler PeerHandler

	// Optional collaborators; nil selects the real implementation
	Logger     *zap.Logger
	Registry   *registry.ServiceRegistry
	Metrics    *metrics.Metrics
	Clock      clock.Clock
	Interfaces InterfaceLister
	Listen     func() (PacketConn, error)
	Announcer  Announcer
}

// Discovery advertises this host and finds OSCQuery peers over mDNS
type Discovery struct {
	config    Config
	processor *processor
	queue     chan Peer
	query     []byte
	log       *zap.Logger

	mu      sync.Mutex
	started bool
	closed  bool
	conn    PacketConn
	cancel  context.CancelFunc

	// Close waits on wg (receive loop, watcher) but never on workers
	wg      sync.WaitGroup
	workers sync.WaitGroup
}

// New creates a new Discovery instance. Nothing is bound until Start.
func New(config Config) (*Discovery, error) {
	if config.Handler == nil {
		return nil, errors.New("discovery needs a peer handler")
	}
	if config.TargetPrefix == "" {
		config.TargetPrefix = DefaultTargetPrefix
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}
	if config.Workers <= 0 {
		config.Workers = DefaultWorkers
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	config.Logger = logging.OrGlobal(config.Logger, "discovery")
	if config.Registry == nil {
		config.Registry = registry.New()
	}
	if config.Clock == nil {
		config.Clock = clock.New()
	}
	if config.Interfaces == nil {
		config.Interfaces = MulticastInterfaces
	}
	if config.Listen == nil {
		config.Listen = ListenMulticast
	}
	if config.Announcer == nil {
		config.Announcer = NewZeroconfAnnouncer(config.Logger)
	}

	query, err := serviceQuery()
	if err != nil {
		return nil, fmt.Errorf("failed to build mDNS query: %w", err)
	}

	d := &Discovery{
		config: config,
		queue:  make(chan Peer, config.QueueSize),
		query:  query,
		log:    config.Logger,
	}
	d.processor = &processor{
		log:      config.Logger,
		registry: config.Registry,
		prefix:   config.TargetPrefix,
		clock:    config.Clock,
		metrics:  config.Metrics,
		offer:    d.offer,
	}

	return d, nil
}

// Registry returns the service registry used for deduplication
func (d *Discovery) Registry() *registry.ServiceRegistry {
	return d.config.Registry
}

// Start binds the multicast socket, starts the receive loop, the interface
// watcher and the workers, and advertises both service records. Calling
// Start again does nothing; a closed Discovery cannot be restarted.
func (d *Discovery) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return errors.New("discovery is closed")
	}
	if d.started {
		return nil
	}

	for _, key := range SelfKeys(d.config.ServiceName, d.config.HTTPPort, d.config.OSCPort) {
		d.config.Registry.Add(key)
	}

	conn, err := d.config.Listen()
	if err != nil {
		return err
	}
	d.conn = conn

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.receiveLoop()
	}()

	for i := 0; i < d.config.Workers; i++ {
		d.workers.Add(1)
		go func() {
			defer d.workers.Done()
			d.worker(ctx)
		}()
	}

	watcher := newInterfaceWatcher(d.config.Interfaces, d.config.Clock, d.config.PollInterval, d.interfaceFound, d.log)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		watcher.run(ctx)
	}()

	// a host that cannot advertise can still discover
	if err := d.config.Announcer.Announce(d.records()); err != nil {
		d.log.Warn("Failed to advertise OSCQuery services", zap.Error(err))
	}

	d.started = true
	d.log.Info("mDNS discovery started",
		zap.String("service", d.config.ServiceName),
		zap.String("target_prefix", d.config.TargetPrefix),
	)

	return nil
}

func (d *Discovery) records() []ServiceRecord {
	ip := d.config.ServiceIP.String()
	return []ServiceRecord{
		{Instance: d.config.ServiceName, Type: ServiceTypeOSCJSON, Port: d.config.HTTPPort, IP: ip},
		{Instance: d.config.ServiceName, Type: ServiceTypeOSC, Port: d.config.OSCPort, IP: ip},
	}
}

// interfaceFound joins the group on a new interface and queries for peers
func (d *Discovery) interfaceFound(iface net.Interface) {
	if err := d.conn.JoinGroup(&iface); err != nil {
		// already a member after a flap
		d.log.Debug("Failed to join mDNS group",
			zap.String("interface", iface.Name),
			zap.Error(err),
		)
	}
	if err := d.conn.WriteQuery(d.query, &iface); err != nil {
		d.log.Warn("Failed to send mDNS query",
			zap.String("interface", iface.Name),
			zap.Error(err),
		)
	}
}

// receiveLoop runs until the socket is closed
func (d *Discovery) receiveLoop() {
	buf := make([]byte, maxPacketSize)
	for {
		n, err := d.conn.ReadMessage(buf)
		if err != nil {
			if d.isClosed() || errors.Is(err, net.ErrClosed) {
				return
			}
			d.log.Warn("mDNS read failed", zap.Error(err))
			continue
		}

		msg := new(dns.Msg)
		if err := msg.Unpack(buf[:n]); err != nil {
			d.log.Debug("Ignoring malformed mDNS packet", zap.Error(err))
			continue
		}
		d.processor.handleMessage(msg)
	}
}

func (d *Discovery) offer(peer Peer) bool {
	select {
	case d.queue <- peer:
		return true
	default:
		return false
	}
}

func (d *Discovery) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case peer := <-d.queue:
			d.negotiate(ctx, peer)
		}
	}
}

func (d *Discovery) negotiate(ctx context.Context, peer Peer) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("Peer negotiation panicked",
				zap.String("peer", peer.String()),
				zap.Any("panic", r),
			)
		}
	}()
	d.config.Handler(ctx, peer)
}

func (d *Discovery) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Close withdraws the advertised records, closes the socket and waits for
// the receive loop and the interface watcher. Running negotiations see their
// context cancelled and finish on their own; Close does not wait for them,
// so it may be called from inside a peer handler. It is safe to call more
// than once.
func (d *Discovery) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	started := d.started
	d.mu.Unlock()

	if !started {
		return nil
	}

	d.config.Announcer.Shutdown()
	d.cancel()

	var errs error
	if err := d.conn.Close(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("failed to close mDNS socket: %w", err))
	}
	d.wg.Wait()

	d.log.Info("mDNS discovery stopped")
	return errs
}

// wait blocks until every worker has returned. Tests use it after Close.
func (d *Discovery) wait() {
	d.workers.Wait()
}
