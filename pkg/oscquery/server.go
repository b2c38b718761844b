package oscquery

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/muurk/oscquery/internal/discovery"
	"github.com/muurk/oscquery/internal/events"
	"github.com/muurk/oscquery/internal/oscjson"
	"github.com/muurk/oscquery/internal/peerclient"
	"github.com/muurk/oscquery/internal/ports"
	"github.com/muurk/oscquery/internal/registry"
	"github.com/muurk/oscquery/internal/server"
)

const shutdownTimeout = 5 * time.Second

// HostInfo is a HOST_INFO document.
type HostInfo = oscjson.HostInfo

// Snapshot is one flattened view of a peer's avatar parameters. Snapshots
// carry the Peer they came from so late results of a replaced peer can be
// told apart.
type Snapshot = peerclient.Snapshot

// Namespace paths read from the peer.
const (
	ParametersPath   = peerclient.ParametersPath
	AvatarChangePath = peerclient.AvatarChangePath
)

// PeerFound is emitted once a peer's HOST_INFO has been read.
type PeerFound struct {
	// Instance is the peer's mDNS instance name
	Instance string

	// HTTP is the peer's introspection endpoint
	HTTP netip.AddrPort

	// OSC is where the peer receives OSC; open the transport towards it
	OSC netip.AddrPort

	// HostInfo is the document the endpoint was taken from
	HostInfo HostInfo
}

// ErrDisposed is returned by Start after Close.
var ErrDisposed = errors.New("oscquery server is disposed")

// Server advertises this application over mDNS, answers OSCQuery requests
// and negotiates with the first matching peer it finds.
type Server struct {
	config   Config
	httpPort uint16
	oscPort  uint16
	hostInfo HostInfo
	log      *zap.Logger

	client    *peerclient.Client
	http      *server.Server
	discovery *discovery.Discovery

	peerFound         *events.Event[PeerFound]
	parametersUpdated *events.Event[*Snapshot]

	peerMu  sync.Mutex
	current netip.AddrPort

	lifecycleMu sync.Mutex
	started     bool
	disposed    bool
}

// New allocates the HTTP and OSC receive ports and prepares every component.
// Port allocation is the only step that touches the network; a failure is
// returned here.
func New(config Config) (*Server, error) {
	if err := config.applyDefaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	httpPort, err := ports.FreeTCPPort(config.HTTPBind)
	if err != nil {
		return nil, err
	}
	oscPort, err := ports.FreeUDPPort(config.ServiceIP)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:   config,
		httpPort: httpPort,
		oscPort:  oscPort,
		hostInfo: oscjson.NewHostInfo(config.ServiceName, config.ServiceIP.String(), oscPort),
		log:      config.Logger,
		client:   peerclient.New(config.HTTPTimeout, config.Metrics),
	}
	s.client.Logger = config.Logger.Named("peerclient")
	s.peerFound = events.New[PeerFound]("peer-found", config.Metrics.SubscriberFailure, config.Logger.Named("events"))
	s.parametersUpdated = events.New[*Snapshot]("parameters-updated", config.Metrics.SubscriberFailure, config.Logger.Named("events"))

	s.http, err = server.New(&server.Config{
		Host:     config.HTTPBind.String(),
		Port:     httpPort,
		HostInfo: s.hostInfo,
		Metrics:  config.Metrics,
		Logger:   config.Logger.Named("http"),
	})
	if err != nil {
		return nil, err
	}

	s.discovery, err = discovery.New(discovery.Config{
		ServiceName:  config.ServiceName,
		ServiceIP:    config.ServiceIP,
		HTTPPort:     httpPort,
		OSCPort:      oscPort,
		TargetPrefix: config.TargetPrefix,
		QueueSize:    config.QueueSize,
		Workers:      config.Workers,
		PollInterval: config.InterfacePollInterval,
		Handler:      s.negotiate,
		Logger:       config.Logger.Named("discovery"),
		Metrics:      config.Metrics,
		Clock:        config.Clock,
		Interfaces:   config.interfaces,
		Listen:       config.listen,
		Announcer:    config.announcer,
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("OSCQuery server created",
		zap.String("service", config.ServiceName),
		zap.Uint16("http_port", httpPort),
		zap.Uint16("osc_port", oscPort),
	)

	return s, nil
}

// HTTPPort returns the port of the HTTP responder
func (s *Server) HTTPPort() uint16 {
	return s.httpPort
}

// OSCReceivePort returns the port advertised for receiving OSC. The caller
// binds its own OSC transport to it.
func (s *Server) OSCReceivePort() uint16 {
	return s.oscPort
}

// HostInfo returns the HOST_INFO document this server serves
func (s *Server) HostInfo() HostInfo {
	return s.hostInfo
}

// Registry returns the discovery deduplication registry
func (s *Server) Registry() *registry.ServiceRegistry {
	return s.discovery.Registry()
}

// OnPeerFound subscribes h to peer-found events
func (s *Server) OnPeerFound(h func(ctx context.Context, peer PeerFound) error) (unsubscribe func()) {
	return s.peerFound.Subscribe(h)
}

// OnParametersUpdated subscribes h to parameters-updated events. The
// snapshot belongs to the subscribers and is never modified afterwards.
func (s *Server) OnParametersUpdated(h func(ctx context.Context, snapshot *Snapshot) error) (unsubscribe func()) {
	return s.parametersUpdated.Subscribe(h)
}

// Start begins serving HTTP, listening for peers and advertising. Calling
// Start on a running server does nothing.
func (s *Server) Start() error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.disposed {
		return ErrDisposed
	}
	if s.started {
		return nil
	}

	if err := s.http.Start(); err != nil {
		return err
	}
	if err := s.discovery.Start(); err != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return multierr.Append(err, s.http.Shutdown(ctx))
	}

	s.started = true
	s.log.Info("OSCQuery server started",
		zap.String("service", s.config.ServiceName),
		zap.Uint16("http_port", s.httpPort),
		zap.Uint16("osc_port", s.oscPort),
	)
	return nil
}

// CurrentPeer returns the HTTP endpoint of the negotiated peer
func (s *Server) CurrentPeer() (netip.AddrPort, bool) {
	s.peerMu.Lock()
	defer s.peerMu.Unlock()
	return s.current, s.current.IsValid()
}

func (s *Server) setCurrent(peer netip.AddrPort) {
	s.peerMu.Lock()
	s.current = peer
	s.peerMu.Unlock()
	s.config.Metrics.SetCurrentPeer(true)
}

// clearCurrent forgets peer unless another peer has replaced it since
func (s *Server) clearCurrent(peer netip.AddrPort) {
	s.peerMu.Lock()
	cleared := s.current == peer
	if cleared {
		s.current = netip.AddrPort{}
	}
	s.peerMu.Unlock()

	if cleared {
		s.config.Metrics.SetCurrentPeer(false)
		s.log.Info("Lost OSCQuery peer", zap.String("http", peer.String()))
	}
}

// negotiate runs on a discovery worker for every new matching peer
func (s *Server) negotiate(ctx context.Context, peer discovery.Peer) {
	s.setCurrent(peer.HTTP)

	info, err := s.client.FetchHostInfo(ctx, peer.HTTP)
	if err != nil {
		s.log.Error("Failed to fetch peer host info",
			zap.String("peer", peer.String()),
			zap.String("reason", peerclient.GetShortErrorMessage(err)),
			zap.Error(err),
		)
		return
	}

	found := PeerFound{
		Instance: peer.Instance,
		HTTP:     peer.HTTP,
		OSC:      peerclient.OSCEndpoint(info, peer.HTTP.Addr()),
		HostInfo: *info,
	}
	s.log.Info("Negotiated OSCQuery peer",
		zap.String("instance", found.Instance),
		zap.String("http", found.HTTP.String()),
		zap.String("osc", found.OSC.String()),
	)
	s.peerFound.Emit(ctx, found)

	_ = s.refresh(ctx, peer.HTTP)
}

// RefreshParameters fetches the current peer's namespace and emits
// parameters-updated. Without a negotiated peer it does nothing and returns
// nil. A failed fetch is returned but never clears previously emitted
// parameters; a transport failure forgets the peer.
func (s *Server) RefreshParameters(ctx context.Context) error {
	peer, ok := s.CurrentPeer()
	if !ok {
		return nil
	}
	s.log.Debug("Refreshing parameters", zap.String("peer", peer.String()))
	return s.refresh(ctx, peer)
}

func (s *Server) refresh(ctx context.Context, peer netip.AddrPort) error {
	snapshot, err := s.client.FetchSnapshot(ctx, peer)
	if err != nil {
		if peerclient.IsTransportError(err) {
			s.clearCurrent(peer)
			s.log.Error("Failed to fetch peer parameters",
				zap.String("peer", peer.String()),
				zap.String("reason", peerclient.GetShortErrorMessage(err)),
				zap.Error(err),
			)
		} else {
			s.log.Warn("Peer returned unusable parameters",
				zap.String("peer", peer.String()),
				zap.Error(err),
			)
		}
		return err
	}

	s.config.Metrics.SetParameters(len(snapshot.Parameters))
	s.log.Debug("Parameters updated",
		zap.String("peer", peer.String()),
		zap.String("avatar_id", snapshot.AvatarID),
		zap.Int("parameters", len(snapshot.Parameters)),
	)
	s.parametersUpdated.Emit(ctx, snapshot)
	return nil
}

// Close withdraws the advertised records with goodbye packets, releases the
// sockets and stops the HTTP responder. Negotiations still running are
// cancelled but not waited for, so Close may be called from a subscriber.
// It is idempotent.
func (s *Server) Close() error {
	s.lifecycleMu.Lock()
	if s.disposed {
		s.lifecycleMu.Unlock()
		return nil
	}
	s.disposed = true
	s.lifecycleMu.Unlock()

	var errs error
	errs = multierr.Append(errs, s.discovery.Close())

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	errs = multierr.Append(errs, s.http.Shutdown(ctx))

	s.log.Info("OSCQuery server disposed", zap.String("service", s.config.ServiceName))
	return errs
}

// Dispose is Close for exit hooks: errors are logged, not returned.
func (s *Server) Dispose() {
	if err := s.Close(); err != nil {
		for _, e := range multierr.Errors(err) {
			s.log.Warn("Error while disposing OSCQuery server", zap.Error(e))
		}
	}
}
