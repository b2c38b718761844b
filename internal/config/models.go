package config

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/muurk/oscquery/internal/logging"
	"github.com/muurk/oscquery/pkg/oscquery"
)

// CurrentVersion is the only config file version this build reads.
const CurrentVersion = 1

// Config represents the monitor's configuration file.
type Config struct {
	Version   int             `yaml:"version"`
	Service   ServiceConfig   `yaml:"service"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Peer      PeerConfig      `yaml:"peer"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Log       LogConfig       `yaml:"log"`
}

// ServiceConfig describes how this application advertises itself.
type ServiceConfig struct {
	Name     string `yaml:"name"`      // mDNS instance name and HOST_INFO NAME
	IP       string `yaml:"ip"`        // Advertised address, returned as OSC_IP
	HTTPBind string `yaml:"http_bind"` // Address the HTTP responder listens on
}

// DiscoveryConfig tunes peer discovery.
type DiscoveryConfig struct {
	TargetPrefix          string        `yaml:"target_prefix"`           // Instance prefix of peers to negotiate with
	QueueSize             int           `yaml:"queue_size"`              // Pending negotiations before records are dropped
	Workers               int           `yaml:"workers"`                 // Concurrent negotiations
	InterfacePollInterval time.Duration `yaml:"interface_poll_interval"` // How often new interfaces are joined
}

// PeerConfig tunes requests to the negotiated peer.
type PeerConfig struct {
	HTTPTimeout time.Duration `yaml:"http_timeout"`
}

// MonitorConfig holds the monitor command's outer surfaces.
type MonitorConfig struct {
	TUI             bool          `yaml:"tui"`              // Show the terminal UI when stdout is a terminal
	RefreshInterval time.Duration `yaml:"refresh_interval"` // Periodic parameter refresh, 0 disables
	FeedAddr        string        `yaml:"feed_addr"`        // Websocket feed listen address, empty disables
	MetricsAddr     string        `yaml:"metrics_addr"`     // Prometheus listen address, empty disables
}

// LogConfig selects the log level and destination. An empty level defers to
// OSCQUERY_LOG_LEVEL and is silent when that is unset too.
type LogConfig struct {
	Level  string   `yaml:"level"`
	Output []string `yaml:"output,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Service: ServiceConfig{
			Name:     "OSCQueryMonitor",
			IP:       oscquery.DefaultServiceIP,
			HTTPBind: oscquery.DefaultServiceIP,
		},
		Discovery: DiscoveryConfig{
			TargetPrefix:          oscquery.DefaultTargetPrefix,
			QueueSize:             oscquery.DefaultQueueSize,
			Workers:               oscquery.DefaultWorkers,
			InterfacePollInterval: oscquery.DefaultInterfacePollInterval,
		},
		Peer: PeerConfig{
			HTTPTimeout: oscquery.DefaultHTTPTimeout,
		},
		Monitor: MonitorConfig{
			TUI: true,
		},
	}
}

// Validate reports every problem found in the configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.Version != CurrentVersion {
		errs = append(errs, fmt.Errorf("unsupported config version: %d (expected %d)", c.Version, CurrentVersion))
	}
	if strings.TrimSpace(c.Service.Name) == "" {
		errs = append(errs, errors.New("service.name is required"))
	}
	if _, err := parseIPv4(c.Service.IP); err != nil {
		errs = append(errs, fmt.Errorf("service.ip: %w", err))
	}
	if _, err := parseIPv4(c.Service.HTTPBind); err != nil {
		errs = append(errs, fmt.Errorf("service.http_bind: %w", err))
	}
	if c.Discovery.QueueSize < 0 {
		errs = append(errs, errors.New("discovery.queue_size must not be negative"))
	}
	if c.Discovery.Workers < 0 {
		errs = append(errs, errors.New("discovery.workers must not be negative"))
	}
	if c.Monitor.RefreshInterval < 0 {
		errs = append(errs, errors.New("monitor.refresh_interval must not be negative"))
	}
	for name, addr := range map[string]string{"monitor.feed_addr": c.Monitor.FeedAddr, "monitor.metrics_addr": c.Monitor.MetricsAddr} {
		if addr == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(addr); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}

	return errors.Join(errs...)
}

// ServerConfig converts the file into an oscquery.Config. Metrics and Clock
// are left for the caller.
func (c *Config) ServerConfig() (oscquery.Config, error) {
	serviceIP, err := parseIPv4(c.Service.IP)
	if err != nil {
		return oscquery.Config{}, fmt.Errorf("service.ip: %w", err)
	}
	httpBind, err := parseIPv4(c.Service.HTTPBind)
	if err != nil {
		return oscquery.Config{}, fmt.Errorf("service.http_bind: %w", err)
	}

	return oscquery.Config{
		ServiceName:           c.Service.Name,
		ServiceIP:             serviceIP,
		HTTPBind:              httpBind,
		TargetPrefix:          c.Discovery.TargetPrefix,
		QueueSize:             c.Discovery.QueueSize,
		Workers:               c.Discovery.Workers,
		InterfacePollInterval: c.Discovery.InterfacePollInterval,
		HTTPTimeout:           c.Peer.HTTPTimeout,
	}, nil
}

// InitLogging applies the log section to the package logger.
func (c *Config) InitLogging() error {
	level := strings.ToLower(c.Log.Level)
	if len(c.Log.Output) == 0 {
		return logging.Initialize(level)
	}
	return logging.InitializeWithOutput(level, c.Log.Output)
}

// parseIPv4 accepts an empty string as "use the default"
func parseIPv4(s string) (netip.Addr, error) {
	if s == "" {
		return netip.Addr{}, nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, err
	}
	if !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("%s is not an IPv4 address", s)
	}
	return addr, nil
}
