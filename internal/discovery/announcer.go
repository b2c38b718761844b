package discovery

import (
	"fmt"
	"strings"

	"github.com/grandcat/zeroconf"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/muurk/oscquery/internal/logging"
)

// ServiceRecord is one of this host's advertised services
type ServiceRecord struct {
	Instance string
	Type     string // ServiceTypeOSCJSON or ServiceTypeOSC
	Port     uint16
	IP       string
}

// Announcer publishes this host's service records. Shutdown withdraws them
// with goodbye (TTL=0) records.
type Announcer interface {
	Announce(records []ServiceRecord) error
	Shutdown()
}

// ZeroconfAnnouncer answers mDNS queries for the records with
// grandcat/zeroconf.
type ZeroconfAnnouncer struct {
	log     *zap.Logger
	servers []*zeroconf.Server
}

// NewZeroconfAnnouncer creates an announcer that has published nothing yet.
// A nil logger selects the package logger.
func NewZeroconfAnnouncer(log *zap.Logger) *ZeroconfAnnouncer {
	return &ZeroconfAnnouncer{log: logging.OrGlobal(log, "discovery")}
}

// Announce registers one zeroconf responder per record. Records that fail
// are skipped and reported together.
func (a *ZeroconfAnnouncer) Announce(records []ServiceRecord) error {
	var errs error
	for _, rec := range records {
		host := strings.ToLower(rec.Instance)
		server, err := zeroconf.RegisterProxy(
			rec.Instance,
			rec.Type,
			ServiceDomain,
			int(rec.Port),
			host,
			[]string{rec.IP},
			[]string{"txtvers=1"},
			nil,
		)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to advertise %s: %w", rec.Type, err))
			continue
		}
		a.servers = append(a.servers, server)

		a.log.Info("Advertising service",
			zap.String("instance", rec.Instance),
			zap.String("type", rec.Type),
			zap.Uint16("port", rec.Port),
			zap.String("ip", rec.IP),
		)
	}
	return errs
}

// Shutdown sends the goodbye records and stops answering
func (a *ZeroconfAnnouncer) Shutdown() {
	for _, server := range a.servers {
		server.Shutdown()
	}
	a.servers = nil
}
