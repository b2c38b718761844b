package discovery

import (
	"context"
	"net"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/muurk/oscquery/internal/logging"
)

// DefaultPollInterval is how often the interface list is re-read
const DefaultPollInterval = 5 * time.Second

// InterfaceLister returns the interfaces discovery should use
type InterfaceLister func() ([]net.Interface, error)

// MulticastInterfaces lists the interfaces that are up, multicast capable
// and carry at least one IPv4 address.
func MulticastInterfaces() ([]net.Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var out []net.Interface
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagMulticast == 0 {
			continue
		}
		if hasIPv4(iface) {
			out = append(out, iface)
		}
	}
	return out, nil
}

func hasIPv4(iface net.Interface) bool {
	addrs, err := iface.Addrs()
	if err != nil {
		return false
	}
	for _, addr := range addrs {
		if ipNet, ok := addr.(*net.IPNet); ok && ipNet.IP.To4() != nil {
			return true
		}
	}
	return false
}

// interfaceWatcher reports interfaces as they appear. An interface that
// disappears and comes back is reported again.
type interfaceWatcher struct {
	list     InterfaceLister
	clock    clock.Clock
	interval time.Duration
	onNew    func(net.Interface)
	log      *zap.Logger

	known map[string]struct{}
}

func newInterfaceWatcher(list InterfaceLister, clk clock.Clock, interval time.Duration, onNew func(net.Interface), log *zap.Logger) *interfaceWatcher {
	return &interfaceWatcher{
		log:      logging.OrGlobal(log, "discovery"),
		list:     list,
		clock:    clk,
		interval: interval,
		onNew:    onNew,
		known:    make(map[string]struct{}),
	}
}

// poll reads the interface list once and calls onNew for every interface
// not seen on the previous poll.
func (w *interfaceWatcher) poll() {
	ifaces, err := w.list()
	if err != nil {
		w.log.Warn("Failed to list network interfaces", zap.Error(err))
		return
	}

	current := make(map[string]struct{}, len(ifaces))
	for _, iface := range ifaces {
		current[iface.Name] = struct{}{}
		if _, ok := w.known[iface.Name]; ok {
			continue
		}
		w.log.Debug("Network interface discovered",
			zap.String("interface", iface.Name),
			zap.Int("index", iface.Index),
		)
		w.onNew(iface)
	}
	w.known = current
}

// run polls immediately and then on every tick until ctx is done
func (w *interfaceWatcher) run(ctx context.Context) {
	w.poll()

	ticker := w.clock.Ticker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll()
		}
	}
}
