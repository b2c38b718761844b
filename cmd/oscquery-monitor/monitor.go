package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/muurk/oscquery/internal/config"
	"github.com/muurk/oscquery/internal/feed"
	"github.com/muurk/oscquery/internal/logging"
	"github.com/muurk/oscquery/internal/ui"
	"github.com/muurk/oscquery/pkg/oscquery"
)

const httpShutdownTimeout = 5 * time.Second

// Monitor command flags
var (
	serviceName     string
	serviceIP       string
	httpBind        string
	targetPrefix    string
	useTUI          bool
	refreshInterval time.Duration
	feedAddr        string
	metricsAddr     string
	peerTimeout     time.Duration
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Advertise this service and monitor the negotiated peer",
	Long: `Start an OSCQuery server and show peer-found and parameter updates.

The terminal UI is used when stdout is a terminal and --tui is set (the
default). Otherwise every event is printed as it happens.

With --feed-addr every event is also streamed as JSON over a websocket at
/events, and with --metrics-addr Prometheus metrics are served at /metrics.`,
	Example: `  # Monitor with the terminal UI
  oscquery-monitor monitor

  # Plain output, refreshing every 2 seconds
  oscquery-monitor monitor --tui=false --refresh-interval 2s

  # Stream events to websocket watchers and expose metrics
  oscquery-monitor monitor --feed-addr 127.0.0.1:9100 --metrics-addr 127.0.0.1:9101`,
	RunE: runMonitor,
}

func init() {
	addMonitorFlags(monitorCmd)
}

func addMonitorFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&serviceName, "name", "", "Service name advertised over mDNS")
	cmd.Flags().StringVar(&serviceIP, "service-ip", "", "Advertised IPv4 address, returned as OSC_IP")
	cmd.Flags().StringVar(&httpBind, "http-bind", "", "IPv4 address the HTTP responder listens on")
	cmd.Flags().StringVar(&targetPrefix, "target-prefix", "", "Instance name prefix of peers to negotiate with")
	cmd.Flags().BoolVar(&useTUI, "tui", true, "Show the terminal UI when stdout is a terminal")
	cmd.Flags().DurationVar(&refreshInterval, "refresh-interval", 0, "Refresh parameters periodically (0 disables)")
	cmd.Flags().StringVar(&feedAddr, "feed-addr", "", "Serve the websocket event feed on this address")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	cmd.Flags().DurationVar(&peerTimeout, "timeout", 0, "Peer HTTP request timeout")
}

// applyFlags copies the flags the user set onto cfg
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Lookup("name") == nil {
		return
	}
	if flags.Changed("name") {
		cfg.Service.Name = serviceName
	}
	if flags.Changed("service-ip") {
		cfg.Service.IP = serviceIP
	}
	if flags.Changed("http-bind") {
		cfg.Service.HTTPBind = httpBind
	}
	if flags.Changed("target-prefix") {
		cfg.Discovery.TargetPrefix = targetPrefix
	}
	if flags.Changed("tui") {
		cfg.Monitor.TUI = useTUI
	}
	if flags.Changed("refresh-interval") {
		cfg.Monitor.RefreshInterval = refreshInterval
	}
	if flags.Changed("feed-addr") {
		cfg.Monitor.FeedAddr = feedAddr
	}
	if flags.Changed("metrics-addr") {
		cfg.Monitor.MetricsAddr = metricsAddr
	}
	if flags.Changed("timeout") {
		cfg.Peer.HTTPTimeout = peerTimeout
	}
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	interactive := cfg.Monitor.TUI && ui.IsTerminal()
	if interactive && len(cfg.Log.Output) == 0 {
		path, err := tuiLogPath()
		if err != nil {
			return err
		}
		cfg.Log.Output = []string{path}
	}
	if err := cfg.InitLogging(); err != nil {
		return err
	}
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	serverConfig, err := cfg.ServerConfig()
	if err != nil {
		return err
	}
	metrics := oscquery.NewMetrics()
	serverConfig.Metrics = metrics

	srv, err := oscquery.New(serverConfig)
	if err != nil {
		return fmt.Errorf("failed to create OSCQuery server: %w", err)
	}
	defer srv.Dispose()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Monitor.FeedAddr != "" {
		hub := feed.NewHub(0)
		srv.OnPeerFound(func(ctx context.Context, peer oscquery.PeerFound) error {
			return hub.PublishPeerFound(peer)
		})
		srv.OnParametersUpdated(func(ctx context.Context, s *oscquery.Snapshot) error {
			return hub.PublishSnapshot(s)
		})

		mux := http.NewServeMux()
		mux.Handle("/events", hub)
		serveHTTP(gctx, g, "feed", cfg.Monitor.FeedAddr, mux)
		g.Go(func() error {
			<-gctx.Done()
			hub.Close()
			return nil
		})
	}

	if cfg.Monitor.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		serveHTTP(gctx, g, "metrics", cfg.Monitor.MetricsAddr, mux)
	}

	var printer *ui.Printer
	if interactive {
		mon := ui.NewMonitor(gctx, ui.NewMonitorModel(ui.MonitorConfig{
			ServiceName: cfg.Service.Name,
			HTTPPort:    srv.HTTPPort(),
			OSCPort:     srv.OSCReceivePort(),
			Refresh:     srv.RefreshParameters,
		}))
		srv.OnPeerFound(func(ctx context.Context, peer oscquery.PeerFound) error {
			mon.Send(ui.PeerFoundMsg{Peer: peer})
			return nil
		})
		srv.OnParametersUpdated(func(ctx context.Context, s *oscquery.Snapshot) error {
			mon.Send(ui.SnapshotMsg{Snapshot: s})
			return nil
		})
		g.Go(func() error {
			// quitting the screen ends the monitor
			defer cancel()
			return mon.Run()
		})
	} else {
		printer = ui.NewPrinter(os.Stdout)
		printer.PrintHeader("OSCQuery Monitor", "oscquery-monitor monitor",
			ui.Param{Key: "Service", Value: cfg.Service.Name},
			ui.Param{Key: "HTTP port", Value: fmt.Sprint(srv.HTTPPort())},
			ui.Param{Key: "OSC port", Value: fmt.Sprint(srv.OSCReceivePort())},
			ui.Param{Key: "Target", Value: cfg.Discovery.TargetPrefix + "*"},
		)
		srv.OnPeerFound(func(ctx context.Context, peer oscquery.PeerFound) error {
			printer.PrintPeerFound(peer)
			return nil
		})
		srv.OnParametersUpdated(func(ctx context.Context, s *oscquery.Snapshot) error {
			printer.PrintSnapshot(s)
			return nil
		})
	}

	if cfg.Monitor.RefreshInterval > 0 {
		g.Go(func() error {
			refreshLoop(gctx, srv, cfg.Monitor.RefreshInterval, printer)
			return nil
		})
	}

	if err := srv.Start(); err != nil {
		cancel()
		_ = g.Wait()
		return fmt.Errorf("failed to start OSCQuery server: %w", err)
	}

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	return g.Wait()
}

// refreshLoop refreshes the parameters every interval until ctx is done.
// Failures are printed when printer is set; they are logged either way.
func refreshLoop(ctx context.Context, srv *oscquery.Server, interval time.Duration, printer *ui.Printer) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := srv.RefreshParameters(ctx); err != nil && printer != nil && ctx.Err() == nil {
				printer.PrintRefreshError(err)
			}
		}
	}
}

// serveHTTP runs an HTTP server in g until ctx is done
func serveHTTP(ctx context.Context, g *errgroup.Group, name, addr string, handler http.Handler) {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		logging.Info("Starting HTTP listener", zap.String("name", name), zap.String("addr", addr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s server: %w", name, err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
}

// tuiLogPath returns the log file used while the terminal UI owns stdout
func tuiLogPath() (string, error) {
	dir, err := config.GetConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return filepath.Join(dir, "monitor.log"), nil
}
