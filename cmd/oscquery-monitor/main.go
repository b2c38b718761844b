// Oscquery-monitor advertises an OSCQuery service on the local network and
// shows the parameters of the peer it negotiates with.
//
// It discovers VRChat clients (or any peer matching --target-prefix) over
// mDNS, reads their HOST_INFO and avatar parameters over HTTP, and can
// forward every update to websocket watchers and Prometheus.
//
// Usage:
//
//	oscquery-monitor [command] [flags]
//
// Running without arguments starts the monitor.
// See 'oscquery-monitor --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/oscquery/internal/config"
	"github.com/muurk/oscquery/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "oscquery-monitor",
	Short: "OSCQuery discovery and parameter monitor",
	Long: `Advertise an OSCQuery service over mDNS and monitor the first matching peer.

The monitor answers HOST_INFO and namespace requests for this application,
negotiates with peers whose instance name starts with the target prefix, and
shows their avatar parameters as they change.

If no command is specified, the monitor starts.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMonitor(cmd, args)
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/oscquery/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); empty uses OSCQUERY_LOG_LEVEL")

	addMonitorFlags(rootCmd)

	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("oscquery-monitor %s\n", version.Full())
	},
}

// resolveConfigPath returns --config or the default location
func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.DefaultPath()
}

// loadConfig reads the config file and applies the flags the user set on cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := resolveConfigPath()
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	applyFlags(cmd, cfg)
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
