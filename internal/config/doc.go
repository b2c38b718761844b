// Package config manages the YAML configuration file of the oscquery-monitor
// command.
//
// The file holds the advertised service identity, discovery tuning, the peer
// request timeout and the monitor's outer surfaces (websocket feed, metrics
// listener, terminal UI). Command line flags override file values.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/oscquery/config.yaml or $HOME/.config/oscquery/config.yaml
//   - macOS: $HOME/.config/oscquery/config.yaml
//   - Windows: %LOCALAPPDATA%\oscquery\config.yaml
//
// # Usage Example
//
//	path, _ := config.DefaultPath()
//	cfg, err := config.Load(path)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
//	serverConfig, err := cfg.ServerConfig()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv, err := oscquery.New(serverConfig)
//
// # Thread Safety
//
// Load and Save are serialized by a package mutex, and Save writes through a
// temporary file and rename so a crash never leaves a truncated file.
package config
