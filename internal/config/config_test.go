package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/muurk/oscquery/pkg/oscquery"
)

func TestGetConfigDir(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG_CONFIG_HOME applies to linux only")
	}

	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}
	if configDir != filepath.Join("/tmp/xdg", "oscquery") {
		t.Errorf("GetConfigDir() = %v, want /tmp/xdg/oscquery", configDir)
	}

	path, err := DefaultPath()
	if err != nil {
		t.Fatalf("DefaultPath() error = %v", err)
	}
	if filepath.Base(path) != "config.yaml" {
		t.Errorf("DefaultPath() should end with 'config.yaml', got: %v", path)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Version != CurrentVersion {
		t.Errorf("Version = %d, want %d", cfg.Version, CurrentVersion)
	}
	if cfg.Discovery.TargetPrefix != "VRChat-Client-" {
		t.Errorf("TargetPrefix = %q", cfg.Discovery.TargetPrefix)
	}
	if cfg.Discovery.QueueSize != 16 || cfg.Discovery.Workers != 1 {
		t.Errorf("discovery = %+v", cfg.Discovery)
	}
	if cfg.Peer.HTTPTimeout != 10*time.Second {
		t.Errorf("HTTPTimeout = %v, want 10s", cfg.Peer.HTTPTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() error = %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Service.Name != Default().Service.Name {
		t.Errorf("missing file should load defaults, got %+v", cfg.Service)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `version: 1
service:
  name: Bridge
discovery:
  interface_poll_interval: 30s
monitor:
  refresh_interval: 2s
  feed_addr: 127.0.0.1:9100
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Service.Name != "Bridge" {
		t.Errorf("Service.Name = %q, want Bridge", cfg.Service.Name)
	}
	if cfg.Service.IP != oscquery.DefaultServiceIP {
		t.Errorf("Service.IP = %q, want default", cfg.Service.IP)
	}
	if cfg.Discovery.InterfacePollInterval != 30*time.Second {
		t.Errorf("InterfacePollInterval = %v, want 30s", cfg.Discovery.InterfacePollInterval)
	}
	if cfg.Discovery.TargetPrefix != oscquery.DefaultTargetPrefix {
		t.Errorf("TargetPrefix = %q, want default", cfg.Discovery.TargetPrefix)
	}
	if cfg.Monitor.RefreshInterval != 2*time.Second || cfg.Monitor.FeedAddr != "127.0.0.1:9100" {
		t.Errorf("Monitor = %+v", cfg.Monitor)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad yaml", "version: [1"},
		{"wrong version", "version: 2\n"},
		{"bad duration", "version: 1\npeer:\n  http_timeout: soon\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.data), 0600); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("Load() should fail")
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Service.Name = "Saved"
	cfg.Peer.HTTPTimeout = 3 * time.Second
	cfg.Monitor.MetricsAddr = "127.0.0.1:9101"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# OSCQuery monitor configuration") {
		t.Error("saved file is missing its header")
	}
	if !strings.Contains(string(data), "http_timeout: 3s") {
		t.Errorf("durations should be written in Go syntax:\n%s", data)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Service.Name != "Saved" || loaded.Peer.HTTPTimeout != 3*time.Second || loaded.Monitor.MetricsAddr != "127.0.0.1:9101" {
		t.Errorf("round trip lost values: %+v", loaded)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"empty name", func(c *Config) { c.Service.Name = " " }, "service.name"},
		{"bad ip", func(c *Config) { c.Service.IP = "not-an-ip" }, "service.ip"},
		{"ipv6 bind", func(c *Config) { c.Service.HTTPBind = "::1" }, "service.http_bind"},
		{"negative workers", func(c *Config) { c.Discovery.Workers = -1 }, "discovery.workers"},
		{"negative refresh", func(c *Config) { c.Monitor.RefreshInterval = -time.Second }, "monitor.refresh_interval"},
		{"bad feed addr", func(c *Config) { c.Monitor.FeedAddr = "9100" }, "monitor.feed_addr"},
		{"unknown level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestServerConfig(t *testing.T) {
	cfg := Default()
	cfg.Service.IP = "192.168.1.20"
	cfg.Service.HTTPBind = ""

	sc, err := cfg.ServerConfig()
	if err != nil {
		t.Fatalf("ServerConfig() error = %v", err)
	}
	if sc.ServiceIP.String() != "192.168.1.20" {
		t.Errorf("ServiceIP = %v", sc.ServiceIP)
	}
	if sc.HTTPBind.IsValid() {
		t.Errorf("empty bind should stay unset for defaults, got %v", sc.HTTPBind)
	}
	if sc.ServiceName != cfg.Service.Name || sc.TargetPrefix != cfg.Discovery.TargetPrefix {
		t.Errorf("ServerConfig() = %+v", sc)
	}

	cfg.Service.IP = "::1"
	if _, err := cfg.ServerConfig(); err == nil {
		t.Error("ServerConfig() should reject IPv6")
	}
}
