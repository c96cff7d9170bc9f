// Package config handles configuration for the AuraChat CLI client,
// including defaults, JSON overlay, and command-line flags.
package config

import "time"

// Config holds runtime settings for the AuraChat client.
//
// Fields:
//   - ServerAddr: host:port of the server; when empty the client locates a
//     server via UDP discovery first and falls back to asking the user.
//   - DiscoveryPort: UDP port probed on the local network.
//   - DiscoveryToken: shared constant both sides embed in the exchange.
//   - DiscoveryTimeout: total time spent probing before giving up.
//   - DiscoveryInterval: delay between consecutive probes.
//   - ExportDir: directory where received log exports are written.
type Config struct {
	ServerAddr        string
	DiscoveryPort     int
	DiscoveryToken    string
	DiscoveryTimeout  time.Duration
	DiscoveryInterval time.Duration
	ExportDir         string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerAddr = ""
	c.DiscoveryPort = 9999
	c.DiscoveryToken = "AURACHAT"
	c.DiscoveryTimeout = 5 * time.Second
	c.DiscoveryInterval = 1 * time.Second
	c.ExportDir = "export"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
