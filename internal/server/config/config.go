// Package config handles configuration for the server component,
// including defaults, JSON overlay, and command-line flags.
package config

import "time"

// Config holds runtime settings for the AuraChat server.
//
// Fields:
//   - BindAddr: TCP bind address for the command endpoint.
//   - DiscoveryPort: UDP port the discovery responder listens on.
//   - DiscoveryToken: shared constant filtering discovery probes.
//   - DatabaseDSN: when set, user records live in Postgres (pgx); otherwise
//     in the JSON file at UsersFile.
//   - UsersFile: path of the JSON credential store.
//   - LogDir: directory holding the XML audit logs.
//   - IdleTimeout: command-loop read timeout; zero disables it.
//   - ReadyTimeout: how long a file transfer waits for the READY ack.
//   - S3RootUser / S3RootPassword / S3Bucket / S3Region / S3BaseEndpoint:
//     optional S3-compatible target for audit log archiving on shutdown;
//     archiving stays disabled until both credentials are set.
type Config struct {
	BindAddr       string
	DiscoveryPort  int
	DiscoveryToken string
	DatabaseDSN    string
	UsersFile      string
	LogDir         string
	IdleTimeout    time.Duration
	ReadyTimeout   time.Duration
	S3RootUser     string
	S3RootPassword string
	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.BindAddr = ":12345"
	c.DiscoveryPort = 9999
	c.DiscoveryToken = "AURACHAT"
	c.DatabaseDSN = ""
	c.UsersFile = "config/users.json"
	c.LogDir = "logs"
	c.IdleTimeout = 0
	c.ReadyTimeout = 10 * time.Second
	c.S3RootUser = ""
	c.S3RootPassword = ""
	c.S3Bucket = "aurachat-logs"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = ""
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
