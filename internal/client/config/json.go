package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/aurachat/internal/flagx"
	"github.com/dmitrijs2005/aurachat/internal/timex"
)

// JsonConfig is the DTO used for reading JSON configuration files. Interval
// fields use timex.Duration so both "5s" strings and integer nanoseconds
// parse. After unmarshalling, values are copied into the runtime Config.
type JsonConfig struct {
	ServerAddr        string         `json:"server_addr"`
	DiscoveryPort     int            `json:"discovery_port"`
	DiscoveryToken    string         `json:"discovery_token"`
	DiscoveryTimeout  timex.Duration `json:"discovery_timeout"`
	DiscoveryInterval timex.Duration `json:"discovery_interval"`
	ExportDir         string         `json:"export_dir"`
}

// parseJson overlays values from the JSON file named by -c/-config, when
// given. A missing flag means no overlay; an unreadable or invalid file is a
// startup failure and panics.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.ServerAddr != "" {
		cfg.ServerAddr = c.ServerAddr
	}
	if c.DiscoveryPort != 0 {
		cfg.DiscoveryPort = c.DiscoveryPort
	}
	if c.DiscoveryToken != "" {
		cfg.DiscoveryToken = c.DiscoveryToken
	}
	if c.DiscoveryTimeout.Duration != 0 {
		cfg.DiscoveryTimeout = c.DiscoveryTimeout.Duration
	}
	if c.DiscoveryInterval.Duration != 0 {
		cfg.DiscoveryInterval = c.DiscoveryInterval.Duration
	}
	if c.ExportDir != "" {
		cfg.ExportDir = c.ExportDir
	}
}
