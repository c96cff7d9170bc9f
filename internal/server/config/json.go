package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/aurachat/internal/flagx"
	"github.com/dmitrijs2005/aurachat/internal/timex"
)

// JsonConfig is the DTO used for reading JSON configuration files. Interval
// fields use timex.Duration so both "10s" strings and integer nanoseconds
// parse. After unmarshalling, values are copied into the runtime Config.
type JsonConfig struct {
	BindAddr       string         `json:"bind_addr"`
	DiscoveryPort  int            `json:"discovery_port"`
	DiscoveryToken string         `json:"discovery_token"`
	DatabaseDSN    string         `json:"database_dsn"`
	UsersFile      string         `json:"users_file"`
	LogDir         string         `json:"log_dir"`
	IdleTimeout    timex.Duration `json:"idle_timeout"`
	ReadyTimeout   timex.Duration `json:"ready_timeout"`
	S3RootUser     string         `json:"s3_root_user"`
	S3RootPassword string         `json:"s3_root_password"`
	S3Bucket       string         `json:"s3_bucket"`
	S3Region       string         `json:"s3_region"`
	S3BaseEndpoint string         `json:"s3_base_endpoint"`
}

// parseJson overlays values from the JSON file named by -c/-config, when
// given. A missing flag means no overlay; an unreadable or invalid file is a
// startup failure and panics.
func parseJson(config *Config) {
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

	if c.BindAddr != "" {
		config.BindAddr = c.BindAddr
	}
	if c.DiscoveryPort != 0 {
		config.DiscoveryPort = c.DiscoveryPort
	}
	if c.DiscoveryToken != "" {
		config.DiscoveryToken = c.DiscoveryToken
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.UsersFile != "" {
		config.UsersFile = c.UsersFile
	}
	if c.LogDir != "" {
		config.LogDir = c.LogDir
	}
	if c.IdleTimeout.Duration != 0 {
		config.IdleTimeout = c.IdleTimeout.Duration
	}
	if c.ReadyTimeout.Duration != 0 {
		config.ReadyTimeout = c.ReadyTimeout.Duration
	}
	if c.S3RootUser != "" {
		config.S3RootUser = c.S3RootUser
	}
	if c.S3RootPassword != "" {
		config.S3RootPassword = c.S3RootPassword
	}
	if c.S3Bucket != "" {
		config.S3Bucket = c.S3Bucket
	}
	if c.S3Region != "" {
		config.S3Region = c.S3Region
	}
	if c.S3BaseEndpoint != "" {
		config.S3BaseEndpoint = c.S3BaseEndpoint
	}
}
