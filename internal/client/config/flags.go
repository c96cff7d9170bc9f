package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/aurachat/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   address and port of the server (empty = discover)
//	-y int      UDP discovery port
//	-k string   discovery token
//	-t int      discovery timeout in seconds
//	-x string   directory for received exports
//
// Args are first filtered with flagx.FilterArgs so flags owned by other
// components do not trip the FlagSet.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-y", "-k", "-t", "-x"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerAddr, "a", cfg.ServerAddr, "address and port to access server")
	fs.IntVar(&cfg.DiscoveryPort, "y", cfg.DiscoveryPort, "UDP discovery port")
	fs.StringVar(&cfg.DiscoveryToken, "k", cfg.DiscoveryToken, "discovery token")
	discoveryTimeout := fs.Int("t", int(cfg.DiscoveryTimeout.Seconds()), "discovery timeout (in seconds)")
	fs.StringVar(&cfg.ExportDir, "x", cfg.ExportDir, "directory for received exports")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.DiscoveryTimeout = time.Duration(*discoveryTimeout) * time.Second
}
