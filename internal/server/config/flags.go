package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/aurachat/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   TCP bind address (e.g., ":12345")
//	-y int      UDP discovery port
//	-k string   discovery token
//	-d string   PostgreSQL DSN (empty = JSON credential store)
//	-f string   JSON credential store path
//	-l string   audit log directory
//	-i int      idle timeout, seconds (0 disables)
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (empty disables archiving)
//
// Args are first filtered with flagx.FilterArgs so flags owned by other
// components do not trip the FlagSet.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:],
		[]string{"-a", "-y", "-k", "-d", "-f", "-l", "-i", "-u", "-p", "-b", "-g", "-e"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.BindAddr, "a", config.BindAddr, "TCP bind address")
	fs.IntVar(&config.DiscoveryPort, "y", config.DiscoveryPort, "UDP discovery port")
	fs.StringVar(&config.DiscoveryToken, "k", config.DiscoveryToken, "discovery token")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.UsersFile, "f", config.UsersFile, "JSON credential store path")
	fs.StringVar(&config.LogDir, "l", config.LogDir, "audit log directory")

	idleTimeout := fs.Int("i", int(config.IdleTimeout.Seconds()), "idle timeout (in seconds)")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.IdleTimeout = time.Duration(*idleTimeout) * time.Second
}
