package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/crosspost/internal/flagx"
)

// serverFlags are the flags parseFlags recognizes; anything else on the
// command line belongs to another parser.
var serverFlags = []string{"-a", "-d", "-k", "-s", "-m", "-n", "-l"}

// parseFlags populates selected Config fields from command-line flags.
//
//	-a string   HTTP bind address (e.g. ":8080")
//	-d string   PostgreSQL DSN
//	-k string   credential vault secret
//	-s string   JWT HMAC secret
//	-m string   media backend (local|s3)
//	-n int      publish concurrency
//	-l string   log level
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], serverFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.VaultSecret, "k", config.VaultSecret, "credential vault secret")
	fs.StringVar(&config.JWTSecret, "s", config.JWTSecret, "jwt secret key")
	fs.StringVar(&config.MediaBackend, "m", config.MediaBackend, "media backend (local|s3)")
	fs.IntVar(&config.PublishConcurrency, "n", config.PublishConcurrency, "variants delivered in parallel per item")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
