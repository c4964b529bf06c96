package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/codekeeper/internal/flagx"
)

var knownFlags = []string{
	"-backend", "-owner", "-codes-repo", "-users-repo", "-branch",
	"-event", "-duration-days", "-dsn", "-s3-bucket", "-s3-endpoint",
	"-log-level", "-log-format", "-retries",
}

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-backend string        document store backend
//	-owner string          repository owner
//	-codes-repo string     repository holding the code documents
//	-users-repo string     repository holding the user documents
//	-branch string         branch to read and commit to
//	-event string          path to the issue event payload
//	-duration-days int     default grant length in days
//	-dsn string            PostgreSQL DSN
//	-s3-bucket string      S3 bucket
//	-s3-endpoint string    S3 base endpoint
//	-log-level string      debug, info, warn, error
//	-log-format string     auto, json, text
//	-retries int           retry cap for transient failures
//
// Arguments not listed above (e.g. -c) are filtered out before parsing.
func parseFlags(config *Config, args []string) error {
	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.Backend, "backend", config.Backend, "document store backend")
	fs.StringVar(&config.Owner, "owner", config.Owner, "repository owner")
	fs.StringVar(&config.CodesRepo, "codes-repo", config.CodesRepo, "codes repository")
	fs.StringVar(&config.UsersRepo, "users-repo", config.UsersRepo, "users repository")
	fs.StringVar(&config.Branch, "branch", config.Branch, "branch")
	fs.StringVar(&config.EventPath, "event", config.EventPath, "issue event payload path")
	fs.IntVar(&config.DefaultDurationDays, "duration-days", config.DefaultDurationDays, "default grant length in days")
	fs.StringVar(&config.DatabaseDSN, "dsn", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.S3Bucket, "s3-bucket", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3BaseEndpoint, "s3-endpoint", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level")
	fs.StringVar(&config.LogFormat, "log-format", config.LogFormat, "log format")
	fs.IntVar(&config.MaxRetries, "retries", config.MaxRetries, "retry cap")

	if err := fs.Parse(flagx.FilterArgs(args, knownFlags)); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	return nil
}
