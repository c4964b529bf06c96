// Package config handles configuration for the redeem and sweep commands,
// including defaults, a config file overlay, environment variables and
// command-line flags.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/codekeeper/internal/common"
	"github.com/dmitrijs2005/codekeeper/internal/flagx"
)

// Store backends.
const (
	BackendGitHub   = "github"
	BackendS3       = "s3"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds runtime settings shared by both commands.
//
// Fields:
//   - Backend: which document store to use (github, s3, postgres, memory).
//   - Owner / CodesRepo / UsersRepo / Branch: where the documents live. For the
//     s3 and postgres backends the repo names become key prefixes / columns.
//   - *Path: document paths inside the repositories.
//   - GitHub*: API endpoint and credentials (PAT, or App id + installation +
//     private key). Also used for issue replies.
//   - HWIDPepper: secret mixed into hardware-id hashes.
//   - MaxRetries / RetryBaseDelay: bounded backoff for transient failures and
//     append-only rebases.
type Config struct {
	Backend string

	Owner     string
	CodesRepo string
	UsersRepo string
	Branch    string

	ActiveCodesPath   string
	ExpiredCodesPath  string
	UsersPath         string
	RevokedPath       string
	PendingGrantsPath string

	GitHubAPIURL            string
	GitHubToken             string
	GitHubAppID             int64
	GitHubInstallationID    int64
	GitHubAppPrivateKeyPath string
	EventPath               string

	ProcessedLabel string
	CloseOnSuccess bool

	DefaultDurationDays int
	HWIDPepper          string

	RequestTimeout time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration

	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string
	S3AccessKey    string
	S3SecretKey    string
	S3Prefix       string

	DatabaseDSN string

	LogLevel  string
	LogFormat string
}

// LoadDefaults populates Config with defaults matching the original
// repository layout (codes / users repositories on GitHub).
func (c *Config) LoadDefaults() {
	c.Backend = BackendGitHub
	c.CodesRepo = "codes"
	c.UsersRepo = "users"

	c.ActiveCodesPath = common.DefaultActiveCodesPath
	c.ExpiredCodesPath = common.DefaultExpiredCodesPath
	c.UsersPath = common.DefaultUsersPath
	c.RevokedPath = common.DefaultRevokedPath
	c.PendingGrantsPath = common.DefaultPendingGrantsPath

	c.GitHubAPIURL = "https://api.github.com"

	c.ProcessedLabel = common.DefaultProcessedLabel
	c.CloseOnSuccess = true

	c.DefaultDurationDays = common.DefaultDurationDays

	c.RequestTimeout = 30 * time.Second
	c.MaxRetries = 3
	c.RetryBaseDelay = 500 * time.Millisecond

	c.S3Region = "us-east-1"

	c.LogLevel = "info"
	c.LogFormat = "auto"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional config file, the environment and finally command-line
// flags taken from args (usually os.Args[1:]).
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseFile(cfg, flagx.ConfigPath(args)); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings the selected backend cannot work without.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendGitHub:
		if c.Owner == "" {
			return fmt.Errorf("%w: owner is required for the github backend", common.ErrorInvalidConfig)
		}
		if err := c.ValidateGitHubAuth(); err != nil {
			return err
		}
	case BackendS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("%w: s3 bucket is required", common.ErrorInvalidConfig)
		}
	case BackendPostgres:
		if c.DatabaseDSN == "" {
			return fmt.Errorf("%w: database dsn is required", common.ErrorInvalidConfig)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("%w: unknown backend %q", common.ErrorInvalidConfig, c.Backend)
	}

	if c.CodesRepo == "" || c.UsersRepo == "" {
		return fmt.Errorf("%w: codes and users repositories are required", common.ErrorInvalidConfig)
	}
	if c.DefaultDurationDays <= 0 {
		return fmt.Errorf("%w: default duration must be positive", common.ErrorInvalidConfig)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries must not be negative", common.ErrorInvalidConfig)
	}
	return nil
}

// ValidateGitHubAuth checks that either a token or a complete GitHub App
// identity is configured.
func (c *Config) ValidateGitHubAuth() error {
	if c.GitHubToken != "" {
		return nil
	}
	if c.GitHubAppID != 0 && c.GitHubInstallationID != 0 && c.GitHubAppPrivateKeyPath != "" {
		return nil
	}
	return fmt.Errorf("%w: github token or app credentials are required", common.ErrorInvalidConfig)
}

// UsesGitHubApp reports whether App authentication should be used instead of
// a static token.
func (c *Config) UsesGitHubApp() bool {
	return c.GitHubToken == "" && c.GitHubAppID != 0
}
