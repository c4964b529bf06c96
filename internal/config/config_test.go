package config

import (
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/codekeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, BackendGitHub, c.Backend)
	assert.Equal(t, "codes", c.CodesRepo)
	assert.Equal(t, "users", c.UsersRepo)
	assert.Equal(t, "active_codes.json", c.ActiveCodesPath)
	assert.Equal(t, "expired_codes.json", c.ExpiredCodesPath)
	assert.Equal(t, "users.json", c.UsersPath)
	assert.Equal(t, "revoked.json", c.RevokedPath)
	assert.Equal(t, "pending_grants.json", c.PendingGrantsPath)
	assert.Equal(t, "https://api.github.com", c.GitHubAPIURL)
	assert.Equal(t, "processed", c.ProcessedLabel)
	assert.True(t, c.CloseOnSuccess)
	assert.Equal(t, 30, c.DefaultDurationDays)
	assert.Equal(t, 30*time.Second, c.RequestTimeout)
	assert.Equal(t, 3, c.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, c.RetryBaseDelay)
}

func TestLoadConfig_Precedence(t *testing.T) {
	path := writeTempFile(t, "cfg.json", `{
		// owner comes from the file, backend is overridden by env, users repo by flags
		"owner": "file-owner",
		"backend": "s3",
		"users_repo": "file-users",
		"s3_bucket": "bucket",
	}`)

	t.Setenv("REDEEM_CONFIG", "")
	t.Setenv("REDEEM_BACKEND", "memory")
	t.Setenv("PRIVATE_REPO_PAT", "pat")
	t.Setenv("REDEEM_GITHUB_TOKEN", "")
	t.Setenv("REDEEM_OWNER", "")
	t.Setenv("GITHUB_REPOSITORY_OWNER", "")
	t.Setenv("REDEEM_USERS_REPO", "")

	cfg, err := LoadConfig([]string{"-c", path, "-users-repo", "flag-users"})
	require.NoError(t, err)

	assert.Equal(t, "file-owner", cfg.Owner)
	assert.Equal(t, BackendMemory, cfg.Backend)
	assert.Equal(t, "flag-users", cfg.UsersRepo)
	assert.Equal(t, "bucket", cfg.S3Bucket)
	assert.Equal(t, "pat", cfg.GitHubToken)
	assert.Equal(t, "codes", cfg.CodesRepo)
}

func TestLoadConfig_BadFile(t *testing.T) {
	t.Setenv("REDEEM_CONFIG", "")
	_, err := LoadConfig([]string{"-c", "/does/not/exist.json"})
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		c := &Config{}
		c.LoadDefaults()
		c.Owner = "acme"
		c.GitHubToken = "t"
		return c
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "github with token", mutate: func(c *Config) {}},
		{name: "github without owner", mutate: func(c *Config) { c.Owner = "" }, wantErr: true},
		{name: "github without auth", mutate: func(c *Config) { c.GitHubToken = "" }, wantErr: true},
		{name: "github app auth", mutate: func(c *Config) {
			c.GitHubToken = ""
			c.GitHubAppID = 1
			c.GitHubInstallationID = 2
			c.GitHubAppPrivateKeyPath = "key.pem"
		}},
		{name: "s3 without bucket", mutate: func(c *Config) { c.Backend = BackendS3 }, wantErr: true},
		{name: "s3 with bucket", mutate: func(c *Config) { c.Backend = BackendS3; c.S3Bucket = "b" }},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Backend = BackendPostgres }, wantErr: true},
		{name: "memory", mutate: func(c *Config) { c.Backend = BackendMemory; c.Owner = "" }},
		{name: "unknown backend", mutate: func(c *Config) { c.Backend = "ftp" }, wantErr: true},
		{name: "zero duration", mutate: func(c *Config) { c.DefaultDurationDays = 0 }, wantErr: true},
		{name: "negative retries", mutate: func(c *Config) { c.MaxRetries = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, common.ErrorInvalidConfig))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestUsesGitHubApp(t *testing.T) {
	c := &Config{GitHubAppID: 7}
	assert.True(t, c.UsesGitHubApp())

	c.GitHubToken = "pat"
	assert.False(t, c.UsesGitHubApp())
}

func TestConfig_Layout(t *testing.T) {
	c := &Config{}
	c.LoadDefaults()
	c.CodesRepo = "private-codes"
	c.UsersPath = "data/users.json"

	l := c.Layout()
	assert.Equal(t, "private-codes/active_codes.json", l.ActiveCodes.String())
	assert.Equal(t, "private-codes/expired_codes.json", l.ExpiredCodes.String())
	assert.Equal(t, "users/data/users.json", l.Users.String())
	assert.Equal(t, "users/revoked.json", l.Revoked.String())
	assert.Equal(t, "users/pending_grants.json", l.PendingGrants.String())

	assert.Equal(t, "codes/active_codes.json", DefaultLayout().ActiveCodes.String())
}
