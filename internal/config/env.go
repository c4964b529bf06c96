package config

import (
	"fmt"
	"strconv"
)

// lookupFunc matches os.LookupEnv.
type lookupFunc func(string) (string, bool)

// parseEnv overlays environment variables. Workflow runners hand secrets and
// the event payload location to the process this way.
//
// Token precedence: REDEEM_GITHUB_TOKEN, PRIVATE_REPO_PAT, GITHUB_TOKEN.
func parseEnv(c *Config, lookup lookupFunc) error {
	str := func(dst *string, names ...string) {
		for _, name := range names {
			if v, ok := lookup(name); ok && v != "" {
				*dst = v
				return
			}
		}
	}

	str(&c.Backend, "REDEEM_BACKEND")
	str(&c.Owner, "REDEEM_OWNER", "GITHUB_REPOSITORY_OWNER")
	str(&c.CodesRepo, "REDEEM_CODES_REPO")
	str(&c.UsersRepo, "REDEEM_USERS_REPO")
	str(&c.Branch, "REDEEM_BRANCH")

	str(&c.GitHubAPIURL, "REDEEM_GITHUB_API_URL", "GITHUB_API_URL")
	str(&c.GitHubToken, "REDEEM_GITHUB_TOKEN", "PRIVATE_REPO_PAT", "GITHUB_TOKEN")
	str(&c.GitHubAppPrivateKeyPath, "REDEEM_GITHUB_APP_KEY_PATH")
	str(&c.EventPath, "GITHUB_EVENT_PATH")

	str(&c.HWIDPepper, "REDEEM_HWID_PEPPER")
	str(&c.DatabaseDSN, "REDEEM_DATABASE_DSN")

	str(&c.S3Bucket, "REDEEM_S3_BUCKET")
	str(&c.S3Region, "REDEEM_S3_REGION", "AWS_REGION")
	str(&c.S3BaseEndpoint, "REDEEM_S3_ENDPOINT")
	str(&c.S3AccessKey, "REDEEM_S3_ACCESS_KEY")
	str(&c.S3SecretKey, "REDEEM_S3_SECRET_KEY")

	str(&c.LogLevel, "REDEEM_LOG_LEVEL")
	str(&c.LogFormat, "REDEEM_LOG_FORMAT")

	ints := []struct {
		name string
		set  func(int64)
	}{
		{"REDEEM_GITHUB_APP_ID", func(v int64) { c.GitHubAppID = v }},
		{"REDEEM_GITHUB_INSTALLATION_ID", func(v int64) { c.GitHubInstallationID = v }},
		{"REDEEM_DURATION_DAYS", func(v int64) { c.DefaultDurationDays = int(v) }},
		{"REDEEM_MAX_RETRIES", func(v int64) { c.MaxRetries = int(v) }},
	}
	for _, e := range ints {
		raw, ok := lookup(e.name)
		if !ok || raw == "" {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("env %s: %w", e.name, err)
		}
		e.set(v)
	}

	return nil
}
