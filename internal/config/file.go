package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/codekeeper/internal/timex"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of a config file. JSON (comments allowed)
// and YAML share the same keys. Empty values leave the current setting alone.
type FileConfig struct {
	Backend string `json:"backend" yaml:"backend"`

	Owner     string `json:"owner" yaml:"owner"`
	CodesRepo string `json:"codes_repo" yaml:"codes_repo"`
	UsersRepo string `json:"users_repo" yaml:"users_repo"`
	Branch    string `json:"branch" yaml:"branch"`

	ActiveCodesPath   string `json:"active_codes_path" yaml:"active_codes_path"`
	ExpiredCodesPath  string `json:"expired_codes_path" yaml:"expired_codes_path"`
	UsersPath         string `json:"users_path" yaml:"users_path"`
	RevokedPath       string `json:"revoked_path" yaml:"revoked_path"`
	PendingGrantsPath string `json:"pending_grants_path" yaml:"pending_grants_path"`

	GitHubAPIURL            string `json:"github_api_url" yaml:"github_api_url"`
	GitHubToken             string `json:"github_token" yaml:"github_token"`
	GitHubAppID             int64  `json:"github_app_id" yaml:"github_app_id"`
	GitHubInstallationID    int64  `json:"github_installation_id" yaml:"github_installation_id"`
	GitHubAppPrivateKeyPath string `json:"github_app_private_key_path" yaml:"github_app_private_key_path"`

	ProcessedLabel string `json:"processed_label" yaml:"processed_label"`
	CloseOnSuccess *bool  `json:"close_on_success" yaml:"close_on_success"`

	DefaultDurationDays int    `json:"default_duration_days" yaml:"default_duration_days"`
	HWIDPepper          string `json:"hwid_pepper" yaml:"hwid_pepper"`

	RequestTimeout timex.Duration `json:"request_timeout" yaml:"request_timeout"`
	MaxRetries     *int           `json:"max_retries" yaml:"max_retries"`
	RetryBaseDelay timex.Duration `json:"retry_base_delay" yaml:"retry_base_delay"`

	S3Bucket       string `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region       string `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint string `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
	S3AccessKey    string `json:"s3_access_key" yaml:"s3_access_key"`
	S3SecretKey    string `json:"s3_secret_key" yaml:"s3_secret_key"`
	S3Prefix       string `json:"s3_prefix" yaml:"s3_prefix"`

	DatabaseDSN string `json:"database_dsn" yaml:"database_dsn"`

	LogLevel  string `json:"log_level" yaml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format"`
}

// parseFile overlays the config file at path onto config. The format is
// picked by extension: .yaml/.yml use YAML, anything else is JSON with
// comments and trailing commas tolerated.
func parseFile(config *Config, path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	fc := &FileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, fc)
	default:
		err = json.Unmarshal(jsonc.ToJSON(data), fc)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	fc.apply(config)
	return nil
}

func (fc *FileConfig) apply(c *Config) {
	setString(&c.Backend, fc.Backend)
	setString(&c.Owner, fc.Owner)
	setString(&c.CodesRepo, fc.CodesRepo)
	setString(&c.UsersRepo, fc.UsersRepo)
	setString(&c.Branch, fc.Branch)

	setString(&c.ActiveCodesPath, fc.ActiveCodesPath)
	setString(&c.ExpiredCodesPath, fc.ExpiredCodesPath)
	setString(&c.UsersPath, fc.UsersPath)
	setString(&c.RevokedPath, fc.RevokedPath)
	setString(&c.PendingGrantsPath, fc.PendingGrantsPath)

	setString(&c.GitHubAPIURL, fc.GitHubAPIURL)
	setString(&c.GitHubToken, fc.GitHubToken)
	if fc.GitHubAppID != 0 {
		c.GitHubAppID = fc.GitHubAppID
	}
	if fc.GitHubInstallationID != 0 {
		c.GitHubInstallationID = fc.GitHubInstallationID
	}
	setString(&c.GitHubAppPrivateKeyPath, fc.GitHubAppPrivateKeyPath)

	setString(&c.ProcessedLabel, fc.ProcessedLabel)
	if fc.CloseOnSuccess != nil {
		c.CloseOnSuccess = *fc.CloseOnSuccess
	}

	if fc.DefaultDurationDays != 0 {
		c.DefaultDurationDays = fc.DefaultDurationDays
	}
	setString(&c.HWIDPepper, fc.HWIDPepper)

	if fc.RequestTimeout.Duration != 0 {
		c.RequestTimeout = fc.RequestTimeout.Duration
	}
	if fc.MaxRetries != nil {
		c.MaxRetries = *fc.MaxRetries
	}
	if fc.RetryBaseDelay.Duration != 0 {
		c.RetryBaseDelay = fc.RetryBaseDelay.Duration
	}

	setString(&c.S3Bucket, fc.S3Bucket)
	setString(&c.S3Region, fc.S3Region)
	setString(&c.S3BaseEndpoint, fc.S3BaseEndpoint)
	setString(&c.S3AccessKey, fc.S3AccessKey)
	setString(&c.S3SecretKey, fc.S3SecretKey)
	setString(&c.S3Prefix, fc.S3Prefix)

	setString(&c.DatabaseDSN, fc.DatabaseDSN)

	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.LogFormat, fc.LogFormat)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
