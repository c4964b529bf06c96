package config

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		expected *Config
		name     string
		args     []string
		wantErr  bool
	}{
		{
			name: "all flags",
			args: []string{
				"-c", "ignored.json",
				"-backend", "s3", "-owner", "acme", "-codes-repo", "c", "-users-repo", "u",
				"-branch", "main", "-event", "ev.json", "-duration-days", "7", "-dsn", "db",
				"-s3-bucket", "b", "-s3-endpoint", "http://minio", "-log-level", "debug",
				"-log-format", "text", "-retries", "5",
			},
			expected: &Config{
				Backend:             "s3",
				Owner:               "acme",
				CodesRepo:           "c",
				UsersRepo:           "u",
				Branch:              "main",
				EventPath:           "ev.json",
				DefaultDurationDays: 7,
				DatabaseDSN:         "db",
				S3Bucket:            "b",
				S3BaseEndpoint:      "http://minio",
				LogLevel:            "debug",
				LogFormat:           "text",
				MaxRetries:          5,
			},
		},
		{
			name:    "bad int",
			args:    []string{"-duration-days", "week"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{}
			err := parseFlags(config, tt.args)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(tt.expected, config))
		})
	}
}
