// Package app wires configuration, logging, the document store and the
// GitHub client into the redeem and sweep runs.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/codekeeper/internal/buildinfo"
	"github.com/dmitrijs2005/codekeeper/internal/common"
	"github.com/dmitrijs2005/codekeeper/internal/config"
	"github.com/dmitrijs2005/codekeeper/internal/cryptox"
	"github.com/dmitrijs2005/codekeeper/internal/docstore"
	"github.com/dmitrijs2005/codekeeper/internal/docstore/githubstore"
	"github.com/dmitrijs2005/codekeeper/internal/docstore/pgstore"
	"github.com/dmitrijs2005/codekeeper/internal/docstore/s3store"
	"github.com/dmitrijs2005/codekeeper/internal/github"
	"github.com/dmitrijs2005/codekeeper/internal/logging"
	"github.com/google/uuid"
)

// Process exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitConfig  = 2
)

type App struct {
	config *config.Config
	logger logging.Logger
	store  docstore.Store
	// github is nil when no GitHub credentials are configured.
	github *github.Client
	hasher *cryptox.HWIDHasher
	closer io.Closer
}

// NewApp builds the run's dependencies. Logs go to w.
func NewApp(ctx context.Context, c *config.Config, w io.Writer) (*App, error) {
	logger := logging.New(w, c.LogLevel, c.LogFormat).With(
		"run_id", uuid.NewString(),
		"version", buildinfo.Version(),
	)

	app := &App{
		config: c,
		logger: logger,
		hasher: cryptox.NewHWIDHasher(c.HWIDPepper),
	}

	if c.ValidateGitHubAuth() == nil {
		gh, err := newGitHubClient(c, logger)
		if err != nil {
			return nil, err
		}
		app.github = gh
	}

	if err := app.initStore(ctx); err != nil {
		return nil, err
	}

	if c.HWIDPepper == "" {
		logger.Warn(ctx, "hwid pepper is not set, hardware ids are hashed with an empty key")
	}

	return app, nil
}

func (app *App) backoff() docstore.BackoffFunc {
	return docstore.NewBackoff(app.config.RetryBaseDelay, app.config.MaxRetries)
}

func newGitHubClient(c *config.Config, logger logging.Logger) (*github.Client, error) {
	var auth github.TokenSource = github.StaticToken(c.GitHubToken)
	if c.UsesGitHubApp() {
		ts, err := github.NewAppTokenSourceFromFile(c.GitHubAPIURL, c.GitHubAppID, c.GitHubInstallationID, c.GitHubAppPrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrorInvalidConfig, err)
		}
		auth = ts
	}

	return github.NewClient(c.GitHubAPIURL, auth,
		github.WithHTTPClient(&http.Client{Timeout: c.RequestTimeout}),
		github.WithBackoff(docstore.NewBackoff(c.RetryBaseDelay, c.MaxRetries)),
		github.WithLogger(logger),
	), nil
}

func (app *App) initStore(ctx context.Context) error {
	c := app.config

	switch c.Backend {
	case config.BackendGitHub:
		if app.github == nil {
			return fmt.Errorf("%w: the github backend needs github credentials", common.ErrorInvalidConfig)
		}
		app.store = githubstore.New(app.github, c.Owner, c.Branch)
	case config.BackendS3:
		s, err := s3store.New(ctx, s3store.Options{
			Bucket:    c.S3Bucket,
			Region:    c.S3Region,
			Endpoint:  c.S3BaseEndpoint,
			AccessKey: c.S3AccessKey,
			SecretKey: c.S3SecretKey,
			Prefix:    c.S3Prefix,
		})
		if err != nil {
			return fmt.Errorf("s3 init error: %w", err)
		}
		app.store = s
	case config.BackendPostgres:
		s, err := pgstore.Open(ctx, c.DatabaseDSN)
		if err != nil {
			return fmt.Errorf("db init error: %w", err)
		}
		app.store = s
		app.closer = s
	case config.BackendMemory:
		app.store = docstore.NewMemoryStore()
	default:
		return fmt.Errorf("%w: unknown backend %q", common.ErrorInvalidConfig, c.Backend)
	}

	app.logger.Debug(ctx, "document store ready", "backend", c.Backend)
	return nil
}

func (app *App) Close() error {
	if app.closer != nil {
		return app.closer.Close()
	}
	return nil
}

// WithSignals returns a context that is cancelled on SIGINT, SIGTERM or
// SIGQUIT.
func WithSignals(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancelFunc := context.WithCancel(ctx)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		select {
		case <-sigs:
			cancelFunc()
		case <-ctx.Done():
		}
		signal.Stop(sigs)
	}()

	return ctx, cancelFunc
}

// ExitCode maps a setup error to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, common.ErrorInvalidConfig):
		return ExitConfig
	default:
		return ExitFailure
	}
}
