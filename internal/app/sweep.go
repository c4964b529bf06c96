package app

import (
	"context"

	"github.com/dmitrijs2005/codekeeper/internal/sweep"
)

// RunSweep replays pending grants and then moves expired users. Either
// failing makes the run fail; a failed reconciliation does not stop the
// sweep.
func (app *App) RunSweep(ctx context.Context) int {
	svc := sweep.NewService(app.store, app.config.Layout(),
		sweep.WithLogger(app.logger),
		sweep.WithBackoff(app.backoff()),
	)

	code := ExitOK

	if _, err := svc.Reconcile(ctx); err != nil {
		app.logger.Error(ctx, "reconciliation failed", "error", err)
		code = ExitFailure
	}

	res, err := svc.Sweep(ctx)
	if err != nil {
		app.logger.Error(ctx, "sweep failed", "error", err)
		return ExitFailure
	}

	app.logger.Info(ctx, "users moved to revoked", "count", len(res.Moved), "users", res.Moved)
	return code
}
