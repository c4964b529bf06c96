package app

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/codekeeper/internal/issue"
	"github.com/dmitrijs2005/codekeeper/internal/redeem"
)

var errUnsupportedAction = errors.New("unsupported action")

// RunRedeem handles the issue event at config.EventPath and returns the
// process exit code. Every handled request gets exactly one reply; the
// run fails only when the reply cannot be posted or a grant is left
// half written or unconfirmed.
func (app *App) RunRedeem(ctx context.Context) int {
	if app.github == nil {
		app.logger.Error(ctx, "replying on issues needs github credentials")
		return ExitConfig
	}

	ev, err := issue.LoadEvent(app.config.EventPath)
	if err != nil {
		app.logger.Error(ctx, "cannot load issue event", "error", err)
		return ExitFailure
	}

	ticket := issue.NewTicket(app.github, ev)
	log := app.logger.With("issue", ticket.String())

	if label := app.config.ProcessedLabel; label != "" && ev.Issue.HasLabel(label) {
		log.Info(ctx, "issue already processed, skipping", "label", label)
		return ExitOK
	}

	req := issue.ParseRequest(ev.Issue.Body)

	var (
		grant *redeem.Grant
		msg   string
	)
	if !req.Supported() {
		log.Info(ctx, "unsupported action", "action", req.Action)
		msg = redeem.MsgUnsupportedAction
		err = errUnsupportedAction
	} else {
		svc := redeem.NewService(app.store, app.config.Layout(), app.hasher,
			redeem.WithLogger(log),
			redeem.WithBackoff(app.backoff()),
			redeem.WithDefaultDurationDays(app.config.DefaultDurationDays),
		)
		grant, err = svc.Redeem(ctx, redeem.Request{Username: req.Username, HWID: req.HWID, Code: req.Code})
		msg = redeem.Message(grant, err)
	}

	code := ExitOK
	if errors.Is(err, redeem.ErrPartialGrant) || errors.Is(err, redeem.ErrOutcomeUnknown) {
		code = ExitFailure
	}

	if rerr := ticket.Reply(ctx, msg); rerr != nil {
		log.Error(ctx, "cannot post reply", "error", rerr, "reply", msg)
		return ExitFailure
	}

	if grant != nil {
		if rerr := ticket.Resolve(ctx, app.config.ProcessedLabel, app.config.CloseOnSuccess); rerr != nil {
			log.Warn(ctx, "cannot label or close issue", "error", rerr)
		}
	}

	log.Info(ctx, "request handled", "outcome", outcome(err), "exit_code", code)
	return code
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "granted"
	case errors.Is(err, errUnsupportedAction):
		return "unsupported_action"
	case errors.Is(err, redeem.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, redeem.ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, redeem.ErrCodeInvalidOrUsed):
		return "code_invalid_or_used"
	case errors.Is(err, redeem.ErrCodeExpired):
		return "code_expired"
	case errors.Is(err, redeem.ErrConflict):
		return "conflict"
	case errors.Is(err, redeem.ErrPartialGrant):
		return "partial_grant"
	case errors.Is(err, redeem.ErrOutcomeUnknown):
		return "outcome_unknown"
	default:
		return "rejected"
	}
}
