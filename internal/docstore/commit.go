package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/codekeeper/internal/common"
	"github.com/dmitrijs2005/codekeeper/internal/logging"
	"github.com/sethvargo/go-retry"
)

// Policy says what a failed write means for the rest of a commit sequence.
type Policy int

const (
	// Critical writes abort the sequence on failure.
	Critical Policy = iota
	// Advisory writes are logged on failure and the sequence continues.
	Advisory
)

func (p Policy) String() string {
	if p == Advisory {
		return "advisory"
	}
	return "critical"
}

// Step is one write in a commit sequence.
type Step struct {
	Name   string
	Policy Policy
	Run    func(ctx context.Context) error
}

// CommitError reports the critical step that stopped a sequence.
type CommitError struct {
	Step string
	Err  error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit step %q: %v", e.Step, e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}

// Commit runs steps in order. The first critical failure stops the sequence
// and is returned as a *CommitError; advisory failures are logged and
// skipped.
func Commit(ctx context.Context, log logging.Logger, steps ...Step) error {
	for _, s := range steps {
		err := s.Run(ctx)
		if err == nil {
			log.Debug(ctx, "commit step done", "step", s.Name)
			continue
		}

		if s.Policy == Advisory {
			log.Warn(ctx, "advisory commit step failed", "step", s.Name, "error", err)
			continue
		}
		return &CommitError{Step: s.Name, Err: err}
	}
	return nil
}

// BackoffFunc returns a fresh backoff for one retried operation.
type BackoffFunc func() retry.Backoff

// NewBackoff returns exponential backoff starting at base with at most
// maxRetries retries. maxRetries == 0 disables retrying.
func NewBackoff(base time.Duration, maxRetries int) BackoffFunc {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	return func() retry.Backoff {
		b := retry.NewExponential(base)
		b = retry.WithJitterPercent(10, b)
		b = retry.WithCappedDuration(10*time.Second, b)
		return retry.WithMaxRetries(uint64(maxRetries), b)
	}
}

// ErrUnchanged may be returned by a mutate function to skip the write.
var ErrUnchanged = errors.New("document unchanged")

// Rebase applies mutate to d and saves it. On a version conflict the
// document is reloaded and mutate is applied again to the fresh value, up to
// the limit of the backoff. mutate must therefore be safe to run against any
// version of the document, e.g. an append with de-duplication.
//
// d must hold the unmodified value it was loaded with.
func Rebase[T any](ctx context.Context, s Store, d *Doc[T], backoff BackoffFunc, message string, mutate func(*T) error) error {
	first := true

	return retry.Do(ctx, backoff(), func(ctx context.Context) error {
		if !first {
			fresh, err := Load[T](ctx, s, d.Location, true)
			if err != nil {
				return err
			}
			*d = *fresh
		}
		first = false

		if err := mutate(&d.Value); err != nil {
			if errors.Is(err, ErrUnchanged) {
				return nil
			}
			return err
		}

		err := d.Save(ctx, s, message)
		if errors.Is(err, common.ErrVersionConflict) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// Update loads the document at loc (missing documents start empty) and
// rebases mutate onto it.
func Update[T any](ctx context.Context, s Store, loc Location, backoff BackoffFunc, message string, mutate func(*T) error) (*Doc[T], error) {
	d, err := Load[T](ctx, s, loc, true)
	if err != nil {
		return nil, err
	}
	if err := Rebase(ctx, s, d, backoff, message, mutate); err != nil {
		return nil, err
	}
	return d, nil
}
