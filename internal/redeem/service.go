// Package redeem turns one redeem request into a consumed code and a user
// grant, using conditional writes against the document store.
package redeem

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/codekeeper/internal/common"
	"github.com/dmitrijs2005/codekeeper/internal/config"
	"github.com/dmitrijs2005/codekeeper/internal/cryptox"
	"github.com/dmitrijs2005/codekeeper/internal/docstore"
	"github.com/dmitrijs2005/codekeeper/internal/logging"
	"github.com/dmitrijs2005/codekeeper/internal/models"
	"github.com/google/uuid"
)

// Commit step names.
const (
	StepRecordPending = "record pending grant"
	StepConsumeCode   = "consume code"
	StepArchiveCode   = "archive used code"
	StepGrantUser     = "grant user"
	StepClearPending  = "clear pending grant"
)

type Request struct {
	Username string
	HWID     string
	Code     string
}

func (r Request) trimmed() Request {
	return Request{
		Username: strings.TrimSpace(r.Username),
		HWID:     strings.TrimSpace(r.HWID),
		Code:     strings.TrimSpace(r.Code),
	}
}

// Grant describes a successful redemption.
type Grant struct {
	ID            string
	Username      string
	Code          string
	RedeemedAt    time.Time
	GrantedExpiry time.Time
}

type Service struct {
	store       docstore.Store
	layout      config.Layout
	hasher      *cryptox.HWIDHasher
	log         logging.Logger
	backoff     docstore.BackoffFunc
	now         func() time.Time
	newID       func() string
	defaultDays int
}

type Option func(*Service)

func WithLogger(l logging.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithBackoff sets the retry policy for the append-only writes. The code
// consumption write is never retried.
func WithBackoff(b docstore.BackoffFunc) Option {
	return func(s *Service) { s.backoff = b }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(f func() string) Option {
	return func(s *Service) { s.newID = f }
}

func WithDefaultDurationDays(days int) Option {
	return func(s *Service) { s.defaultDays = days }
}

func NewService(store docstore.Store, layout config.Layout, hasher *cryptox.HWIDHasher, opts ...Option) *Service {
	s := &Service{
		store:       store,
		layout:      layout,
		hasher:      hasher,
		log:         logging.Nop(),
		backoff:     docstore.NewBackoff(500*time.Millisecond, 3),
		now:         time.Now,
		newID:       uuid.NewString,
		defaultDays: common.DefaultDurationDays,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Redeem validates req against the active codes and, if the code can be
// used, commits in order: the pending grant, the active codes without the
// code, the used code record, the user grant, and the removal of the pending
// grant. Errors wrap one of the package's outcome errors.
func (s *Service) Redeem(ctx context.Context, req Request) (*Grant, error) {
	req = req.trimmed()
	if req.Username == "" || req.HWID == "" || req.Code == "" {
		return nil, ErrInvalidInput
	}

	log := s.log.With("username", req.Username, "code", req.Code)
	now := s.now().UTC()

	codes, err := docstore.Load[models.CodesDocument](ctx, s.store, s.layout.ActiveCodes, false)
	if err != nil {
		log.Error(ctx, "cannot read active codes", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	i := codes.Value.FindUnused(req.Code)
	if i < 0 {
		log.Info(ctx, "code not found among active codes")
		return nil, ErrCodeInvalidOrUsed
	}

	entry := codes.Value.Codes[i]
	expiry, ok := entry.GrantExpiry(now, s.defaultDays)
	if !ok {
		log.Info(ctx, "code is past its expiry", "expiry", expiry)
		return nil, ErrCodeExpired
	}

	hwid := s.hasher.Hash(req.HWID)
	used := entry.Consume(req.Username, hwid, now, expiry)
	codes.Value.Remove(i)

	pending := models.PendingGrant{
		ID:            s.newID(),
		Username:      req.Username,
		HWID:          hwid,
		Code:          entry.Code,
		RedeemedAt:    now,
		GrantedExpiry: expiry,
	}
	log = log.With("grant_id", pending.ID)

	err = docstore.Commit(ctx, log,
		docstore.Step{Name: StepRecordPending, Policy: docstore.Critical, Run: func(ctx context.Context) error {
			return s.recordPending(ctx, pending)
		}},
		docstore.Step{Name: StepConsumeCode, Policy: docstore.Critical, Run: func(ctx context.Context) error {
			return s.consume(ctx, codes, entry.Code)
		}},
		docstore.Step{Name: StepArchiveCode, Policy: docstore.Advisory, Run: func(ctx context.Context) error {
			return s.archive(ctx, used)
		}},
		docstore.Step{Name: StepGrantUser, Policy: docstore.Critical, Run: func(ctx context.Context) error {
			return s.grantUser(ctx, pending)
		}},
		docstore.Step{Name: StepClearPending, Policy: docstore.Advisory, Run: func(ctx context.Context) error {
			return s.clearPending(ctx, pending)
		}},
	)
	if err != nil {
		var ce *docstore.CommitError
		if errors.As(err, &ce) && ce.Step == StepConsumeCode && !errors.Is(err, ErrOutcomeUnknown) {
			// the store rejected the write, so the intent must not be replayed
			if cerr := s.clearPending(ctx, pending); cerr != nil {
				log.Warn(ctx, "cannot clear pending grant after failed consumption", "error", cerr)
			}
		}
		switch {
		case errors.Is(err, ErrPartialGrant):
			log.Error(ctx, "code consumed but user grant failed, left for reconciliation", "error", err)
		case errors.Is(err, ErrOutcomeUnknown):
			log.Error(ctx, "code consumption not confirmed, left for reconciliation", "error", err)
		default:
			log.Warn(ctx, "redeem not committed", "error", err)
		}
		return nil, err
	}

	log.Info(ctx, "code redeemed", "granted_expiry", expiry)

	return &Grant{
		ID:            pending.ID,
		Username:      req.Username,
		Code:          entry.Code,
		RedeemedAt:    now,
		GrantedExpiry: expiry,
	}, nil
}

func (s *Service) recordPending(ctx context.Context, p models.PendingGrant) error {
	_, err := docstore.Update(ctx, s.store, s.layout.PendingGrants, s.backoff,
		"Record pending grant for "+p.Code,
		func(d *models.PendingGrantsDocument) error {
			d.Add(p)
			return nil
		})
	if err == nil {
		return nil
	}
	if errors.Is(err, common.ErrVersionConflict) {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

// consume writes the active codes without the consumed entry, conditional on
// the version they were read at. The write is sent once. A conflict is a
// definite rejection, and the codes are read again to tell a lost race for
// this code from an unrelated concurrent change. Any other failure leaves
// the outcome unknown.
func (s *Service) consume(ctx context.Context, codes *docstore.Doc[models.CodesDocument], code string) error {
	err := codes.Save(ctx, s.store, fmt.Sprintf("Mark %s used", code))
	if err == nil {
		return nil
	}
	if !errors.Is(err, common.ErrVersionConflict) {
		return fmt.Errorf("%w: %w", ErrOutcomeUnknown, err)
	}

	fresh, rerr := docstore.Load[models.CodesDocument](ctx, s.store, codes.Location, false)
	if rerr == nil && fresh.Value.FindUnused(code) < 0 {
		return fmt.Errorf("%w: %w", ErrCodeInvalidOrUsed, err)
	}
	return fmt.Errorf("%w: %w", ErrConflict, err)
}

func (s *Service) archive(ctx context.Context, used models.UsedCode) error {
	_, err := docstore.Update(ctx, s.store, s.layout.ExpiredCodes, s.backoff,
		"Add expired "+used.Code,
		func(d *models.ExpiredCodesDocument) error {
			if !d.Add(used) {
				return docstore.ErrUnchanged
			}
			return nil
		})
	return err
}

func (s *Service) grantUser(ctx context.Context, p models.PendingGrant) error {
	_, err := docstore.Update(ctx, s.store, s.layout.Users, s.backoff,
		"Update user "+p.Username,
		func(d *models.UsersDocument) error {
			if !p.ApplyTo(d) {
				return docstore.ErrUnchanged
			}
			return nil
		})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPartialGrant, err)
	}
	return nil
}

func (s *Service) clearPending(ctx context.Context, p models.PendingGrant) error {
	_, err := docstore.Update(ctx, s.store, s.layout.PendingGrants, s.backoff,
		"Clear pending grant for "+p.Code,
		func(d *models.PendingGrantsDocument) error {
			if !d.Remove(p.ID) {
				return docstore.ErrUnchanged
			}
			return nil
		})
	return err
}
