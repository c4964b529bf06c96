// Package sweep moves expired users out of the users document and replays
// grants that a redeem run left half finished.
package sweep

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dmitrijs2005/codekeeper/internal/config"
	"github.com/dmitrijs2005/codekeeper/internal/docstore"
	"github.com/dmitrijs2005/codekeeper/internal/logging"
	"github.com/dmitrijs2005/codekeeper/internal/models"
)

// Commit step names.
const (
	StepWriteUsers    = "write active users"
	StepAppendRevoked = "append revoked users"
	StepMirrorCodes   = "mirror expired codes"
)

type Service struct {
	store   docstore.Store
	layout  config.Layout
	log     logging.Logger
	backoff docstore.BackoffFunc
	now     func() time.Time
}

type Option func(*Service)

func WithLogger(l logging.Logger) Option {
	return func(s *Service) { s.log = l }
}

func WithBackoff(b docstore.BackoffFunc) Option {
	return func(s *Service) { s.backoff = b }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store docstore.Store, layout config.Layout, opts ...Option) *Service {
	s := &Service{
		store:   store,
		layout:  layout,
		log:     logging.Nop(),
		backoff: docstore.NewBackoff(500*time.Millisecond, 3),
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Result summarises one sweep.
type Result struct {
	Moved         []string
	CodesMirrored int
}

// Sweep removes every user whose expiry is at or before now from the users
// document, appends them to the revoked document and mirrors their codes
// into the expired codes document. Nothing is written when no user has
// expired. The users write goes first; if it loses a race the users are read
// again and re-partitioned.
func (s *Service) Sweep(ctx context.Context) (*Result, error) {
	now := s.now().UTC()
	res := &Result{}

	users, err := docstore.Load[models.UsersDocument](ctx, s.store, s.layout.Users, true)
	if err != nil {
		return nil, err
	}
	if _, expired := users.Value.Partition(now); len(expired) == 0 {
		s.log.Info(ctx, "no expired users", "users", len(users.Value.Users))
		return res, nil
	}

	var expired []models.UserRecord

	err = docstore.Commit(ctx, s.log,
		docstore.Step{Name: StepWriteUsers, Policy: docstore.Critical, Run: func(ctx context.Context) error {
			return docstore.Rebase(ctx, s.store, users, s.backoff, "Remove expired users",
				func(d *models.UsersDocument) error {
					active, exp := d.Partition(now)
					expired = exp
					if len(exp) == 0 {
						return docstore.ErrUnchanged
					}
					d.Users = active
					return nil
				})
		}},
		docstore.Step{Name: StepAppendRevoked, Policy: docstore.Critical, Run: func(ctx context.Context) error {
			if len(expired) == 0 {
				return nil
			}
			_, err := docstore.Update(ctx, s.store, s.layout.Revoked, s.backoff, "Revoke expired users",
				func(d *models.RevokedDocument) error {
					for _, u := range expired {
						d.Revoked = append(d.Revoked, models.RevokedRecord{User: u, RevokedAt: now})
					}
					return nil
				})
			if err != nil {
				// the users are already gone from users.json; keep them in the log
				if dump, jerr := json.Marshal(expired); jerr == nil {
					s.log.Error(ctx, "revoked users were not recorded", "users", string(dump))
				}
			}
			return err
		}},
		docstore.Step{Name: StepMirrorCodes, Policy: docstore.Critical, Run: func(ctx context.Context) error {
			if len(expired) == 0 {
				return nil
			}
			_, err := docstore.Update(ctx, s.store, s.layout.ExpiredCodes, s.backoff, "Mirror codes of expired users",
				func(d *models.ExpiredCodesDocument) error {
					res.CodesMirrored = mirrorCodes(d, expired, now)
					if res.CodesMirrored == 0 {
						return docstore.ErrUnchanged
					}
					return nil
				})
			return err
		}},
	)

	for _, u := range expired {
		res.Moved = append(res.Moved, u.Username)
	}
	if err != nil {
		s.log.Error(ctx, "sweep failed", "error", err, "moved", len(res.Moved))
		return res, err
	}

	s.log.Info(ctx, "sweep done", "moved", len(res.Moved), "codes_mirrored", res.CodesMirrored)
	return res, nil
}

// mirrorCodes adds the codes held by users to d, skipping codes d already
// lists, and returns how many were added.
func mirrorCodes(d *models.ExpiredCodesDocument, users []models.UserRecord, movedAt time.Time) int {
	added := 0
	for _, u := range users {
		for _, t := range u.Tokens {
			if t.Code == "" {
				continue
			}
			used := models.UsedCode{
				Code:       t.Code,
				Used:       true,
				UsedBy:     u.Username,
				UsedByHWID: u.HWID,
				MovedAt:    &movedAt,
			}
			if !t.RedeemedAt.IsZero() {
				at := t.RedeemedAt
				used.UsedAt = &at
			}
			if !t.GrantedExpiry.IsZero() {
				exp := t.GrantedExpiry
				used.GrantedExpiry = &exp
			}
			if d.Add(used) {
				added++
			}
		}
	}
	return added
}
