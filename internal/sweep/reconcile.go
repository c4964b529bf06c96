package sweep

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/codekeeper/internal/docstore"
	"github.com/dmitrijs2005/codekeeper/internal/models"
)

// ReconcileResult counts what happened to each pending grant.
type ReconcileResult struct {
	// Applied grants were missing from the user and have been written.
	Applied int
	// AlreadyApplied grants were found on the user already.
	AlreadyApplied int
	// Abandoned grants never consumed their code, or lost it to another
	// user, and were dropped.
	Abandoned int
	// Held grants compete with grants of other users for the same code and
	// none of them can be shown to have won. They stay in the log.
	Held int
}

func (r *ReconcileResult) Total() int {
	return r.Applied + r.AlreadyApplied + r.Abandoned + r.Held
}

// Reconcile resolves the pending grant log. A grant whose code is still
// active never consumed it and is dropped, as is one whose code was recorded
// as used by somebody else or is already held by another user. When grants
// of different users claim the same consumed code and nothing shows which
// one won, they are all held for a maintainer. Every other grant is applied
// to the users document unless the user already holds the token. Resolved
// grants are removed from the log after the users write succeeds.
func (s *Service) Reconcile(ctx context.Context) (*ReconcileResult, error) {
	res := &ReconcileResult{}

	pending, err := docstore.Load[models.PendingGrantsDocument](ctx, s.store, s.layout.PendingGrants, true)
	if err != nil {
		return nil, err
	}
	if len(pending.Value.Pending) == 0 {
		return res, nil
	}

	active, err := docstore.Load[models.CodesDocument](ctx, s.store, s.layout.ActiveCodes, false)
	if err != nil {
		return nil, fmt.Errorf("cannot decide pending grants: %w", err)
	}
	used, err := docstore.Load[models.ExpiredCodesDocument](ctx, s.store, s.layout.ExpiredCodes, true)
	if err != nil {
		return nil, fmt.Errorf("cannot decide pending grants: %w", err)
	}

	var grants []models.PendingGrant
	resolved := map[string]bool{}
	for _, p := range pending.Value.Pending {
		log := s.log.With("grant_id", p.ID, "username", p.Username, "code", p.Code)
		if active.Value.FindUnused(p.Code) >= 0 {
			log.Info(ctx, "dropping pending grant, code was never consumed")
			res.Abandoned++
			resolved[p.ID] = true
			continue
		}
		if u := used.Value.Find(p.Code); u != nil && u.UsedBy != "" && !models.SameUser(u.UsedBy, p.Username) {
			log.Warn(ctx, "dropping pending grant, code was used by another user", "used_by", u.UsedBy)
			res.Abandoned++
			resolved[p.ID] = true
			continue
		}
		grants = append(grants, p)
	}

	claimants := map[string]map[string]bool{}
	for _, p := range grants {
		code := models.NormalizeCode(p.Code)
		if claimants[code] == nil {
			claimants[code] = map[string]bool{}
		}
		claimants[code][strings.ToLower(strings.TrimSpace(p.Username))] = true
	}

	if len(grants) > 0 {
		abandoned := res.Abandoned
		var decided map[string]bool
		_, err = docstore.Update(ctx, s.store, s.layout.Users, s.backoff, "Reconcile pending grants",
			func(d *models.UsersDocument) error {
				res.Applied, res.AlreadyApplied, res.Held, res.Abandoned = 0, 0, 0, abandoned
				decided = map[string]bool{}
				for i := range grants {
					p := &grants[i]
					if holder := otherHolder(d, p); holder != "" {
						s.log.Warn(ctx, "dropping pending grant, code is held by another user",
							"grant_id", p.ID, "username", p.Username, "code", p.Code, "holder", holder)
						res.Abandoned++
						decided[p.ID] = true
						continue
					}
					if !holds(d, p) && len(claimants[models.NormalizeCode(p.Code)]) > 1 {
						s.log.Error(ctx, "holding pending grant, several users claim the code",
							"grant_id", p.ID, "username", p.Username, "code", p.Code)
						res.Held++
						continue
					}
					if p.ApplyTo(d) {
						res.Applied++
					} else {
						res.AlreadyApplied++
					}
					decided[p.ID] = true
				}
				if res.Applied == 0 {
					return docstore.ErrUnchanged
				}
				return nil
			})
		if err != nil {
			return res, fmt.Errorf("apply pending grants: %w", err)
		}
		for id := range decided {
			resolved[id] = true
		}
	}

	if len(resolved) == 0 {
		s.log.Info(ctx, "pending grants reconciled", "held", res.Held)
		return res, nil
	}

	_, err = docstore.Update(ctx, s.store, s.layout.PendingGrants, s.backoff, "Clear reconciled grants",
		func(d *models.PendingGrantsDocument) error {
			removed := false
			for id := range resolved {
				if d.Remove(id) {
					removed = true
				}
			}
			if !removed {
				return docstore.ErrUnchanged
			}
			return nil
		})
	if err != nil {
		return res, fmt.Errorf("clear pending grants: %w", err)
	}

	s.log.Info(ctx, "pending grants reconciled",
		"applied", res.Applied, "already_applied", res.AlreadyApplied, "abandoned", res.Abandoned, "held", res.Held)
	return res, nil
}

// otherHolder returns the name of a user other than the grant's who already
// holds its code, or "".
func otherHolder(d *models.UsersDocument, p *models.PendingGrant) string {
	for i := range d.Users {
		u := &d.Users[i]
		if !models.SameUser(u.Username, p.Username) && u.HasToken(p.Code) {
			return u.Username
		}
	}
	return ""
}

func holds(d *models.UsersDocument, p *models.PendingGrant) bool {
	i := d.Find(p.Username)
	return i >= 0 && d.Users[i].HasToken(p.Code)
}
