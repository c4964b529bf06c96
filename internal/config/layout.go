package config

import "github.com/dmitrijs2005/codekeeper/internal/docstore"

// Layout locates every document the redeem and sweep flows touch.
type Layout struct {
	ActiveCodes   docstore.Location
	ExpiredCodes  docstore.Location
	Users         docstore.Location
	Revoked       docstore.Location
	PendingGrants docstore.Location
}

// DefaultLayout is the codes / users repository pair with default paths.
func DefaultLayout() Layout {
	c := &Config{}
	c.LoadDefaults()
	return c.Layout()
}

// Layout places the code documents in CodesRepo and the user documents,
// including the pending grant log, in UsersRepo.
func (c *Config) Layout() Layout {
	return Layout{
		ActiveCodes:   docstore.Location{Repo: c.CodesRepo, Path: c.ActiveCodesPath},
		ExpiredCodes:  docstore.Location{Repo: c.CodesRepo, Path: c.ExpiredCodesPath},
		Users:         docstore.Location{Repo: c.UsersRepo, Path: c.UsersPath},
		Revoked:       docstore.Location{Repo: c.UsersRepo, Path: c.RevokedPath},
		PendingGrants: docstore.Location{Repo: c.UsersRepo, Path: c.PendingGrantsPath},
	}
}
