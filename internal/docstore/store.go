// Package docstore is the remote document store the redeem and sweep flows
// run on: JSON documents addressed by repository and path, read with a
// version token and written back only if that token is still current.
package docstore

import (
	"context"
)

// Location addresses one document.
type Location struct {
	Repo string
	Path string
}

func (l Location) String() string {
	return l.Repo + "/" + l.Path
}

// Object is a raw document as returned by a backend.
type Object struct {
	Data    []byte
	Version string
}

// Store is the conditional-write primitive every backend implements.
//
// Get returns common.ErrorNotFound when the document does not exist.
//
// Put writes data when version matches the live document and returns the
// new version. An empty version means create-only: Put fails if the document
// already exists. Both mismatches are reported as common.ErrVersionConflict.
// message is a human readable change description; backends that keep
// history record it.
type Store interface {
	Get(ctx context.Context, loc Location) (*Object, error)
	Put(ctx context.Context, loc Location, data []byte, version, message string) (string, error)
}
