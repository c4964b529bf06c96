// Package githubstore keeps documents as files in GitHub repositories,
// using the contents API. The blob sha of a file is its version token.
package githubstore

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/codekeeper/internal/common"
	"github.com/dmitrijs2005/codekeeper/internal/docstore"
	"github.com/dmitrijs2005/codekeeper/internal/github"
)

// Store maps Location.Repo to a repository under owner. An empty branch
// means each repository's default branch.
type Store struct {
	client *github.Client
	owner  string
	branch string
}

func New(client *github.Client, owner, branch string) *Store {
	return &Store{client: client, owner: owner, branch: branch}
}

var _ docstore.Store = (*Store)(nil)

func (s *Store) Get(ctx context.Context, loc docstore.Location) (*docstore.Object, error) {
	fc, err := s.client.GetContents(ctx, s.owner, loc.Repo, loc.Path, s.branch)
	if err != nil {
		if github.IsStatus(err, http.StatusNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, err
	}
	if fc.Type != "" && fc.Type != "file" {
		return nil, fmt.Errorf("%s is a %s, not a file", loc, fc.Type)
	}

	var data []byte
	if fc.Encoding == "none" {
		data, err = s.client.GetBlob(ctx, s.owner, loc.Repo, fc.SHA)
	} else {
		data, err = github.DecodeContent(fc.Content)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", loc, err)
	}

	return &docstore.Object{Data: data, Version: fc.SHA}, nil
}

// Put commits data. GitHub answers 409 for a stale sha, 422 when a sha is
// missing for an existing file, and 404 when updating a file that is gone;
// all three mean someone else changed the document.
func (s *Store) Put(ctx context.Context, loc docstore.Location, data []byte, version, message string) (string, error) {
	sha, err := s.client.PutContents(ctx, s.owner, loc.Repo, loc.Path, github.PutContentsRequest{
		Message: message,
		Content: github.EncodeContent(data),
		SHA:     version,
		Branch:  s.branch,
	})
	if err != nil {
		conflict := github.IsStatus(err, http.StatusConflict, http.StatusPreconditionFailed, http.StatusUnprocessableEntity) ||
			(version != "" && github.IsStatus(err, http.StatusNotFound))
		if conflict {
			return "", fmt.Errorf("%s: %v: %w", loc, err, common.ErrVersionConflict)
		}
		return "", err
	}
	return sha, nil
}
