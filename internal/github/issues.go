package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

func issuePath(owner, repo string, number int) string {
	return fmt.Sprintf("/repos/%s/%s/issues/%d", url.PathEscape(owner), url.PathEscape(repo), number)
}

// CreateComment posts body on an issue.
func (c *Client) CreateComment(ctx context.Context, owner, repo string, number int, body string) error {
	return c.Do(ctx, http.MethodPost, issuePath(owner, repo, number)+"/comments", map[string]string{"body": body}, nil)
}

// AddLabels attaches labels to an issue.
func (c *Client) AddLabels(ctx context.Context, owner, repo string, number int, labels ...string) error {
	return c.Do(ctx, http.MethodPost, issuePath(owner, repo, number)+"/labels", map[string][]string{"labels": labels}, nil)
}

// CloseIssue sets the issue state to closed.
func (c *Client) CloseIssue(ctx context.Context, owner, repo string, number int) error {
	return c.Do(ctx, http.MethodPatch, issuePath(owner, repo, number), map[string]string{"state": "closed"}, nil)
}
