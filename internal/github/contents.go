package github

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// FileContent is the contents API view of a file.
type FileContent struct {
	Type     string `json:"type"`
	SHA      string `json:"sha"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// PutContentsRequest creates or updates a file. SHA must be the blob sha
// of the file being replaced; it is omitted when creating a file.
type PutContentsRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

func contentsPath(owner, repo, path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("/repos/%s/%s/contents/%s", url.PathEscape(owner), url.PathEscape(repo), strings.Join(segments, "/"))
}

// GetContents fetches a file. ref may be empty for the default branch.
func (c *Client) GetContents(ctx context.Context, owner, repo, path, ref string) (*FileContent, error) {
	p := contentsPath(owner, repo, path)
	if ref != "" {
		p += "?ref=" + url.QueryEscape(ref)
	}

	fc := &FileContent{}
	if err := c.Do(ctx, http.MethodGet, p, nil, fc); err != nil {
		return nil, err
	}
	return fc, nil
}

// GetBlob fetches a blob by sha. The contents API omits content for files
// over 1 MB; the blobs API does not.
func (c *Client) GetBlob(ctx context.Context, owner, repo, sha string) ([]byte, error) {
	var blob struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	p := fmt.Sprintf("/repos/%s/%s/git/blobs/%s", url.PathEscape(owner), url.PathEscape(repo), url.PathEscape(sha))
	if err := c.Do(ctx, http.MethodGet, p, nil, &blob); err != nil {
		return nil, err
	}
	if blob.Encoding != "base64" {
		return []byte(blob.Content), nil
	}
	return DecodeContent(blob.Content)
}

// PutContents commits a file and returns the new blob sha.
func (c *Client) PutContents(ctx context.Context, owner, repo, path string, req PutContentsRequest) (string, error) {
	var resp struct {
		Content struct {
			SHA string `json:"sha"`
		} `json:"content"`
	}
	if err := c.Do(ctx, http.MethodPut, contentsPath(owner, repo, path), req, &resp); err != nil {
		return "", err
	}
	return resp.Content.SHA, nil
}

// EncodeContent is the wire form of file content.
func EncodeContent(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeContent decodes API base64, which is wrapped at 60 columns.
func DecodeContent(s string) ([]byte, error) {
	s = strings.NewReplacer("\n", "", "\r", "").Replace(s)
	return base64.StdEncoding.DecodeString(s)
}
