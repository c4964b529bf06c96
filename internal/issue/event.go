// Package issue reads the issue event that triggered a run, extracts the
// redeem request from the issue body and answers on the issue.
package issue

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

type Label struct {
	Name string `json:"name"`
}

type Issue struct {
	Number int     `json:"number"`
	Title  string  `json:"title"`
	Body   string  `json:"body"`
	State  string  `json:"state"`
	Labels []Label `json:"labels"`
	User   struct {
		Login string `json:"login"`
	} `json:"user"`
}

// HasLabel reports whether the issue carries name, ignoring case.
func (i *Issue) HasLabel(name string) bool {
	for _, l := range i.Labels {
		if strings.EqualFold(l.Name, name) {
			return true
		}
	}
	return false
}

type Repository struct {
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	Owner    struct {
		Login string `json:"login"`
	} `json:"owner"`
}

// Event is the subset of an "issues" webhook payload the handler needs.
type Event struct {
	Action     string     `json:"action"`
	Issue      *Issue     `json:"issue"`
	Repository Repository `json:"repository"`
}

func ParseEvent(b []byte) (*Event, error) {
	ev := &Event{}
	if err := json.Unmarshal(b, ev); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if ev.Issue == nil {
		return nil, fmt.Errorf("event has no issue")
	}
	if ev.Repository.Name == "" || ev.Repository.Owner.Login == "" {
		return nil, fmt.Errorf("event has no repository")
	}
	return ev, nil
}

// LoadEvent reads the payload the workflow runner stored at path.
func LoadEvent(path string) (*Event, error) {
	if path == "" {
		return nil, fmt.Errorf("no event path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read event: %w", err)
	}
	return ParseEvent(b)
}
