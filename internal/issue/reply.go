package issue

import (
	"context"
	"strconv"

	"github.com/dmitrijs2005/codekeeper/internal/github"
)

// Ticket is the issue a run answers on.
type Ticket struct {
	client *github.Client
	owner  string
	repo   string
	number int
}

func NewTicket(client *github.Client, ev *Event) *Ticket {
	return &Ticket{
		client: client,
		owner:  ev.Repository.Owner.Login,
		repo:   ev.Repository.Name,
		number: ev.Issue.Number,
	}
}

func (t *Ticket) String() string {
	return t.owner + "/" + t.repo + "#" + strconv.Itoa(t.number)
}

// Reply posts message as an issue comment.
func (t *Ticket) Reply(ctx context.Context, message string) error {
	return t.client.CreateComment(ctx, t.owner, t.repo, t.number, message)
}

// Resolve labels the issue and, when closeIssue is set, closes it.
func (t *Ticket) Resolve(ctx context.Context, label string, closeIssue bool) error {
	if label != "" {
		if err := t.client.AddLabels(ctx, t.owner, t.repo, t.number, label); err != nil {
			return err
		}
	}
	if closeIssue {
		return t.client.CloseIssue(ctx, t.owner, t.repo, t.number)
	}
	return nil
}
