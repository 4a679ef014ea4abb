// Package gitlab implements the provider client for GitLab issues. Like
// GitHub it paginates with 1-indexed page numbers and signals the final page
// through the absence of a next-page link.
package gitlab

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/xanzy/go-gitlab"
	"go.uber.org/zap"

	"github.com/clintrovert/praxis/internal/provider"
	"github.com/clintrovert/praxis/internal/ticket"
)

// Client wraps the GitLab API for one integration.
type Client struct {
	api     *gitlab.Client
	logger  *zap.Logger
	project string
	labels  gitlab.LabelOptions
}

// New creates a GitLab client. ProjectKey is the project path
// ("group/project"); FilterQuery is an optional comma-separated label list.
func New(integ *ticket.Integration, credential string, logger *zap.Logger) (provider.Client, error) {
	if integ.ProjectKey == "" {
		return nil, fmt.Errorf("integration %s has no gitlab project path", integ.ID)
	}

	api, err := gitlab.NewClient(credential, gitlab.WithBaseURL(integ.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create gitlab client: %w", err)
	}

	var labels gitlab.LabelOptions
	for _, label := range strings.Split(integ.FilterQuery, ",") {
		if label = strings.TrimSpace(label); label != "" {
			labels = append(labels, label)
		}
	}

	return &Client{
		api:     api,
		logger:  logger,
		project: integ.ProjectKey,
		labels:  labels,
	}, nil
}

// FetchTickets returns one page of open issues for the project.
func (c *Client) FetchTickets(ctx context.Context, cursor provider.Cursor, maxResults int) (provider.Page, error) {
	page := cursor.Page
	if page < 1 {
		page = 1
	}

	opts := &gitlab.ListProjectIssuesOptions{
		State: gitlab.Ptr("opened"),
		ListOptions: gitlab.ListOptions{
			Page:    page,
			PerPage: maxResults,
		},
	}
	if len(c.labels) > 0 {
		opts.Labels = &c.labels
	}

	issues, resp, err := c.api.Issues.ListProjectIssues(c.project, opts, gitlab.WithContext(ctx))
	if err != nil {
		return provider.Page{}, fmt.Errorf("failed to list issues for %s: %w", c.project, err)
	}

	tickets := make([]provider.Ticket, 0, len(issues))
	for _, issue := range issues {
		t := issueToTicket(issue)
		if issue.UserNotesCount > 0 {
			t.Comments, err = c.listNotes(ctx, issue.IID)
			if err != nil {
				return provider.Page{}, err
			}
		}
		tickets = append(tickets, t)
	}

	return provider.Page{
		Tickets: tickets,
		IsLast:  resp.NextPage == 0,
		Next:    provider.Cursor{Page: resp.NextPage},
	}, nil
}

// GetTicket retrieves a single issue with its notes.
func (c *Client) GetTicket(ctx context.Context, externalID string) (provider.Ticket, error) {
	iid, err := strconv.Atoi(externalID)
	if err != nil {
		return provider.Ticket{}, fmt.Errorf("invalid gitlab issue iid %q: %w", externalID, err)
	}

	issue, _, err := c.api.Issues.GetIssue(c.project, iid, gitlab.WithContext(ctx))
	if err != nil {
		return provider.Ticket{}, fmt.Errorf("failed to get issue !%d: %w", iid, err)
	}

	t := issueToTicket(issue)
	if issue.UserNotesCount > 0 {
		t.Comments, err = c.listNotes(ctx, iid)
		if err != nil {
			return provider.Ticket{}, err
		}
	}
	return t, nil
}

// AddComment posts a note on the issue.
func (c *Client) AddComment(ctx context.Context, externalID, body string) error {
	iid, err := strconv.Atoi(externalID)
	if err != nil {
		return fmt.Errorf("invalid gitlab issue iid %q: %w", externalID, err)
	}

	_, _, err = c.api.Notes.CreateIssueNote(c.project, iid, &gitlab.CreateIssueNoteOptions{
		Body: gitlab.Ptr(body),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to add note to issue !%d: %w", iid, err)
	}
	return nil
}

// CreateIssue creates a new issue in the project.
func (c *Client) CreateIssue(ctx context.Context, title, description string) (provider.Ticket, error) {
	issue, _, err := c.api.Issues.CreateIssue(c.project, &gitlab.CreateIssueOptions{
		Title:       gitlab.Ptr(title),
		Description: gitlab.Ptr(description),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return provider.Ticket{}, fmt.Errorf("failed to create issue: %w", err)
	}

	c.logger.Info("created gitlab issue",
		zap.String("project", c.project),
		zap.Int("iid", issue.IID),
	)

	return issueToTicket(issue), nil
}

func (c *Client) listNotes(ctx context.Context, iid int) ([]provider.Comment, error) {
	notes, _, err := c.api.Notes.ListIssueNotes(c.project, iid, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to list notes for issue !%d: %w", iid, err)
	}

	comments := make([]provider.Comment, 0, len(notes))
	for _, note := range notes {
		if note.System {
			continue
		}
		comment := provider.Comment{
			ID:     strconv.Itoa(note.ID),
			Author: note.Author.Username,
			Body:   note.Body,
		}
		if note.CreatedAt != nil {
			comment.CreatedAt = *note.CreatedAt
		}
		comments = append(comments, comment)
	}
	return comments, nil
}

func issueToTicket(issue *gitlab.Issue) provider.Ticket {
	priorityName, priorityValue := provider.PriorityFromLabels(issue.Labels)

	t := provider.Ticket{
		ExternalID:    strconv.Itoa(issue.IID),
		Key:           fmt.Sprintf("#%d", issue.IID),
		Title:         issue.Title,
		Description:   issue.Description,
		Status:        issue.State,
		Priority:      priorityName,
		PriorityValue: priorityValue,
		URL:           issue.WebURL,
		Labels:        issue.Labels,
	}
	if issue.Author != nil {
		t.Reporter = issue.Author.Username
	}
	if issue.Assignee != nil {
		t.Assignee = issue.Assignee.Username
	}
	if issue.CreatedAt != nil {
		t.CreatedAt = *issue.CreatedAt
	}
	if issue.UpdatedAt != nil {
		t.UpdatedAt = *issue.UpdatedAt
	}
	return t
}
