// Package github implements the provider client for GitHub issues. GitHub
// paginates with 1-indexed page numbers; the final page is detected from the
// rel="next" link header surfaced as Response.NextPage.
package github

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/clintrovert/praxis/internal/provider"
	"github.com/clintrovert/praxis/internal/ticket"
)

// Client wraps the GitHub API for one integration.
type Client struct {
	api    *github.Client
	logger *zap.Logger
	owner  string
	repo   string
	labels []string
}

// New creates a GitHub client. The integration's ProjectKey (or, as a
// fallback, its BaseURL path) must name an "owner/repo"; FilterQuery is an
// optional comma-separated label filter.
func New(integ *ticket.Integration, credential string, logger *zap.Logger) (provider.Client, error) {
	owner, repo, err := splitRepository(integ)
	if err != nil {
		return nil, err
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: credential})
	tc := oauth2.NewClient(context.Background(), ts)

	var labels []string
	for _, label := range strings.Split(integ.FilterQuery, ",") {
		if label = strings.TrimSpace(label); label != "" {
			labels = append(labels, label)
		}
	}

	return &Client{
		api:    github.NewClient(tc),
		logger: logger,
		owner:  owner,
		repo:   repo,
		labels: labels,
	}, nil
}

// splitRepository extracts "owner/repo" from the integration, accepting a
// bare pair or a full https://github.com/owner/repo URL.
func splitRepository(integ *ticket.Integration) (string, string, error) {
	candidate := integ.ProjectKey
	if candidate == "" {
		candidate = strings.TrimPrefix(integ.BaseURL, "https://github.com/")
	}
	candidate = strings.Trim(strings.TrimSpace(candidate), "/")

	parts := strings.Split(candidate, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("integration %s has no usable owner/repo (got %q)", integ.ID, candidate)
	}
	return parts[0], parts[1], nil
}

// FetchTickets returns one page of open issues. Pull requests share the
// issues endpoint and are filtered out; the final-page signal is the absence
// of a rel="next" link, never the returned count.
func (c *Client) FetchTickets(ctx context.Context, cursor provider.Cursor, maxResults int) (provider.Page, error) {
	page := cursor.Page
	if page < 1 {
		page = 1
	}

	opts := &github.IssueListByRepoOptions{
		State:  "open",
		Labels: c.labels,
		ListOptions: github.ListOptions{
			Page:    page,
			PerPage: maxResults,
		},
	}

	issues, resp, err := c.api.Issues.ListByRepo(ctx, c.owner, c.repo, opts)
	if err != nil {
		return provider.Page{}, fmt.Errorf("failed to list issues for %s/%s: %w", c.owner, c.repo, err)
	}

	tickets := make([]provider.Ticket, 0, len(issues))
	for _, issue := range issues {
		if issue.IsPullRequest() {
			continue
		}
		t := c.issueToTicket(issue)
		if issue.GetComments() > 0 {
			t.Comments, err = c.listComments(ctx, issue.GetNumber())
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

// GetTicket retrieves a single issue with its comments.
func (c *Client) GetTicket(ctx context.Context, externalID string) (provider.Ticket, error) {
	number, err := strconv.Atoi(externalID)
	if err != nil {
		return provider.Ticket{}, fmt.Errorf("invalid github issue number %q: %w", externalID, err)
	}

	issue, _, err := c.api.Issues.Get(ctx, c.owner, c.repo, number)
	if err != nil {
		return provider.Ticket{}, fmt.Errorf("failed to get issue #%d: %w", number, err)
	}

	t := c.issueToTicket(issue)
	if issue.GetComments() > 0 {
		t.Comments, err = c.listComments(ctx, number)
		if err != nil {
			return provider.Ticket{}, err
		}
	}
	return t, nil
}

// AddComment posts a comment on the issue.
func (c *Client) AddComment(ctx context.Context, externalID, body string) error {
	number, err := strconv.Atoi(externalID)
	if err != nil {
		return fmt.Errorf("invalid github issue number %q: %w", externalID, err)
	}

	_, _, err = c.api.Issues.CreateComment(ctx, c.owner, c.repo, number, &github.IssueComment{
		Body: github.String(body),
	})
	if err != nil {
		return fmt.Errorf("failed to comment on issue #%d: %w", number, err)
	}
	return nil
}

// CreateIssue creates a new issue in the repository.
func (c *Client) CreateIssue(ctx context.Context, title, description string) (provider.Ticket, error) {
	issue, _, err := c.api.Issues.Create(ctx, c.owner, c.repo, &github.IssueRequest{
		Title: github.String(title),
		Body:  github.String(description),
	})
	if err != nil {
		return provider.Ticket{}, fmt.Errorf("failed to create issue: %w", err)
	}

	c.logger.Info("created github issue",
		zap.String("owner", c.owner),
		zap.String("repo", c.repo),
		zap.Int("number", issue.GetNumber()),
	)

	return c.issueToTicket(issue), nil
}

func (c *Client) listComments(ctx context.Context, number int) ([]provider.Comment, error) {
	raw, _, err := c.api.Issues.ListComments(ctx, c.owner, c.repo, number, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments for issue #%d: %w", number, err)
	}

	comments := make([]provider.Comment, 0, len(raw))
	for _, comment := range raw {
		comments = append(comments, provider.Comment{
			ID:        strconv.FormatInt(comment.GetID(), 10),
			Author:    comment.GetUser().GetLogin(),
			Body:      comment.GetBody(),
			CreatedAt: comment.GetCreatedAt().Time,
		})
	}
	return comments, nil
}

func (c *Client) issueToTicket(issue *github.Issue) provider.Ticket {
	labels := make([]string, 0, len(issue.Labels))
	for _, label := range issue.Labels {
		labels = append(labels, label.GetName())
	}
	priorityName, priorityValue := provider.PriorityFromLabels(labels)

	return provider.Ticket{
		ExternalID:    strconv.Itoa(issue.GetNumber()),
		Key:           fmt.Sprintf("%s/%s#%d", c.owner, c.repo, issue.GetNumber()),
		Title:         issue.GetTitle(),
		Description:   issue.GetBody(),
		Status:        issue.GetState(),
		Priority:      priorityName,
		PriorityValue: priorityValue,
		Reporter:      issue.GetUser().GetLogin(),
		Assignee:      issue.GetAssignee().GetLogin(),
		URL:           issue.GetHTMLURL(),
		Labels:        labels,
		CreatedAt:     issue.GetCreatedAt().Time,
		UpdatedAt:     issue.GetUpdatedAt().Time,
	}
}
