// Package jira implements the provider client for Atlassian Jira using
// basic-auth API tokens and JQL-scoped searches.
package jira

import (
	"context"
	"fmt"
	"strconv"
	"time"

	jira "github.com/andygrunwald/go-jira"
	"go.uber.org/zap"

	"github.com/clintrovert/praxis/internal/provider"
	"github.com/clintrovert/praxis/internal/ticket"
)

const jiraTimeLayout = "2006-01-02T15:04:05.000-0700"

// Client wraps the Jira API for one integration.
type Client struct {
	client     *jira.Client
	logger     *zap.Logger
	projectKey string
	jql        string
}

// New creates a Jira client. The integration's FilterQuery, when set, is a
// JQL fragment ANDed onto the project scope.
func New(integ *ticket.Integration, credential string, logger *zap.Logger) (provider.Client, error) {
	tp := jira.BasicAuthTransport{
		Username: integ.Username,
		Password: credential,
	}

	client, err := jira.NewClient(tp.Client(), integ.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create jira client: %w", err)
	}

	jql := fmt.Sprintf("project = %s", integ.ProjectKey)
	if integ.FilterQuery != "" {
		jql = fmt.Sprintf("%s AND (%s)", jql, integ.FilterQuery)
	}
	jql += " ORDER BY priority DESC, updated DESC"

	return &Client{
		client:     client,
		logger:     logger,
		projectKey: integ.ProjectKey,
		jql:        jql,
	}, nil
}

// FetchTickets returns one page of issues starting at cursor.StartAt. The
// page boundary comes from Jira's reported total, not from the returned
// count.
func (c *Client) FetchTickets(ctx context.Context, cursor provider.Cursor, maxResults int) (provider.Page, error) {
	opts := &jira.SearchOptions{
		StartAt:    cursor.StartAt,
		MaxResults: maxResults,
		Expand:     "comments",
	}

	issues, resp, err := c.client.Issue.SearchWithContext(ctx, c.jql, opts)
	if err != nil {
		return provider.Page{}, fmt.Errorf("failed to search issues: %w", err)
	}

	tickets := make([]provider.Ticket, 0, len(issues))
	for i := range issues {
		tickets = append(tickets, issueToTicket(&issues[i]))
	}

	nextStart := resp.StartAt + len(issues)
	return provider.Page{
		Tickets: tickets,
		IsLast:  nextStart >= resp.Total,
		Next:    provider.Cursor{StartAt: nextStart},
	}, nil
}

// GetTicket retrieves a single issue with comments expanded.
func (c *Client) GetTicket(ctx context.Context, externalID string) (provider.Ticket, error) {
	issue, _, err := c.client.Issue.GetWithContext(ctx, externalID, &jira.GetQueryOptions{Expand: "comments"})
	if err != nil {
		return provider.Ticket{}, fmt.Errorf("failed to get issue %s: %w", externalID, err)
	}
	return issueToTicket(issue), nil
}

// AddComment posts a comment on the issue.
func (c *Client) AddComment(ctx context.Context, externalID, body string) error {
	_, _, err := c.client.Issue.AddCommentWithContext(ctx, externalID, &jira.Comment{Body: body})
	if err != nil {
		return fmt.Errorf("failed to add comment to %s: %w", externalID, err)
	}
	return nil
}

// CreateIssue creates a Task-type issue in the integration's project.
func (c *Client) CreateIssue(ctx context.Context, title, description string) (provider.Ticket, error) {
	issue := &jira.Issue{
		Fields: &jira.IssueFields{
			Project:     jira.Project{Key: c.projectKey},
			Type:        jira.IssueType{Name: "Task"},
			Summary:     title,
			Description: description,
		},
	}

	created, _, err := c.client.Issue.CreateWithContext(ctx, issue)
	if err != nil {
		return provider.Ticket{}, fmt.Errorf("failed to create issue: %w", err)
	}

	// The create response carries only key and id; re-read for a full snapshot.
	return c.GetTicket(ctx, created.Key)
}

func issueToTicket(issue *jira.Issue) provider.Ticket {
	t := provider.Ticket{
		ExternalID:  issue.Key,
		Key:         issue.Key,
		Title:       issue.Fields.Summary,
		Description: issue.Fields.Description,
		CreatedAt:   time.Time(issue.Fields.Created),
		UpdatedAt:   time.Time(issue.Fields.Updated),
	}

	if issue.Fields.Status != nil {
		t.Status = issue.Fields.Status.Name
	}
	if issue.Fields.Priority != nil {
		t.Priority = issue.Fields.Priority.Name
		t.PriorityValue = priorityValue(issue.Fields.Priority)
	}
	if issue.Fields.Reporter != nil {
		t.Reporter = issue.Fields.Reporter.DisplayName
	}
	if issue.Fields.Assignee != nil {
		t.Assignee = issue.Fields.Assignee.DisplayName
	}
	t.Labels = issue.Fields.Labels

	if issue.Fields.Comments != nil {
		for _, comment := range issue.Fields.Comments.Comments {
			c := provider.Comment{
				ID:     comment.ID,
				Author: comment.Author.DisplayName,
				Body:   comment.Body,
			}
			if created, err := time.Parse(jiraTimeLayout, comment.Created); err == nil {
				c.CreatedAt = created
			}
			t.Comments = append(t.Comments, c)
		}
	}

	return t
}

// priorityValue converts Jira's priority to the internal "higher is more
// urgent" scale. Jira ids run 1=Highest..5=Lowest, so the scale is flipped.
func priorityValue(p *jira.Priority) float64 {
	id, err := strconv.Atoi(p.ID)
	if err != nil || id < 1 || id > 5 {
		return 2
	}
	return float64(5 - id)
}
