package feed

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clintrovert/praxis/internal/provider"
	"github.com/clintrovert/praxis/internal/ticket"
)

// scriptedClient serves a fixed ticket list through StartAt-style cursors,
// reporting IsLast from the remaining count the way a real provider reports
// its continuation signal.
type scriptedClient struct {
	tickets []provider.Ticket
	err     error
	calls   int
}

func (c *scriptedClient) FetchTickets(_ context.Context, cursor provider.Cursor, maxResults int) (provider.Page, error) {
	c.calls++
	if c.err != nil {
		return provider.Page{}, c.err
	}
	start := cursor.StartAt
	if start > len(c.tickets) {
		start = len(c.tickets)
	}
	end := start + maxResults
	if end > len(c.tickets) {
		end = len(c.tickets)
	}
	return provider.Page{
		Tickets: c.tickets[start:end],
		IsLast:  end >= len(c.tickets),
		Next:    provider.Cursor{StartAt: end},
	}, nil
}

func (c *scriptedClient) GetTicket(_ context.Context, externalID string) (provider.Ticket, error) {
	for _, t := range c.tickets {
		if t.ExternalID == externalID {
			return t, nil
		}
	}
	return provider.Ticket{}, ticket.ErrNotFound
}

func (c *scriptedClient) AddComment(_ context.Context, _, _ string) error { return nil }

func (c *scriptedClient) CreateIssue(_ context.Context, title, description string) (provider.Ticket, error) {
	t := provider.Ticket{ExternalID: fmt.Sprintf("NEW-%d", len(c.tickets)+1), Title: title, Description: description}
	c.tickets = append(c.tickets, t)
	return t, nil
}

// fakeResolver hands out scripted clients by integration id. Integrations
// without an entry behave like an unregistered provider type.
type fakeResolver struct {
	clients map[uuid.UUID]provider.Client
	errs    map[uuid.UUID]error
}

func (r *fakeResolver) Resolve(integ *ticket.Integration) (provider.Client, error) {
	if err, ok := r.errs[integ.ID]; ok {
		return nil, err
	}
	c, ok := r.clients[integ.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", provider.ErrUnsupported, integ.Provider)
	}
	return c, nil
}

func makeIntegration(workspaceID uuid.UUID, pt ticket.ProviderType) *ticket.Integration {
	return &ticket.Integration{
		ID:          uuid.New(),
		WorkspaceID: workspaceID,
		Provider:    pt,
		BaseURL:     "https://example.invalid",
		IsActive:    true,
	}
}

func makeProviderTickets(prefix string, n int) []provider.Ticket {
	tickets := make([]provider.Ticket, n)
	for i := range tickets {
		tickets[i] = provider.Ticket{
			ExternalID: fmt.Sprintf("%s-%d", prefix, i+1),
			Title:      fmt.Sprintf("%s ticket %d", prefix, i+1),
			Status:     "Open",
		}
	}
	return tickets
}

func TestAggregatorMergesInIntegrationOrder(t *testing.T) {
	workspaceID := uuid.New()
	jira := makeIntegration(workspaceID, ticket.ProviderJira)
	github := makeIntegration(workspaceID, ticket.ProviderGitHub)

	resolver := &fakeResolver{clients: map[uuid.UUID]provider.Client{
		jira.ID:   &scriptedClient{tickets: makeProviderTickets("JIRA", 2)},
		github.ID: &scriptedClient{tickets: makeProviderTickets("GH", 2)},
	}}
	agg := NewAggregator(resolver, zap.NewNop())

	merged, hasMore, _, err := agg.Fetch(context.Background(), []*ticket.Integration{jira, github}, 10, nil)
	require.NoError(t, err)
	assert.False(t, hasMore)

	var ids []string
	for _, ext := range merged {
		ids = append(ids, ext.Ticket.ExternalID)
	}
	assert.Equal(t, []string{"JIRA-1", "JIRA-2", "GH-1", "GH-2"}, ids)
}

func TestAggregatorLastPageComesFromProviderSignal(t *testing.T) {
	// A page that exactly fills the budget is still the last page when the
	// provider says so; the caller must not need an extra empty fetch.
	workspaceID := uuid.New()
	jira := makeIntegration(workspaceID, ticket.ProviderJira)

	resolver := &fakeResolver{clients: map[uuid.UUID]provider.Client{
		jira.ID: &scriptedClient{tickets: makeProviderTickets("JIRA", 5)},
	}}
	agg := NewAggregator(resolver, zap.NewNop())

	merged, hasMore, state, err := agg.Fetch(context.Background(), []*ticket.Integration{jira}, 5, nil)
	require.NoError(t, err)
	assert.Len(t, merged, 5)
	assert.False(t, hasMore)
	assert.True(t, state[jira.ID.String()].Exhausted)
}

func TestAggregatorCarriesCursorsAcrossFetches(t *testing.T) {
	workspaceID := uuid.New()
	jira := makeIntegration(workspaceID, ticket.ProviderJira)
	client := &scriptedClient{tickets: makeProviderTickets("JIRA", 5)}

	resolver := &fakeResolver{clients: map[uuid.UUID]provider.Client{jira.ID: client}}
	agg := NewAggregator(resolver, zap.NewNop())
	integrations := []*ticket.Integration{jira}

	merged, hasMore, state, err := agg.Fetch(context.Background(), integrations, 2, nil)
	require.NoError(t, err)
	assert.Len(t, merged, 2)
	assert.True(t, hasMore)
	assert.Equal(t, 2, state[jira.ID.String()].StartAt)

	merged, hasMore, state, err = agg.Fetch(context.Background(), integrations, 2, state)
	require.NoError(t, err)
	require.Len(t, merged, 2)
	assert.Equal(t, "JIRA-3", merged[0].Ticket.ExternalID)
	assert.True(t, hasMore)

	merged, hasMore, _, err = agg.Fetch(context.Background(), integrations, 2, state)
	require.NoError(t, err)
	require.Len(t, merged, 1)
	assert.Equal(t, "JIRA-5", merged[0].Ticket.ExternalID)
	assert.False(t, hasMore)
}

func TestAggregatorSkipsExhaustedIntegrations(t *testing.T) {
	workspaceID := uuid.New()
	jira := makeIntegration(workspaceID, ticket.ProviderJira)
	github := makeIntegration(workspaceID, ticket.ProviderGitHub)
	jiraClient := &scriptedClient{tickets: makeProviderTickets("JIRA", 2)}
	githubClient := &scriptedClient{tickets: makeProviderTickets("GH", 6)}

	resolver := &fakeResolver{clients: map[uuid.UUID]provider.Client{
		jira.ID:   jiraClient,
		github.ID: githubClient,
	}}
	agg := NewAggregator(resolver, zap.NewNop())
	integrations := []*ticket.Integration{jira, github}

	_, hasMore, state, err := agg.Fetch(context.Background(), integrations, 3, nil)
	require.NoError(t, err)
	require.True(t, hasMore)
	require.True(t, state[jira.ID.String()].Exhausted)

	merged, hasMore, _, err := agg.Fetch(context.Background(), integrations, 3, state)
	require.NoError(t, err)
	assert.False(t, hasMore)

	// Jira finished on the first fetch and must not be queried again.
	assert.Equal(t, 1, jiraClient.calls)
	assert.Equal(t, 2, githubClient.calls)
	for _, ext := range merged {
		assert.Equal(t, github.ID, ext.Integration.ID)
	}
}

func TestAggregatorTreatsUnsupportedProviderAsExhausted(t *testing.T) {
	workspaceID := uuid.New()
	jira := makeIntegration(workspaceID, ticket.ProviderJira)
	confluence := makeIntegration(workspaceID, ticket.ProviderConfluence)

	resolver := &fakeResolver{clients: map[uuid.UUID]provider.Client{
		jira.ID: &scriptedClient{tickets: makeProviderTickets("JIRA", 2)},
	}}
	agg := NewAggregator(resolver, zap.NewNop())

	merged, hasMore, state, err := agg.Fetch(context.Background(), []*ticket.Integration{confluence, jira}, 5, nil)
	require.NoError(t, err)
	assert.Len(t, merged, 2)
	assert.False(t, hasMore)
	assert.True(t, state[confluence.ID.String()].Exhausted)
}

func TestAggregatorFailsWholePageOnProviderError(t *testing.T) {
	workspaceID := uuid.New()
	jira := makeIntegration(workspaceID, ticket.ProviderJira)
	github := makeIntegration(workspaceID, ticket.ProviderGitHub)

	resolver := &fakeResolver{clients: map[uuid.UUID]provider.Client{
		jira.ID:   &scriptedClient{tickets: makeProviderTickets("JIRA", 2)},
		github.ID: &scriptedClient{err: errors.New("rate limited")},
	}}
	agg := NewAggregator(resolver, zap.NewNop())

	merged, _, _, err := agg.Fetch(context.Background(), []*ticket.Integration{jira, github}, 5, nil)
	require.Error(t, err)
	assert.Nil(t, merged)
}

func TestAggregatorFailsOnResolveError(t *testing.T) {
	workspaceID := uuid.New()
	jira := makeIntegration(workspaceID, ticket.ProviderJira)

	resolver := &fakeResolver{errs: map[uuid.UUID]error{jira.ID: errors.New("bad credential")}}
	agg := NewAggregator(resolver, zap.NewNop())

	_, _, _, err := agg.Fetch(context.Background(), []*ticket.Integration{jira}, 5, nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, provider.ErrUnsupported)
}
