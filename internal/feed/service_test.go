package feed

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clintrovert/praxis/internal/provider"
	"github.com/clintrovert/praxis/internal/sentiment"
	"github.com/clintrovert/praxis/internal/ticket"
)

// fakeTicketReader serves pre-sorted internal rows by offset and a canned
// materialized-row map, standing in for the GORM store.
type fakeTicketReader struct {
	internal     []*ticket.Ticket
	materialized map[string]*ticket.Ticket
}

func (f *fakeTicketReader) ListInternal(_ context.Context, _ uuid.UUID, offset, limit int) ([]*ticket.Ticket, error) {
	if offset > len(f.internal) {
		offset = len(f.internal)
	}
	end := offset + limit
	if end > len(f.internal) {
		end = len(f.internal)
	}
	return f.internal[offset:end], nil
}

func (f *fakeTicketReader) InternalReadyForAgent(_ context.Context, limit int) ([]*ticket.Ticket, error) {
	var out []*ticket.Ticket
	for _, t := range f.internal {
		if t.AssignedAgentID != nil && len(out) < limit {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTicketReader) MaterializedReadyForAgent(_ context.Context, limit int) ([]*ticket.Ticket, error) {
	var out []*ticket.Ticket
	for _, t := range f.materialized {
		if t.AssignedAgentID != nil && len(out) < limit {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTicketReader) FindMaterialized(_ context.Context, integrationID uuid.UUID, externalIDs []string) (map[string]*ticket.Ticket, error) {
	found := make(map[string]*ticket.Ticket)
	for _, externalID := range externalIDs {
		if row, ok := f.materialized[integrationID.String()+":"+externalID]; ok {
			found[externalID] = row
		}
	}
	return found, nil
}

type fakeIntegrationLister struct {
	integrations []*ticket.Integration
}

func (f *fakeIntegrationLister) ListActiveByWorkspace(_ context.Context, _ uuid.UUID) ([]*ticket.Integration, error) {
	return f.integrations, nil
}

type fakeMembership struct {
	member bool
}

func (f *fakeMembership) IsMember(_ context.Context, _, _ uuid.UUID) (bool, error) {
	return f.member, nil
}

type failingAnalyzer struct{}

func (failingAnalyzer) AnalyzeBatch(_ context.Context, _ []sentiment.Input) ([]int, error) {
	return nil, errors.New("model unavailable")
}

func makeInternalTickets(workspaceID uuid.UUID, n int) []*ticket.Ticket {
	now := time.Now().UTC()
	tickets := make([]*ticket.Ticket, n)
	for i := range tickets {
		tickets[i] = &ticket.Ticket{
			ID:          uuid.New(),
			WorkspaceID: workspaceID,
			Title:       fmt.Sprintf("internal ticket %d", i+1),
			IsInternal:  true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}
	return tickets
}

type feedFixture struct {
	service     *Service
	workspaceID uuid.UUID
	userID      uuid.UUID
	tickets     *fakeTicketReader
}

func newFeedFixture(internal int, external map[*ticket.Integration][]provider.Ticket, analyzer sentiment.Analyzer) *feedFixture {
	workspaceID := uuid.New()
	reader := &fakeTicketReader{
		internal:     makeInternalTickets(workspaceID, internal),
		materialized: make(map[string]*ticket.Ticket),
	}

	var integrations []*ticket.Integration
	clients := make(map[uuid.UUID]provider.Client)
	for integ, tickets := range external {
		integ.WorkspaceID = workspaceID
		integrations = append(integrations, integ)
		clients[integ.ID] = &scriptedClient{tickets: tickets}
	}

	agg := NewAggregator(&fakeResolver{clients: clients}, zap.NewNop())
	if analyzer == nil {
		analyzer = sentiment.Fixed(sentiment.DefaultScore)
	}
	service := NewService(
		reader,
		&fakeIntegrationLister{integrations: integrations},
		&fakeMembership{member: true},
		agg,
		analyzer,
		zap.NewNop(),
	)

	return &feedFixture{
		service:     service,
		workspaceID: workspaceID,
		userID:      uuid.New(),
		tickets:     reader,
	}
}

func (f *feedFixture) list(t *testing.T, token string, pageSize int) *Page {
	t.Helper()
	page, err := f.service.List(context.Background(), f.userID, f.workspaceID, token, pageSize)
	require.NoError(t, err)
	return page
}

func TestListRejectsNonMembers(t *testing.T) {
	f := newFeedFixture(1, nil, nil)
	service := NewService(
		f.tickets,
		&fakeIntegrationLister{},
		&fakeMembership{member: false},
		NewAggregator(&fakeResolver{}, zap.NewNop()),
		sentiment.Fixed(sentiment.DefaultScore),
		zap.NewNop(),
	)

	_, err := service.List(context.Background(), uuid.New(), f.workspaceID, "", 10)
	require.ErrorIs(t, err, ticket.ErrUnauthorized)
}

func TestListFirstPageIsIdempotent(t *testing.T) {
	integ := makeIntegration(uuid.Nil, ticket.ProviderGitHub)
	f := newFeedFixture(3, map[*ticket.Integration][]provider.Ticket{
		integ: makeProviderTickets("GH", 4),
	}, nil)

	first := f.list(t, "", 5)
	again := f.list(t, "", 5)
	assert.Equal(t, first.Items, again.Items)
	assert.Equal(t, first.IsLast, again.IsLast)
}

func TestListMalformedTokenResumesFromStart(t *testing.T) {
	f := newFeedFixture(7, nil, nil)

	fresh := f.list(t, "", 5)
	for _, token := range []string{"not-base64!!", "bm90IGpzb24", "e30"} {
		page := f.list(t, token, 5)
		assert.Equal(t, fresh.Items, page.Items, "token %q should behave like no token", token)
	}
}

func TestListMixedPhaseBoundaryPage(t *testing.T) {
	// 1 internal ticket and 7 external tickets with page size 5: the first
	// page crosses the boundary inside one response, the second finishes.
	integ := makeIntegration(uuid.Nil, ticket.ProviderJira)
	f := newFeedFixture(1, map[*ticket.Integration][]provider.Ticket{
		integ: makeProviderTickets("JIRA", 7),
	}, nil)

	page1 := f.list(t, "", 5)
	require.Len(t, page1.Items, 5)
	assert.True(t, page1.Items[0].IsInternal)
	for _, it := range page1.Items[1:] {
		assert.False(t, it.IsInternal)
	}
	assert.False(t, page1.IsLast)
	require.NotNil(t, page1.NextPageToken)

	page2 := f.list(t, *page1.NextPageToken, 5)
	assert.Len(t, page2.Items, 3)
	assert.True(t, page2.IsLast)
	assert.Nil(t, page2.NextPageToken)
}

func TestListMultiIntegrationWalk(t *testing.T) {
	// 11 internal tickets plus three integrations of 3 tickets each, page
	// size 5. Pages one and two are purely internal. Page three carries the
	// last internal ticket and, because every integration answers the
	// remaining budget in full, all nine external tickets land on it: the
	// boundary page legitimately exceeds the nominal size.
	a := makeIntegration(uuid.Nil, ticket.ProviderJira)
	b := makeIntegration(uuid.Nil, ticket.ProviderGitHub)
	c := makeIntegration(uuid.Nil, ticket.ProviderGitLab)
	f := newFeedFixture(11, map[*ticket.Integration][]provider.Ticket{
		a: makeProviderTickets("JIRA", 3),
		b: makeProviderTickets("GH", 3),
		c: makeProviderTickets("GL", 3),
	}, nil)

	page1 := f.list(t, "", 5)
	require.Len(t, page1.Items, 5)
	assert.False(t, page1.IsLast)

	page2 := f.list(t, *page1.NextPageToken, 5)
	require.Len(t, page2.Items, 5)
	assert.False(t, page2.IsLast)

	page3 := f.list(t, *page2.NextPageToken, 5)
	assert.Len(t, page3.Items, 10)
	assert.True(t, page3.IsLast)
	assert.True(t, page3.Items[0].IsInternal)

	internal := 0
	for _, it := range page3.Items {
		if it.IsInternal {
			internal++
		}
	}
	assert.Equal(t, 1, internal)
}

func TestListFullWalkLosesNothing(t *testing.T) {
	integ := makeIntegration(uuid.Nil, ticket.ProviderGitLab)
	f := newFeedFixture(6, map[*ticket.Integration][]provider.Ticket{
		integ: makeProviderTickets("GL", 5),
	}, nil)

	seen := make(map[string]int)
	token := ""
	for pages := 0; ; pages++ {
		require.Less(t, pages, 20, "walk did not terminate")
		page := f.list(t, token, 4)
		for _, it := range page.Items {
			seen[it.CanonicalID()]++
		}
		if page.IsLast {
			break
		}
		require.NotNil(t, page.NextPageToken)
		token = *page.NextPageToken
	}

	assert.Len(t, seen, 11)
	for id, count := range seen {
		assert.Equal(t, 1, count, "ticket %s appeared %d times", id, count)
	}
}

func TestListPureExternalWorkspace(t *testing.T) {
	integ := makeIntegration(uuid.Nil, ticket.ProviderGitHub)
	f := newFeedFixture(0, map[*ticket.Integration][]provider.Ticket{
		integ: makeProviderTickets("GH", 3),
	}, nil)

	page := f.list(t, "", 10)
	assert.Len(t, page.Items, 3)
	assert.True(t, page.IsLast)
	for _, it := range page.Items {
		assert.Equal(t, string(ticket.ProviderGitHub), it.Source)
	}
}

func TestListEmptyWorkspaceIsLastImmediately(t *testing.T) {
	f := newFeedFixture(0, nil, nil)

	page := f.list(t, "", 10)
	assert.Empty(t, page.Items)
	assert.True(t, page.IsLast)
	assert.Nil(t, page.NextPageToken)
}

func TestListOverlaysMaterializedRows(t *testing.T) {
	integ := makeIntegration(uuid.Nil, ticket.ProviderJira)
	f := newFeedFixture(0, map[*ticket.Integration][]provider.Ticket{
		integ: makeProviderTickets("JIRA", 2),
	}, nil)

	agentID := uuid.New()
	externalID := "JIRA-1"
	row := &ticket.Ticket{
		ID:               uuid.New(),
		WorkspaceID:      f.workspaceID,
		Title:            "stale snapshot title",
		IsInternal:       false,
		IntegrationID:    &integ.ID,
		ExternalTicketID: &externalID,
		AssignedAgentID:  &agentID,
	}
	f.tickets.materialized[integ.ID.String()+":"+externalID] = row

	page := f.list(t, "", 10)
	require.Len(t, page.Items, 2)

	materialized := page.Items[0]
	assert.Equal(t, row.ID.String(), materialized.ID)
	require.NotNil(t, materialized.AssignedAgentID)
	assert.Equal(t, agentID, *materialized.AssignedAgentID)
	// Display fields keep mirroring the provider, not the snapshot.
	assert.Equal(t, "JIRA ticket 1", materialized.Title)

	plain := page.Items[1]
	assert.Equal(t, integ.ID.String()+":JIRA-2", plain.ID)
	assert.Nil(t, plain.AssignedAgentID)
}

func TestListSentimentFailureFallsBackToDefault(t *testing.T) {
	integ := makeIntegration(uuid.Nil, ticket.ProviderGitHub)
	f := newFeedFixture(2, map[*ticket.Integration][]provider.Ticket{
		integ: makeProviderTickets("GH", 2),
	}, failingAnalyzer{})

	page := f.list(t, "", 10)
	require.Len(t, page.Items, 4)
	assert.True(t, page.IsLast)
	for _, it := range page.Items {
		assert.Equal(t, sentiment.DefaultScore, it.Satisfaction)
	}
}

func TestAgentQueue(t *testing.T) {
	integ := makeIntegration(uuid.Nil, ticket.ProviderJira)
	f := newFeedFixture(3, nil, nil)

	agentID := uuid.New()
	f.tickets.internal[1].AssignedAgentID = &agentID

	externalID := "JIRA-7"
	row := &ticket.Ticket{
		ID:               uuid.New(),
		WorkspaceID:      f.workspaceID,
		Title:            "materialized with agent",
		IntegrationID:    &integ.ID,
		ExternalTicketID: &externalID,
		AssignedAgentID:  &agentID,
	}
	f.tickets.materialized[integ.ID.String()+":"+externalID] = row

	items, err := f.service.AgentQueue(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, f.tickets.internal[1].ID.String(), items[0].ID)
	assert.Equal(t, row.ID.String(), items[1].ID)
}

func TestListAppliesAnalyzerScores(t *testing.T) {
	f := newFeedFixture(3, nil, sentiment.Fixed(42))

	page := f.list(t, "", 10)
	require.Len(t, page.Items, 3)
	for _, it := range page.Items {
		assert.Equal(t, 42, it.Satisfaction)
	}
}
