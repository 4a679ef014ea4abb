package feed

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clintrovert/praxis/internal/sentiment"
	"github.com/clintrovert/praxis/internal/ticket"
)

// TicketReader is the slice of the local store the feed needs.
type TicketReader interface {
	ListInternal(ctx context.Context, workspaceID uuid.UUID, offset, limit int) ([]*ticket.Ticket, error)
	FindMaterialized(ctx context.Context, integrationID uuid.UUID, externalIDs []string) (map[string]*ticket.Ticket, error)
	InternalReadyForAgent(ctx context.Context, limit int) ([]*ticket.Ticket, error)
	MaterializedReadyForAgent(ctx context.Context, limit int) ([]*ticket.Ticket, error)
}

// IntegrationLister lists the active integrations to fan out to.
type IntegrationLister interface {
	ListActiveByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]*ticket.Integration, error)
}

// MembershipChecker authorizes callers against a workspace before any read.
type MembershipChecker interface {
	IsMember(ctx context.Context, workspaceID, userID uuid.UUID) (bool, error)
}

// Page is one response page of the unified ticket feed.
type Page struct {
	Items         []Item  `json:"items"`
	NextPageToken *string `json:"nextPageToken"`
	IsLast        bool    `json:"isLast"`
}

// Service assembles feed pages. A page drains the internal store first; when
// the internal population runs out mid-page the same response continues into
// the external phase, and subsequent pages resume each provider from its
// carried cursor until every integration reports its last page.
type Service struct {
	tickets      TicketReader
	integrations IntegrationLister
	workspaces   MembershipChecker
	aggregator   *Aggregator
	sentiment    sentiment.Analyzer
	logger       *zap.Logger
}

// NewService creates a feed service.
func NewService(
	tickets TicketReader,
	integrations IntegrationLister,
	workspaces MembershipChecker,
	aggregator *Aggregator,
	analyzer sentiment.Analyzer,
	logger *zap.Logger,
) *Service {
	return &Service{
		tickets:      tickets,
		integrations: integrations,
		workspaces:   workspaces,
		aggregator:   aggregator,
		sentiment:    analyzer,
		logger:       logger,
	}
}

// List returns the feed page identified by the token. For a fixed backing
// dataset the same token always yields the same page; a malformed token is
// indistinguishable from no token.
func (s *Service) List(ctx context.Context, userID, workspaceID uuid.UUID, token string, pageSize int) (*Page, error) {
	member, err := s.workspaces.IsMember(ctx, workspaceID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, fmt.Errorf("user %s on workspace %s: %w", userID, workspaceID, ticket.ErrUnauthorized)
	}

	size := NormalizePageSize(pageSize)
	state := ParseToken(token)

	seen := make(map[string]bool)
	var items []Item
	var next PageState
	isLast := false

	switch state.Phase {
	case PhaseInternal:
		rows, err := s.tickets.ListInternal(ctx, workspaceID, state.InternalOffset, size)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			appendUnique(&items, seen, ItemFromInternal(row))
		}

		if len(rows) == size {
			// Internal may have more; stay in the internal phase.
			next = PageState{Phase: PhaseInternal, InternalOffset: state.InternalOffset + size}
			break
		}

		// Internal exhausted mid-page: continue into the external phase
		// within this same response using the leftover budget.
		budget := size - len(rows)
		external, hasMore, cursors, err := s.fetchExternal(ctx, workspaceID, budget, nil, seen)
		if err != nil {
			return nil, err
		}
		items = append(items, external...)
		if hasMore {
			next = PageState{Phase: PhaseExternal, Providers: cursors}
		} else {
			isLast = true
		}

	case PhaseExternal:
		external, hasMore, cursors, err := s.fetchExternal(ctx, workspaceID, size, state.Providers, seen)
		if err != nil {
			return nil, err
		}
		items = append(items, external...)
		if hasMore {
			next = PageState{Phase: PhaseExternal, Providers: cursors}
		} else {
			isLast = true
		}
	}

	s.enrich(ctx, items)

	page := &Page{Items: items, IsLast: isLast}
	if !isLast {
		token, err := next.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to encode page token: %w", err)
		}
		page.NextPageToken = &token
	}
	return page, nil
}

// AgentQueue returns tickets with an agent assigned, oldest update first, for
// the out-of-process agent worker to claim. Internal tickets come before
// materialized external ones.
func (s *Service) AgentQueue(ctx context.Context, limit int) ([]Item, error) {
	limit = NormalizePageSize(limit)

	internal, err := s.tickets.InternalReadyForAgent(ctx, limit)
	if err != nil {
		return nil, err
	}
	materialized, err := s.tickets.MaterializedReadyForAgent(ctx, limit)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(internal)+len(materialized))
	for _, row := range internal {
		items = append(items, ItemFromInternal(row))
	}
	for _, row := range materialized {
		items = append(items, ItemFromInternal(row))
	}
	return items, nil
}

// fetchExternal runs the aggregator and converts its results into feed
// items, overlaying any materialized local rows so assignment and internal
// execution status survive the provider round-trip.
func (s *Service) fetchExternal(
	ctx context.Context,
	workspaceID uuid.UUID,
	budget int,
	prior map[string]ProviderCursor,
	seen map[string]bool,
) ([]Item, bool, map[string]ProviderCursor, error) {
	integrations, err := s.integrations.ListActiveByWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, false, nil, err
	}
	if len(integrations) == 0 {
		return nil, false, nil, nil
	}

	fetched, hasMore, cursors, err := s.aggregator.Fetch(ctx, integrations, budget, prior)
	if err != nil {
		return nil, false, nil, err
	}

	materialized, err := s.findMaterialized(ctx, fetched)
	if err != nil {
		return nil, false, nil, err
	}

	var items []Item
	for _, ext := range fetched {
		key := ext.Integration.ID.String() + ":" + ext.Ticket.ExternalID
		appendUnique(&items, seen, ItemFromExternal(ext.Integration, ext.Ticket, materialized[key]))
	}
	return items, hasMore, cursors, nil
}

// findMaterialized batch-loads local rows for the fetched external tickets,
// keyed by composite identity.
func (s *Service) findMaterialized(ctx context.Context, fetched []ExternalTicket) (map[string]*ticket.Ticket, error) {
	byIntegration := make(map[uuid.UUID][]string)
	for _, ext := range fetched {
		byIntegration[ext.Integration.ID] = append(byIntegration[ext.Integration.ID], ext.Ticket.ExternalID)
	}

	rows := make(map[string]*ticket.Ticket)
	for integrationID, externalIDs := range byIntegration {
		found, err := s.tickets.FindMaterialized(ctx, integrationID, externalIDs)
		if err != nil {
			return nil, err
		}
		for externalID, row := range found {
			rows[integrationID.String()+":"+externalID] = row
		}
	}
	return rows, nil
}

// enrich applies batch sentiment scores to the page. Enrichment is
// best-effort: on any analyzer failure every item keeps the neutral default
// and the page still succeeds.
func (s *Service) enrich(ctx context.Context, items []Item) {
	if len(items) == 0 {
		return
	}

	inputs := make([]sentiment.Input, len(items))
	for i, it := range items {
		inputs[i] = sentiment.Input{ID: it.CanonicalID(), Title: it.Title, Body: it.Description}
	}

	scores, err := s.sentiment.AnalyzeBatch(ctx, inputs)
	if err != nil || len(scores) != len(items) {
		s.logger.Warn("sentiment enrichment failed, using default score", zap.Error(err))
		for i := range items {
			items[i].Satisfaction = sentiment.DefaultScore
		}
		return
	}
	for i := range items {
		items[i].Satisfaction = scores[i]
	}
}

// appendUnique adds the item unless its canonical id was already emitted in
// this response. Upstream resorting can surface a ticket on two provider
// pages while a client walks the feed; it must appear exactly once per page.
func appendUnique(items *[]Item, seen map[string]bool, it Item) {
	key := it.CanonicalID()
	if seen[key] {
		return
	}
	seen[key] = true
	*items = append(*items, it)
}
