package feed

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/clintrovert/praxis/internal/provider"
	"github.com/clintrovert/praxis/internal/ticket"
)

// ClientResolver builds a provider client for an integration. The production
// implementation is provider.Resolver; tests substitute scripted clients.
type ClientResolver interface {
	Resolve(integ *ticket.Integration) (provider.Client, error)
}

// ExternalTicket is one provider ticket tagged with the integration it came
// from, so downstream code can attach composite identity and materialized
// state.
type ExternalTicket struct {
	Integration *ticket.Integration
	Ticket      provider.Ticket
}

// Aggregator fans a budgeted fetch out to every connected integration and
// merges the results into one deterministic sequence.
type Aggregator struct {
	clients ClientResolver
	logger  *zap.Logger
}

// NewAggregator creates an aggregator.
func NewAggregator(clients ClientResolver, logger *zap.Logger) *Aggregator {
	return &Aggregator{clients: clients, logger: logger}
}

// Fetch retrieves up to budget tickets from each integration that is not yet
// exhausted, resuming every one from its carried cursor. Provider calls run
// concurrently but results merge strictly in integration order, so the same
// inputs always produce the same sequence. The returned state carries every
// integration's next cursor; hasMore is true while any integration still has
// pages.
//
// Each integration receives the full budget rather than a share of it: a
// page straddling the internal/external boundary may therefore carry more
// tickets than the nominal page size when several integrations respond.
// That over-filled boundary page is intentional feed behavior.
//
// An integration whose provider type has no registered client is logged and
// treated as exhausted. Any other provider failure fails the whole fetch:
// the feed never silently returns partial pages.
func (a *Aggregator) Fetch(
	ctx context.Context,
	integrations []*ticket.Integration,
	budget int,
	prior map[string]ProviderCursor,
) ([]ExternalTicket, bool, map[string]ProviderCursor, error) {
	state := make(map[string]ProviderCursor, len(integrations))
	for id, cursor := range prior {
		state[id] = cursor
	}

	type fetched struct {
		page    provider.Page
		skipped bool
	}
	results := make([]fetched, len(integrations))

	g, gctx := errgroup.WithContext(ctx)
	for i, integ := range integrations {
		i, integ := i, integ
		cursor := state[integ.ID.String()]
		if cursor.Exhausted || budget <= 0 {
			results[i].skipped = true
			continue
		}

		client, err := a.clients.Resolve(integ)
		if err != nil {
			if errors.Is(err, provider.ErrUnsupported) {
				a.logger.Warn("skipping integration with unsupported provider",
					zap.String("integration_id", integ.ID.String()),
					zap.String("provider", string(integ.Provider)),
				)
				state[integ.ID.String()] = ProviderCursor{Exhausted: true}
				results[i].skipped = true
				continue
			}
			return nil, false, nil, fmt.Errorf("failed to resolve provider client: %w", err)
		}

		g.Go(func() error {
			page, err := client.FetchTickets(gctx, cursor.Cursor(), budget)
			if err != nil {
				return fmt.Errorf("failed to fetch tickets from integration %s: %w", integ.ID, err)
			}
			results[i].page = page
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// Partial results are discarded; cancellation and provider errors
		// both fail the page.
		return nil, false, nil, err
	}

	var merged []ExternalTicket
	for i, integ := range integrations {
		if results[i].skipped {
			continue
		}
		page := results[i].page
		for _, t := range page.Tickets {
			merged = append(merged, ExternalTicket{Integration: integ, Ticket: t})
		}
		state[integ.ID.String()] = ProviderCursor{
			StartAt:   page.Next.StartAt,
			Page:      page.Next.Page,
			PageToken: page.Next.PageToken,
			Exhausted: page.IsLast,
		}
	}

	hasMore := false
	for _, integ := range integrations {
		if !state[integ.ID.String()].Exhausted {
			hasMore = true
			break
		}
	}

	return merged, hasMore, state, nil
}
