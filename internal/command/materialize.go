package command

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clintrovert/praxis/internal/provider"
	"github.com/clintrovert/praxis/internal/ticket"
)

// materialize creates the durable local row for an external ticket the first
// time an assignment targets it. Title and description snapshot the provider
// values at this moment and are never synced afterward; the provider stays
// authoritative at display time. When a concurrent materialization wins the
// (integrationId, externalTicketId) unique constraint, the loser retries as
// a plain assignment update.
func (s *Service) materialize(
	ctx context.Context,
	integ *ticket.Integration,
	externalID string,
	agentID, workflowID *uuid.UUID,
) (*ticket.Ticket, provider.Ticket, error) {
	client, err := s.clients.Resolve(integ)
	if err != nil {
		return nil, provider.Ticket{}, err
	}
	snapshot, err := client.GetTicket(ctx, externalID)
	if err != nil {
		return nil, provider.Ticket{}, err
	}

	priorities, err := s.lookups.ListPriorities(ctx, integ.WorkspaceID)
	if err != nil {
		return nil, provider.Ticket{}, err
	}
	priority, err := nearestPriority(priorities, snapshot.PriorityValue)
	if err != nil {
		return nil, provider.Ticket{}, err
	}

	status, err := s.lookups.GetStatusByName(ctx, integ.WorkspaceID, ticket.DefaultStatusName)
	if err != nil {
		return nil, provider.Ticket{}, fmt.Errorf("default status %q is not configured: %w", ticket.DefaultStatusName, err)
	}

	now := time.Now().UTC()
	row := &ticket.Ticket{
		ID:                 uuid.New(),
		WorkspaceID:        integ.WorkspaceID,
		Title:              snapshot.Title,
		Description:        snapshot.Description,
		IsInternal:         false,
		IntegrationID:      &integ.ID,
		ExternalTicketID:   &externalID,
		StatusID:           &status.ID,
		PriorityID:         &priority.ID,
		AssignedAgentID:    agentID,
		AssignedWorkflowID: workflowID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err = s.tickets.Create(ctx, row)
	if errors.Is(err, ticket.ErrAlreadyExists) {
		// Lost a materialization race; the other writer's row wins and this
		// call degrades to an assignment update.
		existing, getErr := s.tickets.GetByExternal(ctx, integ.ID, externalID)
		if getErr != nil {
			return nil, provider.Ticket{}, getErr
		}
		if agentID != nil {
			existing.AssignedAgentID = agentID
		}
		if workflowID != nil {
			existing.AssignedWorkflowID = workflowID
		}
		existing.UpdatedAt = time.Now().UTC()
		if err := s.tickets.Update(ctx, existing); err != nil {
			return nil, provider.Ticket{}, err
		}
		return existing, snapshot, nil
	}
	if err != nil {
		return nil, provider.Ticket{}, err
	}

	s.logger.Info("materialized external ticket",
		zap.String("ticket_id", row.ID.String()),
		zap.String("integration_id", integ.ID.String()),
		zap.String("external_id", externalID),
		zap.String("priority", priority.Name),
	)

	row.Status, row.Priority = status, priority
	return row, snapshot, nil
}

// nearestPriority maps an external numeric priority onto the internal
// priority with the smallest absolute distance. Equidistant ties resolve to
// the lower value, which keeps the mapping deterministic regardless of table
// iteration order. An empty priority table is a configuration error.
func nearestPriority(priorities []*ticket.Priority, externalValue float64) (*ticket.Priority, error) {
	if len(priorities) == 0 {
		return nil, fmt.Errorf("no internal priorities configured: %w", ticket.ErrInvalidOperation)
	}

	best := priorities[0]
	bestDistance := math.Abs(float64(best.Value) - externalValue)
	for _, p := range priorities[1:] {
		distance := math.Abs(float64(p.Value) - externalValue)
		if distance < bestDistance || (distance == bestDistance && p.Value < best.Value) {
			best, bestDistance = p, distance
		}
	}
	return best, nil
}
