// Package command orchestrates ticket mutations: create, update, delete,
// convert-to-external, and the lazy materialization of external tickets when
// a local-only mutation first touches them.
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clintrovert/praxis/internal/feed"
	"github.com/clintrovert/praxis/internal/provider"
	"github.com/clintrovert/praxis/internal/ticket"
)

// TicketStore is the slice of the local store the command service needs.
type TicketStore interface {
	Create(ctx context.Context, t *ticket.Ticket) error
	Update(ctx context.Context, t *ticket.Ticket) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*ticket.Ticket, error)
	GetByExternal(ctx context.Context, integrationID uuid.UUID, externalID string) (*ticket.Ticket, error)
	AddComment(ctx context.Context, c *ticket.Comment) error
}

// IntegrationGetter loads integrations for external ticket mutations.
type IntegrationGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*ticket.Integration, error)
}

// LookupReader loads status and priority tables.
type LookupReader interface {
	GetStatus(ctx context.Context, id uuid.UUID) (*ticket.Status, error)
	GetStatusByName(ctx context.Context, workspaceID uuid.UUID, name string) (*ticket.Status, error)
	GetPriority(ctx context.Context, id uuid.UUID) (*ticket.Priority, error)
	ListPriorities(ctx context.Context, workspaceID uuid.UUID) ([]*ticket.Priority, error)
}

// WorkspaceReader checks workspace existence and membership.
type WorkspaceReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*ticket.Workspace, error)
	IsMember(ctx context.Context, workspaceID, userID uuid.UUID) (bool, error)
}

// AssignableReader loads agents and workflows for assignment validation.
type AssignableReader interface {
	GetAgent(ctx context.Context, id uuid.UUID) (*ticket.Agent, error)
	GetWorkflow(ctx context.Context, id uuid.UUID) (*ticket.Workflow, error)
}

// ClientResolver builds a provider client for an integration.
type ClientResolver interface {
	Resolve(integ *ticket.Integration) (provider.Client, error)
}

// Service executes ticket commands.
type Service struct {
	tickets      TicketStore
	integrations IntegrationGetter
	lookups      LookupReader
	workspaces   WorkspaceReader
	assignables  AssignableReader
	clients      ClientResolver
	logger       *zap.Logger
}

// NewService creates a command service.
func NewService(
	tickets TicketStore,
	integrations IntegrationGetter,
	lookups LookupReader,
	workspaces WorkspaceReader,
	assignables AssignableReader,
	clients ClientResolver,
	logger *zap.Logger,
) *Service {
	return &Service{
		tickets:      tickets,
		integrations: integrations,
		lookups:      lookups,
		workspaces:   workspaces,
		assignables:  assignables,
		clients:      clients,
		logger:       logger,
	}
}

// CreateTicket is the input for CreateTicket.
type CreateTicket struct {
	WorkspaceID        uuid.UUID
	Title              string
	Description        string
	StatusID           uuid.UUID
	PriorityID         uuid.UUID
	AssignedAgentID    *uuid.UUID
	AssignedWorkflowID *uuid.UUID
}

// UpdateTicket is the input for UpdateTicket. Nil fields are left unchanged.
type UpdateTicket struct {
	Title              *string
	Description        *string
	StatusID           *uuid.UUID
	PriorityID         *uuid.UUID
	AssignedAgentID    *uuid.UUID
	AssignedWorkflowID *uuid.UUID
}

func (c UpdateTicket) requestsAssignment() bool {
	return c.AssignedAgentID != nil || c.AssignedWorkflowID != nil
}

func (c UpdateTicket) requestsProviderOwnedFields() bool {
	return c.StatusID != nil || c.PriorityID != nil
}

// CreateTicket validates and persists a pure internal ticket.
func (s *Service) CreateTicket(ctx context.Context, userID uuid.UUID, cmd CreateTicket) (*feed.Item, error) {
	if err := s.authorize(ctx, userID, cmd.WorkspaceID); err != nil {
		return nil, err
	}
	if _, err := s.workspaces.GetByID(ctx, cmd.WorkspaceID); err != nil {
		return nil, err
	}

	status, err := s.lookups.GetStatus(ctx, cmd.StatusID)
	if err != nil {
		return nil, err
	}
	priority, err := s.lookups.GetPriority(ctx, cmd.PriorityID)
	if err != nil {
		return nil, err
	}

	if err := s.validateAssignment(ctx, cmd.WorkspaceID, cmd.AssignedAgentID, cmd.AssignedWorkflowID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	t := &ticket.Ticket{
		ID:                 uuid.New(),
		WorkspaceID:        cmd.WorkspaceID,
		Title:              cmd.Title,
		Description:        cmd.Description,
		IsInternal:         true,
		StatusID:           &status.ID,
		PriorityID:         &priority.ID,
		AssignedAgentID:    cmd.AssignedAgentID,
		AssignedWorkflowID: cmd.AssignedWorkflowID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.tickets.Create(ctx, t); err != nil {
		return nil, err
	}

	s.logger.Info("created internal ticket",
		zap.String("ticket_id", t.ID.String()),
		zap.String("workspace_id", cmd.WorkspaceID.String()),
	)

	t.Status, t.Priority = status, priority
	item := feed.ItemFromInternal(t)
	return &item, nil
}

// UpdateTicket routes a mutation by the shape of the ticket id. A local GUID
// mutates the stored row directly. A composite external id may only change
// assignment: status and priority are provider-owned, and an assignment to a
// ticket with no local row triggers materialization.
func (s *Service) UpdateTicket(ctx context.Context, userID uuid.UUID, id string, cmd UpdateTicket) (*feed.Item, error) {
	ref, err := ticket.ParseRef(id)
	if err != nil {
		return nil, err
	}
	if ref.IsExternal() {
		return s.updateExternal(ctx, userID, ref, cmd)
	}
	return s.updateInternal(ctx, userID, ref.InternalID(), cmd)
}

func (s *Service) updateInternal(ctx context.Context, userID, id uuid.UUID, cmd UpdateTicket) (*feed.Item, error) {
	t, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, userID, t.WorkspaceID); err != nil {
		return nil, err
	}

	if cmd.Title != nil {
		t.Title = *cmd.Title
	}
	if cmd.Description != nil {
		t.Description = *cmd.Description
	}
	if cmd.StatusID != nil {
		status, err := s.lookups.GetStatus(ctx, *cmd.StatusID)
		if err != nil {
			return nil, err
		}
		t.StatusID, t.Status = &status.ID, status
	}
	if cmd.PriorityID != nil {
		priority, err := s.lookups.GetPriority(ctx, *cmd.PriorityID)
		if err != nil {
			return nil, err
		}
		t.PriorityID, t.Priority = &priority.ID, priority
	}
	if cmd.requestsAssignment() {
		if err := s.validateAssignment(ctx, t.WorkspaceID, cmd.AssignedAgentID, cmd.AssignedWorkflowID); err != nil {
			return nil, err
		}
		if cmd.AssignedAgentID != nil {
			t.AssignedAgentID = cmd.AssignedAgentID
		}
		if cmd.AssignedWorkflowID != nil {
			t.AssignedWorkflowID = cmd.AssignedWorkflowID
		}
	}

	t.UpdatedAt = time.Now().UTC()
	if err := s.tickets.Update(ctx, t); err != nil {
		return nil, err
	}

	item := feed.ItemFromInternal(t)
	return &item, nil
}

func (s *Service) updateExternal(ctx context.Context, userID uuid.UUID, ref ticket.Ref, cmd UpdateTicket) (*feed.Item, error) {
	if cmd.requestsProviderOwnedFields() {
		return nil, fmt.Errorf("status and priority of external tickets are provider-owned: %w", ticket.ErrInvalidOperation)
	}

	integ, err := s.integrations.GetByID(ctx, ref.IntegrationID())
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, userID, integ.WorkspaceID); err != nil {
		return nil, err
	}

	existing, err := s.tickets.GetByExternal(ctx, ref.IntegrationID(), ref.ExternalID())
	switch {
	case err == nil:
		if !cmd.requestsAssignment() {
			return nil, fmt.Errorf("only assignment can change on an external ticket: %w", ticket.ErrInvalidOperation)
		}
		if err := s.validateAssignment(ctx, integ.WorkspaceID, cmd.AssignedAgentID, cmd.AssignedWorkflowID); err != nil {
			return nil, err
		}
		if cmd.AssignedAgentID != nil {
			existing.AssignedAgentID = cmd.AssignedAgentID
		}
		if cmd.AssignedWorkflowID != nil {
			existing.AssignedWorkflowID = cmd.AssignedWorkflowID
		}
		existing.UpdatedAt = time.Now().UTC()
		if err := s.tickets.Update(ctx, existing); err != nil {
			return nil, err
		}
		return s.externalView(ctx, integ, ref.ExternalID(), existing)

	case errors.Is(err, ticket.ErrNotFound):
		if !cmd.requestsAssignment() {
			return nil, fmt.Errorf("materializing an external ticket requires an assignment: %w", ticket.ErrInvalidOperation)
		}
		if err := s.validateAssignment(ctx, integ.WorkspaceID, cmd.AssignedAgentID, cmd.AssignedWorkflowID); err != nil {
			return nil, err
		}
		materialized, snapshot, err := s.materialize(ctx, integ, ref.ExternalID(), cmd.AssignedAgentID, cmd.AssignedWorkflowID)
		if err != nil {
			return nil, err
		}
		item := feed.ItemFromExternal(integ, snapshot, materialized)
		return &item, nil

	default:
		return nil, err
	}
}

// DeleteTicket removes a pure internal ticket. External tickets, including
// materialized ones, are owned by their provider and cannot be deleted here.
func (s *Service) DeleteTicket(ctx context.Context, userID uuid.UUID, id string) error {
	ref, err := ticket.ParseRef(id)
	if err != nil {
		return err
	}
	if ref.IsExternal() {
		return fmt.Errorf("external tickets cannot be deleted locally: %w", ticket.ErrInvalidOperation)
	}

	t, err := s.tickets.GetByID(ctx, ref.InternalID())
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, userID, t.WorkspaceID); err != nil {
		return err
	}
	if !t.CanDelete() {
		return fmt.Errorf("ticket %s references an integration: %w", t.ID, ticket.ErrInvalidOperation)
	}

	return s.tickets.Delete(ctx, t.ID)
}

// ConvertToExternal creates the ticket in the target provider and flips the
// local row to external state. The provider becomes authoritative for status
// and priority, so both internal fields are cleared. Conversion is one-way.
func (s *Service) ConvertToExternal(ctx context.Context, userID uuid.UUID, id string, integrationID uuid.UUID) (*feed.Item, error) {
	ref, err := ticket.ParseRef(id)
	if err != nil {
		return nil, err
	}
	if ref.IsExternal() {
		return nil, fmt.Errorf("ticket is already external: %w", ticket.ErrInvalidOperation)
	}

	t, err := s.tickets.GetByID(ctx, ref.InternalID())
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, userID, t.WorkspaceID); err != nil {
		return nil, err
	}
	if !t.CanConvert() {
		return nil, fmt.Errorf("ticket %s is already external: %w", t.ID, ticket.ErrInvalidOperation)
	}

	integ, err := s.integrations.GetByID(ctx, integrationID)
	if err != nil {
		return nil, err
	}
	if integ.WorkspaceID != t.WorkspaceID {
		return nil, fmt.Errorf("integration belongs to a different workspace: %w", ticket.ErrInvalidOperation)
	}

	client, err := s.clients.Resolve(integ)
	if err != nil {
		return nil, err
	}
	created, err := client.CreateIssue(ctx, t.Title, t.Description)
	if err != nil {
		return nil, err
	}

	t.IsInternal = false
	t.IntegrationID = &integ.ID
	externalID := created.ExternalID
	t.ExternalTicketID = &externalID
	t.StatusID, t.Status = nil, nil
	t.PriorityID, t.Priority = nil, nil
	t.UpdatedAt = time.Now().UTC()
	if err := s.tickets.Update(ctx, t); err != nil {
		return nil, err
	}

	s.logger.Info("converted ticket to external",
		zap.String("ticket_id", t.ID.String()),
		zap.String("integration_id", integ.ID.String()),
		zap.String("external_id", externalID),
	)

	item := feed.ItemFromExternal(integ, created, t)
	return &item, nil
}

// AddComment appends a comment locally for internal tickets or posts it to
// the provider for external tickets.
func (s *Service) AddComment(ctx context.Context, userID uuid.UUID, id, author, body string) error {
	ref, err := ticket.ParseRef(id)
	if err != nil {
		return err
	}

	if ref.IsExternal() {
		integ, err := s.integrations.GetByID(ctx, ref.IntegrationID())
		if err != nil {
			return err
		}
		if err := s.authorize(ctx, userID, integ.WorkspaceID); err != nil {
			return err
		}
		client, err := s.clients.Resolve(integ)
		if err != nil {
			return err
		}
		return client.AddComment(ctx, ref.ExternalID(), body)
	}

	t, err := s.tickets.GetByID(ctx, ref.InternalID())
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, userID, t.WorkspaceID); err != nil {
		return err
	}
	if t.IsMaterialized() {
		// Comments on materialized tickets go to the provider, which stays
		// authoritative for conversation content.
		integ, err := s.integrations.GetByID(ctx, *t.IntegrationID)
		if err != nil {
			return err
		}
		client, err := s.clients.Resolve(integ)
		if err != nil {
			return err
		}
		return client.AddComment(ctx, *t.ExternalTicketID, body)
	}

	return s.tickets.AddComment(ctx, &ticket.Comment{
		ID:        uuid.New(),
		TicketID:  t.ID,
		Author:    author,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	})
}

func (s *Service) authorize(ctx context.Context, userID, workspaceID uuid.UUID) error {
	member, err := s.workspaces.IsMember(ctx, workspaceID, userID)
	if err != nil {
		return err
	}
	if !member {
		return fmt.Errorf("user %s on workspace %s: %w", userID, workspaceID, ticket.ErrUnauthorized)
	}
	return nil
}

// validateAssignment checks that an assigned agent or workflow exists and
// belongs to the ticket's workspace.
func (s *Service) validateAssignment(ctx context.Context, workspaceID uuid.UUID, agentID, workflowID *uuid.UUID) error {
	if agentID != nil {
		agent, err := s.assignables.GetAgent(ctx, *agentID)
		if err != nil {
			return err
		}
		if agent.WorkspaceID != workspaceID {
			return fmt.Errorf("agent %s belongs to a different workspace: %w", agent.ID, ticket.ErrInvalidOperation)
		}
	}
	if workflowID != nil {
		workflow, err := s.assignables.GetWorkflow(ctx, *workflowID)
		if err != nil {
			return err
		}
		if workflow.WorkspaceID != workspaceID {
			return fmt.Errorf("workflow %s belongs to a different workspace: %w", workflow.ID, ticket.ErrInvalidOperation)
		}
	}
	return nil
}

// externalView re-reads an external ticket from its provider so the caller
// gets the authoritative display state alongside the local row.
func (s *Service) externalView(ctx context.Context, integ *ticket.Integration, externalID string, row *ticket.Ticket) (*feed.Item, error) {
	client, err := s.clients.Resolve(integ)
	if err != nil {
		return nil, err
	}
	snapshot, err := client.GetTicket(ctx, externalID)
	if err != nil {
		return nil, err
	}
	item := feed.ItemFromExternal(integ, snapshot, row)
	return &item, nil
}
