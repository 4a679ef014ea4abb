package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clintrovert/praxis/internal/ticket"
)

// TicketStore persists local ticket rows: pure internal tickets and
// materialized external tickets.
type TicketStore struct {
	db *gorm.DB
}

// NewTicketStore creates a ticket store.
func NewTicketStore(db *gorm.DB) *TicketStore {
	return &TicketStore{db: db}
}

// Create inserts a new ticket row. A duplicate
// (integration_id, external_ticket_id) pair surfaces as
// ticket.ErrAlreadyExists so a lost materialization race can be retried as an
// update.
func (s *TicketStore) Create(ctx context.Context, t *ticket.Ticket) error {
	return translate(s.db.WithContext(ctx).Create(t).Error, "create ticket")
}

// Update saves the full ticket row.
func (s *TicketStore) Update(ctx context.Context, t *ticket.Ticket) error {
	return translate(s.db.WithContext(ctx).Save(t).Error, "update ticket")
}

// Delete removes a ticket row and its comments.
func (s *TicketStore) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("ticket_id = ?", id).Delete(&ticket.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&ticket.Ticket{}, "id = ?", id).Error
	})
	return translate(err, "delete ticket")
}

// GetByID loads a ticket by its local GUID with status, priority, and
// comments attached.
func (s *TicketStore) GetByID(ctx context.Context, id uuid.UUID) (*ticket.Ticket, error) {
	var t ticket.Ticket
	err := s.db.WithContext(ctx).
		Preload("Status").
		Preload("Priority").
		Preload("Comments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		First(&t, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "get ticket")
	}
	return &t, nil
}

// GetByExternal loads the materialized row for an external ticket, if any.
func (s *TicketStore) GetByExternal(ctx context.Context, integrationID uuid.UUID, externalID string) (*ticket.Ticket, error) {
	var t ticket.Ticket
	err := s.db.WithContext(ctx).
		Preload("Status").
		Preload("Priority").
		First(&t, "integration_id = ? AND external_ticket_id = ?", integrationID, externalID).Error
	if err != nil {
		return nil, translate(err, "get materialized ticket")
	}
	return &t, nil
}

// ListInternal returns one offset page of pure internal tickets for the
// workspace. Ordering is priority value descending, then last update
// descending, then id ascending: the tertiary key keeps pagination stable
// when priority and update time both tie. Materialized external tickets are
// excluded; the external phase emits them with their provider association
// intact.
func (s *TicketStore) ListInternal(ctx context.Context, workspaceID uuid.UUID, offset, limit int) ([]*ticket.Ticket, error) {
	var rows []*ticket.Ticket
	err := s.db.WithContext(ctx).
		Joins("JOIN priorities ON priorities.id = tickets.priority_id").
		Where("tickets.workspace_id = ? AND tickets.is_internal = ? AND tickets.integration_id IS NULL", workspaceID, true).
		Order("priorities.value DESC, tickets.updated_at DESC, tickets.id ASC").
		Offset(offset).
		Limit(limit).
		Preload("Status").
		Preload("Priority").
		Preload("Comments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Find(&rows).Error
	if err != nil {
		return nil, translate(err, "list internal tickets")
	}
	return rows, nil
}

// FindMaterialized returns the materialized rows for the given external ids
// of one integration, keyed by external ticket id.
func (s *TicketStore) FindMaterialized(ctx context.Context, integrationID uuid.UUID, externalIDs []string) (map[string]*ticket.Ticket, error) {
	if len(externalIDs) == 0 {
		return map[string]*ticket.Ticket{}, nil
	}

	var rows []*ticket.Ticket
	err := s.db.WithContext(ctx).
		Preload("Status").
		Preload("Priority").
		Where("integration_id = ? AND external_ticket_id IN ?", integrationID, externalIDs).
		Find(&rows).Error
	if err != nil {
		return nil, translate(err, "find materialized tickets")
	}

	byExternalID := make(map[string]*ticket.Ticket, len(rows))
	for _, row := range rows {
		byExternalID[*row.ExternalTicketID] = row
	}
	return byExternalID, nil
}

// AddComment appends a local comment to a ticket.
func (s *TicketStore) AddComment(ctx context.Context, c *ticket.Comment) error {
	return translate(s.db.WithContext(ctx).Create(c).Error, "add comment")
}

// InternalReadyForAgent returns internal tickets with an agent assigned,
// consumed by the out-of-process agent worker.
func (s *TicketStore) InternalReadyForAgent(ctx context.Context, limit int) ([]*ticket.Ticket, error) {
	var rows []*ticket.Ticket
	err := s.db.WithContext(ctx).
		Where("is_internal = ? AND integration_id IS NULL AND assigned_agent_id IS NOT NULL", true).
		Order("updated_at ASC").
		Limit(limit).
		Preload("Status").
		Preload("Priority").
		Find(&rows).Error
	if err != nil {
		return nil, translate(err, "list internal tickets ready for agent")
	}
	return rows, nil
}

// MaterializedReadyForAgent returns materialized external tickets with an
// agent assigned, consumed by the out-of-process agent worker.
func (s *TicketStore) MaterializedReadyForAgent(ctx context.Context, limit int) ([]*ticket.Ticket, error) {
	var rows []*ticket.Ticket
	err := s.db.WithContext(ctx).
		Where("is_internal = ? AND integration_id IS NOT NULL AND assigned_agent_id IS NOT NULL", false).
		Order("updated_at ASC").
		Limit(limit).
		Preload("Status").
		Preload("Priority").
		Find(&rows).Error
	if err != nil {
		return nil, translate(err, "list materialized tickets ready for agent")
	}
	return rows, nil
}
