package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clintrovert/praxis/internal/ticket"
)

// LookupStore loads per-workspace status and priority tables.
type LookupStore struct {
	db *gorm.DB
}

// NewLookupStore creates a lookup store.
func NewLookupStore(db *gorm.DB) *LookupStore {
	return &LookupStore{db: db}
}

// GetStatus loads one internal status.
func (s *LookupStore) GetStatus(ctx context.Context, id uuid.UUID) (*ticket.Status, error) {
	var status ticket.Status
	err := s.db.WithContext(ctx).First(&status, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "get status")
	}
	return &status, nil
}

// GetStatusByName loads a workspace's status by name, used to resolve the
// default "To Do" status during materialization.
func (s *LookupStore) GetStatusByName(ctx context.Context, workspaceID uuid.UUID, name string) (*ticket.Status, error) {
	var status ticket.Status
	err := s.db.WithContext(ctx).
		First(&status, "workspace_id = ? AND name = ?", workspaceID, name).Error
	if err != nil {
		return nil, translate(err, "get status by name")
	}
	return &status, nil
}

// GetPriority loads one internal priority.
func (s *LookupStore) GetPriority(ctx context.Context, id uuid.UUID) (*ticket.Priority, error) {
	var priority ticket.Priority
	err := s.db.WithContext(ctx).First(&priority, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "get priority")
	}
	return &priority, nil
}

// ListPriorities returns all internal priorities of a workspace ordered by
// ascending value, which doubles as the deterministic tie-break order for
// nearest-priority mapping.
func (s *LookupStore) ListPriorities(ctx context.Context, workspaceID uuid.UUID) ([]*ticket.Priority, error) {
	var rows []*ticket.Priority
	err := s.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("value ASC").
		Find(&rows).Error
	if err != nil {
		return nil, translate(err, "list priorities")
	}
	return rows, nil
}
