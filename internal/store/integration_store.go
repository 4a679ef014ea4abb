package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clintrovert/praxis/internal/ticket"
)

// IntegrationStore persists external provider connections.
type IntegrationStore struct {
	db *gorm.DB
}

// NewIntegrationStore creates an integration store.
func NewIntegrationStore(db *gorm.DB) *IntegrationStore {
	return &IntegrationStore{db: db}
}

// GetByID loads one integration.
func (s *IntegrationStore) GetByID(ctx context.Context, id uuid.UUID) (*ticket.Integration, error) {
	var integ ticket.Integration
	err := s.db.WithContext(ctx).First(&integ, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "get integration")
	}
	return &integ, nil
}

// ListActiveByWorkspace returns the connected integrations for a workspace
// in a stable order. The order matters: the external fetch aggregator merges
// provider results by integration order, so it must not change between two
// pages of the same feed.
func (s *IntegrationStore) ListActiveByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]*ticket.Integration, error) {
	var rows []*ticket.Integration
	err := s.db.WithContext(ctx).
		Where("workspace_id = ? AND is_active = ?", workspaceID, true).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, translate(err, "list integrations")
	}
	return rows, nil
}
