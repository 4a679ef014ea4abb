package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clintrovert/praxis/internal/ticket"
)

// WorkspaceStore persists workspaces and membership, backing the
// authorization check that runs before every read and write.
type WorkspaceStore struct {
	db *gorm.DB
}

// NewWorkspaceStore creates a workspace store.
func NewWorkspaceStore(db *gorm.DB) *WorkspaceStore {
	return &WorkspaceStore{db: db}
}

// GetByID loads one workspace.
func (s *WorkspaceStore) GetByID(ctx context.Context, id uuid.UUID) (*ticket.Workspace, error) {
	var ws ticket.Workspace
	err := s.db.WithContext(ctx).First(&ws, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "get workspace")
	}
	return &ws, nil
}

// IsMember reports whether the user belongs to the workspace.
func (s *WorkspaceStore) IsMember(ctx context.Context, workspaceID, userID uuid.UUID) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&ticket.WorkspaceMember{}).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		Count(&count).Error
	if err != nil {
		return false, translate(err, "check workspace membership")
	}
	return count > 0, nil
}
