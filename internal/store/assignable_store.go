package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clintrovert/praxis/internal/ticket"
)

// AssignableStore loads agents and workflows for assignment validation.
type AssignableStore struct {
	db *gorm.DB
}

// NewAssignableStore creates an assignable store.
func NewAssignableStore(db *gorm.DB) *AssignableStore {
	return &AssignableStore{db: db}
}

// GetAgent loads one agent.
func (s *AssignableStore) GetAgent(ctx context.Context, id uuid.UUID) (*ticket.Agent, error) {
	var agent ticket.Agent
	err := s.db.WithContext(ctx).First(&agent, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "get agent")
	}
	return &agent, nil
}

// GetWorkflow loads one workflow.
func (s *AssignableStore) GetWorkflow(ctx context.Context, id uuid.UUID) (*ticket.Workflow, error) {
	var workflow ticket.Workflow
	err := s.db.WithContext(ctx).First(&workflow, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "get workflow")
	}
	return &workflow, nil
}
