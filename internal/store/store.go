// Package store provides GORM-backed persistence for the local ticket store.
// Each store is a thin repository over one aggregate; consumers depend on
// narrow interfaces they declare themselves, and every store here satisfies
// the ones it is wired into.
package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/clintrovert/praxis/internal/ticket"
)

// translate maps GORM errors onto the domain taxonomy so callers never see
// storage-engine error types.
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", what, ticket.ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", what, ticket.ErrAlreadyExists)
	default:
		return fmt.Errorf("failed to %s: %w", what, err)
	}
}

// Migrate creates or updates the schema for every local entity.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&ticket.Workspace{},
		&ticket.WorkspaceMember{},
		&ticket.Agent{},
		&ticket.Workflow{},
		&ticket.Status{},
		&ticket.Priority{},
		&ticket.Integration{},
		&ticket.Ticket{},
		&ticket.Comment{},
	)
}
