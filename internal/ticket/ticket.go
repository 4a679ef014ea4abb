// Package ticket holds the domain model shared by the feed, command, and
// storage layers: workspaces, integrations, internal tickets, and the
// composite identity used for unmaterialized external tickets.
package ticket

import (
	"time"

	"github.com/google/uuid"
)

// ProviderType identifies an external issue tracker.
type ProviderType string

const (
	ProviderJira       ProviderType = "jira"
	ProviderGitHub     ProviderType = "github"
	ProviderGitLab     ProviderType = "gitlab"
	ProviderConfluence ProviderType = "confluence"
)

// DefaultStatusName is the internal status assigned to freshly materialized
// external tickets.
const DefaultStatusName = "To Do"

// Workspace is the tenancy boundary. All tickets, integrations, agents, and
// workflows belong to exactly one workspace.
type Workspace struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Name      string    `json:"name" gorm:"type:varchar(255);not null"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// WorkspaceMember grants a user access to a workspace.
type WorkspaceMember struct {
	WorkspaceID uuid.UUID `json:"workspaceId" gorm:"type:uuid;primaryKey"`
	UserID      uuid.UUID `json:"userId" gorm:"type:uuid;primaryKey"`
	Role        string    `json:"role" gorm:"type:varchar(64)"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Agent is an AI agent that can be assigned to tickets. Execution is handled
// by a separate worker outside this service.
type Agent struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	WorkspaceID uuid.UUID `json:"workspaceId" gorm:"type:uuid;index;not null"`
	Name        string    `json:"name" gorm:"type:varchar(255);not null"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Workflow is a reusable agent workflow definition.
type Workflow struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	WorkspaceID uuid.UUID `json:"workspaceId" gorm:"type:uuid;index;not null"`
	Name        string    `json:"name" gorm:"type:varchar(255);not null"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Status is an internal ticket status. External tickets carry provider-owned
// status strings instead; materialized external tickets use Status only to
// track internal execution state.
type Status struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	WorkspaceID uuid.UUID `json:"workspaceId" gorm:"type:uuid;index;not null"`
	Name        string    `json:"name" gorm:"type:varchar(64);not null"`
	SortOrder   int       `json:"sortOrder"`
}

// Priority is an internal priority level. Value orders priorities: a higher
// value means more urgent. External priorities are mapped to the nearest
// internal Value during materialization.
type Priority struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	WorkspaceID uuid.UUID `json:"workspaceId" gorm:"type:uuid;index;not null"`
	Name        string    `json:"name" gorm:"type:varchar(64);not null"`
	Value       int       `json:"value" gorm:"not null"`
}

// Integration is one connected external provider. Credential is encrypted at
// rest; the secret.Cipher collaborator decrypts it when a provider client is
// constructed.
type Integration struct {
	ID          uuid.UUID    `json:"id" gorm:"type:uuid;primaryKey"`
	WorkspaceID uuid.UUID    `json:"workspaceId" gorm:"type:uuid;index;not null"`
	Provider    ProviderType `json:"provider" gorm:"type:varchar(32);not null"`
	BaseURL     string       `json:"baseUrl" gorm:"type:text;not null"`
	Username    string       `json:"username" gorm:"type:varchar(255)"`
	Credential  []byte       `json:"-"`
	// ProjectKey scopes the integration to one project: a Jira project key,
	// a GitHub "owner/repo", or a GitLab project path.
	ProjectKey  string    `json:"projectKey" gorm:"type:varchar(255)"`
	FilterQuery string    `json:"filterQuery" gorm:"type:text"`
	IsActive    bool      `json:"isActive" gorm:"index"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Ticket is a durable local ticket row. Pure internal tickets always carry
// StatusID and PriorityID. Materialized external tickets carry an integration
// reference and exist only to hold assignment and internal execution status;
// their title and description are snapshots, with the provider staying
// authoritative at read time.
type Ticket struct {
	ID               uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	WorkspaceID      uuid.UUID  `json:"workspaceId" gorm:"type:uuid;index;not null"`
	Title            string     `json:"title" gorm:"type:text;not null"`
	Description      string     `json:"description" gorm:"type:text"`
	IsInternal       bool       `json:"isInternal" gorm:"index;not null"`
	IntegrationID    *uuid.UUID `json:"integrationId,omitempty" gorm:"type:uuid;uniqueIndex:idx_tickets_external_identity,priority:1"`
	ExternalTicketID *string    `json:"externalTicketId,omitempty" gorm:"type:varchar(255);uniqueIndex:idx_tickets_external_identity,priority:2"`
	StatusID         *uuid.UUID `json:"statusId,omitempty" gorm:"type:uuid"`
	PriorityID       *uuid.UUID `json:"priorityId,omitempty" gorm:"type:uuid"`
	AssignedAgentID  *uuid.UUID `json:"assignedAgentId,omitempty" gorm:"type:uuid"`
	AssignedWorkflowID *uuid.UUID `json:"assignedWorkflowId,omitempty" gorm:"type:uuid"`

	Status   *Status   `json:"-" gorm:"foreignKey:StatusID"`
	Priority *Priority `json:"-" gorm:"foreignKey:PriorityID"`
	Comments []Comment `json:"comments,omitempty" gorm:"foreignKey:TicketID"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Comment is a locally stored comment on a ticket. Comments on unmaterialized
// external tickets live in the provider and are read live instead.
type Comment struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	TicketID  uuid.UUID `json:"ticketId" gorm:"type:uuid;index;not null"`
	Author    string    `json:"author" gorm:"type:varchar(255)"`
	Body      string    `json:"body" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"createdAt"`
}

// IsMaterialized reports whether the ticket is a local row mirroring an
// external ticket.
func (t *Ticket) IsMaterialized() bool {
	return t.IntegrationID != nil && t.ExternalTicketID != nil
}

// CanDelete reports whether local deletion is permitted. Only pure internal
// tickets with no integration reference may be deleted; external tickets are
// owned by their provider.
func (t *Ticket) CanDelete() bool {
	return t.IsInternal && t.IntegrationID == nil
}

// CanConvert reports whether the ticket may be converted to an external
// ticket. Conversion is one-way: a ticket that already references an
// integration can never convert again.
func (t *Ticket) CanConvert() bool {
	return t.IsInternal && t.IntegrationID == nil
}

// Ref returns the ticket's identity as a Ref. Materialized external tickets
// are canonically identified by their composite external identity so that a
// provider-phase read and a local row never count as two tickets.
func (t *Ticket) Ref() Ref {
	if t.IsMaterialized() {
		return ExternalRef(*t.IntegrationID, *t.ExternalTicketID)
	}
	return InternalRef(t.ID)
}
