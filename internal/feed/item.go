package feed

import (
	"time"

	"github.com/google/uuid"

	"github.com/clintrovert/praxis/internal/provider"
	"github.com/clintrovert/praxis/internal/ticket"
)

// CommentView is one comment in a feed item, regardless of whether it came
// from the local store or a provider.
type CommentView struct {
	ID        string    `json:"id"`
	Author    string    `json:"author,omitempty"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// Item is one ticket in a feed page. ID is either a local GUID or the
// composite "{integrationId}:{externalTicketId}" of an unmaterialized
// external ticket. For external tickets, title, description, status, and
// priority mirror the provider; any local row contributes only assignment
// and internal execution status.
type Item struct {
	ID                 string       `json:"id"`
	WorkspaceID        uuid.UUID    `json:"workspaceId"`
	Title              string       `json:"title"`
	Description        string       `json:"description,omitempty"`
	IsInternal         bool         `json:"isInternal"`
	Source             string       `json:"source"`
	Status             string       `json:"status,omitempty"`
	Priority           string       `json:"priority,omitempty"`
	StatusID           *uuid.UUID   `json:"statusId,omitempty"`
	PriorityID         *uuid.UUID   `json:"priorityId,omitempty"`
	IntegrationID      *uuid.UUID   `json:"integrationId,omitempty"`
	ExternalTicketID   string       `json:"externalTicketId,omitempty"`
	URL                string       `json:"url,omitempty"`
	AssignedAgentID    *uuid.UUID   `json:"assignedAgentId,omitempty"`
	AssignedWorkflowID *uuid.UUID   `json:"assignedWorkflowId,omitempty"`
	Satisfaction       int          `json:"satisfaction"`
	Comments           []CommentView `json:"comments,omitempty"`
	CreatedAt          time.Time    `json:"createdAt"`
	UpdatedAt          time.Time    `json:"updatedAt"`
}

// CanonicalID is the dedup key: the composite external identity when an
// integration is referenced, otherwise the local GUID. A materialized ticket
// therefore collides with its provider-phase appearance, not with itself.
func (it Item) CanonicalID() string {
	if it.IntegrationID != nil && it.ExternalTicketID != "" {
		return it.IntegrationID.String() + ":" + it.ExternalTicketID
	}
	return it.ID
}

// ItemFromInternal builds the feed view of a local ticket row. Works for
// both pure internal tickets and materialized external rows read directly by
// GUID.
func ItemFromInternal(t *ticket.Ticket) Item {
	it := Item{
		ID:                 t.ID.String(),
		WorkspaceID:        t.WorkspaceID,
		Title:              t.Title,
		Description:        t.Description,
		IsInternal:         t.IsInternal,
		Source:             "internal",
		StatusID:           t.StatusID,
		PriorityID:         t.PriorityID,
		IntegrationID:      t.IntegrationID,
		AssignedAgentID:    t.AssignedAgentID,
		AssignedWorkflowID: t.AssignedWorkflowID,
		Satisfaction:       100,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
	}
	if t.ExternalTicketID != nil {
		it.ExternalTicketID = *t.ExternalTicketID
	}
	if t.Status != nil {
		it.Status = t.Status.Name
	}
	if t.Priority != nil {
		it.Priority = t.Priority.Name
	}
	for _, c := range t.Comments {
		it.Comments = append(it.Comments, CommentView{
			ID:        c.ID.String(),
			Author:    c.Author,
			Body:      c.Body,
			CreatedAt: c.CreatedAt,
		})
	}
	return it
}

// ItemFromExternal builds the feed view of a provider ticket. When a
// materialized local row exists, the item takes the row's GUID, assignment,
// and internal execution status, while display fields keep mirroring the
// provider.
func ItemFromExternal(integ *ticket.Integration, ext provider.Ticket, materialized *ticket.Ticket) Item {
	it := Item{
		ID:               integ.ID.String() + ":" + ext.ExternalID,
		WorkspaceID:      integ.WorkspaceID,
		Title:            ext.Title,
		Description:      ext.Description,
		IsInternal:       false,
		Source:           string(integ.Provider),
		Status:           ext.Status,
		Priority:         ext.Priority,
		IntegrationID:    &integ.ID,
		ExternalTicketID: ext.ExternalID,
		URL:              ext.URL,
		Satisfaction:     100,
		CreatedAt:        ext.CreatedAt,
		UpdatedAt:        ext.UpdatedAt,
	}
	for _, c := range ext.Comments {
		it.Comments = append(it.Comments, CommentView{
			ID:        c.ID,
			Author:    c.Author,
			Body:      c.Body,
			CreatedAt: c.CreatedAt,
		})
	}

	if materialized != nil {
		it.ID = materialized.ID.String()
		it.StatusID = materialized.StatusID
		it.PriorityID = materialized.PriorityID
		it.AssignedAgentID = materialized.AssignedAgentID
		it.AssignedWorkflowID = materialized.AssignedWorkflowID
	}
	return it
}
