// Package rest exposes the ticket feed and command endpoints. Request
// authentication happens upstream; this layer trusts the X-User-ID header
// set by the gateway and maps domain errors onto HTTP statuses.
package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clintrovert/praxis/internal/command"
	"github.com/clintrovert/praxis/internal/feed"
	"github.com/clintrovert/praxis/internal/ticket"
)

// Handler handles REST API requests.
type Handler struct {
	feed     *feed.Service
	commands *command.Service
	logger   *zap.Logger
}

// NewHandler creates a new REST handler.
func NewHandler(feedService *feed.Service, commands *command.Service, logger *zap.Logger) *Handler {
	return &Handler{
		feed:     feedService,
		commands: commands,
		logger:   logger,
	}
}

// RegisterRoutes registers REST API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/tickets", h.ListTickets)
	r.Post("/tickets", h.CreateTicket)
	r.Patch("/tickets/{id}", h.UpdateTicket)
	r.Delete("/tickets/{id}", h.DeleteTicket)
	r.Post("/tickets/{id}/convert", h.ConvertTicket)
	r.Post("/tickets/{id}/comments", h.AddComment)
	r.Get("/agent-queue", h.AgentQueue)
}

type createTicketRequest struct {
	WorkspaceID        uuid.UUID  `json:"workspaceId"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	StatusID           uuid.UUID  `json:"statusId"`
	PriorityID         uuid.UUID  `json:"priorityId"`
	AssignedAgentID    *uuid.UUID `json:"assignedAgentId"`
	AssignedWorkflowID *uuid.UUID `json:"assignedWorkflowId"`
}

type updateTicketRequest struct {
	Title              *string    `json:"title"`
	Description        *string    `json:"description"`
	StatusID           *uuid.UUID `json:"statusId"`
	PriorityID         *uuid.UUID `json:"priorityId"`
	AssignedAgentID    *uuid.UUID `json:"assignedAgentId"`
	AssignedWorkflowID *uuid.UUID `json:"assignedWorkflowId"`
}

type convertTicketRequest struct {
	IntegrationID uuid.UUID `json:"integrationId"`
}

type addCommentRequest struct {
	Body string `json:"body"`
}

// ListTickets handles GET /tickets.
func (h *Handler) ListTickets(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	workspaceID, err := uuid.Parse(r.URL.Query().Get("workspaceId"))
	if err != nil {
		http.Error(w, "invalid workspaceId", http.StatusBadRequest)
		return
	}

	pageSize := 0
	if raw := r.URL.Query().Get("pageSize"); raw != "" {
		// Non-numeric sizes fall through to the default, like a missing one.
		pageSize, _ = strconv.Atoi(raw)
	}

	page, err := h.feed.List(r.Context(), userID, workspaceID, r.URL.Query().Get("pageToken"), pageSize)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, page)
}

// CreateTicket handles POST /tickets.
func (h *Handler) CreateTicket(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	var req createTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		http.Error(w, "title is required", http.StatusBadRequest)
		return
	}

	item, err := h.commands.CreateTicket(r.Context(), userID, command.CreateTicket{
		WorkspaceID:        req.WorkspaceID,
		Title:              req.Title,
		Description:        req.Description,
		StatusID:           req.StatusID,
		PriorityID:         req.PriorityID,
		AssignedAgentID:    req.AssignedAgentID,
		AssignedWorkflowID: req.AssignedWorkflowID,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, item)
}

// UpdateTicket handles PATCH /tickets/{id}.
func (h *Handler) UpdateTicket(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	var req updateTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	item, err := h.commands.UpdateTicket(r.Context(), userID, chi.URLParam(r, "id"), command.UpdateTicket{
		Title:              req.Title,
		Description:        req.Description,
		StatusID:           req.StatusID,
		PriorityID:         req.PriorityID,
		AssignedAgentID:    req.AssignedAgentID,
		AssignedWorkflowID: req.AssignedWorkflowID,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, item)
}

// DeleteTicket handles DELETE /tickets/{id}.
func (h *Handler) DeleteTicket(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	if err := h.commands.DeleteTicket(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ConvertTicket handles POST /tickets/{id}/convert.
func (h *Handler) ConvertTicket(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	var req convertTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	item, err := h.commands.ConvertToExternal(r.Context(), userID, chi.URLParam(r, "id"), req.IntegrationID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, item)
}

// AddComment handles POST /tickets/{id}/comments.
func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	var req addCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Body == "" {
		http.Error(w, "body is required", http.StatusBadRequest)
		return
	}

	if err := h.commands.AddComment(r.Context(), userID, chi.URLParam(r, "id"), userID.String(), req.Body); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// AgentQueue handles GET /agent-queue. The endpoint serves the agent worker,
// which authenticates at the gateway rather than as a workspace member.
func (h *Handler) AgentQueue(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	items, err := h.feed.AgentQueue(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, items)
}

func (h *Handler) callerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, err := uuid.Parse(r.Header.Get("X-User-ID"))
	if err != nil {
		http.Error(w, "missing or invalid X-User-ID", http.StatusUnauthorized)
		return uuid.Nil, false
	}
	return userID, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ticket.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ticket.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, ticket.ErrInvalidOperation), errors.Is(err, ticket.ErrMalformedRef):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": err.Error()}); err != nil {
		h.logger.Error("failed to encode error response", zap.Error(err))
	}
}
