// Package provider defines the client abstraction over external issue
// trackers and the registry that resolves a concrete client for an
// integration. One implementation exists per provider type; each hides its
// tracker's own pagination mechanics behind Cursor.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/clintrovert/praxis/internal/secret"
	"github.com/clintrovert/praxis/internal/ticket"
)

// ErrUnsupported marks an integration whose provider type has no registered
// client. The aggregator skips such integrations with a warning instead of
// failing the page.
var ErrUnsupported = errors.New("unsupported provider type")

// Comment is a provider-side comment carried inline on a fetched ticket.
type Comment struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// Ticket is the normalized snapshot of one external ticket. PriorityValue is
// the provider's numeric priority, used by materialization to pick the
// nearest internal priority.
type Ticket struct {
	ExternalID    string    `json:"externalId"`
	Key           string    `json:"key,omitempty"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	Status        string    `json:"status"`
	Priority      string    `json:"priority,omitempty"`
	PriorityValue float64   `json:"priorityValue,omitempty"`
	Reporter      string    `json:"reporter,omitempty"`
	Assignee      string    `json:"assignee,omitempty"`
	URL           string    `json:"url,omitempty"`
	Labels        []string  `json:"labels,omitempty"`
	Comments      []Comment `json:"comments,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Cursor is an opaque-to-the-caller resume position within one provider.
// Jira uses StartAt/PageToken, GitHub and GitLab use a 1-indexed Page.
type Cursor struct {
	StartAt   int    `json:"startAt,omitempty"`
	Page      int    `json:"page,omitempty"`
	PageToken string `json:"pageToken,omitempty"`
}

// Page is one fetched page of external tickets. IsLast must come from the
// provider's explicit continuation signal (rel="next" link, startAt+total,
// next page token), never from comparing the returned count to the requested
// count: a page that exactly fills the request is still final when the
// provider says so.
type Page struct {
	Tickets []Ticket
	IsLast  bool
	Next    Cursor
}

// Client is one external issue tracker bound to a single integration.
type Client interface {
	// FetchTickets returns the page at cursor, at most maxResults tickets.
	FetchTickets(ctx context.Context, cursor Cursor, maxResults int) (Page, error)
	// GetTicket fetches a single ticket with its comments.
	GetTicket(ctx context.Context, externalID string) (Ticket, error)
	// AddComment posts a comment to the external ticket.
	AddComment(ctx context.Context, externalID, body string) error
	// CreateIssue creates a new issue in the provider and returns its snapshot.
	CreateIssue(ctx context.Context, title, description string) (Ticket, error)
}

// Factory builds a Client for an integration using its decrypted credential.
type Factory func(integ *ticket.Integration, credential string, logger *zap.Logger) (Client, error)

// Registry maps provider types to client factories. Registration happens at
// startup; no reflection-based discovery.
type Registry struct {
	factories map[ticket.ProviderType]Factory
	logger    *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		factories: make(map[ticket.ProviderType]Factory),
		logger:    logger,
	}
}

// Register installs a factory for a provider type, replacing any previous one.
func (r *Registry) Register(pt ticket.ProviderType, f Factory) {
	r.factories[pt] = f
}

// New builds a client for the integration, or ErrUnsupported when no factory
// is registered for its provider type.
func (r *Registry) New(integ *ticket.Integration, credential string) (Client, error) {
	f, ok := r.factories[integ.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, integ.Provider)
	}
	return f(integ, credential, r.logger)
}

// Resolver turns an integration row into a ready client by decrypting its
// stored credential and dispatching through the registry.
type Resolver struct {
	registry *Registry
	secrets  secret.Cipher
}

// NewResolver creates a Resolver.
func NewResolver(registry *Registry, secrets secret.Cipher) *Resolver {
	return &Resolver{registry: registry, secrets: secrets}
}

// Resolve builds a client for the integration.
func (r *Resolver) Resolve(integ *ticket.Integration) (Client, error) {
	credential, err := r.secrets.Decrypt(integ.Credential)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credential for integration %s: %w", integ.ID, err)
	}
	return r.registry.New(integ, credential)
}
