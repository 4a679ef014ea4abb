package ticket

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Ref is a ticket identity: either an internal GUID or the composite
// "{integrationId}:{externalTicketId}" identity of an external ticket. The
// zero Ref is not valid; construct one with InternalRef, ExternalRef, or
// ParseRef.
type Ref struct {
	internalID    uuid.UUID
	integrationID uuid.UUID
	externalID    string
	external      bool
}

// InternalRef builds the identity of a ticket stored under a local GUID.
func InternalRef(id uuid.UUID) Ref {
	return Ref{internalID: id}
}

// ExternalRef builds the composite identity of an external ticket.
func ExternalRef(integrationID uuid.UUID, externalID string) Ref {
	return Ref{integrationID: integrationID, externalID: externalID, external: true}
}

// ParseRef parses a ticket identifier from the wire. A bare GUID yields an
// internal ref. A value containing ':' is treated as a composite external
// identity and yields ErrMalformedRef when either half is unusable. Anything
// else also yields ErrMalformedRef; callers surface it as an argument error.
func ParseRef(s string) (Ref, error) {
	if id, err := uuid.Parse(s); err == nil {
		return InternalRef(id), nil
	}

	integrationPart, externalPart, found := strings.Cut(s, ":")
	if !found {
		return Ref{}, fmt.Errorf("%w: %q", ErrMalformedRef, s)
	}

	integrationID, err := uuid.Parse(integrationPart)
	if err != nil {
		return Ref{}, fmt.Errorf("%w: bad integration id in %q", ErrMalformedRef, s)
	}
	if externalPart == "" {
		return Ref{}, fmt.Errorf("%w: empty external ticket id in %q", ErrMalformedRef, s)
	}

	return ExternalRef(integrationID, externalPart), nil
}

// IsExternal reports whether the ref is a composite external identity.
func (r Ref) IsExternal() bool { return r.external }

// InternalID returns the local GUID of an internal ref.
func (r Ref) InternalID() uuid.UUID { return r.internalID }

// IntegrationID returns the integration half of an external ref.
func (r Ref) IntegrationID() uuid.UUID { return r.integrationID }

// ExternalID returns the provider-side ticket id of an external ref.
func (r Ref) ExternalID() string { return r.externalID }

// String renders the ref in its wire form. ParseRef inverts it exactly.
func (r Ref) String() string {
	if r.external {
		return r.integrationID.String() + ":" + r.externalID
	}
	return r.internalID.String()
}
