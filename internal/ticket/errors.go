package ticket

import "errors"

// Domain error taxonomy. The REST layer maps these onto HTTP statuses;
// everything else matches them with errors.Is.
var (
	// ErrNotFound marks an unknown ticket, integration, workspace, status,
	// priority, agent, or workflow.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized marks a caller that is not a member of the target
	// workspace. Checked before any business logic on every call.
	ErrUnauthorized = errors.New("not a workspace member")

	// ErrInvalidOperation marks a mutation the domain forbids: deleting an
	// external ticket, editing provider-owned fields, converting an
	// already-external ticket, or materializing without an assignment.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrMalformedRef marks a composite ticket identifier that could not be
	// parsed. This is the one ref-parse failure that surfaces as an argument
	// error instead of being swallowed.
	ErrMalformedRef = errors.New("malformed ticket reference")

	// ErrAlreadyExists marks a unique-constraint violation, notably a lost
	// race on (integrationId, externalTicketId) during materialization. The
	// caller retries as a plain update.
	ErrAlreadyExists = errors.New("already exists")
)
