// Package feed implements the cross-source ticket feed: the opaque page
// token, the external fetch aggregator, and the internal-then-external merge
// state machine that presents one stable paginated view over the local store
// and every connected provider.
package feed

import (
	"encoding/base64"
	"encoding/json"

	"github.com/clintrovert/praxis/internal/provider"
)

// Phase says which population the current page is drawing from.
type Phase string

const (
	// PhaseInternal drains the local store's offset pages.
	PhaseInternal Phase = "internal"
	// PhaseExternal drains the connected providers with carried cursors.
	PhaseExternal Phase = "external"
)

// Page-size bounds for the listing endpoint.
const (
	DefaultPageSize = 50
	MinPageSize     = 1
	MaxPageSize     = 100
)

// ProviderCursor is one integration's carried pagination state, keyed by
// integration id inside PageState. Exhausted integrations stay in the token
// so they are never re-queried within the same feed walk.
type ProviderCursor struct {
	StartAt   int    `json:"startAt,omitempty"`
	Page      int    `json:"page,omitempty"`
	PageToken string `json:"pageToken,omitempty"`
	Exhausted bool   `json:"exhausted,omitempty"`
}

// Cursor converts the carried state into a provider request cursor.
func (c ProviderCursor) Cursor() provider.Cursor {
	return provider.Cursor{StartAt: c.StartAt, Page: c.Page, PageToken: c.PageToken}
}

// PageState is the decoded page token: the phase, the internal offset, and
// per-integration provider cursors. It is an immutable value passed
// end-to-end; the client carries it opaquely between requests.
type PageState struct {
	Phase          Phase                     `json:"phase"`
	InternalOffset int                       `json:"internalOffset,omitempty"`
	Providers      map[string]ProviderCursor `json:"providers,omitempty"`
}

// StartState is the canonical first-page state.
func StartState() PageState {
	return PageState{Phase: PhaseInternal}
}

// ParseToken decodes a page token. It never fails: any malformed, truncated,
// or foreign input resumes from the beginning, matching the contract that a
// bad token behaves exactly like no token.
func ParseToken(token string) PageState {
	if token == "" {
		return StartState()
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return StartState()
	}

	var st PageState
	if err := json.Unmarshal(raw, &st); err != nil {
		return StartState()
	}
	if st.Phase != PhaseInternal && st.Phase != PhaseExternal {
		return StartState()
	}
	if st.InternalOffset < 0 {
		return StartState()
	}
	return st
}

// Token serializes the state into the opaque wire form. ParseToken inverts
// it exactly.
func (st PageState) Token() (string, error) {
	raw, err := json.Marshal(st)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// NormalizePageSize clamps the requested page size to [MinPageSize,
// MaxPageSize] and substitutes DefaultPageSize when absent or non-positive.
func NormalizePageSize(requested int) int {
	if requested <= 0 {
		return DefaultPageSize
	}
	if requested > MaxPageSize {
		return MaxPageSize
	}
	if requested < MinPageSize {
		return MinPageSize
	}
	return requested
}
