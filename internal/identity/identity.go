// Package identity is the boundary to the marketplace's authentication
// system. The chat service never authenticates anyone; it consumes an
// already-verified user id plus a readiness state.
package identity

import (
	"context"

	"github.com/google/uuid"
)

// State describes how much the identity boundary currently knows.
type State int

const (
	// StateUnknown means authentication has not completed yet; callers
	// should defer, not fail hard.
	StateUnknown State = iota
	// StateAnonymous means the user is definitively not signed in.
	StateAnonymous
	// StateAuthenticated means a user id is available.
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// Provider supplies the current user's identity.
type Provider interface {
	CurrentUser(ctx context.Context) (uuid.UUID, State)
}

// Static is a fixed-identity provider for in-process embedding and tests.
type Static struct {
	UserID uuid.UUID
}

func (s Static) CurrentUser(context.Context) (uuid.UUID, State) {
	if s.UserID == uuid.Nil {
		return uuid.Nil, StateAnonymous
	}
	return s.UserID, StateAuthenticated
}

type contextKey struct{}

// WithUser returns a context carrying the authenticated user id. The HTTP
// auth middleware calls this after verifying the gateway token.
func WithUser(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext extracts the authenticated user id, if any.
func FromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(contextKey{}).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// FromRequest is a Provider that reads the identity the auth middleware
// stored on the request context.
type FromRequest struct{}

func (FromRequest) CurrentUser(ctx context.Context) (uuid.UUID, State) {
	if id, ok := FromContext(ctx); ok {
		return id, StateAuthenticated
	}
	return uuid.Nil, StateAnonymous
}
