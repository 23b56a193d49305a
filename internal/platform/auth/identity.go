package auth

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the normalized caller identity attached to every authenticated
// request. Both verification paths (identity-provider token and fallback
// session) resolve to this same shape so downstream handlers are path-agnostic.
type Identity struct {
	UserID            uuid.UUID `json:"user_id"`
	ExternalSubjectID string    `json:"external_subject_id,omitempty"`
	ClinicID          uuid.UUID `json:"clinic_id"`
	Email             string    `json:"email,omitempty"`
	Phone             string    `json:"phone,omitempty"`
	Name              string    `json:"name,omitempty"`
}

// WithIdentity returns a context carrying the given identity.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the identity attached by the authentication
// middleware, or nil for unauthenticated requests.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey).(*Identity)
	return id
}
