package identity

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

// ClaimsContextKey is where validated claims live, both in fiber Locals and
// in a request context.Context.
const ClaimsContextKey contextKey = "identity:claims"

// WithClaims stores validated claims on a context.
func WithClaims(ctx context.Context, claims *JWTClaims) context.Context {
	return context.WithValue(ctx, ClaimsContextKey, claims)
}

// ClaimsFromContext retrieves claims previously stored by WithClaims or the
// bearer middleware. Returns nil when the request is anonymous.
func ClaimsFromContext(ctx context.Context) *JWTClaims {
	claims, _ := ctx.Value(ClaimsContextKey).(*JWTClaims)
	return claims
}

// CurrentUserID yields the acting user's ID or ErrNotAuthenticated when the
// context carries no validated claims.
func CurrentUserID(ctx context.Context) (uuid.UUID, error) {
	claims := ClaimsFromContext(ctx)
	if claims == nil {
		return uuid.Nil, ErrNotAuthenticated
	}

	id, err := uuid.Parse(claims.UserID())
	if err != nil {
		return uuid.Nil, ErrNotAuthenticated
	}

	return id, nil
}

// RequireOwnership enforces the write guard: the acting user must be the
// owner of the targeted resource. Admin permits do not bypass it; a
// moderator deletes content through dedicated admin surfaces, not by
// impersonating the owner.
func RequireOwnership(ctx context.Context, ownerID uuid.UUID) error {
	actor, err := CurrentUserID(ctx)
	if err != nil {
		return err
	}

	if actor != ownerID {
		return ErrAccessDenied.Clone().WithMetadata(map[string]any{
			"owner_id": ownerID.String(),
		})
	}

	return nil
}
