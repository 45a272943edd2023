package identity

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

// RoleName is a flat enumerated role tag attached to a credential.
type RoleName = string

const (
	// RoleUser is the default role every account receives.
	RoleUser RoleName = "USER"
	// RoleAdmin marks platform operators.
	RoleAdmin RoleName = "ADMIN"
	// RoleIncompleteProfile marks OAuth accounts provisioned without a
	// display name; the profile editor prompts such users to finish setup.
	RoleIncompleteProfile RoleName = "INCOMPLETE_PROFILE"
)

// Permit tags. Flat capability set, joined to roles by reference data.
const (
	PermitReviewWrite   = "review:write"
	PermitCommentWrite  = "comment:write"
	PermitReactionWrite = "reaction:write"
	PermitUserManage    = "user:manage"
)

// RequiredRoles is the reference-data set that must exist before the
// service can issue a single token.
func RequiredRoles() []RoleName {
	return []RoleName{RoleUser, RoleAdmin, RoleIncompleteProfile}
}

// RoleFinder is the lookup surface EnsureRolesConfigured needs.
type RoleFinder interface {
	GetByName(ctx context.Context, name string) (*Role, error)
}

// EnsureRolesConfigured verifies the seeded role rows are present. Call it
// once at startup; a missing role is a deployment defect, so the error is
// ErrRoleNotConfigured rather than anything a client could trigger.
func EnsureRolesConfigured(ctx context.Context, roles RoleFinder) error {
	for _, name := range RequiredRoles() {
		role, err := roles.GetByName(ctx, name)
		if err != nil || role == nil {
			richErr := ErrRoleNotConfigured.Clone()
			richErr.Source = err
			return richErr.WithMetadata(map[string]any{"role": name})
		}
	}
	return nil
}

// wrapInternal keeps repository errors out of client responses.
func wrapInternal(err error, msg string) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg)
}
