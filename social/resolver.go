package social

import (
	"context"
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	identity "github.com/tunelab/go-identity"
)

// maxUsernameAttempts bounds the suffix search when deriving a username
// for a provisioned account.
const maxUsernameAttempts = 100

// Resolution is the outcome of resolving a provider profile to an account.
type Resolution struct {
	Credential *identity.Credential
	IsNewUser  bool
	Merged     bool
}

// Resolver maps a provider profile onto exactly one account, in order of
// preference: the account already linked to (provider, subject), then the
// account owning the asserted email (upgraded in place), then a freshly
// provisioned one.
type Resolver struct {
	repo   identity.RepositoryManager
	logger identity.Logger
}

func NewResolver(repo identity.RepositoryManager) *Resolver {
	return &Resolver{
		repo:   repo,
		logger: defLogger{},
	}
}

func (r *Resolver) WithLogger(logger identity.Logger) *Resolver {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// Resolve runs the resolution algorithm. It is idempotent: resolving the
// same profile twice lands on the same account. A provisioning race with a
// concurrent callback for the same identity is retried once, at which point
// the winner's row is found by the linked or email path.
func (r *Resolver) Resolve(ctx context.Context, profile *Profile) (*Resolution, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	if !profile.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	res, err := r.resolve(ctx, profile)
	if err != nil && identity.IsUniqueViolation(err) {
		r.logger.Debug("provisioning race for %s/%s, retrying", profile.Provider, profile.Subject)
		res, err = r.resolve(ctx, profile)
	}

	if err != nil {
		return nil, err
	}

	if err := r.ensureAccountLive(res.Credential); err != nil {
		return nil, err
	}

	return res, nil
}

func (r *Resolver) resolve(ctx context.Context, profile *Profile) (*Resolution, error) {
	res := &Resolution{}

	err := r.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		creds := r.repo.Credentials()

		// already linked
		cred, err := creds.GetByProviderSubjectTx(ctx, tx, profile.Provider, profile.Subject)
		if err == nil {
			res.Credential, err = r.refreshProfile(ctx, tx, cred, profile)
			return err
		}
		if !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up linked account")
		}

		// same email, different or no provider: upgrade in place, keeping
		// any password hash so local login keeps working
		cred, err = creds.GetByEmailTx(ctx, tx, profile.Email)
		if err == nil {
			res.Credential, err = r.mergeInto(ctx, tx, cred, profile)
			res.Merged = err == nil
			return err
		}
		if !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account by email")
		}

		cred, err = r.provision(ctx, tx, profile)
		if err != nil {
			return err
		}

		res.Credential = cred
		res.IsNewUser = true
		return nil
	})

	if err != nil {
		return nil, err
	}

	return res, nil
}

// refreshProfile keeps mutable provider data (the avatar) current on an
// already linked account.
func (r *Resolver) refreshProfile(ctx context.Context, tx bun.Tx, cred *identity.Credential, profile *Profile) (*identity.Credential, error) {
	if profile.AvatarURL == "" || cred.PictureURL == profile.AvatarURL {
		return cred, nil
	}

	cred.PictureURL = profile.AvatarURL
	updated, err := r.repo.Credentials().SaveTx(ctx, tx, cred)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to refresh linked account")
	}

	updated.User = cred.User
	updated.Roles = cred.Roles
	return updated, nil
}

func (r *Resolver) mergeInto(ctx context.Context, tx bun.Tx, cred *identity.Credential, profile *Profile) (*identity.Credential, error) {
	cred.Provider = profile.Provider
	cred.ProviderSubject = profile.Subject
	if profile.AvatarURL != "" {
		cred.PictureURL = profile.AvatarURL
	}

	updated, err := r.repo.Credentials().SaveTx(ctx, tx, cred)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to link provider to account")
	}

	// an email-matched account may be inactive (registration never
	// verified); the provider has now vouched for the address
	if cred.User != nil && !cred.User.IsActive && !cred.User.IsBanned {
		if err := r.repo.Users().ActivateTx(ctx, tx, cred.UserID); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to activate merged account")
		}
		cred.User.IsActive = true
	}

	updated.User = cred.User
	updated.Roles = cred.Roles
	return updated, nil
}

func (r *Resolver) provision(ctx context.Context, tx bun.Tx, profile *Profile) (*identity.Credential, error) {
	username, err := r.deriveUsername(ctx, tx, profile)
	if err != nil {
		return nil, err
	}

	user, err := r.repo.Users().CreateTx(ctx, tx, &identity.User{
		Username: username,
		IsActive: true,
	})
	if err != nil {
		return nil, err
	}

	cred, err := r.repo.Credentials().CreateTx(ctx, tx, &identity.Credential{
		UserID:          user.ID,
		Email:           profile.Email,
		Provider:        profile.Provider,
		ProviderSubject: profile.Subject,
		PictureURL:      profile.AvatarURL,
	})
	if err != nil {
		return nil, err
	}

	roles := []identity.RoleName{identity.RoleUser}
	if profile.Name == "" && profile.Username == "" {
		roles = append(roles, identity.RoleIncompleteProfile)
	}

	attached := make([]*identity.Role, 0, len(roles))
	for _, name := range roles {
		role, err := r.repo.Roles().GetByNameTx(ctx, tx, name)
		if err != nil {
			richErr := identity.ErrRoleNotConfigured.Clone()
			richErr.Source = err
			return nil, richErr.WithMetadata(map[string]any{"role": name})
		}
		if err := r.repo.Credentials().AttachRoleTx(ctx, tx, cred.ID, role.ID); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to attach role")
		}
		attached = append(attached, role)
	}

	cred.User = user
	cred.Roles = attached
	return cred, nil
}

// deriveUsername slugs the best available name and appends a numeric
// suffix until it finds a free slot.
func (r *Resolver) deriveUsername(ctx context.Context, tx bun.Tx, profile *Profile) (string, error) {
	base := slugify(profile.Username)
	if base == "" {
		base = slugify(profile.Name)
	}
	if base == "" {
		if at := strings.Index(profile.Email, "@"); at > 0 {
			base = slugify(profile.Email[:at])
		}
	}
	if base == "" {
		base = profile.Provider + "user"
	}

	for i := 0; i < maxUsernameAttempts; i++ {
		candidate := base
		if i > 0 {
			candidate = fmt.Sprintf("%s%d", base, i)
		}

		taken, err := r.repo.Users().UsernameExistsTx(ctx, tx, candidate)
		if err != nil {
			return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check username availability")
		}
		if !taken {
			return candidate, nil
		}
	}

	return "", ErrUsernameGenerationExhausted.Clone().WithMetadata(map[string]any{
		"base": base,
	})
}

func (r *Resolver) ensureAccountLive(cred *identity.Credential) error {
	if cred == nil || cred.User == nil {
		return ErrProfileIncomplete
	}

	if cred.User.IsBanned {
		return identity.ErrAccountBanned.Clone().WithMetadata(map[string]any{
			"user_id": cred.UserID.String(),
		})
	}

	if !cred.User.IsActive {
		return identity.ErrAccountDeactivated.Clone().WithMetadata(map[string]any{
			"user_id": cred.UserID.String(),
		})
	}

	return nil
}

// slugify lowercases and strips everything outside [a-z0-9].
func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
