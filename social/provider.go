package social

import (
	"context"
	"strings"
)

// Profile is the identity assertion a provider hands back after a
// successful code exchange. Subject is the provider's stable user ID; the
// pair (Provider, Subject) is what links a provider identity to an account.
type Profile struct {
	Provider      string `json:"provider"`
	Subject       string `json:"subject"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name,omitempty"`
	Username      string `json:"username,omitempty"`
	AvatarURL     string `json:"avatar_url,omitempty"`
}

// Validate checks the fields resolution depends on.
func (p *Profile) Validate() error {
	if p == nil || p.Provider == "" || p.Subject == "" || strings.TrimSpace(p.Email) == "" {
		return ErrProfileIncomplete
	}
	return nil
}

// Provider is a configured OAuth2/OIDC identity provider. Implementations
// own the client credentials and the HTTP round-trips; this package only
// consumes the resulting Profile.
type Provider interface {
	Name() string
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*Profile, error)
}

// Registry holds the configured providers by name.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: map[string]Provider{}}
	for _, p := range providers {
		if p != nil {
			r.providers[strings.ToLower(p.Name())] = p
		}
	}
	return r
}

func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[strings.ToLower(name)]
	if !ok {
		return nil, ErrProviderNotFound.Clone().WithMetadata(map[string]any{
			"provider": name,
		})
	}
	return p, nil
}
