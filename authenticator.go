package identity

import (
	"context"
	"crypto/subtle"
	"database/sql"

	"github.com/uptrace/bun"
)

// TokenPair is what a successful login, refresh, or OAuth callback hands to
// the client. The identity echo saves the client a profile round-trip right
// after authenticating.
type TokenPair struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	UserID       string `json:"id,omitempty"`
	Username     string `json:"username,omitempty"`
	Email        string `json:"email,omitempty"`
}

// dummyHash is a bcrypt digest of a throwaway value. When the identifier
// does not resolve to an account we still compare against it so the
// not-found path costs the same as a wrong password.
const dummyHash = "$2a$14$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// PasswordVerifier resolves a login identifier (email or username) and
// checks the password. Every failure mode collapses into
// ErrInvalidCredentials so a caller cannot distinguish "no such account"
// from "wrong password".
type PasswordVerifier struct {
	repo   RepositoryManager
	logger Logger
}

func NewPasswordVerifier(repo RepositoryManager) *PasswordVerifier {
	return &PasswordVerifier{
		repo:   repo,
		logger: defLogger{},
	}
}

func (v *PasswordVerifier) WithLogger(logger Logger) *PasswordVerifier {
	if logger != nil {
		v.logger = logger
	}
	return v
}

func (v *PasswordVerifier) Verify(ctx context.Context, identifier, password string) (*Credential, error) {
	cred, err := v.repo.Credentials().GetByLoginIdentifier(ctx, identifier)
	if err != nil {
		// burn a comparison so response time does not leak existence
		_ = ComparePasswordAndHash(password, dummyHash)
		v.logger.Debug("password verify lookup miss: %v", err)
		return nil, ErrInvalidCredentials
	}

	if err := ComparePasswordAndHash(password, cred.PasswordHash); err != nil {
		return nil, ErrInvalidCredentials
	}

	return cred, nil
}

// Auther orchestrates session issuance: password login, refresh rotation,
// and access-token validation with account liveness checks.
type Auther struct {
	repo     RepositoryManager
	verifier *PasswordVerifier
	tokens   TokenService
	logger   Logger
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(repo RepositoryManager, tokens TokenService) *Auther {
	return &Auther{
		repo:     repo,
		verifier: NewPasswordVerifier(repo),
		tokens:   tokens,
		logger:   defLogger{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
		s.verifier = s.verifier.WithLogger(logger)
	}
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokens
}

// Login verifies the identifier/password pair and, when the account is
// live, issues a fresh token pair. The refresh token is persisted so the
// previous one (if any) stops working immediately.
func (s *Auther) Login(ctx context.Context, identifier, password string) (*TokenPair, error) {
	cred, err := s.verifier.Verify(ctx, identifier, password)
	if err != nil {
		s.logger.Error("Login verify identity error: %v", err)
		return nil, err
	}

	if err := s.ensureAccountActive(cred); err != nil {
		s.logger.Warn("Login blocked due to account status: %v", err)
		return nil, err
	}

	return s.IssueTokensFor(ctx, cred)
}

// Refresh validates a refresh token, confirms it is the one currently on
// record, and rotates it. Any failure along the way reads the same to the
// caller: ErrInvalidRefreshToken.
func (s *Auther) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.tokens.Validate(refreshToken)
	if err != nil {
		s.logger.Debug("Refresh token validation failed: %v", err)
		return nil, invalidRefresh(err)
	}

	if !claims.IsRefresh() {
		return nil, ErrInvalidRefreshToken
	}

	cred, err := s.repo.Credentials().GetByEmail(ctx, claims.Subject)
	if err != nil {
		s.logger.Debug("Refresh subject lookup failed: %v", err)
		return nil, invalidRefresh(err)
	}

	if subtle.ConstantTimeCompare([]byte(cred.RefreshToken), []byte(refreshToken)) != 1 {
		return nil, ErrInvalidRefreshToken
	}

	if err := s.ensureAccountActive(cred); err != nil {
		s.logger.Warn("Refresh blocked due to account status: %v", err)
		return nil, err
	}

	pair, err := s.issuePair(cred)
	if err != nil {
		return nil, err
	}

	err = s.repo.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return s.repo.Credentials().RotateRefreshTokenTx(ctx, tx, cred.ID, refreshToken, pair.RefreshToken)
	})
	if err != nil {
		// a concurrent refresh won the compare-and-swap
		return nil, invalidRefresh(err)
	}

	return pair, nil
}

// ValidateAccessToken checks signature and registered claims, rejects
// refresh tokens presented as access tokens, and confirms the account is
// still live. Revocation-by-ban takes effect here, not at token expiry.
// A non-empty expectedSubjectEmail additionally pins the token to that
// identity, for callers acting on behalf of a specific account.
func (s *Auther) ValidateAccessToken(ctx context.Context, raw, expectedSubjectEmail string) (*JWTClaims, error) {
	claims, err := s.tokens.Validate(raw)
	if err != nil {
		return nil, err
	}

	if claims.IsRefresh() {
		return nil, ErrTokenMalformed
	}

	if expectedSubjectEmail != "" && NormalizeEmail(expectedSubjectEmail) != NormalizeEmail(claims.Subject) {
		return nil, ErrNotAuthenticated
	}

	cred, err := s.repo.Credentials().GetByEmail(ctx, claims.Subject)
	if err != nil {
		return nil, ErrNotAuthenticated
	}

	if err := s.ensureAccountActive(cred); err != nil {
		return nil, err
	}

	return claims, nil
}

// IssueTokensFor issues a pair for an already-authenticated credential and
// stores the refresh token. OAuth callbacks use this after the resolver has
// done its work.
func (s *Auther) IssueTokensFor(ctx context.Context, cred *Credential) (*TokenPair, error) {
	pair, err := s.issuePair(cred)
	if err != nil {
		return nil, err
	}

	err = s.repo.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return s.repo.Credentials().SetRefreshTokenTx(ctx, tx, cred.ID, pair.RefreshToken)
	})
	if err != nil {
		return nil, wrapInternal(err, "persisting refresh token")
	}

	return pair, nil
}

func (s *Auther) issuePair(cred *Credential) (*TokenPair, error) {
	access, err := s.tokens.IssueAccessToken(cred)
	if err != nil {
		s.logger.Error("issue access token: %v", err)
		return nil, err
	}

	refresh, err := s.tokens.IssueRefreshToken(cred)
	if err != nil {
		s.logger.Error("issue refresh token: %v", err)
		return nil, err
	}

	pair := &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		UserID:       cred.UserID.String(),
		Email:        cred.Email,
	}
	if cred.User != nil {
		pair.Username = cred.User.Username
	}

	return pair, nil
}

func (s *Auther) ensureAccountActive(cred *Credential) error {
	if cred == nil || cred.User == nil {
		return ErrNotAuthenticated
	}

	if cred.User.IsBanned {
		return ErrAccountBanned.Clone().WithMetadata(map[string]any{
			"user_id": cred.UserID.String(),
		})
	}

	if !cred.User.IsActive {
		return ErrAccountDeactivated.Clone().WithMetadata(map[string]any{
			"user_id": cred.UserID.String(),
		})
	}

	return nil
}

func invalidRefresh(err error) error {
	richErr := ErrInvalidRefreshToken.Clone()
	richErr.Source = err
	return richErr
}
