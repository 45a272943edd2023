// Package identity is the identity and session authority for the Tunelab
// review platform. It owns how an account is represented (profile +
// credential), how a caller proves who they are (password or an external
// OAuth2/OIDC identity), how that proof becomes signed access/refresh
// tokens, and how stale verification codes are retired.
//
// Accounts:
//   - A User row holds the application-facing profile (username, active and
//     banned flags). Each User owns exactly one Credential carrying the
//     authentication state: email, bcrypt password hash, auth provider tag,
//     the single active refresh token, and the role set.
//   - Roles and permits are flat reference data seeded by migration; the
//     token issuer flattens them into claims at signing time.
//
// Tokens:
//   - TokenService signs and parses HS256 JWTs; it holds no state.
//   - Auther layers the persisted-refresh-token rules on top: login issues
//     an access/refresh pair, and every refresh rotates the stored token so
//     a superseded refresh token fails even before it expires.
//
// Verification codes:
//   - Email verification and password reset share one short-lived-code
//     lifecycle: initiate persists a six character code and mails it,
//     consume is single-use, and CodeSweeper removes whatever expires
//     unconsumed.
//
// The social subpackage maps verified external identity assertions onto
// local accounts, linking or provisioning as needed.
package identity
