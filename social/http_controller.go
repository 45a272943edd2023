package social

import (
	"net/url"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"

	identity "github.com/tunelab/go-identity"
)

// OAuthController mounts the provider sign-in endpoints. The flow is
// redirect-based end to end: the browser is sent to the provider, comes
// back to the callback, and leaves with tokens in the success redirect's
// query string (or an oauthError code on the failure redirect).
type OAuthController struct {
	Logger identity.Logger

	registry   *Registry
	state      StateManager
	resolver   *Resolver
	auther     *identity.Auther
	successURL string
	failureURL string
}

func NewOAuthController(
	registry *Registry,
	state StateManager,
	resolver *Resolver,
	auther *identity.Auther,
	cfg *identity.Config,
) *OAuthController {
	return &OAuthController{
		Logger:     defLogger{},
		registry:   registry,
		state:      state,
		resolver:   resolver,
		auther:     auther,
		successURL: cfg.OAuthSuccessURL,
		failureURL: cfg.OAuthFailureURL,
	}
}

func (ctrl *OAuthController) WithLogger(logger identity.Logger) *OAuthController {
	if logger != nil {
		ctrl.Logger = logger
	}
	return ctrl
}

// RegisterOAuthRoutes mounts the start and callback endpoints.
func (ctrl *OAuthController) RegisterOAuthRoutes(app fiber.Router) {
	app.Get("/auth/oauth/:provider", ctrl.Start)
	app.Get("/auth/oauth/:provider/callback", ctrl.Callback)
}

// Start sends the browser to the provider's consent screen with a signed
// state parameter.
func (ctrl *OAuthController) Start(c *fiber.Ctx) error {
	provider, err := ctrl.registry.Get(c.Params("provider"))
	if err != nil {
		return ctrl.failRedirect(c, err)
	}

	token, err := ctrl.state.Encode(&OAuthState{
		Provider: provider.Name(),
		ReturnTo: c.Query("return_to"),
	})
	if err != nil {
		ctrl.Logger.Error("oauth state encode failed: %v", err)
		return ctrl.failRedirect(c, err)
	}

	return c.Redirect(provider.AuthURL(token), fiber.StatusFound)
}

// Callback completes the flow: verify state, exchange the code, resolve
// the profile to an account, issue tokens, and bounce to the success URL.
func (ctrl *OAuthController) Callback(c *fiber.Ctx) error {
	state, err := ctrl.state.Decode(c.Query("state"))
	if err != nil {
		return ctrl.failRedirect(c, err)
	}

	providerName := c.Params("provider")
	if state.Provider != providerName {
		return ctrl.failRedirect(c, ErrInvalidState)
	}

	provider, err := ctrl.registry.Get(providerName)
	if err != nil {
		return ctrl.failRedirect(c, err)
	}

	code := c.Query("code")
	if code == "" {
		return ctrl.failRedirect(c, ErrExchangeFailed)
	}

	profile, err := provider.Exchange(c.UserContext(), code)
	if err != nil {
		ctrl.Logger.Warn("oauth exchange failed for %s: %v", providerName, err)
		return ctrl.failRedirect(c, ErrExchangeFailed)
	}

	res, err := ctrl.resolver.Resolve(c.UserContext(), profile)
	if err != nil {
		ctrl.Logger.Warn("oauth resolution failed for %s: %v", providerName, err)
		return ctrl.failRedirect(c, err)
	}

	pair, err := ctrl.auther.IssueTokensFor(c.UserContext(), res.Credential)
	if err != nil {
		ctrl.Logger.Error("oauth token issuance failed: %v", err)
		return ctrl.failRedirect(c, err)
	}

	return c.Redirect(ctrl.successRedirectURL(pair, state.ReturnTo), fiber.StatusFound)
}

func (ctrl *OAuthController) successRedirectURL(pair *identity.TokenPair, returnTo string) string {
	target, err := url.Parse(ctrl.successURL)
	if err != nil || ctrl.successURL == "" {
		target = &url.URL{Path: "/"}
	}

	q := target.Query()
	q.Set("token", pair.AccessToken)
	q.Set("refresh_token", pair.RefreshToken)
	if returnTo != "" {
		q.Set("return_to", returnTo)
	}
	target.RawQuery = q.Encode()

	return target.String()
}

func (ctrl *OAuthController) failRedirect(c *fiber.Ctx, err error) error {
	target, parseErr := url.Parse(ctrl.failureURL)
	if parseErr != nil || ctrl.failureURL == "" {
		target = &url.URL{Path: "/"}
	}

	// only banned and deactivated surface as named codes; everything
	// else collapses to a generic marker so internals do not leak into
	// the browser's address bar
	code := "true"
	userID := ""

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		switch richErr.TextCode {
		case identity.TextCodeAccountBanned:
			code = "banned"
		case identity.TextCodeAccountDeactivated:
			code = "deactivated"
		}

		if id, ok := richErr.Metadata["user_id"].(string); ok {
			userID = id
		}
	}

	q := target.Query()
	q.Set("oauthError", code)
	if code != "true" && userID != "" {
		q.Set("userId", userID)
	}
	target.RawQuery = q.Encode()

	return c.Redirect(target.String(), fiber.StatusFound)
}
