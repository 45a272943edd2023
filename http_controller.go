package identity

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

type AuthControllerRoutes struct {
	Login        string
	Refresh      string
	Register     string
	Verify       string
	VerifyResend string
	ResetRequest string
	ResetConfirm string
	Session      string
}

// AuthController wires the session endpoints into a fiber app. All
// endpoints speak JSON; browser-facing rendering lives with the consumer.
type AuthController struct {
	Debug  bool
	Logger Logger
	Auther *Auther
	Routes *AuthControllerRoutes

	register      *RegisterUserHandler
	verifyInit    *InitializeEmailVerificationHandler
	verifyConfirm *ConfirmEmailVerificationHandler
	resetInit     *InitializePasswordResetHandler
	resetFinal    *FinalizePasswordResetHandler
}

type AuthControllerOption func(*AuthController) *AuthController

func NewAuthController(repo RepositoryManager, cfg *Config, auther *Auther, opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defLogger{},
		Auther: auther,
		Routes: &AuthControllerRoutes{
			Login:        "/auth",
			Refresh:      "/auth/refresh",
			Register:     "/auth/register",
			Verify:       "/auth/verify",
			VerifyResend: "/auth/verify/resend",
			ResetRequest: "/auth/password-reset",
			ResetConfirm: "/auth/password-reset/confirm",
			Session:      "/auth/session",
		},
		register:      NewRegisterUserHandler(repo, cfg),
		verifyInit:    NewInitializeEmailVerificationHandler(repo, cfg),
		verifyConfirm: NewConfirmEmailVerificationHandler(repo),
		resetInit:     NewInitializePasswordResetHandler(repo, cfg),
		resetFinal:    NewFinalizePasswordResetHandler(repo),
	}

	for _, opt := range opts {
		c = opt(c)
	}

	return c
}

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
			c.register = c.register.WithLogger(logger)
			c.verifyInit = c.verifyInit.WithLogger(logger)
			c.verifyConfirm = c.verifyConfirm.WithLogger(logger)
			c.resetInit = c.resetInit.WithLogger(logger)
			c.resetFinal = c.resetFinal.WithLogger(logger)
		}
		return c
	}
}

func WithControllerMailer(mailer Mailer) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if mailer != nil {
			c.register = c.register.WithMailer(mailer)
			c.verifyInit = c.verifyInit.WithMailer(mailer)
			c.resetInit = c.resetInit.WithMailer(mailer)
		}
		return c
	}
}

func WithControllerDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

// RegisterAuthRoutes mounts the session endpoints on the given router.
func (ctrl *AuthController) RegisterAuthRoutes(app fiber.Router) {
	app.Post(ctrl.Routes.Login, ctrl.LoginPost)
	app.Post(ctrl.Routes.Refresh, ctrl.RefreshPost)
	app.Post(ctrl.Routes.Register, ctrl.RegisterPost)
	app.Post(ctrl.Routes.Verify, ctrl.VerifyPost)
	app.Post(ctrl.Routes.VerifyResend, ctrl.VerifyResendPost)
	app.Post(ctrl.Routes.ResetRequest, ctrl.ResetRequestPost)
	app.Post(ctrl.Routes.ResetConfirm, ctrl.ResetConfirmPost)
	app.Get(ctrl.Routes.Session, RequireAuth(ctrl.Auther), ctrl.SessionGet)
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

func (r loginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Identifier, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

func (ctrl *AuthController) LoginPost(c *fiber.Ctx) error {
	req := loginRequest{}
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, goerrors.Wrap(err, goerrors.CategoryBadInput, "malformed login payload").
			WithCode(goerrors.CodeBadRequest))
	}

	if ctrl.Debug {
		ctrl.Logger.Debug("login payload: %s", print.MaybePrettyJSON(map[string]any{
			"identifier": req.Identifier,
		}))
	}

	if err := req.Validate(); err != nil {
		return respondValidation(c, err)
	}

	pair, err := ctrl.Auther.Login(c.UserContext(), req.Identifier, req.Password)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (r refreshRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

func (ctrl *AuthController) RefreshPost(c *fiber.Ctx) error {
	req := refreshRequest{}
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, goerrors.Wrap(err, goerrors.CategoryBadInput, "malformed refresh payload").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := req.Validate(); err != nil {
		return respondValidation(c, err)
	}

	pair, err := ctrl.Auther.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(pair)
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r registerRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(3, 30)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 128)),
	)
}

func (ctrl *AuthController) RegisterPost(c *fiber.Ctx) error {
	req := registerRequest{}
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, goerrors.Wrap(err, goerrors.CategoryBadInput, "malformed registration payload").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := req.Validate(); err != nil {
		return respondValidation(c, err)
	}

	var resp *RegisterUserResponse
	err := ctrl.register.Execute(c.UserContext(), RegisterUserMessage{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		OnResponse: func(r *RegisterUserResponse) {
			resp = r
		},
	})
	if err != nil {
		return respondError(c, err)
	}

	// no tokens yet: the account stays inactive until the emailed code is
	// confirmed, and inactive accounts cannot hold a session
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":       resp.User.ID,
		"username": resp.User.Username,
		"email":    resp.Credential.Email,
	})
}

type verifyRequest struct {
	Code string `json:"code"`
}

func (r verifyRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Code, validation.Required),
	)
}

func (ctrl *AuthController) VerifyPost(c *fiber.Ctx) error {
	req := verifyRequest{}
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, goerrors.Wrap(err, goerrors.CategoryBadInput, "malformed verification payload").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := req.Validate(); err != nil {
		return respondValidation(c, err)
	}

	err := ctrl.verifyConfirm.Execute(c.UserContext(), ConfirmEmailVerificationMessage{
		Code: req.Code,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"verified": true})
}

type emailRequest struct {
	Email string `json:"email"`
}

func (r emailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (ctrl *AuthController) VerifyResendPost(c *fiber.Ctx) error {
	req := emailRequest{}
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, goerrors.Wrap(err, goerrors.CategoryBadInput, "malformed payload").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := req.Validate(); err != nil {
		return respondValidation(c, err)
	}

	err := ctrl.verifyInit.Execute(c.UserContext(), InitializeEmailVerificationMessage{
		Email: req.Email,
	})
	if err != nil {
		return respondError(c, err)
	}

	// same response whether or not the address exists
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"sent": true})
}

func (ctrl *AuthController) ResetRequestPost(c *fiber.Ctx) error {
	req := emailRequest{}
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, goerrors.Wrap(err, goerrors.CategoryBadInput, "malformed payload").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := req.Validate(); err != nil {
		return respondValidation(c, err)
	}

	err := ctrl.resetInit.Execute(c.UserContext(), InitializePasswordResetMessage{
		Email: req.Email,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"sent": true})
}

type resetConfirmRequest struct {
	Code     string `json:"code"`
	Password string `json:"password"`
}

func (r resetConfirmRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Code, validation.Required),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 128)),
	)
}

func (ctrl *AuthController) ResetConfirmPost(c *fiber.Ctx) error {
	req := resetConfirmRequest{}
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, goerrors.Wrap(err, goerrors.CategoryBadInput, "malformed payload").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := req.Validate(); err != nil {
		return respondValidation(c, err)
	}

	err := ctrl.resetFinal.Execute(c.UserContext(), FinalizePasswordResetMessage{
		Code:     req.Code,
		Password: req.Password,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"reset": true})
}

// SessionGet echoes the validated claims for the bearer token. Useful for
// clients that want to introspect their session.
func (ctrl *AuthController) SessionGet(c *fiber.Ctx) error {
	claims, _ := c.Locals(ClaimsContextKey).(*JWTClaims)
	if claims == nil {
		return respondError(c, ErrNotAuthenticated)
	}

	return c.JSON(fiber.Map{
		"user_id":     claims.UserID(),
		"email":       claims.Subject,
		"roles":       claims.Roles,
		"permissions": claims.Permissions,
		"expires_at":  claims.Expires(),
	})
}

func respondValidation(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": fiber.Map{
			"text_code": "VALIDATION",
			"message":   err.Error(),
		},
	})
}
