package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type RegisterUserMessage struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	UseHashid  bool
	OnResponse func(resp *RegisterUserResponse)
}

func (e RegisterUserMessage) Type() string { return "user.register" }

type RegisterUserResponse struct {
	User         *User
	Credential   *Credential
	Verification *EmailVerificationCode
	Success      bool
}

// RegisterUserHandler creates the user/credential pair for a local account.
// The user starts inactive; an email verification code is written in the
// same transaction and mailed after commit.
type RegisterUserHandler struct {
	repo   RepositoryManager
	cfg    *Config
	mailer Mailer
	logger Logger
}

func NewRegisterUserHandler(repo RepositoryManager, cfg *Config) *RegisterUserHandler {
	return &RegisterUserHandler{
		repo:   repo,
		cfg:    cfg,
		mailer: logMailer{},
		logger: defLogger{},
	}
}

func (h *RegisterUserHandler) WithMailer(mailer Mailer) *RegisterUserHandler {
	if mailer != nil {
		h.mailer = mailer
	}
	return h
}

func (h *RegisterUserHandler) WithLogger(logger Logger) *RegisterUserHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	resp := &RegisterUserResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	// hash before the transaction opens: bcrypt is deliberately slow and
	// must not keep a connection pinned while it grinds
	hash, err := HashPassword(event.Password)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user := &User{
			Username: getUsername(event.Username, event.Email),
			IsActive: false,
		}
		if event.UseHashid {
			if id, err := hashid.NewUUID(event.Email); err == nil {
				user.ID = id
			}
		}

		if user, err = h.repo.Users().CreateTx(ctx, tx, user); err != nil {
			if IsUniqueViolation(err) {
				return ErrDuplicateIdentifier.Clone().WithMetadata(map[string]any{
					"identifier": user.Username,
				})
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not create user")
		}

		cred := &Credential{
			UserID:       user.ID,
			Email:        event.Email,
			PasswordHash: hash,
			Provider:     ProviderLocal,
		}

		if cred, err = h.repo.Credentials().CreateTx(ctx, tx, cred); err != nil {
			if IsUniqueViolation(err) {
				return ErrDuplicateIdentifier.Clone().WithMetadata(map[string]any{
					"identifier": NormalizeEmail(event.Email),
				})
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not create credential")
		}

		role, err := h.repo.Roles().GetByNameTx(ctx, tx, RoleUser)
		if err != nil {
			richErr := ErrRoleNotConfigured.Clone()
			richErr.Source = err
			return richErr.WithMetadata(map[string]any{"role": RoleUser})
		}

		if err := h.repo.Credentials().AttachRoleTx(ctx, tx, cred.ID, role.ID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not attach default role")
		}

		code, err := NewVerificationCode(h.cfg.CodeLength)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not generate verification code")
		}

		verification, err := h.repo.EmailVerificationCodes().ReplaceTx(ctx, tx, user.ID, code, time.Now().Add(h.cfg.CodeTTL))
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not store verification code")
		}

		resp.User = user
		resp.Credential = cred
		resp.Verification = verification
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	// dispatch outside the transaction; mail failure must not undo the account
	h.sendVerificationMail(ctx, resp.Credential.Email, resp.Verification.Code)

	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *RegisterUserHandler) sendVerificationMail(ctx context.Context, email, code string) {
	body := fmt.Sprintf("Your account verification code is %s.\nIt expires in %s.", code, h.cfg.CodeTTL)
	if err := h.mailer.Send(ctx, email, "Verify your account", body); err != nil {
		h.logger.Error("verification email dispatch failed: %v", err)
	}
}

func getUsername(username, email string) string {
	if username != "" {
		return strings.TrimSpace(username)
	}

	if strings.Contains(email, "@") {
		username = strings.Split(email, "@")[0]
	}

	return strings.TrimSpace(username)
}
