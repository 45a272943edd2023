package identity

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type InitializePasswordResetMessage struct {
	Email      string `json:"email"`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (p InitializePasswordResetMessage) Type() string { return "user.password_reset.init" }

type InitializePasswordResetResponse struct {
	Reset   *PasswordResetCode
	Success bool
}

// InitializePasswordResetHandler issues a reset code for the account behind
// an email. Unknown addresses succeed silently; pure-OAuth accounts get a
// code too, which is how they establish a password for local login.
type InitializePasswordResetHandler struct {
	repo   RepositoryManager
	cfg    *Config
	mailer Mailer
	logger Logger
}

func NewInitializePasswordResetHandler(repo RepositoryManager, cfg *Config) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		repo:   repo,
		cfg:    cfg,
		mailer: logMailer{},
		logger: defLogger{},
	}
}

func (h *InitializePasswordResetHandler) WithMailer(mailer Mailer) *InitializePasswordResetHandler {
	if mailer != nil {
		h.mailer = mailer
	}
	return h
}

func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	resp := &InitializePasswordResetResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		cred, err := h.repo.Credentials().GetByEmailTx(ctx, tx, event.Email)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return nil
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve credential for password reset")
		}

		code, err := NewVerificationCode(h.cfg.CodeLength)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not generate reset code")
		}

		reset, err := h.repo.PasswordResetCodes().ReplaceTx(ctx, tx, cred.UserID, code, time.Now().Add(h.cfg.CodeTTL))
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not store reset code")
		}

		resp.Reset = reset
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to initialize password reset")
	}

	if resp.Reset != nil {
		body := fmt.Sprintf("Your password reset code is %s.\nIt expires in %s.\nIf you did not request this, ignore this message.", resp.Reset.Code, h.cfg.CodeTTL)
		if err := h.mailer.Send(ctx, NormalizeEmail(event.Email), "Reset your password", body); err != nil {
			h.logger.Error("reset email dispatch failed: %v", err)
		}
	}

	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
