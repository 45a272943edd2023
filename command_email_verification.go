package identity

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type InitializeEmailVerificationMessage struct {
	Email      string `json:"email"`
	OnResponse func(resp *InitializeEmailVerificationResponse)
}

func (e InitializeEmailVerificationMessage) Type() string { return "user.email_verification.init" }

type InitializeEmailVerificationResponse struct {
	Verification *EmailVerificationCode
	Success      bool
}

// InitializeEmailVerificationHandler re-issues an activation code, replacing
// any outstanding one. An unknown email succeeds silently so the endpoint
// cannot be used to probe which addresses have accounts.
type InitializeEmailVerificationHandler struct {
	repo   RepositoryManager
	cfg    *Config
	mailer Mailer
	logger Logger
}

func NewInitializeEmailVerificationHandler(repo RepositoryManager, cfg *Config) *InitializeEmailVerificationHandler {
	return &InitializeEmailVerificationHandler{
		repo:   repo,
		cfg:    cfg,
		mailer: logMailer{},
		logger: defLogger{},
	}
}

func (h *InitializeEmailVerificationHandler) WithMailer(mailer Mailer) *InitializeEmailVerificationHandler {
	if mailer != nil {
		h.mailer = mailer
	}
	return h
}

func (h *InitializeEmailVerificationHandler) WithLogger(logger Logger) *InitializeEmailVerificationHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *InitializeEmailVerificationHandler) Execute(ctx context.Context, event InitializeEmailVerificationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during email verification initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializeEmailVerificationHandler) execute(ctx context.Context, event InitializeEmailVerificationMessage) error {
	resp := &InitializeEmailVerificationResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		cred, err := h.repo.Credentials().GetByEmailTx(ctx, tx, event.Email)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return nil
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve credential for verification")
		}

		if cred.User != nil && cred.User.IsActive {
			// already verified, nothing to issue
			return nil
		}

		code, err := NewVerificationCode(h.cfg.CodeLength)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not generate verification code")
		}

		verification, err := h.repo.EmailVerificationCodes().ReplaceTx(ctx, tx, cred.UserID, code, time.Now().Add(h.cfg.CodeTTL))
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not store verification code")
		}

		resp.Verification = verification
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to initialize email verification")
	}

	if resp.Verification != nil {
		body := fmt.Sprintf("Your account verification code is %s.\nIt expires in %s.", resp.Verification.Code, h.cfg.CodeTTL)
		if err := h.mailer.Send(ctx, NormalizeEmail(event.Email), "Verify your account", body); err != nil {
			h.logger.Error("verification email dispatch failed: %v", err)
		}
	}

	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

type ConfirmEmailVerificationMessage struct {
	Code       string `json:"code"`
	OnResponse func(resp *ConfirmEmailVerificationResponse)
}

func (e ConfirmEmailVerificationMessage) Type() string { return "user.email_verification.confirm" }

type ConfirmEmailVerificationResponse struct {
	UserID  string
	Success bool
}

// ConfirmEmailVerificationHandler consumes an activation code and flips the
// account live. Codes are single use: consumption deletes the row, so a
// replayed code reads as unknown.
type ConfirmEmailVerificationHandler struct {
	repo   RepositoryManager
	logger Logger
}

func NewConfirmEmailVerificationHandler(repo RepositoryManager) *ConfirmEmailVerificationHandler {
	return &ConfirmEmailVerificationHandler{
		repo:   repo,
		logger: defLogger{},
	}
}

func (h *ConfirmEmailVerificationHandler) WithLogger(logger Logger) *ConfirmEmailVerificationHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ConfirmEmailVerificationHandler) Execute(ctx context.Context, event ConfirmEmailVerificationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during email verification",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ConfirmEmailVerificationHandler) execute(ctx context.Context, event ConfirmEmailVerificationMessage) error {
	resp := &ConfirmEmailVerificationResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		verification, err := h.repo.EmailVerificationCodes().GetByCodeTx(ctx, tx, event.Code)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrInvalidOrExpiredCode
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve verification code")
		}

		if time.Now().After(verification.ExpiresAt) {
			return ErrInvalidOrExpiredCode
		}

		if err := h.repo.Users().ActivateTx(ctx, tx, verification.UserID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to activate user")
		}

		if err := h.repo.EmailVerificationCodes().DeleteTx(ctx, tx, verification.ID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume verification code")
		}

		resp.UserID = verification.UserID.String()
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to confirm email verification")
	}

	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
