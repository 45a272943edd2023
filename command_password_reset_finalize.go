package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type FinalizePasswordResetMessage struct {
	Code       string `json:"code"`
	Password   string `json:"password"`
	OnResponse func(resp *FinalizePasswordResetResponse)
}

func (p FinalizePasswordResetMessage) Type() string { return "user.password_reset.finalize" }

type FinalizePasswordResetResponse struct {
	UserID  string
	Success bool
}

// FinalizePasswordResetHandler consumes a reset code and installs the new
// password hash. The stored refresh token is cleared in the same
// transaction so sessions issued before the reset stop refreshing.
type FinalizePasswordResetHandler struct {
	repo   RepositoryManager
	logger Logger
}

func NewFinalizePasswordResetHandler(repo RepositoryManager) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{
		repo:   repo,
		logger: defLogger{},
	}
}

func (h *FinalizePasswordResetHandler) WithLogger(logger Logger) *FinalizePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	resp := &FinalizePasswordResetResponse{}

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
		reset, err := h.repo.PasswordResetCodes().GetByCodeTx(ctx, tx, event.Code)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrInvalidOrExpiredCode
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve reset code")
		}

		if time.Now().After(reset.ExpiresAt) {
			return ErrInvalidOrExpiredCode
		}

		cred, err := h.repo.Credentials().GetByUserIDTx(ctx, tx, reset.UserID)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve credential for reset")
		}

		if err := h.repo.Credentials().SetPasswordHashTx(ctx, tx, cred.ID, hash); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store new password hash")
		}

		if err := h.repo.Credentials().SetRefreshTokenTx(ctx, tx, cred.ID, ""); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke refresh token")
		}

		if err := h.repo.PasswordResetCodes().DeleteTx(ctx, tx, reset.ID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume reset code")
		}

		resp.UserID = reset.UserID.String()
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to finalize password reset")
	}

	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
