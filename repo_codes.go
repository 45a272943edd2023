package identity

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CodeRecord is what the two verification-code tables have in common. Both
// models satisfy it so a single store implementation can serve both
// workflows without being able to consume the other one's codes.
type CodeRecord interface {
	GetID() uuid.UUID
	GetCode() string
	GetUserID() uuid.UUID
	GetExpiresAt() time.Time
}

// CodeStore is the shared contract for verification-code persistence.
// Replace enforces the one-outstanding-code-per-user rule by dropping any
// previous row for the user before inserting the new one.
type CodeStore[T CodeRecord] interface {
	ReplaceTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, code string, expiresAt time.Time) (T, error)
	GetByCode(ctx context.Context, code string) (T, error)
	GetByCodeTx(ctx context.Context, tx bun.IDB, code string) (T, error)
	DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	DeleteExpired(ctx context.Context, now time.Time, batchSize int) (int64, error)
}

// CodeModelHandlers mirrors the repository handler pattern: the store never
// constructs records on its own, the owning package tells it how.
type CodeModelHandlers[T CodeRecord] struct {
	NewRecord func(userID uuid.UUID, code string, expiresAt time.Time) T
	Empty     func() T
}

type codes[T CodeRecord] struct {
	db       *bun.DB
	handlers CodeModelHandlers[T]
}

// NewEmailVerificationCodes builds the store backing account activation.
func NewEmailVerificationCodes(db *bun.DB) CodeStore[*EmailVerificationCode] {
	return &codes[*EmailVerificationCode]{
		db: db,
		handlers: CodeModelHandlers[*EmailVerificationCode]{
			NewRecord: func(userID uuid.UUID, code string, expiresAt time.Time) *EmailVerificationCode {
				return &EmailVerificationCode{
					ID:        uuid.New(),
					Code:      code,
					UserID:    userID,
					ExpiresAt: expiresAt,
				}
			},
			Empty: func() *EmailVerificationCode { return &EmailVerificationCode{} },
		},
	}
}

// NewPasswordResetCodes builds the store backing password recovery.
func NewPasswordResetCodes(db *bun.DB) CodeStore[*PasswordResetCode] {
	return &codes[*PasswordResetCode]{
		db: db,
		handlers: CodeModelHandlers[*PasswordResetCode]{
			NewRecord: func(userID uuid.UUID, code string, expiresAt time.Time) *PasswordResetCode {
				return &PasswordResetCode{
					ID:        uuid.New(),
					Code:      code,
					UserID:    userID,
					ExpiresAt: expiresAt,
				}
			},
			Empty: func() *PasswordResetCode { return &PasswordResetCode{} },
		},
	}
}

func (c *codes[T]) ReplaceTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, code string, expiresAt time.Time) (T, error) {
	var zero T

	_, err := tx.NewDelete().
		Model(c.handlers.Empty()).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return zero, err
	}

	record := c.handlers.NewRecord(userID, code, expiresAt)

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return zero, err
	}

	return record, nil
}

func (c *codes[T]) GetByCode(ctx context.Context, code string) (T, error) {
	return c.GetByCodeTx(ctx, c.db, code)
}

func (c *codes[T]) GetByCodeTx(ctx context.Context, tx bun.IDB, code string) (T, error) {
	record := c.handlers.Empty()

	err := tx.NewSelect().
		Model(record).
		Where("code = ?", code).
		Limit(1).
		Scan(ctx)

	if err != nil {
		var zero T
		if repository.IsRecordNotFound(err) {
			return zero, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"criteria": "code"})
		}
		return zero, err
	}

	return record, nil
}

func (c *codes[T]) DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	_, err := tx.NewDelete().
		Model(c.handlers.Empty()).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// DeleteExpired removes stale codes in bounded batches so the sweep never
// holds a long-running delete against a busy table. Returns the total rows
// removed.
func (c *codes[T]) DeleteExpired(ctx context.Context, now time.Time, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 500
	}

	var total int64

	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		subq := c.db.NewSelect().
			Model(c.handlers.Empty()).
			Column("id").
			Where("expires_at <= ?", now).
			Limit(batchSize)

		res, err := c.db.NewDelete().
			Model(c.handlers.Empty()).
			Where("id IN (?)", subq).
			Exec(ctx)
		if err != nil {
			return total, err
		}

		rows, err := res.RowsAffected()
		if err != nil {
			return total, err
		}

		total += rows

		if rows < int64(batchSize) {
			return total, nil
		}
	}
}
