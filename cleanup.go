package identity

import (
	"context"
	"time"
)

// CodeSweeper periodically deletes expired verification and reset codes.
// Expiry is enforced at read time regardless; the sweep only keeps the
// tables from accumulating dead rows.
type CodeSweeper struct {
	emailCodes CodeStore[*EmailVerificationCode]
	resetCodes CodeStore[*PasswordResetCode]
	interval   time.Duration
	batchSize  int
	logger     Logger
	now        func() time.Time
}

func NewCodeSweeper(repo RepositoryManager, cfg *Config) *CodeSweeper {
	return &CodeSweeper{
		emailCodes: repo.EmailVerificationCodes(),
		resetCodes: repo.PasswordResetCodes(),
		interval:   cfg.CleanupInterval,
		batchSize:  cfg.CleanupBatchSize,
		logger:     defLogger{},
		now:        time.Now,
	}
}

func (s *CodeSweeper) WithLogger(logger Logger) *CodeSweeper {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithClock injects a custom clock (useful for tests).
func (s *CodeSweeper) WithClock(clock func() time.Time) *CodeSweeper {
	if clock != nil {
		s.now = clock
	}
	return s
}

// Start runs the sweep loop until ctx is cancelled. It sweeps once
// immediately so a long interval does not leave stale rows sitting after a
// restart.
func (s *CodeSweeper) Start(ctx context.Context) {
	go func() {
		s.Sweep(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()
}

// Sweep removes expired rows from both code tables. A failure on one table
// is logged and does not stop the other from being swept.
func (s *CodeSweeper) Sweep(ctx context.Context) {
	now := s.now()

	removed, err := s.emailCodes.DeleteExpired(ctx, now, s.batchSize)
	if err != nil {
		s.logger.Error("sweep of email verification codes failed: %v", err)
	} else if removed > 0 {
		s.logger.Info("swept %d expired email verification codes", removed)
	}

	removed, err = s.resetCodes.DeleteExpired(ctx, now, s.batchSize)
	if err != nil {
		s.logger.Error("sweep of password reset codes failed: %v", err)
	} else if removed > 0 {
		s.logger.Info("swept %d expired password reset codes", removed)
	}
}
