package identity

import (
	"context"
	"fmt"
)

// Logger is the minimal logging surface the package depends on. Anything
// with printf-style leveled methods satisfies it.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Mailer delivers verification and reset codes out-of-band. Delivery is a
// collaborator concern; callers treat failures as retryable and logged,
// never as a reason to roll back the code that was already persisted.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] IDENTITY "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] IDENTITY "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] IDENTITY "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] IDENTITY "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

// logMailer is the default Mailer: it prints the message instead of
// delivering it. Deployments swap in a real SMTP or provider-backed
// implementation.
type logMailer struct {
	logger Logger
}

func (m logMailer) Send(ctx context.Context, to, subject, body string) error {
	logger := m.logger
	if logger == nil {
		logger = defLogger{}
	}
	logger.Info("mail to=%s subject=%q body=%q", to, subject, body)
	return nil
}
