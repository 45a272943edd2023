package social

import "fmt"

type defLogger struct{}

func (defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] SOCIAL "+format+"\n", args...)
}

func (defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] SOCIAL "+format+"\n", args...)
}

func (defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] SOCIAL "+format+"\n", args...)
}

func (defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] SOCIAL "+format+"\n", args...)
}
