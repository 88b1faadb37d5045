package coro

import (
	"fmt"
	"log/slog"
)

// Logger is the ambient diagnostic hook of the scheduler (SPEC_FULL.md
// §6). NewScheduler reports a selector that fails to initialize through
// Errorf; nothing else is logged. The teacher library never imports
// a logging package at all — it is a pure, silent library — so the
// default here is a no-op, and structured logging is opt-in.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Errorf(format string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debugf(string, ...any) {}
func (noopLogger) Infof(string, ...any)  {}
func (noopLogger) Errorf(string, ...any) {}

// SlogLogger adapts a *slog.Logger to the Logger interface, letting an
// application opt the scheduler into its own structured logging by
// setting Config.Logger.
type SlogLogger struct {
	L *slog.Logger
}

func (s SlogLogger) Debugf(format string, args ...any) {
	s.L.Debug(fmt.Sprintf(format, args...))
}

func (s SlogLogger) Infof(format string, args ...any) {
	s.L.Info(fmt.Sprintf(format, args...))
}

func (s SlogLogger) Errorf(format string, args ...any) {
	s.L.Error(fmt.Sprintf(format, args...))
}
