package logging

import (
	"context"
	"log/slog"
)

// Attr aliases slog.Attr so call sites can stay on the logging package.
type Attr = slog.Attr

var (
	Any      = slog.Any
	Bool     = slog.Bool
	Duration = slog.Duration
	Float64  = slog.Float64
	Int      = slog.Int
	Int64    = slog.Int64
	Uint64   = slog.Uint64
	String   = slog.String
	Group    = slog.Group
	Time     = slog.Time
)

// Error returns a standard attr for error values.
func Error(err error) Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger {
	return slog.New(NoopHandler{})
}

// NewComponentLogger tags logger with the component field. A nil logger
// yields a nop logger so callers can chain without guards.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	if component == "" {
		return logger
	}
	return logger.With(String(FieldComponent, component))
}

// NoopHandler drops all records.
type NoopHandler struct{}

func (NoopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (NoopHandler) Handle(context.Context, slog.Record) error { return nil }
func (NoopHandler) WithAttrs([]slog.Attr) slog.Handler        { return NoopHandler{} }
func (NoopHandler) WithGroup(string) slog.Handler             { return NoopHandler{} }

var _ slog.Handler = NoopHandler{}
