// Package logging provides a tiny abstraction over slog so downstream
// code can depend on a minimal interface (Logger) while allowing users
// to plug any structured logger. It also offers a PlanLogger with
// contextual helpers (agent, plan, step) and domain specific helpers for
// tool and completion calls.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger defines the minimal logging interface for Finsight. Args are
// alternating key/value pairs in the slog convention. Users can provide
// their own implementation or use the built-in adapters.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info logs an informational message.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewDefaultSlogLogger creates a Logger using slog.Default().
func NewDefaultSlogLogger() Logger {
	return NewSlogAdapter(slog.Default())
}

// NoOpLogger discards all log messages. Useful for testing or when
// logging is disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}

// Config configures construction of a PlanLogger.
type Config struct {
	Level     slog.Level
	Format    string // json or text
	Output    io.Writer
	AddSource bool
	Agent     string
	PlanID    string
}

// DefaultConfig returns a baseline JSON info level configuration.
func DefaultConfig() *Config {
	return &Config{Level: slog.LevelInfo, Format: "json", Output: os.Stdout}
}

// PlanLogger wraps slog.Logger adding contextual cloning helpers and
// domain convenience methods. It is cheap to copy via With* methods.
type PlanLogger struct {
	logger *slog.Logger
	agent  string
	planID string
}

// NewPlanLogger builds a PlanLogger from a config (or defaults if nil).
func NewPlanLogger(cfg *Config) *PlanLogger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	opts := &slog.HandlerOptions{Level: cfg.Level, AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(cfg.Output, opts)
	} else {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	}
	return &PlanLogger{logger: slog.New(handler), agent: cfg.Agent, planID: cfg.PlanID}
}

// NewNopPlanLogger builds a PlanLogger that discards everything.
func NewNopPlanLogger() *PlanLogger {
	return NewPlanLogger(&Config{Level: slog.LevelError + 4, Output: io.Discard})
}

// WithAgent attaches the owning agent name to every log entry.
func (l *PlanLogger) WithAgent(agent string) *PlanLogger {
	nl := *l
	nl.agent = agent
	return &nl
}

// WithPlan attaches the plan identifier to every log entry.
func (l *PlanLogger) WithPlan(planID string) *PlanLogger {
	nl := *l
	nl.planID = planID
	return &nl
}

func (l *PlanLogger) attrs(extra ...slog.Attr) []slog.Attr {
	out := make([]slog.Attr, 0, len(extra)+2)
	if l.agent != "" {
		out = append(out, slog.String("agent", l.agent))
	}
	if l.planID != "" {
		out = append(out, slog.String("plan_id", l.planID))
	}
	return append(out, extra...)
}

func (l *PlanLogger) log(level slog.Level, msg string, args ...any) {
	kvs := make([]any, 0, len(args)+4)
	if l.agent != "" {
		kvs = append(kvs, "agent", l.agent)
	}
	if l.planID != "" {
		kvs = append(kvs, "plan_id", l.planID)
	}
	l.logger.Log(context.Background(), level, msg, append(kvs, args...)...)
}

// Debug logs at debug level.
func (l *PlanLogger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args...) }

// Info logs at info level.
func (l *PlanLogger) Info(msg string, args ...any) { l.log(slog.LevelInfo, msg, args...) }

// Warn logs at warn level.
func (l *PlanLogger) Warn(msg string, args ...any) { l.log(slog.LevelWarn, msg, args...) }

// Error logs at error level.
func (l *PlanLogger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args...) }

// LogStep records execution details for one plan step.
func (l *PlanLogger) LogStep(stepID, tool, status string, dur time.Duration, err error) {
	attrs := []slog.Attr{
		slog.String("step_id", stepID),
		slog.String("tool", tool),
		slog.String("status", status),
		slog.Duration("duration", dur),
	}
	level := slog.LevelInfo
	msg := "Step completed"
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		level = slog.LevelWarn
		msg = "Step failed"
	}
	l.logger.LogAttrs(context.Background(), level, msg, l.attrs(attrs...)...)
}

// LogCompletionCall records completion service latency and token usage.
func (l *PlanLogger) LogCompletionCall(model string, tokens int, dur time.Duration, err error) {
	attrs := []slog.Attr{
		slog.String("model", model),
		slog.Int("token_count", tokens),
		slog.Duration("duration", dur),
		slog.Bool("success", err == nil),
	}
	level := slog.LevelInfo
	msg := "Completion call finished"
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		level = slog.LevelError
		msg = "Completion call failed"
	}
	l.logger.LogAttrs(context.Background(), level, msg, l.attrs(attrs...)...)
}

// LogPlanRun records aggregate plan execution metrics.
func (l *PlanLogger) LogPlanRun(steps int, status string, dur time.Duration) {
	l.logger.LogAttrs(context.Background(), slog.LevelInfo, "Plan finished", l.attrs(
		slog.Int("step_count", steps),
		slog.String("status", status),
		slog.Duration("duration", dur),
	)...)
}
