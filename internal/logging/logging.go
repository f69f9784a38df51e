// Package logging wires go.uber.org/zap through the daemon's subsystems.
// Every subsystem takes a *Logger at construction, never reaches for a
// package-level global, matching the pack's logger-injection idiom over a
// singleton.
package logging

import "go.uber.org/zap"

// Logger is a narrow facade over *zap.SugaredLogger so subsystems depend on
// this package's name, not zap's, at their call sites.
type Logger struct {
	s *zap.SugaredLogger
}

// New builds a production JSON logger at the given level name ("debug",
// "info", "warn", "error"). An unrecognized level falls back to "info".
func New(level string) (*Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		lvl = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl

	base, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{s: base.Sugar()}, nil
}

// Nop returns a Logger that discards everything, for tests.
func Nop() *Logger {
	return &Logger{s: zap.NewNop().Sugar()}
}

// With returns a child Logger carrying the given key/value pairs on every
// subsequent entry, e.g. With("peer", fingerprint).
func (l *Logger) With(kv ...any) *Logger {
	return &Logger{s: l.s.With(kv...)}
}

func (l *Logger) Debugw(msg string, kv ...any) { l.s.Debugw(msg, kv...) }
func (l *Logger) Infow(msg string, kv ...any)  { l.s.Infow(msg, kv...) }
func (l *Logger) Warnw(msg string, kv ...any)  { l.s.Warnw(msg, kv...) }
func (l *Logger) Errorw(msg string, kv ...any) { l.s.Errorw(msg, kv...) }

// Sync flushes any buffered log entries, best-effort on process exit.
func (l *Logger) Sync() error {
	return l.s.Sync()
}
