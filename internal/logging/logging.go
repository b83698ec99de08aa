// Package logging wires up the structured logger the rest of the core
// uses for anything that must not be surfaced as a return value — most
// notably swallowed hook failures (spec.md §7) and integrity findings
// encountered during doctor/rebuild. When a log file path is
// configured, output rotates via lumberjack the way the daemon side of
// the original tooling rotated its own logs; otherwise it goes to
// stderr as human-readable text.
package logging

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	// FilePath, if set, directs output through a rotating file writer
	// instead of stderr.
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Level      slog.Level
}

// New builds a slog.Logger per Options. A zero Options value logs text
// to stderr at Info level.
func New(opts Options) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: opts.Level}

	if opts.FilePath == "" {
		return slog.New(slog.NewTextHandler(os.Stderr, handlerOpts))
	}

	maxSize := opts.MaxSizeMB
	if maxSize == 0 {
		maxSize = 10
	}
	maxBackups := opts.MaxBackups
	if maxBackups == 0 {
		maxBackups = 5
	}
	maxAge := opts.MaxAgeDays
	if maxAge == 0 {
		maxAge = 28
	}

	writer := &lumberjack.Logger{
		Filename:   opts.FilePath,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		MaxAge:     maxAge,
		Compress:   true,
	}
	return slog.New(slog.NewJSONHandler(writer, handlerOpts))
}

// debugEnvVar conditionally enables fine-grained tracing independent of
// the configured logger's level, mirroring the source's always-on
// conditional debug tracer.
const debugEnvVar = "LATTICE_DEBUG"

// DebugEnabled reports whether LATTICE_DEBUG is set to a truthy value.
func DebugEnabled() bool {
	v := os.Getenv(debugEnvVar)
	return v != "" && v != "0" && v != "false"
}

// Debugf writes a formatted trace line to stderr iff DebugEnabled.
// Callers pay no cost beyond the env lookup when tracing is off.
func Debugf(format string, args ...any) {
	if !DebugEnabled() {
		return
	}
	fmt.Fprintf(os.Stderr, "[debug] "+format+"\n", args...)
}
