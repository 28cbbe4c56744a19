// Package logging provides a minimal leveled logger in the style used
// throughout the core scrub engine: a Logger that derives named subloggers,
// is safe to use (as a no-op) when nil, and colorizes errors and warnings.
package logging

import (
	"fmt"
	"log"
	"os"

	"github.com/fatih/color"
)

// Logger is the core logger type. A nil *Logger is valid and silently
// discards everything logged through it, so callers can pass a possibly-nil
// logger down a call chain without guarding every call site.
type Logger struct {
	prefix string
	level  Level
	std    *log.Logger
}

// NewRoot creates the root logger for a process, logging at the given level
// to stderr with each line prefixed by the standard date and time.
func NewRoot(level Level) *Logger {
	return &Logger{
		level: level,
		std:   log.New(os.Stderr, "", log.LstdFlags),
	}
}

// Sublogger derives a named child logger. Subloggers inherit their parent's
// level and output destination; only the message prefix changes.
func (l *Logger) Sublogger(name string) *Logger {
	if l == nil {
		return nil
	}
	prefix := name
	if l.prefix != "" {
		prefix = l.prefix + "." + name
	}
	return &Logger{prefix: prefix, level: l.level, std: l.std}
}

func (l *Logger) line(s string) string {
	if l.prefix == "" {
		return s
	}
	return fmt.Sprintf("[%s] %s", l.prefix, s)
}

func (l *Logger) enabled(level Level) bool {
	return l != nil && l.level >= level
}

// Error logs a message at error level, colorized red. This is the level used
// for unmarked (bitrot) corruption reports.
func (l *Logger) Error(format string, v ...interface{}) {
	if !l.enabled(LevelError) {
		return
	}
	l.std.Output(2, l.line(color.RedString(format, v...)))
}

// Warn logs a message at warn level, colorized yellow.
func (l *Logger) Warn(format string, v ...interface{}) {
	if !l.enabled(LevelWarn) {
		return
	}
	l.std.Output(2, l.line(color.YellowString(format, v...)))
}

// Info logs a message at info level, uncolored. This is the level used for
// legitimate (explained) content changes.
func (l *Logger) Info(format string, v ...interface{}) {
	if !l.enabled(LevelInfo) {
		return
	}
	l.std.Output(2, l.line(fmt.Sprintf(format, v...)))
}

// Debug logs a message at debug level, uncolored. This is the level used for
// rate-limiting delays and other scheduling chatter.
func (l *Logger) Debug(format string, v ...interface{}) {
	if !l.enabled(LevelDebug) {
		return
	}
	l.std.Output(2, l.line(fmt.Sprintf(format, v...)))
}
