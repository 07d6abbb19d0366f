// Package debug provides the levelled diagnostic logger used by every
// nesprobe front end.
package debug

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Verbosity levels
const (
	LevelOff   = 0
	LevelInfo  = 1
	LevelDebug = 2
)

// Logger writes diagnostics to one stream. Warnings and errors always
// print; info and debug lines depend on the level.
type Logger struct {
	mu     sync.Mutex
	level  int
	logger *log.Logger

	info, dbg, warn, errc func(a ...interface{}) string
}

// New creates a logger writing to w. Prefixes are colored only when w is a
// terminal and color output has not been disabled globally.
func New(w io.Writer, level int) *Logger {
	l := &Logger{logger: log.New(w, "", 0)}
	l.SetLevel(level)

	colors := []*color.Color{
		color.New(color.FgCyan),
		color.New(color.FgBlue),
		color.New(color.FgYellow),
		color.New(color.FgRed, color.Bold),
	}
	if !isTerminal(w) {
		for _, c := range colors {
			c.DisableColor()
		}
	}
	l.info = colors[0].SprintFunc()
	l.dbg = colors[1].SprintFunc()
	l.warn = colors[2].SprintFunc()
	l.errc = colors[3].SprintFunc()
	return l
}

// Discard returns a logger that prints nothing.
func Discard() *Logger {
	return New(io.Discard, LevelOff)
}

func isTerminal(w io.Writer) bool {
	if color.NoColor {
		return false
	}
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// LevelFromEnv raises level to LevelDebug when DEBUG is set.
func LevelFromEnv(level int) int {
	if _, ok := os.LookupEnv("DEBUG"); ok {
		return LevelDebug
	}
	return level
}

// SetLevel changes the verbosity, clamped to 0..2.
func (l *Logger) SetLevel(level int) {
	if level < LevelOff {
		level = LevelOff
	}
	if level > LevelDebug {
		level = LevelDebug
	}
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

// Level returns the current verbosity.
func (l *Logger) Level() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// Enabled reports whether lines at level are printed.
func (l *Logger) Enabled(level int) bool {
	return l.Level() >= level
}

// Writer returns the underlying stream.
func (l *Logger) Writer() io.Writer {
	return l.logger.Writer()
}

func (l *Logger) print(prefix string, format string, args ...interface{}) {
	l.logger.Print(prefix + " " + fmt.Sprintf(format, args...))
}

func (l *Logger) Infof(format string, args ...interface{}) {
	if l.Enabled(LevelInfo) {
		l.print(l.info("[INFO]"), format, args...)
	}
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	if l.Enabled(LevelDebug) {
		l.print(l.dbg("[DEBUG]"), format, args...)
	}
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.print(l.warn("[WARN]"), format, args...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.print(l.errc("[ERROR]"), format, args...)
}
