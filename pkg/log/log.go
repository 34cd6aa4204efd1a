// Package log provides colored console output for the CLI and the duplex
// stream internals, plus a connection wrapper recording session plaintext.
package log

import (
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

var red = color.New(color.FgRed).FprintfFunc()
var blue = color.New(color.FgBlue).FprintfFunc()
var faint = color.New(color.Faint).FprintfFunc()

// ErrorMsg prints an error message to stderr in red color.
func ErrorMsg(format string, a ...interface{}) {
	red(os.Stderr, "[!] Error: "+format, a...)
}

// InfoMsg prints an informational message to stderr in blue color.
func InfoMsg(format string, a ...interface{}) {
	blue(os.Stderr, "[+] "+format, a...)
}

// Logger writes the same messages as the package level functions to a
// configurable writer. Verbose messages are dropped unless enabled.
// A nil *Logger discards everything.
type Logger struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool
}

// New returns a logger writing to stderr.
func New(verbose bool) *Logger {
	return NewWithWriter(os.Stderr, verbose)
}

// NewWithWriter returns a logger writing to out.
func NewWithWriter(out io.Writer, verbose bool) *Logger {
	return &Logger{out: out, verbose: verbose}
}

// Verbose reports whether verbose messages are printed.
func (l *Logger) Verbose() bool {
	return l != nil && l.verbose
}

// ErrorMsg prints an error message in red.
func (l *Logger) ErrorMsg(format string, a ...interface{}) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	red(l.out, "[!] Error: "+format, a...)
}

// InfoMsg prints an informational message in blue.
func (l *Logger) InfoMsg(format string, a ...interface{}) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	blue(l.out, "[+] "+format, a...)
}

// VerboseMsg prints a dimmed message if the logger is verbose.
func (l *Logger) VerboseMsg(format string, a ...interface{}) {
	if !l.Verbose() {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	faint(l.out, "[v] "+format, a...)
}
