// Package vlog is a tiny bracketed-tag logger used across the organize
// daemon and its collaborators, in the style of the ad hoc
// log.Printf("[valon] ...") calls the daemon used to make directly.
package vlog

import (
	"log"
	"os"
)

// Logger prefixes every line with "[tag] ".
type Logger struct {
	tag string
	std *log.Logger
}

// New returns a Logger that writes to stderr with the given component tag.
func New(tag string) *Logger {
	return &Logger{
		tag: tag,
		std: log.New(os.Stderr, "", log.LstdFlags),
	}
}

func (l *Logger) Printf(format string, args ...any) {
	l.std.Printf("[%s] "+format, append([]any{l.tag}, args...)...)
}

func (l *Logger) Println(args ...any) {
	all := append([]any{"[" + l.tag + "]"}, args...)
	l.std.Println(all...)
}
