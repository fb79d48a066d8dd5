// Package ailog provides the AI pipeline debug logger. Debug lines are
// suppressed unless debug mode is enabled; errors always print.
package ailog

import (
	"log"
	"sync/atomic"
)

var debugEnabled atomic.Bool

// SetDebug toggles debug output.
func SetDebug(enabled bool) {
	debugEnabled.Store(enabled)
}

// Debugf prints a debug line when debug mode is on.
func Debugf(format string, args ...any) {
	if debugEnabled.Load() {
		log.Printf("\x1b[33mAI DEBUG:\x1b[0m "+format, args...)
	}
}

// Errorf prints an error line.
func Errorf(format string, args ...any) {
	log.Printf("\x1b[31mAI ERROR:\x1b[0m "+format, args...)
}
