// Package logging is the shared log sink. Every subsystem logs through it with
// a bracketed prefix, and error lines additionally feed per-subsystem counters
// so degraded capabilities show up on the health endpoint, not just in grep.
package logging

import (
	"log"
	"os"
	"strings"
	"sync"
	"unicode/utf8"
)

var debugEnabled = os.Getenv("DEBUG") == "true"

var (
	countMu     sync.Mutex
	errorCounts = make(map[string]uint64)
)

// Info logs an informational message (always shown)
func Info(subsystem, format string, args ...any) {
	log.Printf("[%s] "+format, append([]any{subsystem}, args...)...)
}

// Error logs a processing error and bumps the subsystem's error counter.
// Nothing in the pipeline is fatal, so errors share the same sink as Info;
// the ERROR marker is for grepping.
func Error(subsystem, format string, args ...any) {
	countMu.Lock()
	errorCounts[subsystem]++
	countMu.Unlock()
	log.Printf("[%s] ERROR: "+format, append([]any{subsystem}, args...)...)
}

// Debug logs a debug message (only shown if DEBUG=true)
func Debug(subsystem, format string, args ...any) {
	if debugEnabled {
		log.Printf("[%s] "+format, append([]any{subsystem}, args...)...)
	}
}

// ErrorCounts returns a snapshot of per-subsystem error counts since startup.
func ErrorCounts() map[string]uint64 {
	countMu.Lock()
	defer countMu.Unlock()
	out := make(map[string]uint64, len(errorCounts))
	for k, v := range errorCounts {
		out[k] = v
	}
	return out
}

// Truncate truncates a string to at most maxLen bytes and adds an ellipsis,
// cutting on a rune boundary.
func Truncate(s string, maxLen int) string {
	// Replace newlines with spaces for one-line logs
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.TrimSpace(s)
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
