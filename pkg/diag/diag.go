// Package diag is the side channel for failures that cannot be written to the
// log file itself. It prefers the systemd journal and falls back to slog.
package diag

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/coreos/go-systemd/v22/journal"
)

// Reporter receives diagnostics about failed log writes and lifecycle events.
// Args are slog-style key/value pairs.
type Reporter interface {
	Report(msg string, args ...any)
}

// Default returns the journal reporter when journald is reachable, otherwise
// a slog reporter on the given logger (or stderr when logger is nil).
func Default(logger *slog.Logger) Reporter {
	if journal.Enabled() {
		return Journal{Identifier: "rawlog"}
	}
	return NewSlog(logger)
}

// Journal sends diagnostics to the systemd journal.
type Journal struct {
	Identifier string
}

// Report implements Reporter.
func (j Journal) Report(msg string, args ...any) {
	vars := map[string]string{}
	if j.Identifier != "" {
		vars["SYSLOG_IDENTIFIER"] = j.Identifier
	}
	for k, v := range pairs(args) {
		vars["RAWLOG_"+journalField(k)] = v
	}
	if err := journal.Send(msg, journal.PriErr, vars); err != nil {
		fmt.Fprintf(os.Stderr, "rawlog: %s %v (journal: %v)\n", msg, args, err)
	}
}

// Slog writes diagnostics through a slog.Logger at error level.
type Slog struct {
	logger *slog.Logger
}

// NewSlog wraps logger. A nil logger writes text to stderr.
func NewSlog(logger *slog.Logger) *Slog {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Slog{logger: logger}
}

// Report implements Reporter.
func (s *Slog) Report(msg string, args ...any) {
	s.logger.Error(msg, args...)
}

// Recorder keeps diagnostics in memory.
type Recorder struct {
	mu      sync.Mutex
	reports []Report
}

// Report is one recorded diagnostic.
type Report struct {
	Msg  string
	Args map[string]string
}

// Report implements Reporter.
func (r *Recorder) Report(msg string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, Report{Msg: msg, Args: pairs(args)})
}

// Reports returns a copy of everything recorded so far.
func (r *Recorder) Reports() []Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Report, len(r.reports))
	copy(out, r.reports)
	return out
}

// Nop discards diagnostics.
type Nop struct{}

// Report implements Reporter.
func (Nop) Report(string, ...any) {}

func pairs(args []any) map[string]string {
	m := make(map[string]string, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		key := fmt.Sprint(args[i])
		if i+1 >= len(args) {
			m["!BADKEY"] = key
			break
		}
		m[key] = fmt.Sprint(args[i+1])
	}
	return m
}

// journalField upper-cases a key and replaces anything outside [A-Z0-9_].
func journalField(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, key)
}
