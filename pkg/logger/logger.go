// Package logger is the entrypoint for code that wants to log arbitrary data
// to the rawlog file.
//
// A Logger is constructed explicitly and handed to call sites. The host
// application calls Open during startup and Close during shutdown; Close
// never touches the file, so entries survive restarts until they are cleared:
//
//	lg := logger.New(cfg)
//	if err := lg.Open(); err != nil { ... }
//	defer lg.Close()
//
//	lg.Log(core.LevelError, map[string]any{"order": 42, "status": "failed"})
//	lg.Info("plain text")
//	lg.Info(`{"decoded": "as json"}`)
//
// Log calls are synchronous and best effort: they never return an error and
// never panic into the caller. Failures go to the side channel.
package logger

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/modoterra/rawlog/pkg/config"
	"github.com/modoterra/rawlog/pkg/core"
	"github.com/modoterra/rawlog/pkg/diag"
	"github.com/modoterra/rawlog/pkg/lifecycle"
	"github.com/modoterra/rawlog/pkg/logfile"
)

// Logger formats payloads and appends them to the log file.
type Logger struct {
	cfg       *config.Config
	writer    *logfile.Writer
	lifecycle *lifecycle.Manager
	diag      diag.Reporter
	slog      *slog.Logger
	opener    logfile.Opener
	now       func() time.Time
	loc       *time.Location
	layout    string
}

// Option configures a Logger.
type Option func(*Logger)

// WithReporter sets the side channel. Defaults to diag.Default.
func WithReporter(r diag.Reporter) Option {
	return func(l *Logger) { l.diag = r }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) { l.now = now }
}

// WithSlog sets the logger used for lifecycle messages.
func WithSlog(s *slog.Logger) Option {
	return func(l *Logger) { l.slog = s }
}

// WithOpener sets the filesystem capability used by Clear.
func WithOpener(o logfile.Opener) Option {
	return func(l *Logger) { l.opener = o }
}

// New builds a Logger for cfg. An invalid timezone falls back to local time
// and is reported to the side channel.
func New(cfg *config.Config, opts ...Option) *Logger {
	l := &Logger{
		cfg:    cfg,
		now:    time.Now,
		layout: cfg.TimestampLayout,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.slog == nil {
		l.slog = slog.Default()
	}
	if l.diag == nil {
		l.diag = diag.Default(l.slog)
	}

	loc, err := cfg.Location()
	if err != nil {
		l.diag.Report("invalid timezone, using local time", "timezone", cfg.Timezone, "err", err)
		loc = time.Local
	}
	l.loc = loc

	l.writer = logfile.NewWriter(cfg.LogPath(), l.diag)
	l.lifecycle = lifecycle.New(lifecycle.Options{
		Path:               cfg.LogPath(),
		DeleteOnDeactivate: cfg.DeleteOnDeactivate,
		Opener:             l.opener,
		Reporter:           l.diag,
		Logger:             l.slog,
	})
	return l
}

// Path returns the log file path.
func (l *Logger) Path() string { return l.writer.Path() }

// Lifecycle returns the manager for the log file.
func (l *Logger) Lifecycle() *lifecycle.Manager { return l.lifecycle }

// Open provisions the log directory and file.
func (l *Logger) Open() error {
	return l.lifecycle.Activate()
}

// Close releases the logger. The log file is kept; deactivation goes through
// Lifecycle().Deactivate or Handle(lifecycle.EventDeactivate).
func (l *Logger) Close() error {
	return nil
}

// Log writes payload at level. Payload may be a core.Payload or any value,
// which is classified with core.PayloadOf.
func (l *Logger) Log(level core.Level, payload any) {
	defer l.recoverPanic()
	l.write(level, core.PayloadOf(payload))
}

// LogEntry writes an already-classified payload.
func (l *Logger) LogEntry(level core.Level, payload core.Payload) {
	defer l.recoverPanic()
	l.write(level, payload)
}

func (l *Logger) Debug(payload any)    { l.Log(core.LevelDebug, payload) }
func (l *Logger) Info(payload any)     { l.Log(core.LevelInfo, payload) }
func (l *Logger) Warning(payload any)  { l.Log(core.LevelWarning, payload) }
func (l *Logger) Error(payload any)    { l.Log(core.LevelError, payload) }
func (l *Logger) Critical(payload any) { l.Log(core.LevelCritical, payload) }

// Format renders an entry stamped with the current time without writing it.
func (l *Logger) Format(level core.Level, payload core.Payload) string {
	return core.Format(core.Entry{
		Time:    l.now().In(l.loc),
		Level:   level,
		Payload: payload,
	}, l.layout)
}

// Write appends a formatted entry and returns any write error. It exists for
// callers that need to know about failures; Log never reports them.
func (l *Logger) Write(level core.Level, payload core.Payload) error {
	_, err := l.writer.Write([]byte(l.Format(level, payload)))
	return err
}

func (l *Logger) write(level core.Level, payload core.Payload) {
	l.writer.Append(l.Format(level, payload))
}

func (l *Logger) recoverPanic() {
	if r := recover(); r != nil {
		l.diag.Report("log call panicked", "path", l.writer.Path(), "err", fmt.Sprint(r))
	}
}
