// Package lifecycle provisions and removes the log file in response to host
// events: activation, deactivation, uninstall, and the user-triggered clear.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/modoterra/rawlog/pkg/diag"
	"github.com/modoterra/rawlog/pkg/logfile"
)

// State is the on-disk state of the log file.
type State string

const (
	StateAbsent      State = "absent"
	StateProvisioned State = "provisioned"
	StateCleared     State = "cleared"
)

// Event names a host lifecycle event.
type Event string

const (
	EventActivate   Event = "activate"
	EventDeactivate Event = "deactivate"
	EventUninstall  Event = "uninstall"
)

// ErrCapabilityUnavailable is returned by Clear when the filesystem capability
// could not be initialized.
var ErrCapabilityUnavailable = errors.New("filesystem capability unavailable")

// Options configures a Manager.
type Options struct {
	Path               string
	DeleteOnDeactivate bool
	Opener             logfile.Opener
	Reporter           diag.Reporter
	Logger             *slog.Logger
}

// Manager moves the log file between states.
type Manager struct {
	path               string
	deleteOnDeactivate bool
	opener             logfile.Opener
	diag               diag.Reporter
	logger             *slog.Logger
}

// New creates a Manager. A nil Opener uses DirectOpener.
func New(opts Options) *Manager {
	m := &Manager{
		path:               opts.Path,
		deleteOnDeactivate: opts.DeleteOnDeactivate,
		opener:             opts.Opener,
		diag:               opts.Reporter,
		logger:             opts.Logger,
	}
	if m.opener == nil {
		m.opener = logfile.DirectOpener{}
	}
	if m.diag == nil {
		m.diag = diag.Nop{}
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// Path returns the managed log file.
func (m *Manager) Path() string { return m.path }

// State inspects the file. An existing empty file reports as cleared.
func (m *Manager) State() (State, error) {
	fi, err := os.Stat(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return StateAbsent, nil
	}
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", m.path, err)
	}
	if fi.Size() == 0 {
		return StateCleared, nil
	}
	return StateProvisioned, nil
}

// Handle dispatches a lifecycle event.
func (m *Manager) Handle(ev Event) error {
	switch ev {
	case EventActivate:
		return m.Activate()
	case EventDeactivate:
		return m.Deactivate()
	case EventUninstall:
		return m.Uninstall()
	default:
		return fmt.Errorf("unknown lifecycle event %q", ev)
	}
}

// Activate creates the directory and an empty file if either is missing.
// Running it again never truncates an existing file.
func (m *Manager) Activate() error {
	if err := logfile.EnsureFile(m.path); err != nil {
		m.diag.Report("activation failed", "path", m.path, "err", err)
		return err
	}
	m.logger.Info("log file provisioned", "path", m.path)
	return nil
}

// Deactivate deletes the file when the manager is configured to.
func (m *Manager) Deactivate() error {
	if !m.deleteOnDeactivate {
		m.logger.Info("deactivated, log file kept", "path", m.path)
		return nil
	}
	if err := removeFile(m.path); err != nil {
		m.diag.Report("failed to delete log file", "path", m.path, "err", err)
		return err
	}
	m.logger.Info("deactivated, log file deleted", "path", m.path)
	return nil
}

// Uninstall deletes the file, then the directory if nothing else is left in it.
func (m *Manager) Uninstall() error {
	if err := removeFile(m.path); err != nil {
		m.diag.Report("failed to delete log file", "path", m.path, "err", err)
		return err
	}

	dir := filepath.Dir(m.path)
	entries, err := os.ReadDir(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil
	case err != nil:
		return fmt.Errorf("read log directory: %w", err)
	case len(entries) > 0:
		m.logger.Info("uninstalled, log directory kept", "dir", dir, "remaining", len(entries))
		return nil
	}

	if err := os.Remove(dir); err != nil {
		m.diag.Report("failed to remove log directory", "dir", dir, "err", err)
		return fmt.Errorf("remove log directory: %w", err)
	}
	m.logger.Info("uninstalled, log directory removed", "dir", dir)
	return nil
}

// Clear empties the file through the filesystem capability. If the capability
// cannot be initialized the file is left untouched.
func (m *Manager) Clear(ctx context.Context) error {
	fs, err := m.opener.Open(ctx)
	if err != nil {
		m.diag.Report("failed to initialize filesystem", "path", m.path, "err", err)
		return fmt.Errorf("%w: %v", ErrCapabilityUnavailable, err)
	}
	if fs == nil {
		m.diag.Report("filesystem not initialized correctly", "path", m.path)
		return ErrCapabilityUnavailable
	}

	if !fs.Exists(m.path) {
		if err := fs.PutContents(m.path, nil); err != nil {
			m.diag.Report("failed to create log file", "path", m.path, "err", err)
			return fmt.Errorf("clear: %w", err)
		}
	}
	if err := fs.Truncate(m.path); err != nil {
		m.diag.Report("failed to clear the log file", "path", m.path, "err", err)
		return fmt.Errorf("clear: %w", err)
	}

	m.logger.Info("log file cleared", "path", m.path)
	return nil
}

func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete log file: %w", err)
	}
	return nil
}
