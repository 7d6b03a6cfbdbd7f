// Package logfile owns the single append-only log file: appending entries,
// reading it back, and the filesystem capability used to clear it.
package logfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/modoterra/rawlog/pkg/diag"
)

// FileName is the log file's name inside the configured base directory.
const FileName = "wp-logger.log"

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Path returns the log file path under baseDir.
func Path(baseDir string) string {
	return filepath.Join(baseDir, FileName)
}

// EnsureFile creates the containing directory and an empty file when either
// is missing. Existing files are left untouched.
func EnsureFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, filePerm)
	if err != nil {
		return fmt.Errorf("create log file: %w", err)
	}
	return f.Close()
}

// Writer appends formatted entries to the log file.
type Writer struct {
	path string
	diag diag.Reporter
}

var _ io.Writer = (*Writer)(nil)

// NewWriter returns a writer for path. Failures are reported to d.
func NewWriter(path string, d diag.Reporter) *Writer {
	if d == nil {
		d = diag.Nop{}
	}
	return &Writer{path: path, diag: d}
}

// Path returns the file the writer appends to.
func (w *Writer) Path() string { return w.path }

// Append writes entry to the end of the file. It never fails outward: when the
// file cannot be written the failure goes to the side channel instead.
func (w *Writer) Append(entry string) {
	if _, err := w.Write([]byte(entry)); err != nil {
		w.diag.Report("log write failed", "path", w.path, "err", err)
	}
}

// Write implements io.Writer with a single append. The directory and file are
// created first if missing.
func (w *Writer) Write(p []byte) (int, error) {
	if err := EnsureFile(w.path); err != nil {
		return 0, err
	}

	f, err := os.OpenFile(w.path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return 0, fmt.Errorf("log file is not writable: %w", err)
		}
		return 0, fmt.Errorf("open log file: %w", err)
	}

	n, err := f.Write(p)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("append: %w", err)
	}
	return n, nil
}
