package lifecycle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/modoterra/rawlog/pkg/diag"
	"github.com/modoterra/rawlog/pkg/logfile"
)

func newTestManager(t *testing.T, opts Options) (*Manager, *diag.Recorder) {
	t.Helper()
	rec := &diag.Recorder{}
	if opts.Path == "" {
		opts.Path = logfile.Path(filepath.Join(t.TempDir(), "moc-logs"))
	}
	opts.Reporter = rec
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(opts), rec
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestActivateFreshSystem(t *testing.T) {
	m, _ := newTestManager(t, Options{})

	if st, _ := m.State(); st != StateAbsent {
		t.Fatalf("initial state: %s", st)
	}
	if err := m.Activate(); err != nil {
		t.Fatal(err)
	}
	if got := readFile(t, m.Path()); got != "" {
		t.Errorf("expected empty file, got %q", got)
	}
	if st, _ := m.State(); st != StateCleared {
		t.Errorf("state after activation: %s", st)
	}
}

func TestReactivateIsNoop(t *testing.T) {
	m, rec := newTestManager(t, Options{})
	if err := m.Activate(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(m.Path(), []byte("existing\n\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := m.Activate(); err != nil {
		t.Fatalf("re-activation: %v", err)
	}
	if got := readFile(t, m.Path()); got != "existing\n\n" {
		t.Errorf("re-activation truncated the file: %q", got)
	}
	if st, _ := m.State(); st != StateProvisioned {
		t.Errorf("state: %s", st)
	}
	if len(rec.Reports()) != 0 {
		t.Errorf("unexpected diagnostics: %v", rec.Reports())
	}
}

func TestDeactivate(t *testing.T) {
	t.Run("deletes file", func(t *testing.T) {
		m, _ := newTestManager(t, Options{DeleteOnDeactivate: true})
		if err := m.Activate(); err != nil {
			t.Fatal(err)
		}
		if err := m.Deactivate(); err != nil {
			t.Fatal(err)
		}
		if _, err := os.Stat(m.Path()); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("file should be gone, stat err = %v", err)
		}
		if _, err := os.Stat(filepath.Dir(m.Path())); err != nil {
			t.Errorf("directory should remain: %v", err)
		}
	})

	t.Run("keeps file", func(t *testing.T) {
		m, _ := newTestManager(t, Options{DeleteOnDeactivate: false})
		if err := m.Activate(); err != nil {
			t.Fatal(err)
		}
		if err := m.Deactivate(); err != nil {
			t.Fatal(err)
		}
		if _, err := os.Stat(m.Path()); err != nil {
			t.Errorf("file should remain: %v", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		m, rec := newTestManager(t, Options{DeleteOnDeactivate: true})
		if err := m.Deactivate(); err != nil {
			t.Errorf("deactivate without file: %v", err)
		}
		if len(rec.Reports()) != 0 {
			t.Errorf("unexpected diagnostics: %v", rec.Reports())
		}
	})
}

func TestUninstallRemovesEmptyDirectory(t *testing.T) {
	m, _ := newTestManager(t, Options{})
	if err := m.Activate(); err != nil {
		t.Fatal(err)
	}
	if err := m.Uninstall(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Dir(m.Path())); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("directory should be removed, stat err = %v", err)
	}
	if st, _ := m.State(); st != StateAbsent {
		t.Errorf("state: %s", st)
	}
}

func TestUninstallKeepsDirectoryWithOtherFiles(t *testing.T) {
	m, _ := newTestManager(t, Options{})
	if err := m.Activate(); err != nil {
		t.Fatal(err)
	}
	other := filepath.Join(filepath.Dir(m.Path()), "other.txt")
	if err := os.WriteFile(other, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := m.Uninstall(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(m.Path()); !errors.Is(err, os.ErrNotExist) {
		t.Error("log file should be removed")
	}
	if _, err := os.Stat(other); err != nil {
		t.Errorf("other file should remain: %v", err)
	}
}

func TestUninstallNothingProvisioned(t *testing.T) {
	m, _ := newTestManager(t, Options{})
	if err := m.Uninstall(); err != nil {
		t.Errorf("uninstall on absent state: %v", err)
	}
}

func TestClear(t *testing.T) {
	m, rec := newTestManager(t, Options{})
	if err := m.Activate(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(m.Path(), []byte("[x] INFO: String:\ny\n\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := m.Clear(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := readFile(t, m.Path()); got != "" {
		t.Errorf("expected empty file, got %q", got)
	}
	if err := m.Clear(context.Background()); err != nil {
		t.Errorf("clearing an empty file: %v", err)
	}
	if got := readFile(t, m.Path()); got != "" {
		t.Errorf("expected empty file, got %q", got)
	}
	if st, _ := m.State(); st != StateCleared {
		t.Errorf("state: %s", st)
	}
	if len(rec.Reports()) != 0 {
		t.Errorf("unexpected diagnostics: %v", rec.Reports())
	}
}

func TestClearCreatesMissingFile(t *testing.T) {
	dir := t.TempDir()
	m, _ := newTestManager(t, Options{Path: logfile.Path(dir)})
	if err := m.Clear(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := readFile(t, m.Path()); got != "" {
		t.Errorf("got %q", got)
	}
}

func TestClearAfterUninstall(t *testing.T) {
	m, rec := newTestManager(t, Options{})
	if err := m.Activate(); err != nil {
		t.Fatal(err)
	}
	if err := m.Uninstall(); err != nil {
		t.Fatal(err)
	}

	if err := m.Clear(context.Background()); err != nil {
		t.Fatalf("clear after uninstall: %v", err)
	}
	if got := readFile(t, m.Path()); got != "" {
		t.Errorf("got %q", got)
	}
	if len(rec.Reports()) != 0 {
		t.Errorf("unexpected diagnostics: %v", rec.Reports())
	}
}

func TestClearCapabilityUnavailable(t *testing.T) {
	opener := logfile.OpenerFunc(func(context.Context) (logfile.Filesystem, error) {
		return nil, errors.New("credentials unavailable")
	})
	m, rec := newTestManager(t, Options{Opener: opener})
	if err := m.Activate(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(m.Path(), []byte("keep me"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := m.Clear(context.Background())
	if !errors.Is(err, ErrCapabilityUnavailable) {
		t.Fatalf("expected ErrCapabilityUnavailable, got %v", err)
	}
	if got := readFile(t, m.Path()); got != "keep me" {
		t.Errorf("file was modified: %q", got)
	}
	if len(rec.Reports()) != 1 {
		t.Errorf("expected one diagnostic, got %v", rec.Reports())
	}
}

type failingFS struct{ logfile.DirectFS }

func (failingFS) Truncate(string) error { return errors.New("read-only filesystem") }

func TestClearTruncateFailure(t *testing.T) {
	opener := logfile.OpenerFunc(func(context.Context) (logfile.Filesystem, error) {
		return failingFS{}, nil
	})
	m, rec := newTestManager(t, Options{Opener: opener})
	if err := m.Activate(); err != nil {
		t.Fatal(err)
	}
	if err := m.Clear(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(rec.Reports()) != 1 || rec.Reports()[0].Msg != "failed to clear the log file" {
		t.Errorf("unexpected diagnostics: %v", rec.Reports())
	}
}

func TestHandle(t *testing.T) {
	m, _ := newTestManager(t, Options{DeleteOnDeactivate: true})
	for _, ev := range []Event{EventActivate, EventDeactivate, EventActivate, EventUninstall} {
		if err := m.Handle(ev); err != nil {
			t.Fatalf("%s: %v", ev, err)
		}
	}
	if err := m.Handle("explode"); err == nil {
		t.Error("expected error for unknown event")
	}
}
