package service

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestUnitContents(t *testing.T) {
	got := UnitContents("/usr/local/bin/rawlogd", "")

	if !strings.Contains(got, "ExecStart=/usr/local/bin/rawlogd\n") {
		t.Error("unit file missing ExecStart with binary path")
	}
	if !strings.Contains(got, "Type=simple") {
		t.Error("unit file missing Type=simple")
	}
	if !strings.Contains(got, "Restart=on-failure") {
		t.Error("unit file missing Restart=on-failure")
	}
	if !strings.Contains(got, "[Install]") {
		t.Error("unit file missing [Install] section")
	}
}

func TestUnitContentsWithConfig(t *testing.T) {
	got := UnitContents("/usr/bin/rawlogd", "/srv/site/rawlog.yaml")
	if !strings.Contains(got, "ExecStart=/usr/bin/rawlogd --config /srv/site/rawlog.yaml") {
		t.Errorf("unit file missing --config flag:\n%s", got)
	}
}

func TestUnitPath(t *testing.T) {
	path, err := UnitPath()
	if err != nil {
		t.Fatalf("UnitPath() error: %v", err)
	}
	if !strings.HasSuffix(path, "systemd/user/rawlogd.service") {
		t.Errorf("UnitPath() = %q, want suffix systemd/user/rawlogd.service", path)
	}
}

func TestStatusNoSocket(t *testing.T) {
	dir := t.TempDir()
	got := Status(filepath.Join(dir, "missing.sock"), filepath.Join(dir, "wp-logger.log"))
	if !strings.Contains(got, "socket: inactive") {
		t.Errorf("Status() should report inactive socket, got: %s", got)
	}
	if !strings.Contains(got, "log file: absent") {
		t.Errorf("Status() should report absent log file, got: %s", got)
	}
}

func TestStatusWithSocket(t *testing.T) {
	dir := t.TempDir()
	sock := filepath.Join(dir, "rawlogd.sock")
	logPath := filepath.Join(dir, "wp-logger.log")
	for _, p := range []string{sock, logPath} {
		if err := os.WriteFile(p, nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got := Status(sock, logPath)
	if !strings.Contains(got, "socket: active") {
		t.Errorf("Status() should report active socket, got: %s", got)
	}
	if !strings.Contains(got, "log file: present") {
		t.Errorf("Status() should report present log file, got: %s", got)
	}
}
