package logfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/modoterra/rawlog/pkg/core"
	"github.com/modoterra/rawlog/pkg/diag"
)

func TestPath(t *testing.T) {
	if got := Path("/srv/logs"); got != "/srv/logs/wp-logger.log" {
		t.Errorf("Path = %q", got)
	}
}

func TestEnsureFileCreatesDirAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", FileName)
	if err := EnsureFile(path); err != nil {
		t.Fatal(err)
	}
	fi, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if fi.Size() != 0 {
		t.Errorf("expected empty file, size %d", fi.Size())
	}
}

func TestEnsureFileKeepsContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte("keep"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := EnsureFile(path); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "keep" {
		t.Errorf("contents changed: %q", data)
	}
}

func TestWriterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", FileName)
	var rec diag.Recorder
	w := NewWriter(path, &rec)

	ts := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	const n = 25
	for i := 0; i < n; i++ {
		w.Append(core.Format(core.Entry{Time: ts, Level: core.LevelInfo, Payload: core.Text(fmt.Sprintf("msg-%d", i))}, ""))
	}

	contents, err := ReadAll(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(contents, core.EntrySeparator); got != n {
		t.Errorf("separator count = %d, want %d", got, n)
	}
	for i, block := range strings.Split(strings.TrimSuffix(contents, core.EntrySeparator), core.EntrySeparator) {
		ts, level, rest, ok := core.ParseHeader(block)
		if !ok || ts != "2024-05-01 08:00:00" || level != core.LevelInfo {
			t.Fatalf("entry %d malformed: %q", i, block)
		}
		if rest != fmt.Sprintf("String:\nmsg-%d", i) {
			t.Errorf("entry %d body = %q", i, rest)
		}
	}
	if len(rec.Reports()) != 0 {
		t.Errorf("unexpected diagnostics: %v", rec.Reports())
	}
}

func TestWriterRecreatesMissingFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	path := Path(dir)
	w := NewWriter(path, nil)

	w.Append("first\n\n")
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	w.Append("second\n\n")

	contents, _ := ReadAll(path)
	if contents != "second\n\n" {
		t.Errorf("got %q", contents)
	}
}

func TestWriterUnwritableReportsToSideChannel(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "blocker")
	if err := os.WriteFile(blocker, []byte("not a dir"), 0o644); err != nil {
		t.Fatal(err)
	}

	var rec diag.Recorder
	w := NewWriter(filepath.Join(blocker, FileName), &rec)
	w.Append("lost\n\n")

	reports := rec.Reports()
	if len(reports) != 1 {
		t.Fatalf("expected 1 diagnostic, got %d", len(reports))
	}
	if reports[0].Args["path"] != w.Path() {
		t.Errorf("diagnostic path = %q", reports[0].Args["path"])
	}
	data, _ := os.ReadFile(blocker)
	if string(data) != "not a dir" {
		t.Error("blocker file was modified")
	}
}

func TestReadAllMissing(t *testing.T) {
	got, err := ReadAll(filepath.Join(t.TempDir(), "nope.log"))
	if err != nil || got != "" {
		t.Errorf("got %q, %v", got, err)
	}
}

func TestStat(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)

	info, err := Stat(path)
	if err != nil || info.Exists {
		t.Fatalf("missing file: %+v, %v", info, err)
	}

	w := NewWriter(path, nil)
	ts := time.Now()
	w.Append(core.Format(core.Entry{Time: ts, Level: core.LevelError, Payload: core.PayloadOf([]int{1})}, ""))
	w.Append(core.Format(core.Entry{Time: ts, Level: core.LevelInfo, Payload: core.Text("x")}, ""))

	info, err = Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if !info.Exists || info.Size == 0 || info.Entries != 2 {
		t.Errorf("unexpected info: %+v", info)
	}
}

func TestDirectFSTruncate(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	fs, err := DirectOpener{}.Open(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if err := fs.Truncate(path); err != nil {
		t.Fatalf("truncate missing file: %v", err)
	}
	if !fs.Exists(path) {
		t.Fatal("truncate should create the file")
	}

	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := fs.Truncate(path); err != nil {
		t.Fatal(err)
	}
	if err := fs.Truncate(path); err != nil {
		t.Fatalf("truncating an empty file: %v", err)
	}
	data, _ := os.ReadFile(path)
	if len(data) != 0 {
		t.Errorf("expected empty file, got %q", data)
	}
}

func TestDirectFSPutContentsCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gone", "nested", FileName)
	if err := (DirectFS{}).PutContents(path, []byte("x")); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "x" {
		t.Errorf("got %q", data)
	}
}

func TestReadAt(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if data, size, err := ReadAt(path, 0, 10); err != nil || data != nil || size != 0 {
		t.Fatalf("missing file: %q %d %v", data, size, err)
	}

	raw := []byte("abc\xff\xfedef")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		offset int64
		limit  int
		want   string
	}{
		{0, 100, string(raw)},
		{2, 3, "c\xff\xfe"},
		{6, 100, "ef"},
		{8, 100, ""},
		{50, 1, ""},
	}
	for _, tt := range tests {
		data, size, err := ReadAt(path, tt.offset, tt.limit)
		if err != nil {
			t.Fatalf("ReadAt(%d, %d): %v", tt.offset, tt.limit, err)
		}
		if string(data) != tt.want || size != int64(len(raw)) {
			t.Errorf("ReadAt(%d, %d) = %q, %d; want %q", tt.offset, tt.limit, data, size, tt.want)
		}
	}

	if _, _, err := ReadAt(path, -1, 1); err == nil {
		t.Error("expected error for negative offset")
	}
}
