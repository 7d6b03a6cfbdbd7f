// Package follow watches the log file and reports appended bytes and clears.
package follow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// EventKind identifies what happened to the file.
type EventKind int

const (
	Appended EventKind = iota
	Cleared
)

func (k EventKind) String() string {
	if k == Cleared {
		return "cleared"
	}
	return "appended"
}

// Event is one observed change.
type Event struct {
	Kind   EventKind
	Data   string // appended bytes
	Offset int64  // file offset Data starts at
}

// Follower tails a single file. Filesystem notifications drive it; a slow
// poll covers missed notifications and a directory that was removed.
type Follower struct {
	path   string
	poll   time.Duration
	events chan Event
	ready  chan struct{}
	offset int64
	logger *slog.Logger
}

// New creates a follower for path starting at the current end of the file.
func New(path string, logger *slog.Logger) *Follower {
	if logger == nil {
		logger = slog.Default()
	}
	return &Follower{
		path:   path,
		poll:   time.Second,
		events: make(chan Event, 64),
		ready:  make(chan struct{}),
		logger: logger,
	}
}

// Events returns the channel events are delivered on. It is closed when Run returns.
func (f *Follower) Events() <-chan Event { return f.events }

// Ready is closed once Run has recorded the starting offset and is watching.
func (f *Follower) Ready() <-chan struct{} { return f.ready }

// Run follows the file until ctx is cancelled.
func (f *Follower) Run(ctx context.Context) error {
	defer close(f.events)

	if fi, err := os.Stat(f.path); err == nil {
		f.offset = fi.Size()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(f.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	f.logger.Info("following log file", "path", f.path)
	close(f.ready)

	ticker := time.NewTicker(f.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) == filepath.Clean(f.path) {
				f.check(ctx)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			f.logger.Warn("watcher error", "path", f.path, "err", err)
		case <-ticker.C:
			f.check(ctx)
		}
	}
}

func (f *Follower) check(ctx context.Context) {
	fi, err := os.Stat(f.path)
	if errors.Is(err, os.ErrNotExist) {
		if f.offset > 0 {
			f.offset = 0
			f.emit(ctx, Event{Kind: Cleared})
		}
		return
	}
	if err != nil {
		f.logger.Warn("stat failed", "path", f.path, "err", err)
		return
	}

	size := fi.Size()
	if size < f.offset {
		f.offset = 0
		f.emit(ctx, Event{Kind: Cleared})
	}
	if size == f.offset {
		return
	}

	data, err := readRange(f.path, f.offset, size)
	if err != nil {
		f.logger.Warn("read failed", "path", f.path, "err", err)
		return
	}
	ev := Event{Kind: Appended, Data: string(data), Offset: f.offset}
	f.offset += int64(len(data))
	f.emit(ctx, ev)
}

func (f *Follower) emit(ctx context.Context, ev Event) {
	select {
	case f.events <- ev:
	case <-ctx.Done():
	}
}

func readRange(path string, from, to int64) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	buf := make([]byte, to-from)
	n, err := file.ReadAt(buf, from)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:n], nil
}
