package logfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Truncator empties a file.
type Truncator interface {
	Truncate(path string) error
}

// Filesystem is the privileged capability used for user-triggered changes to
// the log file.
type Filesystem interface {
	Truncator
	Exists(path string) bool
	PutContents(path string, data []byte) error
}

// Opener initializes a Filesystem. Initialization may fail, for example when
// the host cannot supply credentials.
type Opener interface {
	Open(ctx context.Context) (Filesystem, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context) (Filesystem, error)

// Open implements Opener.
func (f OpenerFunc) Open(ctx context.Context) (Filesystem, error) { return f(ctx) }

// DirectOpener hands out DirectFS.
type DirectOpener struct{}

// Open implements Opener.
func (DirectOpener) Open(context.Context) (Filesystem, error) { return DirectFS{}, nil }

// DirectFS operates on the local filesystem with the process's own permissions.
type DirectFS struct{}

// Exists reports whether path exists.
func (DirectFS) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// PutContents replaces the file contents with data, creating the file and its
// directory if needed.
func (DirectFS) PutContents(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return fmt.Errorf("put contents: %w", err)
	}
	if err := os.WriteFile(path, data, filePerm); err != nil {
		return fmt.Errorf("put contents: %w", err)
	}
	return nil
}

// Truncate empties path, creating it when missing.
func (DirectFS) Truncate(path string) error {
	err := os.Truncate(path, 0)
	if errors.Is(err, os.ErrNotExist) {
		return DirectFS{}.PutContents(path, nil)
	}
	if err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	return nil
}
