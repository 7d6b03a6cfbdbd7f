package logfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/modoterra/rawlog/pkg/core"
)

// ReadAll returns the full file contents. A missing file reads as empty.
func ReadAll(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read log file: %w", err)
	}
	return string(data), nil
}

// ReadAt returns up to limit bytes of the file starting at offset, along
// with the file size at the time of the read. A missing file reads as empty.
func ReadAt(path string, offset int64, limit int) ([]byte, int64, error) {
	if offset < 0 || limit <= 0 {
		return nil, 0, fmt.Errorf("read log file: invalid range offset=%d limit=%d", offset, limit)
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read log file: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	}
	size := fi.Size()
	if offset >= size {
		return nil, size, nil
	}

	buf := make([]byte, min(int64(limit), size-offset))
	n, err := f.ReadAt(buf, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, size, fmt.Errorf("read log file: %w", err)
	}
	return buf[:n], size, nil
}

// Info describes the log file on disk.
type Info struct {
	Path    string    `json:"path"`
	Exists  bool      `json:"exists"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	Entries int       `json:"entries"`
}

// Stat reads the file and counts its entries.
func Stat(path string) (Info, error) {
	info := Info{Path: path}
	fi, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return info, nil
	}
	if err != nil {
		return info, fmt.Errorf("stat log file: %w", err)
	}
	info.Exists = true
	info.Size = fi.Size()
	info.ModTime = fi.ModTime()

	contents, err := ReadAll(path)
	if err != nil {
		return info, err
	}
	info.Entries = core.CountEntries(contents)
	return info, nil
}
