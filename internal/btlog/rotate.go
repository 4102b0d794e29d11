package btlog

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
)

// RotatingFileWriter is an io.WriteCloser with size based rotation. When a
// write would take the file past the size limit, the file is renamed to
// <path>.1, existing backups shift up by one, and backups beyond the
// retention count are removed. Writes are never split across files.
//
// A failed rotation is logged and writing continues in the current file;
// the next write past the limit retries it.
//
// It is safe for concurrent use.
type RotatingFileWriter struct {
	mu       sync.Mutex
	path     string
	maxSize  int64
	maxFiles int
	size     int64
	file     *os.File
	logger   *slog.Logger
}

// RotatingOption configures a RotatingFileWriter.
type RotatingOption func(*RotatingFileWriter)

// WithRotationLogger sets the logger for rotation failures.
func WithRotationLogger(logger *slog.Logger) RotatingOption {
	return func(w *RotatingFileWriter) {
		if logger != nil {
			w.logger = logger
		}
	}
}

var _ io.WriteCloser = (*RotatingFileWriter)(nil)

// NewRotatingFileWriter opens path for appending, creating it and its
// directory as needed. maxSize is in bytes; a value below 1 disables
// rotation. maxFiles is the number of backups kept; with 0 the file is
// truncated on rotation.
func NewRotatingFileWriter(path string, maxSize int64, maxFiles int, opts ...RotatingOption) (*RotatingFileWriter, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("btlog: mkdir %s: %w", dir, err)
		}
	}
	f, err := openAppend(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("btlog: stat %s: %w", path, err)
	}
	w := &RotatingFileWriter{
		path:     path,
		maxSize:  maxSize,
		maxFiles: max(maxFiles, 0),
		size:     info.Size(),
		file:     f,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

func (w *RotatingFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return 0, os.ErrClosed
	}
	if w.maxSize > 0 && w.size > 0 && w.size+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			if w.file == nil {
				return 0, fmt.Errorf("btlog: rotate %s: %w", w.path, err)
			}
			w.logger.Warn("[btlog] log rotation failed",
				"path", w.path,
				"size", w.size,
				"error", err)
		}
	}
	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *RotatingFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// rotate reopens the file even when shifting the backups fails, and then
// reports the failure. It only leaves w.file nil if the reopen fails.
func (w *RotatingFileWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return err
	}
	w.file = nil

	var errs []error
	keep := func(err error) {
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	backups := w.backups()
	slices.Reverse(backups)
	for _, n := range backups {
		if n >= w.maxFiles {
			keep(os.Remove(w.backupPath(n)))
		} else {
			keep(os.Rename(w.backupPath(n), w.backupPath(n+1)))
		}
	}
	if w.maxFiles > 0 {
		keep(os.Rename(w.path, w.backupPath(1)))
	} else {
		keep(os.Remove(w.path))
	}

	f, err := openAppend(w.path)
	if err != nil {
		return errors.Join(append(errs, err)...)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return errors.Join(append(errs, fmt.Errorf("btlog: stat %s: %w", w.path, err))...)
	}
	w.file = f
	w.size = info.Size()
	return errors.Join(errs...)
}

func (w *RotatingFileWriter) backupPath(n int) string {
	return w.path + "." + strconv.Itoa(n)
}

// backups returns the existing backup numbers in ascending order.
func (w *RotatingFileWriter) backups() []int {
	entries, err := os.ReadDir(filepath.Dir(w.path))
	if err != nil {
		return nil
	}
	prefix := filepath.Base(w.path) + "."
	var nums []int
	for _, e := range entries {
		suffix, ok := strings.CutPrefix(e.Name(), prefix)
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(suffix); err == nil && n > 0 {
			nums = append(nums, n)
		}
	}
	slices.Sort(nums)
	return nums
}

func openAppend(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("btlog: open %s: %w", path, err)
	}
	return f, nil
}
