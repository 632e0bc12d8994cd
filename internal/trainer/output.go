package trainer

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
)

// PrepareOutputDir ensures dir exists. When clean is set any previous run's
// files are removed first.
func PrepareOutputDir(dir string, clean bool) error {
	if dir == "" {
		return nil
	}
	if clean {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("clean output dir: %w", err)
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return nil
}

// NewLogger returns a logger writing to stderr and, when path is set, also
// appending to that file.
func NewLogger(path string) (*log.Logger, io.Closer, error) {
	if path == "" {
		return log.New(os.Stderr, "", log.LstdFlags), nopCloser{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return log.New(io.MultiWriter(os.Stderr, f), "", log.LstdFlags), f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
