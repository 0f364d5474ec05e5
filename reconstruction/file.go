package reconstruction

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"bjoernblessin.de/rudpfile/util/logger"
)

// DirOpener creates file sinks in Dir.
type DirOpener struct {
	Dir       string
	Overwrite bool // replace existing files instead of refusing the transfer
}

func (o DirOpener) Open(name string) (Sink, error) {
	err := ValidateName(name)
	if err != nil {
		return nil, err
	}

	err = os.MkdirAll(o.Dir, 0700) // owner read/write/execute, group and others no permissions
	if err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	target := filepath.Join(o.Dir, name)
	if !o.Overwrite {
		_, err = os.Stat(target)
		if err == nil {
			return nil, fmt.Errorf("%w: %s", ErrExists, target)
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	file, err := os.CreateTemp(o.Dir, "."+name+".part-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create file for reconstruction: %w", err)
	}

	logger.Debugf("Reconstructing %s in %s", name, file.Name())

	return &FileSink{file: file, target: target}, nil
}

// FileSink writes into a hidden temporary file next to its target.
// The file is renamed to the target only on Commit.
type FileSink struct {
	mu     sync.Mutex
	file   *os.File
	target string
	closed bool
}

func (s *FileSink) WriteAt(p []byte, off int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, os.ErrClosed
	}
	return s.file.WriteAt(p, off)
}

func (s *FileSink) Commit() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", os.ErrClosed
	}
	s.closed = true

	err := s.file.Close()
	if err != nil {
		os.Remove(s.file.Name())
		return "", fmt.Errorf("failed to close reconstructed file: %w", err)
	}

	err = os.Rename(s.file.Name(), s.target)
	if err != nil {
		os.Remove(s.file.Name())
		return "", fmt.Errorf("failed to rename file: %w", err)
	}

	return s.target, nil
}

func (s *FileSink) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	s.file.Close()
	return os.Remove(s.file.Name())
}
