// Package spool watches a directory and hands every new file to a handler, one at a time.
// A file is handed over once no write to it has been seen for the settle duration.
// Files whose names start with a dot are ignored, so are temporary files of the receiver.
package spool

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"bjoernblessin.de/rudpfile/common"
	"bjoernblessin.de/rudpfile/util/logger"
)

// Handler processes one settled file. An error is logged, the spool keeps running.
type Handler func(ctx context.Context, path string) error

type Option func(*Spool)

// WithExisting also queues the files that are already in the directory when Run starts.
func WithExisting() Option {
	return func(s *Spool) {
		s.existing = true
	}
}

func WithSettle(d time.Duration) Option {
	return func(s *Spool) {
		s.settle = d
	}
}

type Spool struct {
	dir      string
	handle   Handler
	settle   time.Duration
	existing bool
	pending  map[string]time.Time // path -> last write seen
}

func New(dir string, handle Handler, opts ...Option) *Spool {
	s := &Spool{
		dir:     dir,
		handle:  handle,
		settle:  common.SETTLE_DURATION,
		pending: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run watches the directory until ctx is canceled. A handler call in progress is awaited.
func (s *Spool) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	err = watcher.Add(s.dir)
	if err != nil {
		return err
	}
	logger.Infof("Monitoring directory %s", s.dir)

	if s.existing {
		err = s.queueExisting()
		if err != nil {
			return err
		}
	}

	queue := make(chan string, 100)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		for path := range queue {
			logger.Infof("Sending spooled file %s", path)
			err := s.handle(ctx, path)
			if err != nil {
				logger.Warnf("Spooled file %s: %v", path, err)
			}
		}
	}()
	defer func() {
		close(queue)
		<-workerDone
	}()

	ticker := time.NewTicker(s.settle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				if eligible(event.Name) {
					s.pending[event.Name] = time.Now()
				}
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				delete(s.pending, event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warnf("Watcher error: %v", err)

		case <-ticker.C:
			for path, lastWrite := range s.pending {
				if time.Since(lastWrite) < s.settle {
					continue
				}
				delete(s.pending, path)

				if !eligible(path) {
					continue
				}
				logger.Debugf("Queued %s", path)

				select {
				case queue <- path:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}

func (s *Spool) queueExisting() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		path := filepath.Join(s.dir, entry.Name())
		if eligible(path) {
			// Zero time, handed over on the first tick
			s.pending[path] = time.Time{}
		}
	}
	return nil
}

// eligible reports whether path is a regular file not starting with a dot.
func eligible(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}

	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
