package spool

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func collect(t *testing.T, dir string, opts ...Option) (<-chan string, context.CancelFunc) {
	t.Helper()

	handled := make(chan string, 10)
	ctx, cancel := context.WithCancel(context.Background())

	opts = append([]Option{WithSettle(40 * time.Millisecond)}, opts...)
	s := New(dir, func(ctx context.Context, path string) error {
		handled <- filepath.Base(path)
		return nil
	}, opts...)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Give the watcher time to register
	time.Sleep(50 * time.Millisecond)
	return handled, cancel
}

func expectHandled(t *testing.T, handled <-chan string, name string) {
	t.Helper()

	select {
	case got := <-handled:
		if got != name {
			t.Errorf("handled %s, expected %s", got, name)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("%s was not handled", name)
	}
}

func TestSpoolNewFile(t *testing.T) {
	dir := t.TempDir()
	handled, _ := collect(t, dir)

	os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0600)
	os.WriteFile(filepath.Join(dir, "new.txt"), []byte("hello"), 0600)

	expectHandled(t, handled, "new.txt")

	select {
	case got := <-handled:
		t.Errorf("unexpected file handled: %s", got)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestSpoolExisting(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "old.txt"), []byte("old"), 0600)
	os.Mkdir(filepath.Join(dir, "subdir"), 0700)

	handled, _ := collect(t, dir, WithExisting())

	expectHandled(t, handled, "old.txt")
}

func TestEligible(t *testing.T) {
	dir := t.TempDir()
	regular := filepath.Join(dir, "file")
	os.WriteFile(regular, nil, 0600)
	dotFile := filepath.Join(dir, ".file.part-123")
	os.WriteFile(dotFile, nil, 0600)

	tests := []struct {
		path     string
		expected bool
	}{
		{regular, true},
		{dotFile, false},
		{dir, false},
		{filepath.Join(dir, "missing"), false},
	}

	for _, tt := range tests {
		if got := eligible(tt.path); got != tt.expected {
			t.Errorf("eligible(%s) = %v, expected %v", tt.path, got, tt.expected)
		}
	}
}
