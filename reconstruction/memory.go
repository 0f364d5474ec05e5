package reconstruction

import (
	"sync"
)

// MemorySink collects a transfer in memory.
type MemorySink struct {
	mu        sync.Mutex
	name      string
	data      []byte
	committed bool
	aborted   bool
}

func NewMemorySink(name string) *MemorySink {
	return &MemorySink{name: name}
}

func (s *MemorySink) WriteAt(p []byte, off int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	end := int(off) + len(p)
	if end > len(s.data) {
		s.data = append(s.data, make([]byte, end-len(s.data))...)
	}
	copy(s.data[off:], p)

	return len(p), nil
}

func (s *MemorySink) Commit() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.committed = true
	return s.name, nil
}

func (s *MemorySink) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.aborted = true
	s.data = nil
	return nil
}

// Bytes returns a copy of the data written so far.
func (s *MemorySink) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]byte(nil), s.data...)
}

func (s *MemorySink) Committed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.committed
}

func (s *MemorySink) Aborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.aborted
}

// MemoryOpener hands out memory sinks and remembers them by name.
type MemoryOpener struct {
	mu    sync.Mutex
	sinks map[string]*MemorySink
}

func NewMemoryOpener() *MemoryOpener {
	return &MemoryOpener{sinks: make(map[string]*MemorySink)}
}

func (o *MemoryOpener) Open(name string) (Sink, error) {
	err := ValidateName(name)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	sink := NewMemorySink(name)
	o.sinks[name] = sink
	return sink, nil
}

// Sink returns the last sink opened for name.
func (o *MemoryOpener) Sink(name string) (*MemorySink, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	sink, ok := o.sinks[name]
	return sink, ok
}
