// Package transfer runs the two sides of a file transfer.
//
// The Sender opens the transfer with an OPEN frame carrying the resource name, streams the
// data through a sliding window and finishes with an END_OF_STREAM frame. The Receiver answers
// the OPEN, writes every valid DATA frame at its byte offset and acknowledges each of them.
package transfer

import (
	"fmt"
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"bjoernblessin.de/rudpfile/util/logger"
)

var (
	// ErrStalled is returned when a transfer makes no progress for the configured stall timeout.
	ErrStalled = errors.New("transfer stalled")
	// ErrIncomplete is returned by the receiver when END_OF_STREAM arrives before all DATA frames.
	ErrIncomplete = errors.New("transfer incomplete")
	// ErrNameTooLong is returned when the resource name does not fit into one OPEN frame.
	ErrNameTooLong = errors.New("resource name too long")
)

// Outcome is how a transfer ended.
type Outcome int

const (
	Completed Outcome = iota
	// ResourceNotFound means the receiver refused the OPEN: the name is not a plain file name
	// or a file of that name already exists. A sender also reports it for a local file it cannot open.
	// It does not mean the receiver lacks the file, data only flows from sender to receiver.
	ResourceNotFound
	Aborted
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case ResourceNotFound:
		return "resource not found"
	case Aborted:
		return "aborted"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Result describes a finished transfer, successful or not.
type Result struct {
	ID       uuid.UUID
	Peer     netip.AddrPort
	Name     string
	Path     string // where the receiver stored the data
	Outcome  Outcome
	Bytes    int64 // payload bytes acknowledged (sender) or written (receiver)
	Frames   int   // DATA frames
	Cycles   int   // send cycles of the sender
	Duration time.Duration
}

func (r Result) String() string {
	switch r.Outcome {
	case Completed:
		return fmt.Sprintf("%s %q with %s: transfer completed with %d bytes in %v", shortID(r.ID), r.Name, r.Peer, r.Bytes, r.Duration.Round(time.Millisecond))
	case ResourceNotFound:
		return fmt.Sprintf("%s %q with %s: resource not found", shortID(r.ID), r.Name, r.Peer)
	}
	return fmt.Sprintf("%s %q with %s: transfer aborted after %d bytes", shortID(r.ID), r.Name, r.Peer, r.Bytes)
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}

type State int32

const (
	Idle State = iota
	Handshake
	Streaming
	Closing
	AwaitOpen
	StreamIn
	Done
)

var stateNames = map[State]string{
	Idle:      "IDLE",
	Handshake: "HANDSHAKE",
	Streaming: "STREAMING",
	Closing:   "CLOSING",
	AwaitOpen: "AWAIT_OPEN",
	StreamIn:  "STREAM_IN",
	Done:      "DONE",
}

func (s State) String() string {
	name, ok := stateNames[s]
	if !ok {
		return fmt.Sprintf("State(%d)", int32(s))
	}
	return name
}

type stateHolder struct {
	state atomic.Int32
}

func (h *stateHolder) State() State {
	return State(h.state.Load())
}

func (h *stateHolder) setState(id uuid.UUID, s State) {
	h.state.Store(int32(s))
	logger.Debugf("Transfer %s: %s", shortID(id), s)
}
