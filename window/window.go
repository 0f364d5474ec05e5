// Package window holds the frames a sender has put on the wire but not yet seen acknowledged.
//
// The window is a fixed array of slots. head is the first slot that still holds a frame,
// tail the next free slot. Acknowledgments vacate slots in any order; head only moves over
// vacated slots. Compaction shifts the remaining frames to the front so the next fill has
// maximal room.
//
// Every method is safe for concurrent use. The acknowledgment listener and the sender
// share one Window.
package window

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"bjoernblessin.de/rudpfile/pkt"
	"bjoernblessin.de/rudpfile/sequencing"
	"bjoernblessin.de/rudpfile/util/assert"
)

type slot struct {
	packet   *pkt.Packet
	wireSize int
}

type Window struct {
	mu          sync.Mutex
	slots       []slot
	head        int
	tail        int
	occupied    int
	payloadSize int
	pktNums     *sequencing.Counter
	exhausted   bool
	buf         []byte

	framedBytes int64
	ackedBytes  int64
	framed      int
}

// New creates an empty window with capacity slots.
// Every DATA frame carries up to payloadSize bytes and takes its packet number from pktNums.
func New(capacity int, payloadSize int, pktNums *sequencing.Counter) *Window {
	assert.Assertf(capacity > 0, "window capacity must be positive, got %d", capacity)
	assert.Assertf(payloadSize > 0, "payload size must be positive, got %d", payloadSize)
	assert.IsNotNil(pktNums)

	return &Window{
		slots:       make([]slot, capacity),
		payloadSize: payloadSize,
		pktNums:     pktNums,
		buf:         make([]byte, payloadSize),
	}
}

// Fill reads chunks of up to payloadSize bytes from src and inserts them as DATA frames
// until the window has no free slot left or src is exhausted.
// Returns the number of frames inserted.
func (w *Window) Fill(src io.Reader) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.fill(src)
}

func (w *Window) fill(src io.Reader) (int, error) {
	inserted := 0

	for w.tail < len(w.slots) && !w.exhausted {
		n, err := io.ReadFull(src, w.buf)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			w.exhausted = true
		} else if err != nil {
			return inserted, err
		}

		if n == 0 {
			break
		}

		pktNum, err := w.pktNums.Next()
		if err != nil {
			return inserted, err
		}

		packet := pkt.NewPacket(pkt.MsgTypeData, pktNum, w.buf[:n])
		w.slots[w.tail] = slot{packet: packet, wireSize: packet.WireSize()}
		w.tail++
		w.occupied++
		w.framed++
		w.framedBytes += int64(n)
		inserted++
	}

	w.checkBounds()
	return inserted, nil
}

// Acknowledge vacates the slot holding the frame with the given packet number.
// Returns false if no slot holds it, which happens for duplicate and stale acknowledgments.
func (w *Window) Acknowledge(pktNum uint32) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i := w.head; i < w.tail; i++ {
		packet := w.slots[i].packet
		if packet == nil || packet.GetPktNum() != pktNum {
			continue
		}

		w.ackedBytes += int64(len(packet.Payload))
		w.slots[i] = slot{}
		w.occupied--

		if i == w.head {
			for w.head < w.tail && w.slots[w.head].packet == nil {
				w.head++
			}
		}

		w.checkBounds()
		return true
	}

	return false
}

// Compact shifts the frames in [head, tail) to the front of the window.
func (w *Window) Compact() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.compact()
}

func (w *Window) compact() {
	if w.head == 0 {
		return
	}

	n := copy(w.slots, w.slots[w.head:w.tail])
	clear(w.slots[n:])
	w.tail -= w.head
	w.head = 0

	w.checkBounds()
}

// Refill compacts the window and fills it from src in one step.
func (w *Window) Refill(src io.Reader) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.compact()
	return w.fill(src)
}

// SendAll calls send for every frame in the window, in slot order.
// The window is locked while sending, so no acknowledgment can vacate a slot in between.
// Stops at the first error.
func (w *Window) SendAll(send func(packet *pkt.Packet) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i := w.head; i < w.tail; i++ {
		if w.slots[i].packet == nil {
			continue
		}
		err := send(w.slots[i].packet)
		if err != nil {
			return err
		}
	}

	return nil
}

// IsEmpty reports whether no slot holds a frame.
func (w *Window) IsEmpty() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.occupied == 0
}

// Exhausted reports whether Fill has reached the end of its source.
func (w *Window) Exhausted() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.exhausted
}

// Done reports whether the source is exhausted and every frame was acknowledged.
func (w *Window) Done() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.exhausted && w.occupied == 0
}

func (w *Window) Bounds() (head, tail int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.head, w.tail
}

func (w *Window) Occupied() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.occupied
}

// InFlightBytes is the number of bytes the frames in the window take on the wire.
func (w *Window) InFlightBytes() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	total := 0
	for i := w.head; i < w.tail; i++ {
		total += w.slots[i].wireSize
	}
	return total
}

// Stats returns the number of DATA frames created, their payload bytes and the payload bytes acknowledged so far.
func (w *Window) Stats() (frames int, framedBytes int64, ackedBytes int64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.framed, w.framedBytes, w.ackedBytes
}

// String renders the slots by packet number, "_" for a vacated slot and "." for a free one.
func (w *Window) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var b strings.Builder
	b.WriteString("[")
	for i := range w.slots {
		if i > 0 {
			b.WriteString(" ")
		}
		switch {
		case i >= w.tail:
			b.WriteString(".")
		case w.slots[i].packet == nil:
			b.WriteString("_")
		default:
			fmt.Fprintf(&b, "%d", w.slots[i].packet.GetPktNum())
		}
	}
	fmt.Fprintf(&b, "] head=%d tail=%d", w.head, w.tail)

	return b.String()
}

func (w *Window) checkBounds() {
	assert.Assertf(0 <= w.head && w.head <= w.tail && w.tail <= len(w.slots),
		"window bounds violated: head=%d tail=%d capacity=%d", w.head, w.tail, len(w.slots))
}
