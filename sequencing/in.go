// Package sequencing handles the sequencing of packets.
// On the receiving side, it checks if a packet is a duplicate and whether a sequence is complete.
// It does not re-order packets, but it tracks their packet numbers to detect duplicates.
// On the sending side, it provides unique packet numbers.
package sequencing

import (
	"errors"
	"sync"

	"bjoernblessin.de/rudpfile/util/assert"
)

// ErrTooFarAhead is returned for packet numbers beyond the receive window.
var ErrTooFarAhead = errors.New("received packet with packet number too far ahead")

type IncomingPktNumHandler struct {
	mu            sync.Mutex
	nextPktNum    uint32              // All packet numbers below this one have been received
	futurePktNums map[uint32]struct{} // Out-of-order packet numbers > nextPktNum, bounded by receiveWindow
	receiveWindow uint32
}

func NewIncomingPktNumHandler(receiveWindow uint32) *IncomingPktNumHandler {
	assert.Assert(receiveWindow > 0, "receive window must be positive")

	return &IncomingPktNumHandler{
		futurePktNums: make(map[uint32]struct{}),
		receiveWindow: receiveWindow,
	}
}

// IsDuplicatePacket checks if the packet number was already received, and updates sequencing state.
// Returns true if the packet is a duplicate (already received), false otherwise.
// Errors if the packet number is too far ahead (receiveWindow or more beyond the next expected one);
// such a packet is not recorded.
func (h *IncomingPktNumHandler) IsDuplicatePacket(pktNum uint32) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if pktNum < h.nextPktNum {
		return true, nil
	}

	if pktNum-h.nextPktNum >= h.receiveWindow {
		return false, ErrTooFarAhead
	}

	if pktNum > h.nextPktNum {
		// Out-of-order, store packet number for later
		if _, ok := h.futurePktNums[pktNum]; ok {
			return true, nil
		}
		h.futurePktNums[pktNum] = struct{}{}
		return false, nil
	}

	h.nextPktNum++

	// Advance if future packets are now contiguous
	for {
		if _, ok := h.futurePktNums[h.nextPktNum]; !ok {
			break
		}
		delete(h.futurePktNums, h.nextPktNum)
		h.nextPktNum++
	}

	return false, nil
}

// GetNextExpectedPktNum returns the lowest packet number that has not been received yet.
func (h *IncomingPktNumHandler) GetNextExpectedPktNum() uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.nextPktNum
}

// IsComplete reports whether every packet number below end has been received.
func (h *IncomingPktNumHandler) IsComplete(end uint32) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.nextPktNum >= end
}

// PendingCount returns the number of out-of-order packet numbers that are buffered.
func (h *IncomingPktNumHandler) PendingCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.futurePktNums)
}
