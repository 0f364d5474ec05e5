package sequencing

import (
	"errors"
	"math"
	"sync"
)

// ErrSequenceExhausted is returned once every packet number of the 32 bit space has been used.
// Packet numbers never wrap around because the receiver derives byte offsets from them.
var ErrSequenceExhausted = errors.New("packet numbers exhausted")

// Counter hands out packet numbers for the outgoing frames of one transfer.
type Counter struct {
	mu        sync.Mutex
	next      uint32
	exhausted bool
}

// NewCounter creates a counter whose first packet number is start.
func NewCounter(start uint32) *Counter {
	return &Counter{next: start}
}

// Next returns the next packet number.
func (c *Counter) Next() (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.exhausted {
		return 0, ErrSequenceExhausted
	}

	pktNum := c.next
	if c.next == math.MaxUint32 {
		c.exhausted = true
	} else {
		c.next++
	}

	return pktNum, nil
}
