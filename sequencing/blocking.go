package sequencing

import (
	"net/netip"
	"sync"
)

var blockerManager = struct {
	mu      sync.Mutex
	blocked map[netip.AddrPort]bool
}{
	blocked: make(map[netip.AddrPort]bool),
}

// TransferBlocker prevents starting a second transfer to the same destination while one is running.
type TransferBlocker struct {
	destinationAddr netip.AddrPort
}

func GetTransferBlocker(destAddr netip.AddrPort) *TransferBlocker {
	return &TransferBlocker{
		destinationAddr: destAddr,
	}
}

// Block tries to set the blocker to the blocked state.
// If the blocker is already blocked, it returns false, indicating that another transfer to the destination is running.
// If the blocker is not blocked, it sets the blocker to the blocked state and returns true.
func (b *TransferBlocker) Block() bool {
	blockerManager.mu.Lock()
	defer blockerManager.mu.Unlock()

	if blockerManager.blocked[b.destinationAddr] {
		return false
	}

	blockerManager.blocked[b.destinationAddr] = true

	return true
}

// Unblock removes the blocker from the blocked state.
// If the blocker isn't blocked, this is a no-op.
func (b *TransferBlocker) Unblock() {
	blockerManager.mu.Lock()
	defer blockerManager.mu.Unlock()

	delete(blockerManager.blocked, b.destinationAddr)
}
