package cmd

import (
	"maps"
	"net/netip"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"bjoernblessin.de/rudpfile/transfer"
)

// activeTransfer is what the status command shows about a running transfer.
type activeTransfer struct {
	outgoing bool
	peer     netip.AddrPort
	name     string
	size     int64 // -1 if unknown
	started  time.Time
	state    func() transfer.State
	bytes    atomic.Int64
}

var activeMu sync.Mutex
var active = make(map[uuid.UUID]*activeTransfer)

func track(id uuid.UUID, t *activeTransfer) {
	activeMu.Lock()
	defer activeMu.Unlock()
	active[id] = t
}

func untrack(id uuid.UUID) {
	activeMu.Lock()
	defer activeMu.Unlock()
	delete(active, id)
}

func lookup(id uuid.UUID) (*activeTransfer, bool) {
	activeMu.Lock()
	defer activeMu.Unlock()
	t, ok := active[id]
	return t, ok
}

// snapshot returns the active transfers, oldest first.
func snapshot() []*activeTransfer {
	activeMu.Lock()
	defer activeMu.Unlock()

	transfers := slices.Collect(maps.Values(active))
	slices.SortFunc(transfers, func(a, b *activeTransfer) int {
		return a.started.Compare(b.started)
	})
	return transfers
}
