package cmd

import (
	"fmt"
	"time"

	"bjoernblessin.de/rudpfile/sock"
)

// HandleStatus displays the running transfers and, with fault injection, the injected faults.
func HandleStatus(args []string) {
	if len(args) != 0 {
		fmt.Println("Usage: status")
		return
	}

	if lossy, ok := socket.(*sock.LossySocket); ok {
		stats := lossy.Stats()
		fmt.Printf("Fault injection: %d sent, %d dropped, %d corrupted, %d duplicated\n",
			stats.Sent, stats.Dropped, stats.Corrupted, stats.Duplicated)
	}

	transfers := snapshot()
	if len(transfers) == 0 {
		fmt.Println("No active transfers.")
		return
	}

	fmt.Println("Active transfers:")
	for _, t := range transfers {
		direction := "<-"
		if t.outgoing {
			direction = "->"
		}

		progress := fmt.Sprintf("%d bytes", t.bytes.Load())
		if t.size > 0 {
			progress = fmt.Sprintf("%d/%d bytes (%.0f%%)", t.bytes.Load(), t.size, float64(t.bytes.Load())*100/float64(t.size))
		}

		state := "?"
		if t.state != nil {
			state = t.state().String()
		}

		fmt.Printf("  %s %s %q %s, %s, running %v\n", direction, t.peer, t.name, state, progress, time.Since(t.started).Round(time.Second))
	}
}
