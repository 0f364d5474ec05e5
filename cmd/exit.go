package cmd

import (
	"fmt"
)

var cancelRoot func()

// SetCancel registers the function that cancels the context given to SetGlobalVars.
func SetCancel(cancel func()) {
	cancelRoot = cancel
}

// HandleExit cancels all running transfers and closes the socket.
func HandleExit(args []string) {
	if n := len(snapshot()); n > 0 {
		fmt.Printf("Aborting %d running transfer(s)\n", n)
	}

	if cancelRoot != nil {
		cancelRoot()
	}

	if socket != nil {
		err := socket.Close()
		if err != nil {
			fmt.Printf("Failed to close socket: %v\n", err)
		}
	}
}
