package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"

	"bjoernblessin.de/rudpfile/sequencing"
	"bjoernblessin.de/rudpfile/transfer"
	"bjoernblessin.de/rudpfile/util/logger"
)

// HandleSend sends a file to a receiver.
// Usage: send <host:port> [file path]
// The file path is asked for if it is missing.
func HandleSend(args []string) {
	if len(args) < 1 || len(args) > 2 {
		fmt.Println("Usage: send <host:port> [file path]")
		return
	}

	var path string
	if len(args) == 2 {
		path = args[1]
	} else {
		var ok bool
		path, ok = askFor("File to send: ")
		if !ok {
			return
		}
	}

	result, err := SendFile(rootCtx, args[0], path, true)
	if err != nil {
		fmt.Printf("Transfer failed: %v\n", err)
		return
	}
	fmt.Println(result)
}

func askFor(label string) (string, bool) {
	if prompt == nil {
		fmt.Println("Missing argument, no input available")
		return "", false
	}
	answer, ok := prompt(label)
	if !ok || answer == "" {
		return "", false
	}
	return answer, true
}

// SendFile sends the file at path to peer under the file's base name.
// A missing local file is reported as a ResourceNotFound result, not as an error.
// Only one transfer to the same peer may run at a time.
func SendFile(ctx context.Context, peer string, path string, showProgress bool) (transfer.Result, error) {
	peerAddr, err := ResolvePeer(peer)
	if err != nil {
		return transfer.Result{Outcome: transfer.Aborted}, fmt.Errorf("invalid peer address %s: %w", peer, err)
	}

	name := filepath.Base(path)
	result := transfer.Result{Peer: peerAddr, Name: name, Outcome: transfer.ResourceNotFound}

	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return result, nil
	}
	if err != nil {
		return result, err
	}
	defer file.Close()

	fileInfo, err := file.Stat()
	if err != nil {
		return result, fmt.Errorf("failed to get file info for %s: %w", path, err)
	}
	if fileInfo.IsDir() {
		return result, fmt.Errorf("the specified path %s is a directory, not a file", path)
	}

	blocker := sequencing.GetTransferBlocker(peerAddr)
	if !blocker.Block() {
		result.Outcome = transfer.Aborted
		return result, fmt.Errorf("can't send file to %s: another file is currently being sent", peerAddr)
	}
	defer blocker.Unblock()

	status := &activeTransfer{
		outgoing: true,
		peer:     peerAddr,
		name:     name,
		size:     fileInfo.Size(),
		started:  time.Now(),
	}

	var bar *progressbar.ProgressBar
	if showProgress {
		bar = progressbar.DefaultBytes(fileInfo.Size(), "sending "+name)
	}

	sender := transfer.NewSender(socket, peerAddr, name, file, config, transfer.WithProgress(func(acked int64) {
		status.bytes.Store(acked)
		if bar != nil {
			bar.Set64(acked)
		}
	}))
	status.state = sender.State

	track(sender.ID(), status)
	defer untrack(sender.ID())

	result, err = sender.Run(ctx)
	if bar != nil {
		if result.Outcome == transfer.Completed {
			bar.Finish()
		} else {
			bar.Exit()
		}
	}

	logger.Debugf("Transfer %s used %d send cycles for %d frames", sender.ID(), result.Cycles, result.Frames)
	return result, err
}
