package cmd

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"

	"bjoernblessin.de/rudpfile/reconstruction"
	"bjoernblessin.de/rudpfile/transfer"
)

// Serve receives transfers into dir until ctx is canceled.
func Serve(ctx context.Context, dir string, overwrite bool, showProgress bool) error {
	var receiver *transfer.Receiver
	var bar *progressbar.ProgressBar
	var current uuid.UUID

	onProgress := func(result transfer.Result) {
		if result.ID != current {
			current = result.ID
			track(result.ID, &activeTransfer{
				peer:    result.Peer,
				name:    result.Name,
				size:    -1,
				started: time.Now(),
				state:   receiver.State,
			})
			if showProgress {
				bar = progressbar.DefaultBytes(-1, "receiving "+result.Name)
			}
		}

		if status, ok := lookup(result.ID); ok {
			status.bytes.Store(result.Bytes)
		}
		if bar != nil {
			bar.Set64(result.Bytes)
		}
	}

	onResult := func(result transfer.Result, err error) {
		untrack(result.ID)
		if bar != nil {
			bar.Finish()
			bar = nil
		}
	}

	receiver = transfer.NewReceiver(socket, reconstruction.DirOpener{Dir: dir, Overwrite: overwrite}, config,
		transfer.WithReceiveProgress(onProgress),
		transfer.WithResultHandler(onResult),
	)

	return receiver.Serve(ctx)
}
