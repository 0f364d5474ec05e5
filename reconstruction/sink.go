// Package reconstruction puts received payloads back together.
// Payloads are written at the byte offset derived from their packet number, so they may arrive in any order.
// Duplicate detection is not done here, that is handled in the sequencing package.
package reconstruction

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	ErrInvalidName = errors.New("invalid resource name")
	ErrExists      = errors.New("resource already exists")
)

// Sink receives the payloads of one transfer.
type Sink interface {
	io.WriterAt

	// Commit finishes a complete transfer and returns where the data ended up.
	Commit() (string, error)

	// Abort discards everything written so far.
	Abort() error
}

// Opener opens the sink for a resource name announced by a peer.
type Opener interface {
	Open(name string) (Sink, error)
}

// ValidateName refuses names that could escape the target directory.
func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, "/\\\x00"):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	}
	return nil
}
