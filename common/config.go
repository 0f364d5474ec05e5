package common

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const MAX_PAYLOAD_SIZE_BYTES = 948             // P; header + payload stays well below a 1024 byte datagram
const HEADER_SIZE_BYTES = 7                    // seq num (4) | type (1) | checksum (2)
const UDP_BUFFER_SIZE_BYTES = 1500             // Number of bytes to read from socket per datagram; larger datagrams are truncated and fail the checksum
const SOCKET_RECEIVE_BUFFER_SIZE = 500         // Number of datagrams buffered per subscriber before dropping them
const RECEIVE_WINDOW = 1 << 16                 // How far ahead of the next expected seq num a DATA frame may be before it is refused
const SETTLE_DURATION = time.Millisecond * 500 // How long a spooled file must stay unchanged before it is sent

const (
	DEFAULT_WINDOW_SIZE   = 5
	DEFAULT_POLL_INTERVAL = time.Millisecond * 100
	DEFAULT_ACK_TIMEOUT   = time.Millisecond * 100
	DEFAULT_MAX_ATTEMPTS  = 10 // Number of times a control frame is sent before the transfer is aborted
	DEFAULT_STALL_TIMEOUT = time.Second * 30
	DEFAULT_LINGER        = time.Second
)

var RECEIVED_FILES_DIR string // Default target directory of the receiver

func init() {
	const subdirectory = "rudpfile_received_files"
	dir, err := os.UserHomeDir()
	if err != nil {
		RECEIVED_FILES_DIR = string(os.PathSeparator) + subdirectory
	} else {
		RECEIVED_FILES_DIR = filepath.Join(dir, subdirectory)
	}
}

// Config holds the tunables of a transfer. Both sides have to agree on nothing
// here except the payload size, which is fixed.
type Config struct {
	WindowSize   int           // N, number of in-flight DATA frames
	PollInterval time.Duration // sleep between two send cycles of the sender
	AckTimeout   time.Duration // wait per attempt of the stop-and-wait primitive
	MaxAttempts  int           // attempts of the stop-and-wait primitive
	StallTimeout time.Duration // abort if no progress is made for this long
	Linger       time.Duration // receiver keeps re-acknowledging END_OF_STREAM for this long

	DropRate      float64 // probability to drop an outgoing datagram
	CorruptRate   float64 // probability to flip one bit of an outgoing datagram
	DuplicateRate float64 // probability to send an outgoing datagram twice
	LossSeed      uint64  // seed for the fault injection; 0 picks a random seed

	TOS int // IPv4 type-of-service byte set on the socket; 0 leaves it untouched
}

func DefaultConfig() Config {
	return Config{
		WindowSize:   DEFAULT_WINDOW_SIZE,
		PollInterval: DEFAULT_POLL_INTERVAL,
		AckTimeout:   DEFAULT_ACK_TIMEOUT,
		MaxAttempts:  DEFAULT_MAX_ATTEMPTS,
		StallTimeout: DEFAULT_STALL_TIMEOUT,
		Linger:       DEFAULT_LINGER,
	}
}

// RegisterFlags binds every field to a flag of fs. The current values are the flag defaults.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.WindowSize, "window", c.WindowSize, "Number of unacknowledged DATA frames in flight")
	fs.DurationVar(&c.PollInterval, "poll", c.PollInterval, "Sleep between two send cycles")
	fs.DurationVar(&c.AckTimeout, "timeout", c.AckTimeout, "Wait per attempt for a control frame reply")
	fs.IntVar(&c.MaxAttempts, "attempts", c.MaxAttempts, "Attempts for a control frame before giving up")
	fs.DurationVar(&c.StallTimeout, "stall", c.StallTimeout, "Abort when no progress is made for this long")
	fs.DurationVar(&c.Linger, "linger", c.Linger, "Receiver re-acknowledges END_OF_STREAM for this long")
	fs.Float64Var(&c.DropRate, "drop", c.DropRate, "Probability to drop an outgoing datagram (testing)")
	fs.Float64Var(&c.CorruptRate, "corrupt", c.CorruptRate, "Probability to corrupt an outgoing datagram (testing)")
	fs.Float64Var(&c.DuplicateRate, "dup", c.DuplicateRate, "Probability to duplicate an outgoing datagram (testing)")
	fs.Uint64Var(&c.LossSeed, "seed", c.LossSeed, "Seed for fault injection, 0 = random")
	fs.IntVar(&c.TOS, "tos", c.TOS, "IPv4 TOS byte for outgoing datagrams")
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.WindowSize <= 0 {
		return fmt.Errorf("window size must be positive, got %d", c.WindowSize)
	}
	if c.PollInterval <= 0 || c.AckTimeout <= 0 || c.StallTimeout <= 0 {
		return errors.New("poll interval, ack timeout and stall timeout must be positive")
	}
	if c.Linger < 0 {
		return fmt.Errorf("linger must not be negative, got %v", c.Linger)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive, got %d", c.MaxAttempts)
	}
	for _, rate := range []float64{c.DropRate, c.CorruptRate, c.DuplicateRate} {
		if rate < 0 || rate >= 1 {
			return fmt.Errorf("fault injection rates must be in [0, 1), got %v", rate)
		}
	}
	if c.TOS < 0 || c.TOS > 0xFF {
		return fmt.Errorf("TOS must fit in one byte, got %d", c.TOS)
	}
	return nil
}

// HasFaultInjection reports whether any fault injection rate is set.
func (c Config) HasFaultInjection() bool {
	return c.DropRate > 0 || c.CorruptRate > 0 || c.DuplicateRate > 0
}
