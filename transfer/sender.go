package transfer

import (
	"context"
	"io"
	"net/netip"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"bjoernblessin.de/rudpfile/common"
	"bjoernblessin.de/rudpfile/connection"
	"bjoernblessin.de/rudpfile/pkt"
	"bjoernblessin.de/rudpfile/sequencing"
	"bjoernblessin.de/rudpfile/sock"
	"bjoernblessin.de/rudpfile/util/logger"
	"bjoernblessin.de/rudpfile/window"
)

type SenderOption func(*Sender)

// WithProgress registers fn to be called with the number of acknowledged payload bytes
// whenever an ACK vacates a window slot. fn runs on the listener goroutine.
func WithProgress(fn func(ackedBytes int64)) SenderOption {
	return func(s *Sender) {
		s.onProgress = fn
	}
}

// Sender pushes the data of src to a receiver under the given resource name.
type Sender struct {
	stateHolder

	id         uuid.UUID
	conn       *connection.Conn
	name       string
	src        io.Reader
	cfg        common.Config
	onProgress func(ackedBytes int64)
}

func NewSender(socket sock.Socket, peer netip.AddrPort, name string, src io.Reader, cfg common.Config, opts ...SenderOption) *Sender {
	s := &Sender{
		id:   uuid.New(),
		conn: connection.New(socket, peer, cfg),
		name: name,
		src:  src,
		cfg:  cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sender) ID() uuid.UUID {
	return s.id
}

// Run performs the transfer: HANDSHAKE, STREAMING, CLOSING, DONE.
// The returned Result is filled in any case; the error explains an aborted transfer.
// A receiver refusing the name is not an error, the outcome is ResourceNotFound.
func (s *Sender) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	result := Result{
		ID:      s.id,
		Peer:    s.conn.Peer(),
		Name:    s.name,
		Outcome: Aborted,
	}
	defer func() {
		s.setState(s.id, Done)
	}()

	err := s.run(ctx, &result)
	result.Duration = time.Since(start)

	if err != nil {
		logger.Warnf("Transfer %s: %v", shortID(s.id), err)
	} else {
		logger.Infof("Transfer %s", result)
	}
	return result, err
}

func (s *Sender) run(ctx context.Context, result *Result) error {
	if len(s.name) > common.MAX_PAYLOAD_SIZE_BYTES {
		return errors.Wrapf(ErrNameTooLong, "%d bytes", len(s.name))
	}

	s.setState(s.id, Handshake)
	logger.Infof("Transfer %s: opening %q at %s", shortID(s.id), s.name, s.conn.Peer())

	open := pkt.NewPacket(pkt.MsgTypeOpen, 0, []byte(s.name))
	reply, err := s.conn.SendAndAwait(ctx, open, connection.ReplyTo(open))
	if err != nil {
		return errors.Wrap(err, "handshake failed")
	}

	err = s.conn.SendAck(reply.GetPktNum())
	if err != nil {
		return err
	}

	if len(reply.Payload) == 0 || reply.Payload[0] == 0 {
		result.Outcome = ResourceNotFound
		logger.Infof("Transfer %s: %s refused %q", shortID(s.id), s.conn.Peer(), s.name)
		return nil
	}

	s.setState(s.id, Streaming)

	pktNums := sequencing.NewCounter(0)
	win := window.New(s.cfg.WindowSize, common.MAX_PAYLOAD_SIZE_BYTES, pktNums)

	err = s.stream(ctx, win, result)
	if err != nil {
		return err
	}

	s.setState(s.id, Closing)

	eosNum, err := pktNums.Next()
	if err != nil {
		return err
	}
	eos := pkt.NewPacket(pkt.MsgTypeEndOfStream, eosNum, nil)
	_, err = s.conn.SendAndAwait(ctx, eos, connection.ReplyTo(eos))
	if err != nil {
		return errors.Wrap(err, "END_OF_STREAM not acknowledged")
	}

	result.Outcome = Completed
	return nil
}

// stream runs the send cycles until the source is exhausted and every DATA frame is acknowledged.
// The acknowledgment listener runs alongside and is stopped before stream returns.
func (s *Sender) stream(ctx context.Context, win *window.Window, result *Result) error {
	listenerCtx, stopListener := context.WithCancel(ctx)
	listener := newAckListener(s.conn, win, func() {
		if s.onProgress != nil {
			_, _, acked := win.Stats()
			s.onProgress(acked)
		}
	})
	listenerDone := make(chan struct{})
	go func() {
		defer close(listenerDone)
		listener.run(listenerCtx)
	}()
	defer func() {
		stopListener()
		<-listenerDone
		result.Frames, _, result.Bytes = win.Stats()
	}()

	var lastAcked int64
	lastProgress := time.Now()

	for {
		_, err := win.Refill(s.src)
		if err != nil {
			return errors.Wrap(err, "failed to read source")
		}

		if win.Done() {
			return nil
		}

		logger.Tracef("Transfer %s: window %s, %d bytes in flight", shortID(s.id), win, win.InFlightBytes())

		err = win.SendAll(s.conn.Send)
		if err != nil {
			return err
		}
		result.Cycles++

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.PollInterval):
		}

		_, _, acked := win.Stats()
		if acked != lastAcked {
			lastAcked = acked
			lastProgress = time.Now()
		} else if time.Since(lastProgress) >= s.cfg.StallTimeout {
			return errors.Wrapf(ErrStalled, "no acknowledgment from %s for %v", s.conn.Peer(), s.cfg.StallTimeout)
		}
	}
}
