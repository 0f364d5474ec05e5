package transfer

import (
	"context"
	"net/netip"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"bjoernblessin.de/rudpfile/common"
	"bjoernblessin.de/rudpfile/connection"
	"bjoernblessin.de/rudpfile/pkt"
	"bjoernblessin.de/rudpfile/reconstruction"
	"bjoernblessin.de/rudpfile/sequencing"
	"bjoernblessin.de/rudpfile/sock"
	"bjoernblessin.de/rudpfile/util/logger"
)

type ReceiverOption func(*Receiver)

// WithReceiveProgress registers fn to be called after every newly written DATA frame.
func WithReceiveProgress(fn func(result Result)) ReceiverOption {
	return func(r *Receiver) {
		r.onProgress = fn
	}
}

// WithResultHandler registers fn to be called by Serve after every transfer.
func WithResultHandler(fn func(result Result, err error)) ReceiverOption {
	return func(r *Receiver) {
		r.onResult = fn
	}
}

// Receiver accepts transfers on a socket and stores them through an Opener.
// It handles one transfer at a time.
type Receiver struct {
	stateHolder

	socket     sock.Socket
	opener     reconstruction.Opener
	cfg        common.Config
	onProgress func(result Result)
	onResult   func(result Result, err error)
}

func NewReceiver(socket sock.Socket, opener reconstruction.Opener, cfg common.Config, opts ...ReceiverOption) *Receiver {
	r := &Receiver{
		socket: socket,
		opener: opener,
		cfg:    cfg,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Serve receives transfers one after another until ctx is canceled or the socket is closed.
// A failed transfer is logged and does not stop the loop.
func (r *Receiver) Serve(ctx context.Context) error {
	for {
		result, err := r.Receive(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, connection.ErrSocketClosed) {
			return err
		}

		if err != nil {
			logger.Warnf("Transfer %s: %v", shortID(result.ID), err)
		} else {
			logger.Infof("Transfer %s", result)
		}

		if r.onResult != nil {
			r.onResult(result, err)
		}
	}
}

// Receive waits for one transfer and runs it: AWAIT_OPEN, STREAM_IN, DONE.
// Frames of other endpoints are ignored once a transfer has started.
func (r *Receiver) Receive(ctx context.Context) (Result, error) {
	ch := r.socket.Subscribe()
	defer r.socket.Unsubscribe(ch)

	r.state.Store(int32(AwaitOpen))

	open, peer, err := r.awaitOpen(ctx, ch)
	if err != nil {
		return Result{Outcome: Aborted}, err
	}

	start := time.Now()
	result := Result{
		ID:      uuid.New(),
		Peer:    peer,
		Name:    string(open.Payload),
		Outcome: Aborted,
	}

	err = r.receive(ctx, connection.New(r.socket, peer, r.cfg), ch, open, &result)
	result.Duration = time.Since(start)
	r.setState(result.ID, Done)

	return result, err
}

func abort(result *Result, sink reconstruction.Sink) {
	err := sink.Abort()
	if err != nil {
		logger.Debugf("Transfer %s: discarding partial %q failed: %v", shortID(result.ID), result.Name, err)
	}
}

func (r *Receiver) receive(ctx context.Context, conn *connection.Conn, ch chan *sock.Packet, open *pkt.Packet, result *Result) error {
	logger.Infof("Transfer %s: %s opens %q", shortID(result.ID), conn.Peer(), result.Name)

	sink, err := r.opener.Open(result.Name)
	if err != nil {
		logger.Warnf("Transfer %s: refusing %q: %v", shortID(result.ID), result.Name, err)
		result.Outcome = ResourceNotFound
		err = r.confirmOpen(ctx, conn, open, false)
		if err != nil {
			logger.Debugf("Transfer %s: refusal was not confirmed: %v", shortID(result.ID), err)
		}
		return nil
	}

	err = r.confirmOpen(ctx, conn, open, true)
	if err != nil {
		abort(result, sink)
		return errors.Wrap(err, "handshake failed")
	}

	r.setState(result.ID, StreamIn)

	eosNum, err := r.streamIn(ctx, conn, ch, sink, result)
	if err != nil {
		abort(result, sink)
		return err
	}

	path, err := sink.Commit()
	if err != nil {
		return err
	}
	result.Path = path
	result.Outcome = Completed

	r.linger(ctx, conn, ch, eosNum)
	return nil
}

// awaitOpen discards everything but valid OPEN frames.
func (r *Receiver) awaitOpen(ctx context.Context, ch chan *sock.Packet) (*pkt.Packet, netip.AddrPort, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, netip.AddrPort{}, ctx.Err()
		case datagram, ok := <-ch:
			if !ok {
				return nil, netip.AddrPort{}, connection.ErrSocketClosed
			}

			packet, ok := connection.Decode(datagram)
			if !ok {
				continue
			}
			if packet.GetMessageType() != pkt.MsgTypeOpen {
				logger.Tracef("Ignoring %s %d from %s, no transfer open", pkt.MsgTypeName(packet.GetMessageType()), packet.GetPktNum(), datagram.Addr)
				continue
			}

			return packet, datagram.Addr, nil
		}
	}
}

// confirmOpen answers the OPEN with an OPEN_ACK until it is acknowledged.
// DATA or END_OF_STREAM of the peer count as acknowledgment, they prove the sender has moved on.
func (r *Receiver) confirmOpen(ctx context.Context, conn *connection.Conn, open *pkt.Packet, accepted bool) error {
	flag := byte(0)
	if accepted {
		flag = 1
	}

	openAck := pkt.NewPacket(pkt.MsgTypeOpenAck, open.GetPktNum(), []byte{flag})
	_, err := conn.SendAndAwait(ctx, openAck, connection.Any(
		connection.ReplyTo(openAck),
		connection.OfType(pkt.MsgTypeData, pkt.MsgTypeEndOfStream),
	))
	return err
}

// streamIn acknowledges and writes DATA frames until a complete END_OF_STREAM arrives.
// Returns the packet number of the END_OF_STREAM frame.
func (r *Receiver) streamIn(ctx context.Context, conn *connection.Conn, ch chan *sock.Packet, sink reconstruction.Sink, result *Result) (uint32, error) {
	tracker := sequencing.NewIncomingPktNumHandler(common.RECEIVE_WINDOW)

	idle := time.NewTimer(r.cfg.StallTimeout)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()

		case <-idle.C:
			return 0, errors.Wrapf(ErrStalled, "no frame from %s for %v", conn.Peer(), r.cfg.StallTimeout)

		case datagram, ok := <-ch:
			if !ok {
				return 0, connection.ErrSocketClosed
			}

			packet, ok := conn.Decode(datagram)
			if !ok {
				continue
			}
			idle.Reset(r.cfg.StallTimeout)

			pktNum := packet.GetPktNum()

			switch packet.GetMessageType() {
			case pkt.MsgTypeData:
				duplicate, err := tracker.IsDuplicatePacket(pktNum)
				if err != nil {
					logger.Debugf("Dropping DATA %d: %v", pktNum, err)
					continue
				}

				err = conn.SendAck(pktNum)
				if err != nil {
					return 0, err
				}

				if duplicate {
					logger.Tracef("DATA %d is a duplicate", pktNum)
					continue
				}
				logger.Tracef("DATA %d accepted, expecting %d, %d ahead", pktNum, tracker.GetNextExpectedPktNum(), tracker.PendingCount())

				_, err = sink.WriteAt(packet.Payload, int64(pktNum)*common.MAX_PAYLOAD_SIZE_BYTES)
				if err != nil {
					return 0, errors.Wrapf(err, "failed to write DATA %d", pktNum)
				}

				result.Frames++
				result.Bytes += int64(len(packet.Payload))
				if r.onProgress != nil {
					r.onProgress(*result)
				}

			case pkt.MsgTypeEndOfStream:
				if !tracker.IsComplete(pktNum) {
					return 0, errors.Wrapf(ErrIncomplete, "END_OF_STREAM %d but DATA %d is missing", pktNum, tracker.GetNextExpectedPktNum())
				}

				err := conn.SendAck(pktNum)
				if err != nil {
					return 0, err
				}
				return pktNum, nil

			default:
				logger.Tracef("Ignoring %s %d during transfer", pkt.MsgTypeName(packet.GetMessageType()), pktNum)
			}
		}
	}
}

// linger re-acknowledges END_OF_STREAM in case the final ACK got lost.
func (r *Receiver) linger(ctx context.Context, conn *connection.Conn, ch chan *sock.Packet, eosNum uint32) {
	if r.cfg.Linger <= 0 {
		return
	}

	timer := time.NewTimer(r.cfg.Linger)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			return
		case datagram, ok := <-ch:
			if !ok {
				return
			}

			packet, ok := conn.Decode(datagram)
			if !ok {
				continue
			}

			if packet.GetMessageType() == pkt.MsgTypeEndOfStream && packet.GetPktNum() == eosNum {
				logger.Debugf("Repeating ACK %d for retransmitted END_OF_STREAM", eosNum)
				err := conn.SendAck(eosNum)
				if err != nil {
					logger.Debugf("Repeating ACK %d failed: %v", eosNum, err)
				}
			}
		}
	}
}
