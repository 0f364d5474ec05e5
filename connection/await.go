package connection

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"bjoernblessin.de/rudpfile/pkt"
	"bjoernblessin.de/rudpfile/sock"
	"bjoernblessin.de/rudpfile/util/logger"
)

// Matcher decides whether a frame is the awaited reply.
type Matcher func(reply *pkt.Packet) bool

var replyTypes = map[byte]byte{
	pkt.MsgTypeOpen:        pkt.MsgTypeOpenAck,
	pkt.MsgTypeOpenAck:     pkt.MsgTypeAck,
	pkt.MsgTypeData:        pkt.MsgTypeAck,
	pkt.MsgTypeEndOfStream: pkt.MsgTypeAck,
}

// ReplyTo matches the reply type of sent carrying the same packet number.
// OPEN is answered by OPEN_ACK, every other frame by ACK.
func ReplyTo(sent *pkt.Packet) Matcher {
	replyType, ok := replyTypes[sent.GetMessageType()]
	return func(reply *pkt.Packet) bool {
		return ok && reply.GetMessageType() == replyType && reply.GetPktNum() == sent.GetPktNum()
	}
}

// OfType matches any frame of one of the given types.
func OfType(msgTypes ...byte) Matcher {
	return func(reply *pkt.Packet) bool {
		for _, msgType := range msgTypes {
			if reply.GetMessageType() == msgType {
				return true
			}
		}
		return false
	}
}

// Any matches if one of matchers matches.
func Any(matchers ...Matcher) Matcher {
	return func(reply *pkt.Packet) bool {
		for _, match := range matchers {
			if match(reply) {
				return true
			}
		}
		return false
	}
}

// SendAndAwait sends packet and waits up to the ack timeout for a valid frame of the peer accepted by match.
// Frames that don't match are ignored and the wait continues until the attempt's deadline,
// then the packet is sent again. After the configured number of attempts ErrNoReply is returned.
func (c *Conn) SendAndAwait(ctx context.Context, packet *pkt.Packet, match Matcher) (*pkt.Packet, error) {
	// Subscribe before sending, a fast reply must not get lost
	ch := c.socket.Subscribe()
	defer c.socket.Unsubscribe(ch)

	name := pkt.MsgTypeName(packet.GetMessageType())

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		err := c.Send(packet)
		if err != nil {
			return nil, err
		}

		timer := time.NewTimer(c.ackTimeout)
		reply, err := c.await(ctx, ch, timer.C, match)
		timer.Stop()

		if err != nil {
			return nil, err
		}
		if reply != nil {
			return reply, nil
		}

		logger.Debugf("No reply to %s %d from %s (attempt %d/%d)", name, packet.GetPktNum(), c.peer, attempt, c.maxAttempts)
	}

	return nil, errors.Wrapf(ErrNoReply, "%s %d to %s, %d attempts", name, packet.GetPktNum(), c.peer, c.maxAttempts)
}

// await returns the first matching frame, or nil when deadline fires first.
func (c *Conn) await(ctx context.Context, ch chan *sock.Packet, deadline <-chan time.Time, match Matcher) (*pkt.Packet, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline:
			return nil, nil
		case datagram, ok := <-ch:
			if !ok {
				return nil, ErrSocketClosed
			}

			reply, ok := c.Decode(datagram)
			if !ok {
				continue
			}
			if !match(reply) {
				logger.Tracef("Ignoring %s %d while waiting for a reply", pkt.MsgTypeName(reply.GetMessageType()), reply.GetPktNum())
				continue
			}

			return reply, nil
		}
	}
}
