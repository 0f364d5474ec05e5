// Package connection sends frames to one peer and provides the stop-and-wait primitive
// used for the control frames of a transfer.
package connection

import (
	"net/netip"
	"time"

	"github.com/pkg/errors"

	"bjoernblessin.de/rudpfile/common"
	"bjoernblessin.de/rudpfile/pkt"
	"bjoernblessin.de/rudpfile/sock"
	"bjoernblessin.de/rudpfile/util/logger"
)

var (
	// ErrNoReply is returned when a control frame was sent the configured number of times without a matching reply.
	ErrNoReply = errors.New("no reply from peer")
	// ErrSocketClosed is returned when the socket subscription ends while waiting.
	ErrSocketClosed = errors.New("socket closed")
)

// Conn is a view on a socket restricted to a single peer.
type Conn struct {
	socket      sock.Socket
	peer        netip.AddrPort
	ackTimeout  time.Duration
	maxAttempts int
}

// New creates a Conn to peer. ackTimeout and maxAttempts of cfg configure SendAndAwait.
func New(socket sock.Socket, peer netip.AddrPort, cfg common.Config) *Conn {
	return &Conn{
		socket:      socket,
		peer:        peer,
		ackTimeout:  cfg.AckTimeout,
		maxAttempts: cfg.MaxAttempts,
	}
}

func (c *Conn) Peer() netip.AddrPort {
	return c.peer
}

// Send puts the frame on the wire once. Only the header and the actual payload are sent.
func (c *Conn) Send(packet *pkt.Packet) error {
	err := c.socket.SendTo(c.peer, packet.ToByteArray())
	if err != nil {
		return errors.Wrapf(err, "failed to send %s %d to %s", pkt.MsgTypeName(packet.GetMessageType()), packet.GetPktNum(), c.peer)
	}

	logger.Tracef("SENT %s %d to %s", pkt.MsgTypeName(packet.GetMessageType()), packet.GetPktNum(), c.peer)
	return nil
}

// SendAck acknowledges the frame with the given packet number.
func (c *Conn) SendAck(pktNum uint32) error {
	return c.Send(pkt.NewAck(pktNum))
}

// Subscribe returns a channel receiving every datagram of the underlying socket.
// Use Decode to keep the valid frames of the peer.
func (c *Conn) Subscribe() chan *sock.Packet {
	return c.socket.Subscribe()
}

func (c *Conn) Unsubscribe(ch chan *sock.Packet) {
	c.socket.Unsubscribe(ch)
}

// Decode parses a datagram of the peer and verifies its checksum.
// Datagrams of other endpoints and invalid frames are reported as not ok.
func (c *Conn) Decode(datagram *sock.Packet) (*pkt.Packet, bool) {
	if datagram.Addr != c.peer {
		logger.Debugf("Ignoring datagram from %s, transfer peer is %s", datagram.Addr, c.peer)
		return nil, false
	}
	return Decode(datagram)
}

// Decode parses a datagram and verifies its checksum.
func Decode(datagram *sock.Packet) (*pkt.Packet, bool) {
	packet, err := pkt.ParsePacket(datagram.Data)
	if err != nil {
		logger.Debugf("Dropping malformed datagram from %s: %v", datagram.Addr, err)
		return nil, false
	}

	if !pkt.VerifyChecksum(packet) {
		logger.Debugf("Dropping %s %d from %s, checksum mismatch", pkt.MsgTypeName(packet.GetMessageType()), packet.GetPktNum(), datagram.Addr)
		return nil, false
	}

	logger.Tracef("RECEIVED %s %d from %s", pkt.MsgTypeName(packet.GetMessageType()), packet.GetPktNum(), datagram.Addr)
	return packet, true
}
