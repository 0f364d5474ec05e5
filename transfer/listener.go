package transfer

import (
	"context"

	"bjoernblessin.de/rudpfile/connection"
	"bjoernblessin.de/rudpfile/pkt"
	"bjoernblessin.de/rudpfile/sock"
	"bjoernblessin.de/rudpfile/util/logger"
	"bjoernblessin.de/rudpfile/window"
)

// ackListener applies incoming ACKs to the window while the sender streams.
type ackListener struct {
	conn  *connection.Conn
	win   *window.Window
	ch    chan *sock.Packet
	onAck func()
}

// newAckListener subscribes immediately, so no ACK is missed between construction and run.
func newAckListener(conn *connection.Conn, win *window.Window, onAck func()) *ackListener {
	return &ackListener{
		conn:  conn,
		win:   win,
		ch:    conn.Subscribe(),
		onAck: onAck,
	}
}

// run processes datagrams until ctx is canceled or the subscription ends.
func (l *ackListener) run(ctx context.Context) {
	defer l.conn.Unsubscribe(l.ch)

	for {
		select {
		case <-ctx.Done():
			return
		case datagram, ok := <-l.ch:
			if !ok {
				return
			}

			packet, ok := l.conn.Decode(datagram)
			if !ok {
				continue
			}

			l.handle(packet)
		}
	}
}

func (l *ackListener) handle(packet *pkt.Packet) {
	switch packet.GetMessageType() {
	case pkt.MsgTypeAck:
		if !l.win.Acknowledge(packet.GetPktNum()) {
			logger.Tracef("Ignoring stale ACK %d", packet.GetPktNum())
			return
		}
		if l.onAck != nil {
			l.onAck()
		}

	case pkt.MsgTypeOpenAck:
		// Our confirmation of the OPEN_ACK got lost, the receiver is still waiting for it
		logger.Debugf("Repeating ACK %d for retransmitted OPEN_ACK", packet.GetPktNum())
		err := l.conn.SendAck(packet.GetPktNum())
		if err != nil {
			logger.Debugf("Repeating ACK %d failed: %v", packet.GetPktNum(), err)
		}

	default:
		logger.Tracef("Ignoring %s %d while streaming", pkt.MsgTypeName(packet.GetMessageType()), packet.GetPktNum())
	}
}
