package transfer

import (
	"bytes"
	"testing"

	"bjoernblessin.de/rudpfile/connection"
	"bjoernblessin.de/rudpfile/pkt"
	"bjoernblessin.de/rudpfile/sequencing"
	"bjoernblessin.de/rudpfile/window"
)

func TestListenerSurvivesFailedRepeatAck(t *testing.T) {
	senderSocket, _, receiverAddr := openPair(t)
	conn := connection.New(senderSocket, receiverAddr, testConfig())
	win := window.New(2, 4, sequencing.NewCounter(0))
	win.Fill(bytes.NewReader([]byte("abcdef")))

	acks := 0
	l := newAckListener(conn, win, func() { acks++ })
	defer conn.Unsubscribe(l.ch)

	senderSocket.Close()

	l.handle(pkt.NewPacket(pkt.MsgTypeOpenAck, 0, []byte{1}))
	if sent := len(senderSocket.Sent()); sent != 0 {
		t.Errorf("closed socket recorded %d datagrams", sent)
	}

	l.handle(pkt.NewAck(1))
	l.handle(pkt.NewAck(1))
	if acks != 1 || win.Occupied() != 1 {
		t.Errorf("after ACK 1 twice: %d callbacks, %d occupied; expected 1, 1", acks, win.Occupied())
	}
}
