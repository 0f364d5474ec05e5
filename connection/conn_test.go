package connection

import (
	"context"
	"errors"
	"net/netip"
	"testing"
	"time"

	"bjoernblessin.de/rudpfile/common"
	"bjoernblessin.de/rudpfile/pkt"
	"bjoernblessin.de/rudpfile/sock/socktest"
)

func testConfig() common.Config {
	cfg := common.DefaultConfig()
	cfg.AckTimeout = 20 * time.Millisecond
	cfg.MaxAttempts = 4
	return cfg
}

// newPair returns a Conn from a to b and the socket of b.
func newPair(t *testing.T) (*Conn, *socktest.Socket, *socktest.Socket) {
	t.Helper()

	network := socktest.NewNetwork()
	a, b := network.Socket(), network.Socket()
	a.Open(netip.AddrPort{})
	addrB, err := b.Open(netip.AddrPort{})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	return New(a, addrB, testConfig()), a, b
}

// respond answers every valid frame arriving at b with reply(frame), if reply returns non-nil.
func respond(t *testing.T, b *socktest.Socket, reply func(received *pkt.Packet) *pkt.Packet) (stop func()) {
	t.Helper()

	ch := b.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for datagram := range ch {
			received, ok := Decode(datagram)
			if !ok {
				continue
			}
			if answer := reply(received); answer != nil {
				b.SendTo(datagram.Addr, answer.ToByteArray())
			}
		}
	}()

	return func() {
		b.Unsubscribe(ch)
		<-done
	}
}

func TestSendAndAwaitFirstAttempt(t *testing.T) {
	conn, a, b := newPair(t)
	stop := respond(t, b, func(received *pkt.Packet) *pkt.Packet {
		return pkt.NewPacket(pkt.MsgTypeOpenAck, received.GetPktNum(), []byte{1})
	})
	defer stop()

	open := pkt.NewPacket(pkt.MsgTypeOpen, 0, []byte("file.txt"))
	reply, err := conn.SendAndAwait(context.Background(), open, ReplyTo(open))
	if err != nil {
		t.Fatalf("SendAndAwait() failed: %v", err)
	}
	if reply.GetMessageType() != pkt.MsgTypeOpenAck || reply.Payload[0] != 1 {
		t.Errorf("unexpected reply %s", reply)
	}
	if len(a.Sent()) != 1 {
		t.Errorf("OPEN sent %d times, expected once", len(a.Sent()))
	}
}

func TestSendAndAwaitRetransmits(t *testing.T) {
	conn, a, b := newPair(t)

	// The first two replies get lost
	dropped := 0
	b.SetFilter(func(to netip.AddrPort, data []byte) bool {
		dropped++
		return dropped > 2
	})
	stop := respond(t, b, func(received *pkt.Packet) *pkt.Packet {
		return pkt.NewAck(received.GetPktNum())
	})
	defer stop()

	eos := pkt.NewPacket(pkt.MsgTypeEndOfStream, 7, nil)
	reply, err := conn.SendAndAwait(context.Background(), eos, ReplyTo(eos))
	if err != nil {
		t.Fatalf("SendAndAwait() failed: %v", err)
	}
	if reply.GetPktNum() != 7 {
		t.Errorf("reply has packet number %d, expected 7", reply.GetPktNum())
	}
	if len(a.Sent()) != 3 {
		t.Errorf("END_OF_STREAM sent %d times, expected 3", len(a.Sent()))
	}
}

func TestSendAndAwaitNoReply(t *testing.T) {
	conn, a, _ := newPair(t)

	open := pkt.NewPacket(pkt.MsgTypeOpen, 0, []byte("x"))
	_, err := conn.SendAndAwait(context.Background(), open, ReplyTo(open))
	if !errors.Is(err, ErrNoReply) {
		t.Fatalf("SendAndAwait() error = %v, expected ErrNoReply", err)
	}
	if len(a.Sent()) != testConfig().MaxAttempts {
		t.Errorf("OPEN sent %d times, expected %d", len(a.Sent()), testConfig().MaxAttempts)
	}
}

func TestSendAndAwaitIgnoresMismatches(t *testing.T) {
	tests := []struct {
		name  string
		reply func(received *pkt.Packet) []*pkt.Packet
	}{
		{"wrong packet number", func(received *pkt.Packet) []*pkt.Packet {
			return []*pkt.Packet{pkt.NewAck(received.GetPktNum() + 1), pkt.NewAck(received.GetPktNum())}
		}},
		{"wrong type", func(received *pkt.Packet) []*pkt.Packet {
			return []*pkt.Packet{pkt.NewPacket(pkt.MsgTypeData, received.GetPktNum(), nil), pkt.NewAck(received.GetPktNum())}
		}},
		{"corrupted", func(received *pkt.Packet) []*pkt.Packet {
			bad := pkt.NewAck(received.GetPktNum())
			bad.Header.Checksum[0] ^= 0x01
			return []*pkt.Packet{bad, pkt.NewAck(received.GetPktNum())}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, a, b := newPair(t)

			ch := b.Subscribe()
			defer b.Unsubscribe(ch)
			go func() {
				datagram := <-ch
				received, _ := Decode(datagram)
				for _, answer := range tt.reply(received) {
					b.SendTo(datagram.Addr, answer.ToByteArray())
				}
			}()

			eos := pkt.NewPacket(pkt.MsgTypeEndOfStream, 3, nil)
			reply, err := conn.SendAndAwait(context.Background(), eos, ReplyTo(eos))
			if err != nil {
				t.Fatalf("SendAndAwait() failed: %v", err)
			}
			if reply.GetMessageType() != pkt.MsgTypeAck || reply.GetPktNum() != 3 {
				t.Errorf("unexpected reply %s", reply)
			}
			if len(a.Sent()) != 1 {
				t.Errorf("END_OF_STREAM sent %d times, expected once", len(a.Sent()))
			}
		})
	}
}

func TestSendAndAwaitIgnoresForeignPeer(t *testing.T) {
	network := socktest.NewNetwork()
	a, b, c := network.Socket(), network.Socket(), network.Socket()
	addrA, _ := a.Open(netip.AddrPort{})
	addrB, _ := b.Open(netip.AddrPort{})
	c.Open(netip.AddrPort{})

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)
	go func() {
		<-ch
		c.SendTo(addrA, pkt.NewAck(5).ToByteArray())
	}()

	conn := New(a, addrB, testConfig())
	eos := pkt.NewPacket(pkt.MsgTypeEndOfStream, 5, nil)
	_, err := conn.SendAndAwait(context.Background(), eos, ReplyTo(eos))
	if !errors.Is(err, ErrNoReply) {
		t.Errorf("SendAndAwait() error = %v, expected ErrNoReply", err)
	}
}

func TestSendAndAwaitContextCanceled(t *testing.T) {
	conn, _, _ := newPair(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	open := pkt.NewPacket(pkt.MsgTypeOpen, 0, nil)
	_, err := conn.SendAndAwait(ctx, open, ReplyTo(open))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("SendAndAwait() error = %v, expected context.Canceled", err)
	}
}

func TestMatchers(t *testing.T) {
	open := pkt.NewPacket(pkt.MsgTypeOpen, 0, []byte("a"))
	openAck := pkt.NewPacket(pkt.MsgTypeOpenAck, 0, []byte{1})
	data := pkt.NewPacket(pkt.MsgTypeData, 4, []byte("b"))

	tests := []struct {
		name     string
		match    Matcher
		reply    *pkt.Packet
		expected bool
	}{
		{"open answered by open ack", ReplyTo(open), openAck, true},
		{"open not answered by ack", ReplyTo(open), pkt.NewAck(0), false},
		{"open ack answered by ack", ReplyTo(openAck), pkt.NewAck(0), true},
		{"data answered by ack", ReplyTo(data), pkt.NewAck(4), true},
		{"data ack with other number", ReplyTo(data), pkt.NewAck(3), false},
		{"ack has no reply", ReplyTo(pkt.NewAck(1)), pkt.NewAck(1), false},
		{"of type", OfType(pkt.MsgTypeData, pkt.MsgTypeEndOfStream), data, true},
		{"any", Any(ReplyTo(openAck), OfType(pkt.MsgTypeData)), data, true},
		{"any none", Any(ReplyTo(openAck), OfType(pkt.MsgTypeEndOfStream)), data, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.match(tt.reply); got != tt.expected {
				t.Errorf("match(%s) = %v, expected %v", tt.reply, got, tt.expected)
			}
		})
	}
}
