// Package socktest provides an in-memory implementation of sock.Socket.
// Datagrams are delivered synchronously between the sockets of one Network.
package socktest

import (
	"bytes"
	"errors"
	"net/netip"
	"sync"

	"bjoernblessin.de/rudpfile/common"
	"bjoernblessin.de/rudpfile/sock"
	"bjoernblessin.de/rudpfile/util/observer"
)

// Filter decides whether a datagram is delivered. Returning false drops it.
type Filter func(to netip.AddrPort, data []byte) bool

type Network struct {
	mu      sync.Mutex
	sockets map[netip.AddrPort]*Socket
}

func NewNetwork() *Network {
	return &Network{
		sockets: make(map[netip.AddrPort]*Socket),
	}
}

// Socket creates an unopened socket. Open binds it to its address on the network.
func (n *Network) Socket() *Socket {
	return &Socket{
		network:    n,
		observable: observer.NewObservable[*sock.Packet](common.SOCKET_RECEIVE_BUFFER_SIZE),
	}
}

func (n *Network) deliver(from, to netip.AddrPort, data []byte) {
	n.mu.Lock()
	target, ok := n.sockets[to]
	n.mu.Unlock()

	if !ok {
		return
	}
	target.observable.NotifyObservers(&sock.Packet{Addr: from, Data: bytes.Clone(data)})
}

type Socket struct {
	network    *Network
	observable *observer.Observable[*sock.Packet]

	mu     sync.Mutex
	addr   netip.AddrPort
	open   bool
	filter Filter
	sent   [][]byte
}

// SetFilter installs a filter for outgoing datagrams. nil delivers everything.
func (s *Socket) SetFilter(filter Filter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = filter
}

// Sent returns copies of all datagrams passed to SendTo, including filtered ones.
func (s *Socket) Sent() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.sent...)
}

func (s *Socket) GetLocalAddress() (netip.AddrPort, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return netip.AddrPort{}, errors.New("socket is not open")
	}
	return s.addr, nil
}

func (s *Socket) MustGetLocalAddress() netip.AddrPort {
	addr, err := s.GetLocalAddress()
	if err != nil {
		panic(err)
	}
	return addr
}

// Open registers the socket under addr. Port 0 picks the next free port on 127.0.0.1.
// A closed socket delivers nothing after reopening.
func (s *Socket) Open(addr netip.AddrPort) (netip.AddrPort, error) {
	s.network.mu.Lock()
	defer s.network.mu.Unlock()

	if addr.Port() == 0 {
		port := uint16(40000)
		for {
			candidate := netip.AddrPortFrom(netip.MustParseAddr("127.0.0.1"), port)
			if _, taken := s.network.sockets[candidate]; !taken {
				addr = candidate
				break
			}
			port++
		}
	}
	if _, taken := s.network.sockets[addr]; taken {
		return netip.AddrPort{}, errors.New("address already in use")
	}

	s.network.sockets[addr] = s

	s.mu.Lock()
	s.addr = addr
	s.open = true
	s.mu.Unlock()

	return addr, nil
}

func (s *Socket) SendTo(addr netip.AddrPort, data []byte) error {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return errors.New("socket is not open")
	}
	from := s.addr
	filter := s.filter
	s.sent = append(s.sent, bytes.Clone(data))
	s.mu.Unlock()

	if filter != nil && !filter(addr, data) {
		return nil
	}

	s.network.deliver(from, addr, data)
	return nil
}

func (s *Socket) Close() error {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return nil
	}
	addr := s.addr
	s.open = false
	s.mu.Unlock()

	s.network.mu.Lock()
	delete(s.network.sockets, addr)
	s.network.mu.Unlock()

	s.observable.Close()
	return nil
}

func (s *Socket) Subscribe() chan *sock.Packet {
	return s.observable.Subscribe()
}

func (s *Socket) Unsubscribe(ch chan *sock.Packet) {
	s.observable.Unsubscribe(ch)
}

var _ sock.Socket = (*Socket)(nil)
