// Package sock manages the UDP socket. The socket can send and receive UDP datagrams.
// Received datagrams are published to every subscriber.
package sock

import (
	"errors"
	"net"
	"net/netip"
	"sync"

	"golang.org/x/net/ipv4"

	"bjoernblessin.de/rudpfile/common"
	"bjoernblessin.de/rudpfile/util/assert"
	"bjoernblessin.de/rudpfile/util/logger"
	"bjoernblessin.de/rudpfile/util/observer"
)

type Socket interface {
	// GetLocalAddress returns the local address of the socket.
	// It errors if the socket is not opened.
	GetLocalAddress() (netip.AddrPort, error)

	// MustGetLocalAddress returns the local address of the socket.
	// It panics if the socket is not opened.
	MustGetLocalAddress() netip.AddrPort

	// SendTo sends a byte array to the specified address.
	// Open() must be called before using this function.
	SendTo(addr netip.AddrPort, data []byte) error

	// Open binds the socket to the given local address. Port 0 picks a random port.
	// Returns the actual local address.
	Open(addr netip.AddrPort) (netip.AddrPort, error)

	// Close closes the socket if it's open.
	// Every subscriber channel is closed. Subscribe again after reopening.
	Close() error

	// Subscribe registers an observer to receive datagrams from the socket.
	// The observer will receive all datagrams that are received by the socket.
	Subscribe() chan *Packet

	// Unsubscribe removes an observer and closes its channel.
	Unsubscribe(ch chan *Packet)
}

// Packet is one received datagram. Data must not be modified, it is shared between subscribers.
type Packet struct {
	Addr netip.AddrPort
	Data []byte
}

type Option func(*udpSocket)

// WithTOS sets the IPv4 type-of-service byte of outgoing datagrams.
func WithTOS(tos int) Option {
	return func(s *udpSocket) {
		s.tos = tos
	}
}

type udpSocket struct {
	mu               sync.RWMutex
	udpSocket        *net.UDPConn
	tos              int
	packetObservable *observer.Observable[*Packet]
	closed           bool
}

func NewUDPSocket(opts ...Option) *udpSocket {
	s := &udpSocket{
		packetObservable: observer.NewObservable[*Packet](common.SOCKET_RECEIVE_BUFFER_SIZE),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *udpSocket) GetLocalAddress() (netip.AddrPort, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.udpSocket == nil {
		return netip.AddrPort{}, errors.New("UDP socket is not initialized")
	}
	return s.udpSocket.LocalAddr().(*net.UDPAddr).AddrPort(), nil
}

func (s *udpSocket) MustGetLocalAddress() netip.AddrPort {
	addr, err := s.GetLocalAddress()
	assert.IsNil(err)
	return addr
}

// Subscribe returns a channel receiving every incoming datagram.
// The channel is closed when the socket is closed.
func (s *udpSocket) Subscribe() chan *Packet {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.packetObservable.Subscribe()
}

func (s *udpSocket) Unsubscribe(ch chan *Packet) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	s.packetObservable.Unsubscribe(ch)
}

func (s *udpSocket) Open(addr netip.AddrPort) (netip.AddrPort, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	assert.Assert(s.udpSocket == nil, "UDP socket is already initialized. Call Close() before calling Open() again.")

	socket, err := net.ListenUDP("udp4", net.UDPAddrFromAddrPort(addr))
	if err != nil {
		return netip.AddrPort{}, err
	}

	if s.tos != 0 {
		err = ipv4.NewConn(socket).SetTOS(s.tos)
		if err != nil {
			logger.Warnf("Failed to set TOS 0x%02X on UDP socket: %v", s.tos, err)
		}
	}

	if s.closed {
		s.packetObservable = observer.NewObservable[*Packet](common.SOCKET_RECEIVE_BUFFER_SIZE)
		s.closed = false
	}
	s.udpSocket = socket

	go s.readLoop(socket, s.packetObservable)

	return socket.LocalAddr().(*net.UDPAddr).AddrPort(), nil
}

func (s *udpSocket) readLoop(socket *net.UDPConn, packets *observer.Observable[*Packet]) {
	for {
		buffer := make([]byte, common.UDP_BUFFER_SIZE_BYTES)
		n, addr, err := socket.ReadFromUDPAddrPort(buffer)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				// Socket is closed, exit the loop
				return
			}

			logger.Warnf("Failed to read from UDP socket: %v", err)
			continue
		}

		// IPv4 peers may show up as IPv4-mapped IPv6 addresses
		addr = netip.AddrPortFrom(addr.Addr().Unmap(), addr.Port())

		packets.NotifyObservers(&Packet{addr, buffer[:n]})
	}
}

func (s *udpSocket) SendTo(addr netip.AddrPort, data []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	assert.IsNotNil(s.udpSocket, "UDP socket is not initialized.")

	_, err := s.udpSocket.WriteToUDPAddrPort(data, addr)
	if err != nil {
		return err
	}

	return nil
}

func (s *udpSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.udpSocket == nil {
		return nil
	}

	err := s.udpSocket.Close()
	if err != nil {
		return err
	}

	s.udpSocket = nil
	logger.Debugf("UDP socket closed, ending %d subscriptions", s.packetObservable.SubscriberCount())
	s.packetObservable.Close()
	s.closed = true

	return nil
}
