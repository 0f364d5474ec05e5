package sock

import (
	"bytes"
	"math/rand/v2"
	"net/netip"
	"sync"

	"bjoernblessin.de/rudpfile/util/logger"
)

// LossConfig configures the faults injected by a LossySocket.
// Every rate is the independent probability for one outgoing datagram.
type LossConfig struct {
	DropRate      float64
	CorruptRate   float64
	DuplicateRate float64
	Seed          uint64 // 0 picks a random seed
}

// LossStats counts the injected faults.
type LossStats struct {
	Sent       int
	Dropped    int
	Corrupted  int
	Duplicated int
}

// LossySocket wraps a Socket and simulates an unreliable network on the sending side:
// datagrams are dropped, get a single bit flipped or are sent twice.
type LossySocket struct {
	Socket
	config LossConfig

	mu    sync.Mutex
	rng   *rand.Rand
	stats LossStats
}

func NewLossySocket(inner Socket, config LossConfig) *LossySocket {
	seed := config.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	return &LossySocket{
		Socket: inner,
		config: config,
		rng:    rand.New(rand.NewPCG(seed, seed>>1|1)),
	}
}

func (s *LossySocket) SendTo(addr netip.AddrPort, data []byte) error {
	s.mu.Lock()
	s.stats.Sent++

	if s.rng.Float64() < s.config.DropRate {
		s.stats.Dropped++
		s.mu.Unlock()
		logger.Tracef("Dropping %d byte datagram to %s (fault injection)", len(data), addr)
		return nil
	}

	if len(data) > 0 && s.rng.Float64() < s.config.CorruptRate {
		s.stats.Corrupted++
		data = bytes.Clone(data)
		bit := s.rng.IntN(len(data) * 8)
		data[bit/8] ^= 1 << (bit % 8)
		logger.Tracef("Flipping bit %d of datagram to %s (fault injection)", bit, addr)
	}

	duplicate := s.rng.Float64() < s.config.DuplicateRate
	if duplicate {
		s.stats.Duplicated++
	}
	s.mu.Unlock()

	err := s.Socket.SendTo(addr, data)
	if err != nil || !duplicate {
		return err
	}

	return s.Socket.SendTo(addr, data)
}

// Stats returns a snapshot of the injected faults.
func (s *LossySocket) Stats() LossStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stats
}
