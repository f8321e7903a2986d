package host

import (
	"errors"
	"net"
	"sync"

	"go.uber.org/atomic"
)

// Traffic is the amount of UDP traffic a Host has seen,
// protocol overhead included
type Traffic struct {
	SentData        uint64
	ReceivedData    uint64
	SentPackets     uint64
	ReceivedPackets uint64
}

// countingConn counts every datagram that passes through it
type countingConn struct {
	net.PacketConn

	sentData atomic.Uint64
	recvData atomic.Uint64
	sentPkts atomic.Uint64
	recvPkts atomic.Uint64

	closeOnce sync.Once
	closeErr  error
}

func (c *countingConn) ReadFrom(b []byte) (int, net.Addr, error) {
	n, addr, err := c.PacketConn.ReadFrom(b)
	if err == nil {
		c.recvData.Add(uint64(n))
		c.recvPkts.Inc()
	}

	return n, addr, err
}

func (c *countingConn) WriteTo(b []byte, addr net.Addr) (int, error) {
	n, err := c.PacketConn.WriteTo(b, addr)
	if err == nil {
		c.sentData.Add(uint64(n))
		c.sentPkts.Inc()
	}

	return n, err
}

// Close may be called by rudp and by the Host, only the first call counts
func (c *countingConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.PacketConn.Close()
		if errors.Is(c.closeErr, net.ErrClosed) {
			c.closeErr = nil
		}
	})

	return c.closeErr
}

// take returns the counters and resets them to zero.
// Each counter is swapped atomically so nothing counted
// concurrently is lost.
func (c *countingConn) take() Traffic {
	return Traffic{
		SentData:        c.sentData.Swap(0),
		ReceivedData:    c.recvData.Swap(0),
		SentPackets:     c.sentPkts.Swap(0),
		ReceivedPackets: c.recvPkts.Swap(0),
	}
}
