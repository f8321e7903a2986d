/*
Package host is a reliable UDP host built on rudp.
It keeps a fixed table of peer slots and turns everything
that happens on its socket into Events that are polled with Service.
*/
package host

import (
	"errors"
	"fmt"
	"io/ioutil"
	"net"
	"sync"
	"time"

	"github.com/anon55555/mt/rudp"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"golang.org/x/time/rate"
)

var (
	ErrClosed              = errors.New("use of closed host")
	ErrInvalidPeer         = errors.New("peer id out of range")
	ErrNotConnected        = errors.New("peer not connected")
	ErrInvalidChannel      = errors.New("channel out of range")
	ErrInvalidPeerCount    = errors.New("peer count must be at least 1")
	ErrInvalidChannelCount = fmt.Errorf("channel count must be between 1 and %d", int(rudp.ChannelCount))
	ErrPlayerLimitReached  = errors.New("player limit reached")
	ErrHandshakeTimeout    = errors.New("handshake timed out")
)

// closeTimeout bounds how long Close waits for the peer goroutines
const closeTimeout = 2 * time.Second

// Config describes a Host
type Config struct {
	// Addr is the local UDP address, ":0" lets the OS choose
	Addr string

	// Peers is the number of peer slots
	Peers int

	// Channels is the number of channels, at most rudp.ChannelCount
	Channels int

	// Bandwidth limits in bytes per second, 0 means unlimited
	IncomingBandwidth uint32
	OutgoingBandwidth uint32

	// Accept is consulted for every new peer if set.
	// Returning false disconnects the peer before it gets a slot.
	Accept func(addr net.Addr) bool

	Log logrus.FieldLogger
}

func (cfg Config) validate() error {
	if cfg.Peers < 1 {
		return ErrInvalidPeerCount
	}

	if cfg.Channels < 1 || cfg.Channels > int(rudp.ChannelCount) {
		return ErrInvalidChannelCount
	}

	return nil
}

// A Host owns a UDP socket and the peers connected through it
type Host struct {
	conn     *countingConn
	l        *rudp.Listener
	log      logrus.FieldLogger
	accept   func(net.Addr) bool
	channels int

	mu    sync.Mutex
	peers []*peer

	// nextFlush is the slot the next Flush starts at, guarded by flushMu
	flushMu   sync.Mutex
	nextFlush int
	compress  atomic.Bool
	in, out   *rate.Limiter

	events *queue
	closed atomic.Bool
	done   chan struct{}
	wg     sync.WaitGroup
}

func newHost(pc net.PacketConn, cfg Config) *Host {
	log := cfg.Log
	if log == nil {
		l := logrus.New()
		l.Out = ioutil.Discard
		log = l
	}

	h := &Host{
		conn:     &countingConn{PacketConn: pc},
		log:      log,
		accept:   cfg.Accept,
		channels: cfg.Channels,
		peers:    make([]*peer, cfg.Peers),
		in:       newLimiter(cfg.IncomingBandwidth),
		out:      newLimiter(cfg.OutgoingBandwidth),
		events:   newQueue(),
		done:     make(chan struct{}),
	}

	return h
}

// Listen binds to cfg.Addr and starts accepting peers
func Listen(cfg Config) (*Host, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	pc, err := net.ListenPacket("udp", cfg.Addr)
	if err != nil {
		return nil, err
	}

	h := newHost(pc, cfg)
	h.l = rudp.Listen(h.conn)

	h.wg.Add(1)
	go h.acceptLoop()

	h.log.WithField("addr", pc.LocalAddr().String()).Info("listening")

	return h, nil
}

// Dial connects to the host at addr and returns a client Host
// with a single slot. The connect Event for slot 0 is queued
// once the server has acknowledged the handshake.
// cfg.Peers is ignored, an empty cfg.Addr binds to any port.
func Dial(addr string, cfg Config, timeout time.Duration) (*Host, error) {
	cfg.Peers = 1
	if cfg.Addr == "" {
		cfg.Addr = ":0"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}

	pc, err := net.ListenPacket("udp", cfg.Addr)
	if err != nil {
		return nil, err
	}

	h := newHost(pc, cfg)
	rp := rudp.Connect(h.conn, raddr)

	ack, err := rp.Send(rudp.Pkt{Data: []byte{frameHello}})
	if err != nil {
		rp.Close()
		h.conn.Close()
		return nil, err
	}

	select {
	case <-time.After(timeout):
		rp.SendDisco(0, true)
		rp.Close()
		h.conn.Close()

		return nil, fmt.Errorf("%w: server at %s is unreachable", ErrHandshakeTimeout, addr)
	case <-ack:
	}

	p, err := h.attach(rp)
	if err != nil {
		rp.Close()
		h.conn.Close()
		return nil, err
	}

	go h.recvLoop(p)

	h.log.WithField("addr", raddr.String()).Info("connected")

	return h, nil
}

// Service flushes queued packets and returns the next Event.
// If none is queued it waits up to timeout for one.
// A timeout of 0 never blocks.
func (h *Host) Service(timeout time.Duration) (Event, error) {
	if h.closed.Load() {
		return Event{}, ErrClosed
	}

	if err := h.Flush(); err != nil {
		return Event{}, err
	}

	if ev, ok := h.events.pop(); ok {
		return ev, nil
	}

	if timeout <= 0 {
		return Event{}, nil
	}

	t := time.NewTimer(timeout)
	defer t.Stop()

	for {
		select {
		case <-h.events.notify:
			if ev, ok := h.events.pop(); ok {
				return ev, nil
			}
		case <-t.C:
			ev, _ := h.events.pop()
			return ev, nil
		case <-h.done:
			return Event{}, ErrClosed
		}
	}
}

// Pending reports how many Events are waiting to be serviced
func (h *Host) Pending() int { return h.events.len() }

// TakeTraffic returns the traffic since the last call and resets it
func (h *Host) TakeTraffic() Traffic { return h.conn.take() }

// PeerCount returns the number of peer slots
func (h *Host) PeerCount() int { return len(h.peers) }

// ChannelCount returns the number of channels
func (h *Host) ChannelCount() int { return h.channels }

// LocalAddr returns the address the Host is bound to
func (h *Host) LocalAddr() net.Addr { return h.conn.LocalAddr() }

// Close disconnects all peers and releases the socket.
// Events that have not been serviced are dropped.
func (h *Host) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	close(h.done)

	h.mu.Lock()
	peers := make([]*peer, 0, len(h.peers))
	for i, p := range h.peers {
		if p != nil {
			peers = append(peers, p)
			h.peers[i] = nil
		}
	}
	h.mu.Unlock()

	var err error
	for _, p := range peers {
		p.SendDisco(0, true)
		if perr := p.Close(); perr != nil && !errors.Is(perr, rudp.ErrClosed) {
			err = multierr.Append(err, perr)
		}
	}

	// Closing the socket also ends the listener
	err = multierr.Append(err, h.conn.Close())

	stopped := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(closeTimeout):
		h.log.Warn("peer goroutines still running after close")
	}

	h.log.Info("closed")

	return err
}
