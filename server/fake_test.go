package server

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/HimbeerserverDE/peerhost/host"
)

var errFakeService = errors.New("service failed")

type sentPkt struct {
	peer     int
	ch       uint8
	data     string
	reliable bool
}

// fakeTransport replays scripted Events and records what the Server does
type fakeTransport struct {
	mu sync.Mutex

	s *Server

	events     []host.Event
	serviceErr error
	perCycle   host.Traffic
	takes      int
	peers      int
	connected  map[int]bool
	data       map[int]interface{}
	sent       []sentPkt
	flushes    int
	compress   bool
	closed     bool

	blockingPolls        int
	blockedWithGuardHeld bool
}

func newFake(peers int) *fakeTransport {
	return &fakeTransport{
		peers:     peers,
		connected: make(map[int]bool),
		data:      make(map[int]interface{}),
	}
}

// newFakeServer returns a Server with two channels driving a fakeTransport
func newFakeServer(peers int) (*Server, *fakeTransport) {
	f := newFake(peers)
	s := NewWithTransport(f, Config{Channels: 2})
	f.s = s

	return s, f
}

// queue appends Events like the host does: a slot is taken when its
// connect is queued and freed when its disconnect is queued
func (f *fakeTransport) queue(evs ...host.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, ev := range evs {
		switch ev.Type {
		case host.EventConnect:
			f.connected[ev.Peer] = true
		case host.EventDisconnect:
			delete(f.connected, ev.Peer)
			delete(f.data, ev.Peer)
		}
	}

	f.events = append(f.events, evs...)
}

// guardFree reports whether the Server's lock is free right now
func (f *fakeTransport) guardFree() bool {
	if !f.s.mu.TryLock() {
		return false
	}
	f.s.mu.Unlock()

	return true
}

func (f *fakeTransport) Service(timeout time.Duration) (host.Event, error) {
	if timeout > 0 {
		held := !f.guardFree()

		f.mu.Lock()
		f.blockingPolls++
		if held {
			f.blockedWithGuardHeld = true
		}
		f.mu.Unlock()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.serviceErr != nil {
		return host.Event{}, f.serviceErr
	}

	if len(f.events) == 0 {
		return host.Event{}, nil
	}

	ev := f.events[0]
	f.events = f.events[1:]

	return ev, nil
}

func (f *fakeTransport) lookup(peer int) error {
	if peer < 0 || peer >= f.peers {
		return host.ErrInvalidPeer
	}
	if !f.connected[peer] {
		return host.ErrNotConnected
	}

	return nil
}

func (f *fakeTransport) Send(peer int, ch uint8, data []byte, reliable bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.lookup(peer); err != nil {
		return err
	}

	f.sent = append(f.sent, sentPkt{peer: peer, ch: ch, data: string(data), reliable: reliable})
	return nil
}

func (f *fakeTransport) Broadcast(ch uint8, data []byte, reliable bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for peer := 0; peer < f.peers; peer++ {
		if f.connected[peer] {
			f.sent = append(f.sent, sentPkt{peer: peer, ch: ch, data: string(data), reliable: reliable})
		}
	}

	return nil
}

func (f *fakeTransport) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.flushes++
	return nil
}

func (f *fakeTransport) DisconnectNow(peer int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.lookup(peer); err != nil {
		return err
	}

	delete(f.connected, peer)
	delete(f.data, peer)

	kept := f.events[:0]
	for _, ev := range f.events {
		if ev.Peer != peer {
			kept = append(kept, ev)
			continue
		}
		if ev.Packet != nil {
			ev.Packet.Destroy()
		}
	}
	f.events = kept

	return nil
}

func (f *fakeTransport) Compress(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.compress = enabled
}

func (f *fakeTransport) SetPeerData(peer int, data interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.lookup(peer); err != nil {
		return err
	}

	f.data[peer] = data
	return nil
}

func (f *fakeTransport) PeerData(peer int) interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.data[peer]
}

func (f *fakeTransport) PeerCount() int { return f.peers }

func (f *fakeTransport) TakeTraffic() host.Traffic {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.takes++
	return f.perCycle
}

func (f *fakeTransport) LocalAddr() net.Addr {
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9000}
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	return nil
}

func connectEvent(peer int, ip string) host.Event {
	return host.Event{
		Type: host.EventConnect,
		Peer: peer,
		Addr: &net.UDPAddr{IP: net.ParseIP(ip), Port: 40000 + peer},
	}
}

func receiveEvent(peer int, data string, ch uint8) host.Event {
	return host.Event{
		Type:    host.EventReceive,
		Peer:    peer,
		Channel: ch,
		Packet:  host.NewPacket([]byte(data), true),
	}
}

func disconnectEvent(peer int) host.Event {
	return host.Event{Type: host.EventDisconnect, Peer: peer}
}
