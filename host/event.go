package host

import (
	"net"
	"sync"
)

// An EventType is the kind of an Event returned by Service
type EventType uint8

const (
	// EventNone means no event was available
	EventNone EventType = iota

	// EventConnect is queued when a peer has been assigned a slot
	EventConnect

	// EventReceive carries a Packet received from a peer
	EventReceive

	// EventDisconnect is queued when a peer's connection ends
	// for any reason other than DisconnectNow
	EventDisconnect
)

func (t EventType) String() string {
	switch t {
	case EventNone:
		return "none"
	case EventConnect:
		return "connect"
	case EventReceive:
		return "receive"
	case EventDisconnect:
		return "disconnect"
	}

	return "unknown"
}

// An Event is one occurrence yielded by Service.
// Peer is the slot index of the peer the Event belongs to.
// Addr is only set for EventConnect,
// Channel and Packet only for EventReceive.
type Event struct {
	Type    EventType
	Peer    int
	Addr    net.Addr
	Channel uint8
	Packet  *Packet
}

// A Packet is a received payload owned by the Host until Destroy is called
type Packet struct {
	Data     []byte
	Reliable bool
}

var pktPool = sync.Pool{
	New: func() interface{} { return new(Packet) },
}

// NewPacket returns a pooled Packet holding a copy of data
func NewPacket(data []byte, reliable bool) *Packet {
	pkt := pktPool.Get().(*Packet)
	pkt.Data = append(pkt.Data[:0], data...)
	pkt.Reliable = reliable

	return pkt
}

// Destroy hands the Packet back to the Host.
// Neither the Packet nor its Data may be used afterwards.
func (pkt *Packet) Destroy() {
	pkt.Data = pkt.Data[:0]
	pkt.Reliable = false
	pktPool.Put(pkt)
}

// queue is an unbounded FIFO of Events with a wakeup signal
type queue struct {
	mu     sync.Mutex
	evs    []Event
	notify chan struct{}
}

func newQueue() *queue {
	return &queue{notify: make(chan struct{}, 1)}
}

func (q *queue) push(ev Event) {
	q.mu.Lock()
	q.evs = append(q.evs, ev)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *queue) pop() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.evs) == 0 {
		return Event{}, false
	}

	ev := q.evs[0]
	q.evs[0] = Event{}
	q.evs = q.evs[1:]
	if len(q.evs) == 0 {
		q.evs = nil
	}

	return ev, true
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.evs)
}

// drop removes every Event queued for peer.
// Packets of dropped receive Events are destroyed.
func (q *queue) drop(peer int) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.evs[:0]
	n := 0
	for _, ev := range q.evs {
		if ev.Peer != peer {
			kept = append(kept, ev)
			continue
		}

		if ev.Packet != nil {
			ev.Packet.Destroy()
		}
		n++
	}

	for i := len(kept); i < len(q.evs); i++ {
		q.evs[i] = Event{}
	}

	q.evs = kept
	if len(q.evs) == 0 {
		q.evs = nil
	}

	return n
}
