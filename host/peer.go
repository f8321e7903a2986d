package host

import (
	"errors"
	"net"

	"github.com/anon55555/mt/rudp"
	"github.com/klauspost/compress/s2"
)

// A peer occupies one slot of the Host's peer table
type peer struct {
	*rudp.Peer

	id   int
	addr net.Addr
	data interface{}
	out  []outPkt
}

type outPkt struct {
	ch    uint8
	frame []byte
	unrel bool
}

// acceptLoop hands every new rudp peer a slot
// until the listener is closed
func (h *Host) acceptLoop() {
	defer h.wg.Done()

	for {
		rp, err := h.l.Accept()
		if err != nil {
			if errors.Is(err, rudp.ErrClosed) {
				return
			}

			// Accept has to be drained until the socket is gone
			if !h.closed.Load() {
				h.log.WithError(err).Warn("accept")
			}
			continue
		}

		log := h.log.WithField("addr", rp.Addr().String())

		if h.accept != nil && !h.accept(rp.Addr()) {
			log.Info("connection rejected")
			reject(rp)
			continue
		}

		p, err := h.attach(rp)
		if err != nil {
			log.WithError(err).Info("connection rejected")
			reject(rp)
			continue
		}

		log.WithField("peer", p.id).Info("connected")

		go h.recvLoop(p)
	}
}

func reject(rp *rudp.Peer) {
	rp.SendDisco(0, true)
	rp.Close()
}

// attach puts rp into the lowest free slot and queues its connect Event
func (h *Host) attach(rp *rudp.Peer) (*peer, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed.Load() {
		return nil, ErrClosed
	}

	for i, p := range h.peers {
		if p != nil {
			continue
		}

		p = &peer{Peer: rp, id: i, addr: rp.Addr()}
		h.peers[i] = p
		h.events.push(Event{Type: EventConnect, Peer: i, Addr: p.addr})

		h.wg.Add(1)
		return p, nil
	}

	return nil, ErrPlayerLimitReached
}

// detach frees the slot of p and queues its disconnect Event.
// Nothing is queued if the slot was already taken away by
// DisconnectNow or Close.
func (h *Host) detach(p *peer) {
	msg := "disconnected"
	if p.TimedOut() {
		msg += " (timed out)"
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.peers[p.id] != p {
		return
	}

	h.peers[p.id] = nil
	h.events.push(Event{Type: EventDisconnect, Peer: p.id})

	h.log.WithField("peer", p.id).WithField("addr", p.addr.String()).Info(msg)
}

// recvLoop turns the packets of p into Events until p disconnects
func (h *Host) recvLoop(p *peer) {
	defer h.wg.Done()

	for {
		pkt, err := p.Recv()
		if err != nil {
			select {
			case <-p.Disco():
				h.detach(p)
				return
			default:
			}

			h.log.WithError(err).WithField("peer", p.id).Debug("receive")
			continue
		}

		h.deliver(p, pkt)
	}
}

func (h *Host) deliver(p *peer, pkt rudp.Pkt) {
	log := h.log.WithField("peer", p.id)

	if len(pkt.Data) == 0 {
		log.Debug("empty frame")
		return
	}

	var data []byte
	switch pkt.Data[0] {
	case frameHello:
		return
	case frameData:
		data = pkt.Data[1:]
	case frameCompressed:
		d, err := s2.Decode(nil, pkt.Data[1:])
		if err != nil {
			log.WithError(err).Debug("corrupt compressed frame")
			return
		}
		data = d
	default:
		log.WithField("frame", pkt.Data[0]).Debug("unknown frame")
		return
	}

	if pkt.Unrel && !allow(h.in, len(pkt.Data)) {
		log.Debug("incoming bandwidth exceeded, dropping unreliable packet")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.peers[p.id] != p {
		return
	}

	h.events.push(Event{
		Type:    EventReceive,
		Peer:    p.id,
		Channel: pkt.ChNo,
		Packet:  NewPacket(data, !pkt.Unrel),
	})
}

// lookup returns the peer in slot id, h.mu must be held
func (h *Host) lookup(id int) (*peer, error) {
	if h.closed.Load() {
		return nil, ErrClosed
	}

	if id < 0 || id >= len(h.peers) {
		return nil, ErrInvalidPeer
	}

	p := h.peers[id]
	if p == nil {
		return nil, ErrNotConnected
	}

	return p, nil
}

// Connected reports whether slot id holds a live connection
func (h *Host) Connected(id int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := h.lookup(id)
	return err == nil
}

// Addr returns the remote address of the peer in slot id
func (h *Host) Addr(id int) (net.Addr, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, err := h.lookup(id)
	if err != nil {
		return nil, err
	}

	return p.addr, nil
}

// SetPeerData attaches data to the peer in slot id.
// It is dropped together with the slot.
func (h *Host) SetPeerData(id int, data interface{}) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, err := h.lookup(id)
	if err != nil {
		return err
	}

	p.data = data
	return nil
}

// PeerData returns what SetPeerData attached to slot id
func (h *Host) PeerData(id int) interface{} {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, err := h.lookup(id)
	if err != nil {
		return nil
	}

	return p.data
}

// DisconnectNow drops the peer in slot id without waiting for it
// to acknowledge. No disconnect Event is queued for it and Events
// still queued for the slot are discarded.
func (h *Host) DisconnectNow(id int) error {
	h.mu.Lock()
	p, err := h.lookup(id)
	if err != nil {
		h.mu.Unlock()
		return err
	}
	h.peers[id] = nil
	dropped := h.events.drop(id)
	h.mu.Unlock()

	p.SendDisco(0, true)
	if err := p.Close(); err != nil {
		h.log.WithError(err).WithField("peer", id).Debug("close peer")
	}

	h.log.WithField("peer", id).WithField("addr", p.addr.String()).WithField("dropped", dropped).Info("disconnected by host")

	return nil
}
