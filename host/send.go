package host

import (
	"time"

	"github.com/anon55555/mt/rudp"
	"github.com/klauspost/compress/s2"
	"golang.org/x/time/rate"
)

// Every rudp packet starts with one of these
const (
	frameHello uint8 = iota
	frameData
	frameCompressed
)

// Payloads shorter than this are never compressed
const minCompressSize = 64

// Compress enables or disables compression of outgoing payloads.
// Incoming payloads are decoded either way.
func (h *Host) Compress(enabled bool) { h.compress.Store(enabled) }

func (h *Host) frame(data []byte) []byte {
	if h.compress.Load() && len(data) >= minCompressSize {
		enc := s2.Encode(nil, data)
		if len(enc) < len(data) {
			return append([]byte{frameCompressed}, enc...)
		}
	}

	frame := make([]byte, 1+len(data))
	frame[0] = frameData
	copy(frame[1:], data)

	return frame
}

func (h *Host) checkChannel(ch uint8) error {
	if int(ch) >= h.channels {
		return ErrInvalidChannel
	}

	return nil
}

// Send queues data for the peer in slot id.
// It is transmitted by the next Flush or Service.
func (h *Host) Send(id int, ch uint8, data []byte, reliable bool) error {
	if err := h.checkChannel(ch); err != nil {
		return err
	}

	frame := h.frame(data)

	h.mu.Lock()
	defer h.mu.Unlock()

	p, err := h.lookup(id)
	if err != nil {
		return err
	}

	p.out = append(p.out, outPkt{ch: ch, frame: frame, unrel: !reliable})
	return nil
}

// Broadcast queues data for every connected peer
func (h *Host) Broadcast(ch uint8, data []byte, reliable bool) error {
	if err := h.checkChannel(ch); err != nil {
		return err
	}

	if h.closed.Load() {
		return ErrClosed
	}

	frame := h.frame(data)

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, p := range h.peers {
		if p != nil {
			p.out = append(p.out, outPkt{ch: ch, frame: frame, unrel: !reliable})
		}
	}

	return nil
}

type pending struct {
	p *peer
	outPkt
}

// Flush transmits queued packets.
// Packets held back by the outgoing bandwidth limit stay queued.
// Each Flush starts at the next slot so every peer gets to go first.
func (h *Host) Flush() error {
	if h.closed.Load() {
		return ErrClosed
	}

	h.flushMu.Lock()
	defer h.flushMu.Unlock()

	var batch []pending
	limited := false

	h.mu.Lock()
	start := h.nextFlush
	for i := range h.peers {
		p := h.peers[(start+i)%len(h.peers)]
		if p == nil {
			continue
		}

		n := 0
		for _, pkt := range p.out {
			if limited || !allow(h.out, len(pkt.frame)) {
				limited = true
				break
			}

			batch = append(batch, pending{p: p, outPkt: pkt})
			n++
		}

		if n == len(p.out) {
			p.out = nil
		} else {
			p.out = p.out[n:]
		}
	}
	h.nextFlush = (start + 1) % len(h.peers)
	h.mu.Unlock()

	for _, b := range batch {
		_, err := b.p.Send(rudp.Pkt{
			Data:  b.frame,
			ChNo:  b.ch,
			Unrel: b.unrel,
		})
		if err != nil {
			h.log.WithError(err).WithField("peer", b.p.id).Debug("send")
		}
	}

	return nil
}

func newLimiter(bandwidth uint32) *rate.Limiter {
	if bandwidth == 0 {
		return nil
	}

	return rate.NewLimiter(rate.Limit(bandwidth), int(bandwidth))
}

// allow reports whether n bytes fit into the budget of l.
// A nil Limiter is unlimited. Packets larger than the burst
// are charged the whole burst so they can still pass.
func allow(l *rate.Limiter, n int) bool {
	if l == nil || l.Limit() == rate.Inf {
		return true
	}

	if b := l.Burst(); n > b {
		n = b
	}

	return l.AllowN(time.Now(), n)
}
