package server

import (
	"net"
	"time"

	"github.com/HimbeerserverDE/peerhost/host"
)

// Update dispatches every Event that is available.
// Only the first poll waits, for at most timeout.
// The traffic totals are updated afterwards,
// even if a handler panics.
func (s *Server) Update(timeout time.Duration) error {
	defer s.account()

	s.mu.Lock()

	ev, err := s.poll(timeout)
	for err == nil && ev.Type != host.EventNone {
		s.dispatch(ev)
		ev, err = s.transport.Service(0)
	}

	s.mu.Unlock()

	if err != nil {
		s.log.WithError(err).Debug("update")
	}

	return err
}

// poll returns the first Event of an Update.
// s.mu is released while waiting for the transport.
func (s *Server) poll(timeout time.Duration) (host.Event, error) {
	ev, err := s.transport.Service(0)
	if err != nil || ev.Type != host.EventNone || timeout <= 0 {
		return ev, err
	}

	s.mu.Unlock()
	ev, err = s.transport.Service(timeout)
	s.mu.Lock()

	return ev, err
}

// dispatch handles one Event, s.mu must be held.
// Only slots whose connect was dispatched get receive
// and disconnect handlers.
func (s *Server) dispatch(ev host.Event) {
	id := s.resolve(ev)
	if id < 0 || id >= len(s.connected) {
		s.log.WithField("peer", id).WithField("event", ev.Type).Warn("event for unknown slot")
		if ev.Packet != nil {
			ev.Packet.Destroy()
		}
		return
	}

	switch ev.Type {
	case host.EventConnect:
		if s.connected[id] {
			s.log.WithField("peer", id).Warn("duplicate connect")
			return
		}
		s.connected[id] = true
		s.clients++

		ip := remoteIP(ev.Addr)

		s.log.WithField("peer", id).WithField("ip", ip).Debug("client connected")

		if h := s.connectHandler(); h != nil {
			s.unlocked(func() { h(id, ip) })
		}
	case host.EventReceive:
		data := make([]byte, len(ev.Packet.Data))
		copy(data, ev.Packet.Data)
		ev.Packet.Destroy()

		if !s.connected[id] {
			s.log.WithField("peer", id).Debug("packet for a slot that is not connected")
			return
		}

		if h := s.receiveHandler(); h != nil {
			s.unlocked(func() { h(id, data, ev.Channel) })
		}
	case host.EventDisconnect:
		if !s.release(id) {
			return
		}

		// The transport drops the user data with the slot.
		s.log.WithField("peer", id).Debug("client disconnected")

		if h := s.disconnectHandler(); h != nil {
			s.unlocked(func() { h(id) })
		}
	}
}

// release marks slot id free and reports whether it was connected,
// s.mu must be held
func (s *Server) release(id int) bool {
	if !s.connected[id] {
		return false
	}

	s.connected[id] = false
	s.clients--

	return true
}

// resolve returns the peer identifier of ev
func (s *Server) resolve(ev host.Event) int { return ev.Peer }

func remoteIP(addr net.Addr) string {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return a.IP.String()
	case nil:
		return ""
	}

	ip, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}

	return ip
}
