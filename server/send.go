package server

import (
	"fmt"

	"github.com/HimbeerserverDE/peerhost/host"
)

func (s *Server) checkChannel(ch uint8) error {
	if int(ch) >= s.channels {
		return fmt.Errorf("%w: %d", host.ErrInvalidChannel, ch)
	}

	return nil
}

// Send queues data for peer on channel ch.
// It is transmitted by the next Flush or Update.
func (s *Server) Send(peer int, data []byte, reliable bool, ch uint8) error {
	if err := s.checkChannel(ch); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.transport.Send(peer, ch, data, reliable); err != nil {
		return fmt.Errorf("send to peer %d: %w", peer, err)
	}

	return nil
}

// Broadcast queues data for every connected peer
func (s *Server) Broadcast(data []byte, reliable bool, ch uint8) error {
	if err := s.checkChannel(ch); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.transport.Broadcast(ch, data, reliable)
}

// Flush transmits all queued packets now
func (s *Server) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.transport.Flush()
}

// SendQueuedPackets is an alias for Flush
func (s *Server) SendQueuedPackets() error { return s.Flush() }

// DisconnectClient drops peer immediately and calls the
// disconnect handler before returning.
// Events still queued for peer are discarded. If its connect was
// never dispatched, no handler is called.
func (s *Server) DisconnectClient(peer int) error {
	s.mu.Lock()

	if err := s.transport.DisconnectNow(peer); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("disconnect peer %d: %w", peer, err)
	}

	if !s.release(peer) {
		s.mu.Unlock()
		return nil
	}

	s.log.WithField("peer", peer).Debug("client disconnected by server")

	if h := s.disconnectHandler(); h != nil {
		s.unlocked(func() { h(peer) })
	}

	s.mu.Unlock()
	return nil
}
