package main

import (
	"fmt"

	"github.com/HimbeerserverDE/peerhost/server"
	"github.com/sirupsen/logrus"
)

const (
	ModeEcho      = "echo"
	ModeBroadcast = "broadcast"
)

// session is what the daemon attaches to each peer
type session struct {
	ip      string
	packets uint64
}

// registerHandlers makes s answer packets according to mode.
// echo sends every packet back to its sender,
// broadcast relays it to every connected peer.
func registerHandlers(s *server.Server, mode string, log logrus.FieldLogger) error {
	var reply func(peer int, data []byte, ch uint8) error
	switch mode {
	case ModeEcho:
		reply = func(peer int, data []byte, ch uint8) error {
			return s.Send(peer, data, true, ch)
		}
	case ModeBroadcast:
		reply = func(peer int, data []byte, ch uint8) error {
			return s.Broadcast(data, true, ch)
		}
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}

	s.OnConnection(func(peer int, ip string) {
		log.WithField("peer", peer).WithField("ip", ip).Info("connected")

		if err := s.SetPeerData(peer, &session{ip: ip}); err != nil {
			log.WithError(err).WithField("peer", peer).Warn("attach session")
		}
	})

	s.OnPacketReceive(func(peer int, data []byte, ch uint8) {
		if ss, ok := s.PeerData(peer).(*session); ok {
			ss.packets++
			log.WithField("peer", peer).WithField("ip", ss.ip).WithField("n", ss.packets).Trace("packet")
		}

		if err := reply(peer, data, ch); err != nil {
			log.WithError(err).WithField("peer", peer).Debug("reply")
		}
	})

	s.OnDisconnection(func(peer int) {
		log.WithField("peer", peer).Info("disconnected")
	})

	return nil
}
