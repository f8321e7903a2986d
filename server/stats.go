package server

// Stats is a snapshot of a Server's lifetime traffic
type Stats struct {
	SentData        uint64
	ReceivedData    uint64
	SentPackets     uint64
	ReceivedPackets uint64
}

// account moves the transport's traffic counters into the totals.
// It runs once at the end of every Update without the lock.
func (s *Server) account() {
	t := s.transport.TakeTraffic()

	s.sentData.Add(t.SentData)
	s.recvData.Add(t.ReceivedData)
	s.sentPkts.Add(t.SentPackets)
	s.recvPkts.Add(t.ReceivedPackets)
}

// TotalSentData returns the number of bytes sent
func (s *Server) TotalSentData() uint64 { return s.sentData.Load() }

// TotalReceivedData returns the number of bytes received
func (s *Server) TotalReceivedData() uint64 { return s.recvData.Load() }

// TotalSentPackets returns the number of datagrams sent
func (s *Server) TotalSentPackets() uint64 { return s.sentPkts.Load() }

// TotalReceivedPackets returns the number of datagrams received
func (s *Server) TotalReceivedPackets() uint64 { return s.recvPkts.Load() }

// Stats returns all four totals
func (s *Server) Stats() Stats {
	return Stats{
		SentData:        s.TotalSentData(),
		ReceivedData:    s.TotalReceivedData(),
		SentPackets:     s.TotalSentPackets(),
		ReceivedPackets: s.TotalReceivedPackets(),
	}
}
