package server

// ConnectHandler is called with the slot and IP address of a new peer
type ConnectHandler func(peer int, ip string)

// ReceiveHandler is called for every packet.
// data belongs to the handler.
type ReceiveHandler func(peer int, data []byte, ch uint8)

// DisconnectHandler is called when a peer's slot is released.
// The slot may be reused by the next connection.
type DisconnectHandler func(peer int)

// OnConnection replaces the connect handler, nil removes it
func (s *Server) OnConnection(h ConnectHandler) { s.onConnect.Store(h) }

// OnPacketReceive replaces the receive handler, nil removes it
func (s *Server) OnPacketReceive(h ReceiveHandler) { s.onReceive.Store(h) }

// OnDisconnection replaces the disconnect handler, nil removes it
func (s *Server) OnDisconnection(h DisconnectHandler) { s.onDisconnect.Store(h) }

func (s *Server) connectHandler() ConnectHandler {
	h, _ := s.onConnect.Load().(ConnectHandler)
	return h
}

func (s *Server) receiveHandler() ReceiveHandler {
	h, _ := s.onReceive.Load().(ReceiveHandler)
	return h
}

func (s *Server) disconnectHandler() DisconnectHandler {
	h, _ := s.onDisconnect.Load().(DisconnectHandler)
	return h
}

// unlocked runs f with s.mu released.
// s.mu stays released if f panics.
func (s *Server) unlocked(f func()) {
	s.mu.Unlock()
	f()
	s.mu.Lock()
}
