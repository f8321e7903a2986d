/*
Package server runs a multiplayer server on top of a reliable UDP host.
Events are polled with Update and handed to the registered handlers
on the calling goroutine. The server lock is never held while a handler
runs, so handlers may call back into the Server.
*/
package server

import (
	"errors"
	"fmt"
	"io/ioutil"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/HimbeerserverDE/peerhost/host"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

var ErrCreate = errors.New("cannot create server")

// Transport is the reliable UDP engine a Server drives.
// *host.Host implements it.
type Transport interface {
	Service(timeout time.Duration) (host.Event, error)
	Send(peer int, ch uint8, data []byte, reliable bool) error
	Broadcast(ch uint8, data []byte, reliable bool) error
	Flush() error
	DisconnectNow(peer int) error
	Compress(enabled bool)
	SetPeerData(peer int, data interface{}) error
	PeerData(peer int) interface{}
	PeerCount() int
	TakeTraffic() host.Traffic
	LocalAddr() net.Addr
	Close() error
}

// Config describes a Server
type Config struct {
	// Host is the IP to bind to, empty means all interfaces
	Host string
	Port uint16

	MaxPeers int
	Channels int

	// Bandwidth limits in bytes per second, 0 means unlimited
	IncomingBandwidth uint32
	OutgoingBandwidth uint32

	// Accept rejects peers before they are assigned a slot if set
	Accept func(addr net.Addr) bool

	Log logrus.FieldLogger
}

// A Server is a multiplayer server.
// All methods are safe for concurrent use, but Update is meant
// to be driven by a single goroutine.
type Server struct {
	sentData atomic.Uint64
	recvData atomic.Uint64
	sentPkts atomic.Uint64
	recvPkts atomic.Uint64

	onConnect    atomic.Value
	onReceive    atomic.Value
	onDisconnect atomic.Value

	// mu guards transport, clients and connected
	mu         sync.Mutex
	transport  Transport
	clients    int
	connected  []bool
	maxClients int
	channels   int

	log logrus.FieldLogger
}

// New binds a Server to cfg.Port
func New(cfg Config) (*Server, error) {
	t, err := host.Listen(host.Config{
		Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(int(cfg.Port))),
		Peers:             cfg.MaxPeers,
		Channels:          cfg.Channels,
		IncomingBandwidth: cfg.IncomingBandwidth,
		OutgoingBandwidth: cfg.OutgoingBandwidth,
		Accept:            cfg.Accept,
		Log:               cfg.Log,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return NewWithTransport(t, cfg), nil
}

// NewWithTransport returns a Server driving t.
// Only cfg.Channels and cfg.Log are used.
func NewWithTransport(t Transport, cfg Config) *Server {
	log := cfg.Log
	if log == nil {
		l := logrus.New()
		l.Out = ioutil.Discard
		log = l
	}

	return &Server{
		transport:  t,
		connected:  make([]bool, t.PeerCount()),
		maxClients: t.PeerCount(),
		channels:   cfg.Channels,
		log:        log,
	}
}

// MaxClients returns the number of peer slots
func (s *Server) MaxClients() int { return s.maxClients }

// ClientsCount returns the number of connected peers
func (s *Server) ClientsCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.clients
}

// LocalAddr returns the address the Server is bound to
func (s *Server) LocalAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.transport.LocalAddr()
}

// UseCompression enables or disables compression of outgoing packets
func (s *Server) UseCompression(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transport.Compress(enabled)
}

// SetPeerData attaches data to a connected peer until it disconnects
func (s *Server) SetPeerData(peer int, data interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.transport.SetPeerData(peer, data)
}

// PeerData returns what SetPeerData attached to peer
func (s *Server) PeerData(peer int) interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.transport.PeerData(peer)
}

// Close disconnects every peer and releases the socket.
// No Update may be running.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.transport.Close()
}
