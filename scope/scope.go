// Package scope streams the frames of a playback session to remote viewers over gRPC.
package scope

import (
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/ftl/ecgscope/playback"
)

// Scope receives the playback frames that are shown to remote viewers.
type Scope interface {
	playback.Sink
	Active() bool
}

// NullScope drops all frames.
type NullScope struct{}

func NewNullScope() *NullScope {
	return &NullScope{}
}

func (s *NullScope) Active() bool            { return false }
func (s *NullScope) Publish(playback.Frame) {}

// Server is a scope that serves frames over a network connection to remote clients.
type Server struct {
	address string
	log     *zap.Logger

	server     *grpcServer
	serverLock *sync.Mutex
}

// NewServer creates a new scope server that listens on the given address.
func NewServer(address string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		address:    address,
		log:        log,
		server:     nil,
		serverLock: &sync.Mutex{},
	}
}

func (s *Server) Active() bool {
	s.serverLock.Lock()
	defer s.serverLock.Unlock()
	return s.server != nil
}

func (s *Server) Addr() net.Addr {
	s.serverLock.Lock()
	defer s.serverLock.Unlock()
	if s.server != nil {
		return s.server.Addr()
	}
	return nil
}

// Start the server in the background. The listener is open when Start returns.
func (s *Server) Start() error {
	if s.Active() {
		return fmt.Errorf("scope was already started")
	}

	server, err := newGRPCServer(s.address, defaultOutBufferSize)
	if err != nil {
		return err
	}
	listener, err := server.Listen()
	if err != nil {
		return err
	}

	s.serverLock.Lock()
	s.server = server
	s.serverLock.Unlock()
	s.log.Info("scope server started", zap.Stringer("address", listener.Addr()))

	go func() {
		err := server.Serve(listener)
		if err != nil {
			s.log.Error("scope server failed", zap.Error(err))
		}

		s.serverLock.Lock()
		if s.server == server {
			s.server = nil
		}
		s.serverLock.Unlock()
	}()

	return nil
}

func (s *Server) Stop() {
	s.serverLock.Lock()
	server := s.server
	s.server = nil
	s.serverLock.Unlock()

	if server == nil {
		return
	}
	server.Stop()
	s.log.Info("scope server stopped")
}

// Publish sends the frame to all connected clients. Clients that cannot keep up are disconnected.
func (s *Server) Publish(frame playback.Frame) {
	s.serverLock.Lock()
	server := s.server
	s.serverLock.Unlock()
	if server == nil {
		return
	}

	message, err := EncodeFrame(frame)
	if err != nil {
		s.log.Warn("cannot encode frame", zap.Uint64("sequence", frame.Sequence), zap.Error(err))
		return
	}
	server.SendFrame(message)
}
