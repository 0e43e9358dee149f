// Package telnet provides a line oriented console to control the playback and announces
// the status changes of the playback to all connected consoles.
package telnet

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ftl/ecgscope/playback"
)

const (
	newConnectionDeadline     = 100 * time.Millisecond
	connectionKeepAlivePeriod = 30 * time.Second
	readBufferSize            = 1024
	messageBufferSize         = 16
)

type Server struct {
	address    *net.TCPAddr
	listener   *net.TCPListener
	controller Controller
	version    string
	log        *zap.Logger

	connections []*Connection

	lastStatusLock *sync.Mutex
	lastStatus     playback.Status
	announced      bool

	msg    chan []byte
	close  chan struct{}
	closed chan struct{}
}

func NewServer(address string, controller Controller, version string, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	result := &Server{
		controller:     controller,
		version:        version,
		log:            log,
		lastStatusLock: &sync.Mutex{},
		msg:            make(chan []byte, messageBufferSize),
		close:          make(chan struct{}),
		closed:         make(chan struct{}),
	}

	localAddress, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve telnet address %s: %w", address, err)
	}
	result.address = localAddress

	listener, err := net.ListenTCP("tcp", result.address)
	if err != nil {
		return nil, err
	}
	result.listener = listener
	log.Info("telnet console started", zap.Stringer("address", listener.Addr()))

	go result.run()

	return result, nil
}

func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

func (s *Server) run() {
	defer close(s.closed)
	defer s.listener.Close()
	welcome := fmt.Sprintf("ecgscope Version %s\n", s.version)

	for {
		select {
		case <-s.close:
			for _, conn := range s.connections {
				conn.Close()
			}
			s.connections = nil
			return
		case bytes := <-s.msg:
			s.broadcast(bytes)
		default:
			err := s.listener.SetDeadline(time.Now().Add(newConnectionDeadline))
			if err != nil {
				s.log.Error("setting the listener deadline failed", zap.Error(err))
				return
			}
			conn, err := s.listener.AcceptTCP()
			if errors.Is(err, os.ErrDeadlineExceeded) {
				// ignore, nobody is calling
				continue
			} else if err != nil {
				s.log.Warn("cannot accept connection", zap.Error(err))
				continue
			}

			s.log.Debug("new incoming connection", zap.Stringer("remote", conn.RemoteAddr()))
			conn.SetKeepAlivePeriod(connectionKeepAlivePeriod)
			conn.SetKeepAlive(true)
			connection := NewConnection(conn, welcome, s.controller, s.log)
			s.connections = append(s.connections, connection)
		}
	}
}

func (s *Server) broadcast(bytes []byte) {
	open := s.connections[:0]
	for _, conn := range s.connections {
		_, err := conn.Write(bytes)
		if err != nil {
			s.log.Debug("removing closed connection", zap.Stringer("connection", conn))
			continue
		}
		open = append(open, conn)
	}
	clear(s.connections[len(open):])
	s.connections = open
}

func (s *Server) Stop() {
	select {
	case <-s.closed:
		return
	default:
		close(s.close)
		<-s.closed
	}
}

// Publish announces the status changes of the playback to all consoles. Frames that do not
// change the status are ignored.
func (s *Server) Publish(frame playback.Frame) {
	if !s.shouldAnnounce(frame.Status) {
		return
	}
	select {
	case s.msg <- []byte(formatAnnouncement(frame)):
	default:
		s.log.Debug("dropping announcement", zap.Stringer("status", frame.Status))
	}
}

func (s *Server) shouldAnnounce(status playback.Status) bool {
	s.lastStatusLock.Lock()
	defer s.lastStatusLock.Unlock()
	if s.announced && s.lastStatus == status {
		return false
	}
	s.lastStatus = status
	s.announced = true
	return true
}

func formatAnnouncement(frame playback.Frame) string {
	return fmt.Sprintf("%s %-8s frame %-6d %s\n", frame.Timestamp.UTC().Format("15:04:05"), frame.Status, frame.Frame, frame.Speed)
}

var ErrClosed = errors.New("connection already closed")

type Prompt struct {
	Question string
	Answer   func(string) (string, *Prompt)
}

type Connection struct {
	conn       io.ReadWriteCloser
	controller Controller
	log        *zap.Logger
	remote     string
	msg        chan []byte
	input      chan []byte

	currentPrompt *Prompt
	currentAnswer string

	close  chan struct{}
	closed chan struct{}
}

func NewConnection(conn io.ReadWriteCloser, welcome string, controller Controller, log *zap.Logger) *Connection {
	if log == nil {
		log = zap.NewNop()
	}
	remote := "console"
	if netConn, ok := conn.(net.Conn); ok {
		remote = netConn.RemoteAddr().String()
	}
	result := &Connection{
		conn:       conn,
		controller: controller,
		log:        log.With(zap.String("remote", remote)),
		remote:     remote,
		msg:        make(chan []byte, 1),
		input:      make(chan []byte, 1),

		currentAnswer: "",

		close:  make(chan struct{}),
		closed: make(chan struct{}),
	}

	result.writeAll([]byte(welcome))

	go result.run()
	go result.readLoop()

	return result
}

func (c *Connection) run() {
	defer close(c.closed)
	defer func() {
		err := c.conn.Close()
		if err != nil {
			c.log.Debug("close failed", zap.Error(err))
		}
	}()

	commandPrompt := &Prompt{
		Question: prompt,
	}
	commandPrompt.Answer = func(line string) (string, *Prompt) {
		return Execute(c.controller, line), commandPrompt
	}

	err := c.startPrompt(commandPrompt)
	if err != nil {
		c.log.Debug("cannot write prompt", zap.Error(err))
	}

	for {
		select {
		case <-c.close:
			return
		case bytes := <-c.msg:
			err := c.writeAll(bytes)
			if err != nil {
				c.log.Debug("cannot write message", zap.Error(err))
				return
			}
		case bytes, open := <-c.input:
			if !open {
				return
			}
			for i := 0; i < len(bytes); i++ {
				response, nextPrompt := c.parseAnswerByte(bytes[i])
				if response != "" {
					err := c.writeAll([]byte(response))
					if err != nil {
						c.log.Debug("cannot write response", zap.Error(err))
						return
					}
				}

				err := c.startPrompt(nextPrompt)
				if err != nil {
					c.log.Debug("cannot write prompt", zap.Error(err))
					continue
				}
			}
		}
	}
}

func (c *Connection) readLoop() {
	defer close(c.input)
	readBuffer := make([]byte, readBufferSize)
	for {
		n, err := c.conn.Read(readBuffer)
		if errors.Is(err, os.ErrClosed) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
			return
		} else if err != nil {
			c.log.Debug("cannot read", zap.Error(err))
			return
		}

		if n == 0 {
			continue
		}

		bytes := make([]byte, n)
		copy(bytes, readBuffer[:n])
		select {
		case c.input <- bytes:
		case <-c.closed:
			return
		}
	}
}

func (c *Connection) writeAll(bytes []byte) error {
	n := 0
	buffer := bytes
	for n < len(buffer) {
		var err error
		n, err = c.conn.Write(buffer)
		if err != nil {
			return err
		}
		if n < len(buffer) {
			buffer = buffer[n:]
		}
	}
	return nil
}

func (c *Connection) startPrompt(prompt *Prompt) error {
	if prompt == nil {
		return nil
	}
	c.currentPrompt = prompt
	return c.writeAll([]byte(prompt.Question))
}

func (c *Connection) parseAnswerByte(answerByte byte) (string, *Prompt) {
	switch answerByte {
	case '\r':
		return "", nil
	case '\n':
		response, nextPrompt := c.currentPrompt.Answer(c.currentAnswer)
		c.currentAnswer = ""
		return response, nextPrompt
	default:
		c.currentAnswer += string(answerByte)
		return "", nil
	}
}

func (c *Connection) Close() {
	select {
	case <-c.closed:
		return
	default:
		close(c.close)
		<-c.closed
	}
}

func (c *Connection) Write(bytes []byte) (int, error) {
	select {
	case <-c.closed:
		return 0, ErrClosed
	case c.msg <- bytes:
		return len(bytes), nil
	}
}

func (c *Connection) String() string {
	return c.remote
}
