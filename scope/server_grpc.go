package scope

import (
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	defaultOutBufferSize = 10

	serviceName     = "ecgscope.Scope"
	getFramesStream = "GetFrames"
	getFramesMethod = "/" + serviceName + "/" + getFramesStream
)

// frameService is the server side of the scope service.
type frameService interface {
	GetFrames(request *emptypb.Empty, stream grpc.ServerStream) error
}

var scopeServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*frameService)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    getFramesStream,
			Handler:       getFramesHandler,
			ServerStreams: true,
		},
	},
}

func getFramesHandler(srv any, stream grpc.ServerStream) error {
	request := new(emptypb.Empty)
	if err := stream.RecvMsg(request); err != nil {
		return err
	}
	return srv.(frameService).GetFrames(request, stream)
}

type grpcServer struct {
	address *net.TCPAddr
	server  *grpc.Server
	addr    net.Addr

	outBufferSize int
	in            chan *structpb.Struct
	register      chan chan *structpb.Struct
	out           []chan *structpb.Struct
	shutdown      chan struct{}
}

func newGRPCServer(address string, outBufferSize int) (*grpcServer, error) {
	result := &grpcServer{
		outBufferSize: outBufferSize,
		in:            make(chan *structpb.Struct),
		register:      make(chan chan *structpb.Struct),
		shutdown:      make(chan struct{}),
	}

	localAddress, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve address %s: %w", address, err)
	}
	result.address = localAddress

	return result, nil
}

func (s *grpcServer) run() {
	for {
		select {
		case <-s.shutdown:
			for _, out := range s.out {
				close(out)
			}
			s.out = nil
			return
		case out := <-s.register:
			s.addStream(out)
		case frame := <-s.in:
			s.sendFrameToStreams(frame)
		}
	}
}

func (s *grpcServer) addStream(out chan *structpb.Struct) {
	s.out = append(s.out, out)
}

// sendFrameToStreams drops every stream that cannot take the frame right away.
func (s *grpcServer) sendFrameToStreams(frame *structpb.Struct) {
	responsive := s.out[:0]
	for _, out := range s.out {
		select {
		case out <- frame:
			responsive = append(responsive, out)
		default:
			close(out)
		}
	}
	clear(s.out[len(responsive):])
	s.out = responsive
}

func (s *grpcServer) getFrameStream() (chan *structpb.Struct, bool) {
	result := make(chan *structpb.Struct, s.outBufferSize)
	select {
	case s.register <- result:
		return result, true
	case <-s.shutdown:
		return nil, false
	}
}

// Listen opens the listener. The server is not serving yet.
func (s *grpcServer) Listen() (net.Listener, error) {
	if s.server != nil {
		return nil, fmt.Errorf("server already running")
	}

	listener, err := net.Listen("tcp", s.address.String())
	if err != nil {
		return nil, fmt.Errorf("cannot listen on address %s: %w", s.address, err)
	}
	s.addr = listener.Addr()

	s.server = grpc.NewServer()
	s.server.RegisterService(&scopeServiceDesc, s)

	return listener, nil
}

// Serve blocks until the server is stopped.
func (s *grpcServer) Serve(listener net.Listener) error {
	go s.run()

	err := s.server.Serve(listener)
	close(s.shutdown)
	return err
}

func (s *grpcServer) Stop() {
	if s.server == nil {
		return
	}
	s.server.Stop()
}

func (s *grpcServer) Addr() net.Addr {
	return s.addr
}

func (s *grpcServer) GetFrames(_ *emptypb.Empty, stream grpc.ServerStream) error {
	frames, ok := s.getFrameStream()
	if !ok {
		return nil
	}
	for {
		select {
		case frame, open := <-frames:
			if !open {
				return nil
			}
			if err := stream.SendMsg(frame); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}

// SendFrame hands the frame to the connected streams. It does not block once the server shut down.
func (s *grpcServer) SendFrame(frame *structpb.Struct) {
	if s.server == nil {
		return
	}
	select {
	case s.in <- frame:
	case <-s.shutdown:
	}
}
