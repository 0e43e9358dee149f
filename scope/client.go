package scope

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ftl/ecgscope/playback"
)

var getFramesStreamDesc = &grpc.StreamDesc{
	StreamName:    getFramesStream,
	ServerStreams: true,
}

// Client allows to connect to a scope server and receive frames.
type Client struct {
	address string

	conn *grpc.ClientConn
}

// NewClient creates a new client for the given address.
func NewClient(address string) *Client {
	return &Client{
		address: address,
	}
}

// Open the connection to the scope server.
func (c *Client) Open() error {
	if c.conn != nil {
		return fmt.Errorf("already connected")
	}

	conn, err := grpc.NewClient(c.address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("cannot connect to scope server: %v", err)
	}
	c.conn = conn

	return nil
}

// Close the connection to the scope server.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// GetFrames provides a channel to receive the playback frames from the scope server.
// The channel is closed when the stream ends or the context is done.
func (c *Client) GetFrames(ctx context.Context) (chan playback.Frame, error) {
	if c.conn == nil {
		return nil, fmt.Errorf("not connected")
	}

	stream, err := c.conn.NewStream(ctx, getFramesStreamDesc, getFramesMethod)
	if err != nil {
		return nil, fmt.Errorf("cannot open frame stream: %v", err)
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return nil, fmt.Errorf("cannot request frames: %v", err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, fmt.Errorf("cannot request frames: %v", err)
	}

	frames := make(chan playback.Frame, 1)
	go func() {
		defer close(frames)
		for {
			message := new(structpb.Struct)
			err := stream.RecvMsg(message)
			if err != nil {
				return
			}

			frame, err := DecodeFrame(message)
			if err != nil {
				continue
			}
			select {
			case frames <- frame:
			case <-ctx.Done():
				return
			}
		}
	}()

	return frames, nil
}
