// Package trace writes debug records of one context (e.g. the playback ticks) to a file or a UDP destination.
package trace

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	"go.uber.org/zap"
)

var ErrInvalidDestination = errors.New("invalid trace destination")

type Tracer interface {
	Context() string
	Start()
	Trace(context string, format string, args ...any)
	Stop()
}

// New creates a tracer for the given context from a destination of the form file:<filename> or udp:<host:port>.
// An empty destination disables tracing.
func New(context string, destination string, log *zap.Logger) (Tracer, error) {
	if destination == "" || context == "" {
		return new(NoTracer), nil
	}
	if log == nil {
		log = zap.NewNop()
	}

	protocol, target, found := strings.Cut(destination, ":")
	if !found || target == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDestination, destination)
	}

	switch strings.ToLower(protocol) {
	case "file":
		return NewFileTracer(context, target, log), nil
	case "udp":
		return NewUDPTracer(context, target, log)
	default:
		return nil, fmt.Errorf("%w: unknown protocol %q", ErrInvalidDestination, protocol)
	}
}

type NoTracer struct{}

func (t *NoTracer) Context() string              { return "" }
func (t *NoTracer) Start()                       {}
func (t *NoTracer) Trace(string, string, ...any) {}
func (t *NoTracer) Stop()                        {}

// WriterTracer writes the records of its context into an io.WriteCloser that is opened on Start
// and closed on Stop.
type WriterTracer struct {
	context string
	open    func() (io.WriteCloser, error)
	log     *zap.Logger
	out     io.WriteCloser
}

func NewFileTracer(context string, filename string, log *zap.Logger) *WriterTracer {
	return &WriterTracer{
		context: context,
		open: func() (io.WriteCloser, error) {
			return os.Create(filename)
		},
		log: log.With(zap.String("trace", context), zap.String("file", filename)),
	}
}

func NewUDPTracer(context string, destination string, log *zap.Logger) (*WriterTracer, error) {
	addr, err := net.ResolveUDPAddr("udp", destination)
	if err != nil {
		return nil, fmt.Errorf("cannot parse UDP destination: %w", err)
	}
	return &WriterTracer{
		context: context,
		open: func() (io.WriteCloser, error) {
			return net.DialUDP("udp", nil, addr)
		},
		log: log.With(zap.String("trace", context), zap.Stringer("udp", addr)),
	}, nil
}

func (t *WriterTracer) Context() string {
	return t.context
}

func (t *WriterTracer) Start() {
	if t.out != nil {
		return
	}

	out, err := t.open()
	if err != nil {
		t.log.Warn("cannot start trace", zap.Error(err))
		return
	}
	t.out = out
	t.log.Debug("trace started")
}

func (t *WriterTracer) Trace(context string, format string, args ...any) {
	if t.out == nil {
		return
	}
	if context != t.context {
		return
	}

	fmt.Fprintf(t.out, format, args...)
}

func (t *WriterTracer) Stop() {
	if t.out == nil {
		return
	}

	t.out.Close()
	t.out = nil
	t.log.Debug("trace stopped")
}
