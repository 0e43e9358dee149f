package trace

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	tt := []struct {
		desc        string
		context     string
		destination string
		expected    any
		invalid     bool
	}{
		{"disabled", "ticks", "", &NoTracer{}, false},
		{"no context", "", "file:trace.csv", &NoTracer{}, false},
		{"file", "ticks", "file:trace.csv", &WriterTracer{}, false},
		{"udp", "ticks", "udp:127.0.0.1:4242", &WriterTracer{}, false},
		{"missing protocol", "ticks", "trace.csv", nil, true},
		{"missing target", "ticks", "file:", nil, true},
		{"unknown protocol", "ticks", "tcp:127.0.0.1:4242", nil, true},
	}
	for _, tc := range tt {
		t.Run(tc.desc, func(t *testing.T) {
			tracer, err := New(tc.context, tc.destination, zap.NewNop())
			if tc.invalid {
				assert.ErrorIs(t, err, ErrInvalidDestination)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tc.expected, tracer)
		})
	}
}

func TestFileTracer(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "ticks.csv")
	tracer := NewFileTracer("ticks", filename, zap.NewNop())

	tracer.Trace("ticks", "before start\n")
	tracer.Start()
	tracer.Trace("ticks", "%d;%d\n", 1, 27)
	tracer.Trace("fiducials", "other context\n")
	tracer.Trace("ticks", "%d;%d\n", 2, 54)
	tracer.Stop()
	tracer.Trace("ticks", "after stop\n")

	content, err := os.ReadFile(filename)
	require.NoError(t, err)
	assert.Equal(t, "1;27\n2;54\n", string(content))
	assert.Equal(t, "ticks", tracer.Context())
}

func TestUDPTracer(t *testing.T) {
	listener, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer listener.Close()

	tracer, err := NewUDPTracer("ticks", listener.LocalAddr().String(), zap.NewNop())
	require.NoError(t, err)
	tracer.Start()
	defer tracer.Stop()

	tracer.Trace("ticks", "%d;%s\n", 3, "playing")

	buffer := make([]byte, 100)
	listener.SetReadDeadline(time.Now().Add(time.Second))
	n, err := listener.Read(buffer)
	require.NoError(t, err)
	assert.Equal(t, "3;playing\n", string(buffer[:n]))
}
