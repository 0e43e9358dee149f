package stream

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/ftl/ecgscope/playback"
)

const DefaultSubject = "ecg.playback"

// Connect opens a NATS connection that reconnects forever.
func Connect(url string) (*nats.Conn, error) {
	return nats.Connect(
		url,
		nats.Name("ecgscope"),
		nats.Timeout(3*time.Second),
		nats.ReconnectWait(500*time.Millisecond),
		nats.MaxReconnects(-1),
	)
}

// Publisher is the part of a NATS connection that is used to publish frames.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes the frames of a session as JSON to the subject <subject>.<session>.
type NATSPublisher struct {
	publisher Publisher
	subject   string
	log       *zap.Logger
}

func NewNATSPublisher(publisher Publisher, subject string, log *zap.Logger) *NATSPublisher {
	if subject == "" {
		subject = DefaultSubject
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &NATSPublisher{
		publisher: publisher,
		subject:   subject,
		log:       log,
	}
}

// Subject returns the subject of the given session.
func (p *NATSPublisher) Subject(session string) string {
	return p.subject + "." + session
}

// Publish the frame. NATS buffers outgoing messages, so this does not block on the network.
func (p *NATSPublisher) Publish(frame playback.Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		p.log.Warn("cannot encode frame", zap.Uint64("sequence", frame.Sequence), zap.Error(err))
		return
	}
	err = p.publisher.Publish(p.Subject(frame.Session), data)
	if err != nil {
		p.log.Warn("cannot publish frame", zap.String("subject", p.Subject(frame.Session)), zap.Error(err))
	}
}
