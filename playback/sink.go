package playback

import (
	"time"
)

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

var WallClock = ClockFunc(time.Now)

// Frame is an update as it is published by a session. The sequence number increases by one
// with every frame of the session.
type Frame struct {
	Session   string    `json:"session"`
	Sequence  uint64    `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
	Update
}

// Sink receives the frames of a session. Publish is called from the session's goroutine
// and must not block.
type Sink interface {
	Publish(frame Frame)
}

type SinkFunc func(Frame)

func (f SinkFunc) Publish(frame Frame) {
	f(frame)
}

type NullSink struct{}

func (s *NullSink) Publish(Frame) {}

// Sinks publishes every frame to all of its sinks, in order.
type Sinks []Sink

func (s Sinks) Publish(frame Frame) {
	for _, sink := range s {
		sink.Publish(frame)
	}
}
