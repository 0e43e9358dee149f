package playback

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ftl/ecgscope/ecg"
	"github.com/ftl/ecgscope/trace"
)

const (
	TraceTicks     = "ticks"
	TraceFiducials = "fiducials"
)

// Ticker drives the playback of a session.
type Ticker interface {
	C() <-chan time.Time
	Reset(d time.Duration)
	Stop()
}

// TickerFunc creates a new running ticker with the given interval.
type TickerFunc func(d time.Duration) Ticker

type timeTicker struct {
	ticker *time.Ticker
}

func NewTimeTicker(d time.Duration) Ticker {
	return &timeTicker{ticker: time.NewTicker(d)}
}

func (t *timeTicker) C() <-chan time.Time {
	return t.ticker.C
}

func (t *timeTicker) Reset(d time.Duration) {
	t.ticker.Reset(d)
}

func (t *timeTicker) Stop() {
	t.ticker.Stop()
}

// Snapshot of a session's state.
type Snapshot struct {
	Session    string      `json:"session"`
	Dataset    ecg.Dataset `json:"dataset"`
	Class      ecg.Class   `json:"class"`
	Status     Status      `json:"status"`
	Speed      Speed       `json:"speed"`
	Frame      int         `json:"frame"`
	Total      int         `json:"total"`
	BeatLength int         `json:"beat_length"`
	Viewport   Viewport    `json:"viewport"`
	Sequence   uint64      `json:"sequence"`
}

// Session owns the playback of one strip. All changes of the session's state are serialized
// through its goroutine, a frame is always published together with the data it describes.
type Session struct {
	id        string
	log       *zap.Logger
	clock     Clock
	newTicker TickerFunc
	sink      Sink
	tracer    trace.Tracer

	beatLength int
	beatCount  int

	state    State
	strip    *Strip
	sequence uint64

	op             chan func()
	stop           chan struct{}
	stopped        chan struct{}
	ticker         Ticker
	tickerInterval time.Duration
}

// NewSession creates a new session. An empty id is replaced with a random one.
func NewSession(id string, log *zap.Logger, clock Clock, sink Sink) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	if log == nil {
		log = zap.NewNop()
	}
	if clock == nil {
		clock = WallClock
	}
	if sink == nil {
		sink = new(NullSink)
	}
	return &Session{
		id:        id,
		log:       log.With(zap.String("session", id)),
		clock:     clock,
		newTicker: NewTimeTicker,
		sink:      sink,
		tracer:    new(trace.NoTracer),

		beatLength: ecg.DefaultBeatLength,
		beatCount:  ecg.DefaultBeatCount,

		state: NewState(),
	}
}

func (s *Session) ID() string {
	return s.id
}

// SetTickerFunc replaces the ticker factory. It must be called before Start.
func (s *Session) SetTickerFunc(newTicker TickerFunc) {
	s.newTicker = newTicker
}

// SetBeatLayout defines the beat length and the number of beats of the strips built by Select.
func (s *Session) SetBeatLayout(beatLength int, beatCount int) error {
	if beatLength <= 0 {
		return fmt.Errorf("%w: %d", ecg.ErrInvalidBeatLength, beatLength)
	}
	if beatCount <= 0 {
		return fmt.Errorf("%w: %d", ecg.ErrInvalidBeatCount, beatCount)
	}
	s.do(func() {
		s.beatLength = beatLength
		s.beatCount = beatCount
	})
	return nil
}

func (s *Session) SetTracer(tracer trace.Tracer) {
	s.do(func() {
		s.tracer.Stop()
		s.tracer = tracer
		if s.op != nil {
			s.tracer.Start()
		}
	})
}

func (s *Session) Start() {
	if s.op != nil {
		return
	}

	s.stop = make(chan struct{})
	s.stopped = make(chan struct{})
	s.op = make(chan func())

	s.tracer.Start()

	go s.run()
}

func (s *Session) Stop() {
	if s.op == nil {
		return
	}

	close(s.stop)
	<-s.stopped
	close(s.op)

	s.tracer.Stop()

	s.stop = nil
	s.stopped = nil
	s.op = nil
}

func (s *Session) do(f func()) {
	if s.op == nil {
		f()
	} else {
		s.op <- f
	}
}

func (s *Session) run() {
	defer close(s.stopped)
	defer s.stopTicker()

	s.updateTicker()
	for {
		var tick <-chan time.Time
		if s.ticker != nil {
			tick = s.ticker.C()
		}

		select {
		case <-s.stop:
			return
		case op := <-s.op:
			op()
		case <-tick:
			s.apply(Event{Kind: TickEvent})
		}
	}
}

// Select builds a new strip of the given class and resets the playback. An empty class selects
// the dataset's default class.
func (s *Session) Select(dataset ecg.Dataset, class ecg.Class) error {
	dataset, err := ecg.ParseDataset(string(dataset))
	if err != nil {
		return err
	}
	if class == "" {
		class = ecg.DefaultClass(dataset)
	}

	result := make(chan error, 1)
	s.do(func() {
		strip, err := NewStrip(dataset, class, s.beatLength, s.beatCount)
		if err != nil {
			result <- err
			return
		}
		s.load(strip)
		result <- nil
	})
	return <-result
}

// Load replaces the strip and resets the playback.
func (s *Session) Load(strip *Strip) {
	s.do(func() {
		s.load(strip)
	})
}

func (s *Session) load(strip *Strip) {
	s.strip = strip
	s.log.Info("strip loaded",
		zap.Stringer("dataset", strip.Dataset),
		zap.Stringer("class", strip.Class),
		zap.Int("samples", strip.Len()),
		zap.Int("fiducials", strip.Fiducials.Count()),
	)
	if inverted := strip.Beat.Inverted(); len(inverted) > 0 {
		s.log.Warn("inverted intervals in the first beat", zap.Strings("intervals", inverted))
	}
	s.tracer.Trace(TraceFiducials, "%s;%s;%d;%d\n", strip.Dataset, strip.Class, strip.Len(), strip.Fiducials.Count())
	s.apply(Event{Kind: ResetEvent})
}

func (s *Session) Play() {
	s.do(func() {
		s.apply(Event{Kind: PlayEvent})
	})
}

func (s *Session) Pause() {
	s.do(func() {
		s.apply(Event{Kind: PauseEvent})
	})
}

func (s *Session) Toggle() {
	s.do(func() {
		s.apply(Event{Kind: ToggleEvent})
	})
}

func (s *Session) Reset() {
	s.do(func() {
		s.apply(Event{Kind: ResetEvent})
	})
}

// Tick advances the playback by one step, independent of the ticker.
func (s *Session) Tick() {
	s.do(func() {
		s.apply(Event{Kind: TickEvent})
	})
}

// SetSpeed changes the playback speed. Unknown speeds select the normal speed.
func (s *Session) SetSpeed(speed Speed) {
	s.do(func() {
		s.apply(Event{Kind: SetSpeedEvent, Speed: speed})
	})
}

func (s *Session) Snapshot() Snapshot {
	result := make(chan Snapshot, 1)
	s.do(func() {
		snapshot := Snapshot{
			Session:    s.id,
			Status:     s.state.Status,
			Speed:      s.state.Speed,
			Frame:      s.state.Frame,
			Total:      s.strip.Len(),
			BeatLength: s.strip.beatLength(),
			Viewport:   s.strip.ViewportAt(s.state.Frame),
			Sequence:   s.sequence,
		}
		if s.strip != nil {
			snapshot.Dataset = s.strip.Dataset
			snapshot.Class = s.strip.Class
		}
		result <- snapshot
	})
	return <-result
}

// Strip returns the current strip, nil if nothing was selected yet. The strip must not be modified.
func (s *Session) Strip() *Strip {
	result := make(chan *Strip, 1)
	s.do(func() {
		result <- s.strip
	})
	return <-result
}

func (s *Session) apply(event Event) {
	before := s.state
	state, update := Apply(s.state, s.strip, event)
	s.state = state
	if update == nil {
		return
	}

	s.sequence++
	frame := Frame{
		Session:   s.id,
		Sequence:  s.sequence,
		Timestamp: s.clock.Now(),
		Update:    *update,
	}

	if event.Kind == TickEvent && update.Appended != nil {
		s.tracer.Trace(TraceTicks, "%d;%d;%d;%s\n", frame.Sequence, update.Appended.Start, update.Appended.End(), state.Status)
	}
	if before.Status != state.Status {
		s.log.Debug("status changed",
			zap.Stringer("from", before.Status),
			zap.Stringer("to", state.Status),
			zap.Int("frame", state.Frame),
		)
	}

	s.sink.Publish(frame)
	s.updateTicker()
}

func (s *Session) updateTicker() {
	if s.op == nil {
		return
	}
	if s.state.Status != Playing {
		s.stopTicker()
		return
	}

	interval := s.state.Speed.Interval()
	switch {
	case s.ticker == nil:
		s.ticker = s.newTicker(interval)
	case interval != s.tickerInterval:
		s.ticker.Reset(interval)
	}
	s.tickerInterval = interval
}

func (s *Session) stopTicker() {
	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	s.ticker = nil
	s.tickerInterval = 0
}
