package playback

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ftl/ecgscope/ecg"
)

type manualClock struct {
	now time.Time
}

func (c *manualClock) Now() time.Time {
	return c.now
}

type manualTicker struct {
	c chan time.Time

	mu       sync.Mutex
	interval time.Duration
	stopped  bool
}

func (t *manualTicker) C() <-chan time.Time {
	return t.c
}

func (t *manualTicker) Reset(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.interval = d
}

func (t *manualTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *manualTicker) Interval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.interval
}

func (t *manualTicker) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// fire blocks until the session received the tick.
func (t *manualTicker) fire() {
	t.c <- time.Time{}
}

type manualTickers struct {
	mu      sync.Mutex
	tickers []*manualTicker
}

func (m *manualTickers) New(d time.Duration) Ticker {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := &manualTicker{c: make(chan time.Time), interval: d}
	m.tickers = append(m.tickers, result)
	return result
}

func (m *manualTickers) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tickers)
}

func (m *manualTickers) Last() *manualTicker {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.tickers) == 0 {
		return nil
	}
	return m.tickers[len(m.tickers)-1]
}

type frameRecorder struct {
	mu     sync.Mutex
	frames []Frame
}

func (r *frameRecorder) Publish(frame Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frame)
}

func (r *frameRecorder) Frames() []Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Frame{}, r.frames...)
}

type recordingTracer struct {
	mu      sync.Mutex
	started bool
	lines   []string
}

func (t *recordingTracer) Context() string { return TraceTicks }

func (t *recordingTracer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.started = true
}

func (t *recordingTracer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.started = false
}

func (t *recordingTracer) Trace(context string, format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if context != TraceTicks {
		return
	}
	t.lines = append(t.lines, fmt.Sprintf(format, args...))
}

func (t *recordingTracer) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string{}, t.lines...)
}

func newTestSession(t *testing.T) (*Session, *manualTickers, *frameRecorder) {
	t.Helper()
	tickers := new(manualTickers)
	recorder := new(frameRecorder)
	clock := &manualClock{now: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}

	session := NewSession("test", nil, clock, recorder)
	session.SetTickerFunc(tickers.New)
	session.Start()
	t.Cleanup(session.Stop)

	return session, tickers, recorder
}

func TestSession_SelectResetsPlayback(t *testing.T) {
	session, _, recorder := newTestSession(t)

	err := session.Select(ecg.MITBIH, ecg.Ventricular)
	require.NoError(t, err)

	snapshot := session.Snapshot()
	assert.Equal(t, "test", snapshot.Session)
	assert.Equal(t, ecg.MITBIH, snapshot.Dataset)
	assert.Equal(t, ecg.Ventricular, snapshot.Class)
	assert.Equal(t, Stopped, snapshot.Status)
	assert.Equal(t, 0, snapshot.Frame)
	assert.Equal(t, 4000, snapshot.Total)
	assert.Equal(t, Viewport{0, 600}, snapshot.Viewport)

	frames := recorder.Frames()
	require.Len(t, frames, 1)
	assert.True(t, frames[0].Cleared)
	assert.Equal(t, uint64(1), frames[0].Sequence)
	assert.Equal(t, "test", frames[0].Session)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), frames[0].Timestamp)
}

func TestSession_SelectDefaultClass(t *testing.T) {
	session, _, _ := newTestSession(t)

	require.NoError(t, session.Select(ecg.PTBDB, ""))

	assert.Equal(t, ecg.Normal, session.Snapshot().Class)
}

func TestSession_SelectUnknownDataset(t *testing.T) {
	session, _, recorder := newTestSession(t)

	err := session.Select("other", ecg.NormalN)

	assert.ErrorIs(t, err, ecg.ErrUnknownDataset)
	assert.Nil(t, session.Strip())
	assert.Empty(t, recorder.Frames())
}

func TestSession_TickerRunsOnlyWhilePlaying(t *testing.T) {
	session, tickers, recorder := newTestSession(t)
	require.NoError(t, session.Select(ecg.MITBIH, ecg.NormalN))
	assert.Equal(t, 0, tickers.Len())

	session.Play()
	session.Snapshot()
	require.Equal(t, 1, tickers.Len())
	ticker := tickers.Last()
	assert.Equal(t, 100*time.Millisecond, ticker.Interval())

	ticker.fire()
	ticker.fire()
	assert.Equal(t, 54, session.Snapshot().Frame)

	session.SetSpeed(FastSpeed)
	session.Snapshot()
	assert.Equal(t, 1, tickers.Len(), "the ticker is reconfigured, not replaced")
	assert.Equal(t, 50*time.Millisecond, ticker.Interval())

	ticker.fire()
	assert.Equal(t, 74, session.Snapshot().Frame)

	session.Pause()
	snapshot := session.Snapshot()
	assert.Equal(t, Paused, snapshot.Status)
	assert.True(t, ticker.Stopped())

	session.Toggle()
	session.Snapshot()
	require.Equal(t, 2, tickers.Len())
	assert.Equal(t, 50*time.Millisecond, tickers.Last().Interval())

	frames := recorder.Frames()
	for i, frame := range frames {
		assert.Equal(t, uint64(i+1), frame.Sequence)
	}
}

func TestSession_PlaysToCompletion(t *testing.T) {
	session, tickers, recorder := newTestSession(t)
	require.NoError(t, session.Select(ecg.MITBIH, ecg.NormalN))

	session.Play()
	session.Snapshot()
	ticker := tickers.Last()
	for i := 0; i < 149; i++ {
		ticker.fire()
	}

	snapshot := session.Snapshot()
	assert.Equal(t, Complete, snapshot.Status)
	assert.Equal(t, 4000, snapshot.Frame)
	assert.True(t, ticker.Stopped())

	session.Tick()
	assert.Equal(t, snapshot, session.Snapshot(), "ticks are ignored when complete")

	frames := recorder.Frames()
	last := frames[len(frames)-1]
	assert.Equal(t, Complete, last.Status)
	assert.Equal(t, 4000, last.Appended.End())

	revealed := 0
	for _, frame := range frames {
		if frame.Appended != nil {
			assert.Equal(t, revealed, frame.Appended.Start)
			revealed = frame.Appended.End()
		}
	}
	assert.Equal(t, 4000, revealed)

	session.Play()
	snapshot = session.Snapshot()
	assert.Equal(t, Playing, snapshot.Status)
	assert.Equal(t, 0, snapshot.Frame)
}

func TestSession_ManualTick(t *testing.T) {
	session, _, _ := newTestSession(t)
	require.NoError(t, session.Select(ecg.MITBIH, ecg.NormalN))

	session.Tick()
	assert.Equal(t, 0, session.Snapshot().Frame, "not playing")

	session.Play()
	session.Tick()
	assert.Equal(t, 27, session.Snapshot().Frame)

	session.Reset()
	session.Reset()
	snapshot := session.Snapshot()
	assert.Equal(t, 0, snapshot.Frame)
	assert.Equal(t, Stopped, snapshot.Status)
}

func TestSession_WithoutGoroutine(t *testing.T) {
	recorder := new(frameRecorder)
	session := NewSession("", nil, nil, recorder)
	assert.NotEmpty(t, session.ID())

	require.NoError(t, session.Select(ecg.MITBIH, ecg.NormalN))
	session.Play()
	session.Tick()

	assert.Equal(t, 27, session.Snapshot().Frame)
	assert.Len(t, recorder.Frames(), 3)
}

func TestSession_Tracer(t *testing.T) {
	session, tickers, _ := newTestSession(t)
	tracer := new(recordingTracer)
	session.SetTracer(tracer)
	require.NoError(t, session.Select(ecg.MITBIH, ecg.NormalN))

	session.Play()
	session.Snapshot()
	tickers.Last().fire()
	session.Snapshot()

	lines := tracer.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "3;0;27;playing\n", lines[0])
	assert.True(t, strings.HasSuffix(lines[0], "\n"))
}

func TestSession_SetBeatLayout(t *testing.T) {
	session, _, _ := newTestSession(t)

	assert.ErrorIs(t, session.SetBeatLayout(0, 10), ecg.ErrInvalidBeatLength)
	assert.ErrorIs(t, session.SetBeatLayout(100, 0), ecg.ErrInvalidBeatCount)

	require.NoError(t, session.SetBeatLayout(100, 10))
	require.NoError(t, session.Select(ecg.PTBDB, ecg.Abnormal))

	snapshot := session.Snapshot()
	assert.Equal(t, 1000, snapshot.Total)
	assert.Equal(t, 100, snapshot.BeatLength)
	assert.Equal(t, Viewport{0, 300}, snapshot.Viewport)
}
