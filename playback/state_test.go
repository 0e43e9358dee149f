package playback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ftl/ecgscope/ecg"
	"github.com/ftl/ecgscope/fiducial"
)

func newTestStrip(t *testing.T) *Strip {
	t.Helper()
	strip, err := NewStrip(ecg.MITBIH, ecg.NormalN, ecg.DefaultBeatLength, ecg.DefaultBeatCount)
	require.NoError(t, err)
	return strip
}

func TestPlay(t *testing.T) {
	strip := newTestStrip(t)
	tt := []struct {
		desc          string
		state         State
		expectedFrame int
		cleared       bool
	}{
		{"from stopped", State{Frame: 0, Status: Stopped, Speed: NormalSpeed}, 0, false},
		{"from paused", State{Frame: 270, Status: Paused, Speed: NormalSpeed}, 270, false},
		{"from complete", State{Frame: 4000, Status: Complete, Speed: NormalSpeed}, 0, true},
	}
	for _, tc := range tt {
		t.Run(tc.desc, func(t *testing.T) {
			state, update := Play(tc.state, strip)

			assert.Equal(t, Playing, state.Status)
			assert.Equal(t, tc.expectedFrame, state.Frame)
			require.NotNil(t, update)
			assert.Equal(t, Playing, update.Status)
			assert.Equal(t, tc.expectedFrame, update.Frame)
			assert.Equal(t, tc.cleared, update.Cleared)
			assert.Nil(t, update.Appended)
		})
	}
}

func TestPlay_WhilePlaying(t *testing.T) {
	state := State{Frame: 54, Status: Playing, Speed: NormalSpeed}

	actual, update := Play(state, newTestStrip(t))

	assert.Equal(t, state, actual)
	assert.Nil(t, update)
}

func TestPlay_WithoutStrip(t *testing.T) {
	state, update := Play(NewState(), nil)
	assert.Equal(t, NewState(), state)
	assert.Nil(t, update)

	state, update = Play(State{Frame: 10, Status: Paused, Speed: FastSpeed}, &Strip{})
	assert.Equal(t, State{Frame: 0, Status: Stopped, Speed: FastSpeed}, state)
	require.NotNil(t, update)
	assert.True(t, update.Cleared)
}

func TestPause(t *testing.T) {
	strip := newTestStrip(t)

	state, update := Pause(State{Frame: 54, Status: Playing, Speed: NormalSpeed}, strip)
	assert.Equal(t, State{Frame: 54, Status: Paused, Speed: NormalSpeed}, state)
	require.NotNil(t, update)
	assert.Equal(t, Paused, update.Status)

	for _, status := range []Status{Stopped, Paused, Complete} {
		state := State{Frame: 54, Status: status, Speed: NormalSpeed}
		actual, update := Pause(state, strip)
		assert.Equal(t, state, actual)
		assert.Nil(t, update)
	}
}

func TestToggle(t *testing.T) {
	strip := newTestStrip(t)

	state, _ := Toggle(NewState(), strip)
	assert.Equal(t, Playing, state.Status)

	state, _ = Toggle(state, strip)
	assert.Equal(t, Paused, state.Status)

	state, _ = Toggle(state, strip)
	assert.Equal(t, Playing, state.Status)
}

func TestReset_Idempotent(t *testing.T) {
	strip := newTestStrip(t)
	for _, state := range []State{
		NewState(),
		{Frame: 1234, Status: Playing, Speed: FastSpeed},
		{Frame: 1234, Status: Paused, Speed: SlowSpeed},
		{Frame: 4000, Status: Complete, Speed: NormalSpeed},
	} {
		once, firstUpdate := Reset(state, strip)
		twice, secondUpdate := Reset(once, strip)

		expected := State{Frame: 0, Status: Stopped, Speed: state.Speed}
		assert.Equal(t, expected, once)
		assert.Equal(t, expected, twice)
		assert.Equal(t, firstUpdate, secondUpdate)

		require.NotNil(t, firstUpdate)
		assert.True(t, firstUpdate.Cleared)
		assert.Equal(t, Viewport{Start: 0, End: 600}, firstUpdate.Viewport)
		assert.Equal(t, 0, firstUpdate.Markers.Count())
	}
}

func TestTick(t *testing.T) {
	strip := newTestStrip(t)

	state, update := Tick(State{Frame: 27, Status: Playing, Speed: NormalSpeed}, strip)

	assert.Equal(t, State{Frame: 54, Status: Playing, Speed: NormalSpeed}, state)
	require.NotNil(t, update)
	require.NotNil(t, update.Appended)
	assert.Equal(t, 27, update.Appended.Start)
	assert.Equal(t, 54, update.Appended.End())
	assert.Equal(t, strip.Samples[27:54], update.Appended.Y)
	assert.Equal(t, Viewport{Start: 0, End: 600}, update.Viewport)
	assert.False(t, update.Cleared)
}

func TestTick_IgnoredUnlessPlaying(t *testing.T) {
	strip := newTestStrip(t)
	for _, status := range []Status{Stopped, Paused, Complete} {
		state := State{Frame: 27, Status: status, Speed: NormalSpeed}
		actual, update := Tick(state, strip)
		assert.Equal(t, state, actual)
		assert.Nil(t, update)
	}

	state := State{Frame: 0, Status: Playing, Speed: NormalSpeed}
	actual, update := Tick(state, nil)
	assert.Equal(t, state, actual)
	assert.Nil(t, update)
}

func TestTick_MonotonicUntilComplete(t *testing.T) {
	strip := newTestStrip(t)
	for _, speed := range Speeds() {
		t.Run(string(speed), func(t *testing.T) {
			state, _ := Play(State{Speed: speed}, strip)
			lastFrame := state.Frame
			ticks := 0
			for state.Status == Playing {
				var update *Update
				state, update = Tick(state, strip)
				ticks++
				require.NotNil(t, update)
				assert.GreaterOrEqual(t, state.Frame, lastFrame)
				assert.LessOrEqual(t, state.Frame, strip.Len())
				assert.Equal(t, lastFrame, update.Appended.Start)
				lastFrame = state.Frame
				require.Less(t, ticks, 10000)
			}

			assert.Equal(t, Complete, state.Status)
			assert.Equal(t, strip.Len(), state.Frame)

			for i := 0; i < 3; i++ {
				next, update := Tick(state, strip)
				assert.Equal(t, state, next)
				assert.Nil(t, update)
			}
		})
	}
}

func TestSetSpeed(t *testing.T) {
	strip := newTestStrip(t)
	state := State{Frame: 27, Status: Playing, Speed: NormalSpeed}

	state, update := SetSpeed(state, strip, FastSpeed)
	assert.Equal(t, State{Frame: 27, Status: Playing, Speed: FastSpeed}, state)
	require.NotNil(t, update)
	assert.Equal(t, FastSpeed, update.Speed)

	state, _ = Tick(state, strip)
	assert.Equal(t, 27+20, state.Frame)

	state, update = SetSpeed(state, strip, FastSpeed)
	assert.Nil(t, update)

	state, _ = SetSpeed(state, strip, "warp")
	assert.Equal(t, NormalSpeed, state.Speed)
}

func TestApply(t *testing.T) {
	strip := newTestStrip(t)
	state := NewState()

	state, _ = Apply(state, strip, Event{Kind: PlayEvent})
	assert.Equal(t, Playing, state.Status)
	state, _ = Apply(state, strip, Event{Kind: TickEvent})
	assert.Equal(t, 27, state.Frame)
	state, _ = Apply(state, strip, Event{Kind: SetSpeedEvent, Speed: SlowSpeed})
	assert.Equal(t, SlowSpeed, state.Speed)
	state, _ = Apply(state, strip, Event{Kind: TickEvent})
	assert.Equal(t, 27+24, state.Frame)
	state, _ = Apply(state, strip, Event{Kind: ToggleEvent})
	assert.Equal(t, Paused, state.Status)
	state, _ = Apply(state, strip, Event{Kind: PauseEvent})
	assert.Equal(t, Paused, state.Status)
	state, _ = Apply(state, strip, Event{Kind: ResetEvent})
	assert.Equal(t, State{Frame: 0, Status: Stopped, Speed: SlowSpeed}, state)

	unchanged, update := Apply(state, strip, Event{Kind: EventKind(99)})
	assert.Equal(t, state, unchanged)
	assert.Nil(t, update)
}

func TestUpdate_MarkerVisibility(t *testing.T) {
	strip := newTestStrip(t)
	firstR := strip.Fiducials[fiducial.R].X[0]
	require.Equal(t, 72, firstR)

	_, update := Play(State{Frame: firstR, Status: Paused, Speed: NormalSpeed}, strip)
	assert.NotContains(t, update.Markers[fiducial.R].X, firstR)

	_, update = Play(State{Frame: firstR + 1, Status: Paused, Speed: NormalSpeed}, strip)
	assert.Contains(t, update.Markers[fiducial.R].X, firstR)
	assert.Equal(t, []int{firstR}, update.Markers[fiducial.R].X)
}

func TestEndToEnd(t *testing.T) {
	strip := newTestStrip(t)
	require.Equal(t, 4000, strip.Len())
	require.Equal(t, 27, NormalSpeed.Step(strip.Len()))

	state, _ := Play(NewState(), strip)
	var last *Update
	ticks := 0
	for ; ticks < 150 && state.Status == Playing; ticks++ {
		state, last = Tick(state, strip)
	}

	assert.Equal(t, Complete, state.Status)
	assert.Equal(t, 4000, state.Frame)
	assert.Equal(t, 149, ticks)
	require.NotNil(t, last)
	assert.Equal(t, Complete, last.Status)
	assert.Equal(t, Viewport{Start: 3400, End: 4000}, last.Viewport)
	assert.Equal(t, 20, len(last.Markers[fiducial.R].X))
	assert.Equal(t, strip.Fiducials.Count(), last.Markers.Count())
}
