// Package playback reveals a strip incrementally, tick by tick, like a running ECG monitor.
//
// The transitions of the playback are pure functions of the current State, the Strip and an Event.
// Each transition returns the new state and an Update that describes everything a viewer needs
// to render the change. A Session drives the transitions from a ticker and publishes the updates.
package playback

import (
	"fmt"

	"github.com/ftl/ecgscope/fiducial"
)

type Status int

const (
	Stopped Status = iota
	Playing
	Paused
	Complete
)

var statusNames = map[Status]string{
	Stopped:  "stopped",
	Playing:  "playing",
	Paused:   "paused",
	Complete: "complete",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	for status, name := range statusNames {
		if name == string(text) {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", string(text))
}

// State of the playback. Frame is the number of samples revealed so far.
type State struct {
	Frame  int    `json:"frame"`
	Status Status `json:"status"`
	Speed  Speed  `json:"speed"`
}

func NewState() State {
	return State{Status: Stopped, Speed: NormalSpeed}
}

// Segment of samples that was revealed with a tick. Start is the index of Y[0] in the strip.
type Segment struct {
	Start int       `json:"start"`
	Y     []float64 `json:"y"`
}

func (s Segment) End() int {
	return s.Start + len(s.Y)
}

// Update describes one change of the playback. Viewers apply it as a whole: first clear
// everything if Cleared is set, then append the segment, then show the markers within the viewport.
type Update struct {
	Frame    int                `json:"frame"`
	Status   Status             `json:"status"`
	Speed    Speed              `json:"speed"`
	Appended *Segment           `json:"appended,omitempty"`
	Viewport Viewport           `json:"viewport"`
	Markers  fiducial.Positions `json:"markers"`
	Cleared  bool               `json:"cleared,omitempty"`
}

func newUpdate(state State, strip *Strip) *Update {
	return &Update{
		Frame:    state.Frame,
		Status:   state.Status,
		Speed:    state.Speed,
		Viewport: strip.ViewportAt(state.Frame),
		Markers:  strip.MarkersAt(state.Frame),
	}
}

type EventKind int

const (
	PlayEvent EventKind = iota
	PauseEvent
	ToggleEvent
	ResetEvent
	TickEvent
	SetSpeedEvent
)

var eventNames = map[EventKind]string{
	PlayEvent:     "play",
	PauseEvent:    "pause",
	ToggleEvent:   "toggle",
	ResetEvent:    "reset",
	TickEvent:     "tick",
	SetSpeedEvent: "speed",
}

func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event triggers a transition. Speed is only used by SetSpeedEvent.
type Event struct {
	Kind  EventKind
	Speed Speed
}

// Apply dispatches the event to its transition. The returned update is nil if the event did not change anything.
func Apply(state State, strip *Strip, event Event) (State, *Update) {
	switch event.Kind {
	case PlayEvent:
		return Play(state, strip)
	case PauseEvent:
		return Pause(state, strip)
	case ToggleEvent:
		return Toggle(state, strip)
	case ResetEvent:
		return Reset(state, strip)
	case TickEvent:
		return Tick(state, strip)
	case SetSpeedEvent:
		return SetSpeed(state, strip, event.Speed)
	default:
		return state, nil
	}
}

// Play starts or resumes the playback. A completed playback starts over from the beginning.
// Without a strip, the playback stays stopped.
func Play(state State, strip *Strip) (State, *Update) {
	if strip.Empty() {
		if state.Frame == 0 && state.Status == Stopped {
			return state, nil
		}
		state.Frame = 0
		state.Status = Stopped
		update := newUpdate(state, strip)
		update.Cleared = true
		return state, update
	}
	if state.Status == Playing {
		return state, nil
	}

	restart := state.Frame >= strip.Len()
	if restart {
		state.Frame = 0
	}
	state.Status = Playing

	update := newUpdate(state, strip)
	update.Cleared = restart
	return state, update
}

// Pause holds a running playback at its current frame.
func Pause(state State, strip *Strip) (State, *Update) {
	if state.Status != Playing {
		return state, nil
	}
	state.Status = Paused
	return state, newUpdate(state, strip)
}

// Toggle pauses a running playback and plays otherwise.
func Toggle(state State, strip *Strip) (State, *Update) {
	if state.Status == Playing {
		return Pause(state, strip)
	}
	return Play(state, strip)
}

// Reset stops the playback and clears everything that was revealed so far. Reset can be applied
// in any state, applying it twice has the same result as applying it once.
func Reset(state State, strip *Strip) (State, *Update) {
	state.Frame = 0
	state.Status = Stopped
	update := newUpdate(state, strip)
	update.Cleared = true
	return state, update
}

// Tick reveals the next samples of a running playback. When the end of the strip is reached,
// the playback is complete. Ticks are ignored unless the playback is running.
func Tick(state State, strip *Strip) (State, *Update) {
	if state.Status != Playing || strip.Empty() {
		return state, nil
	}

	total := strip.Len()
	from := min(state.Frame, total)
	to := min(from+state.Speed.Step(total), total)
	state.Frame = to
	if to >= total {
		state.Status = Complete
	}

	update := newUpdate(state, strip)
	update.Appended = &Segment{Start: from, Y: strip.Samples[from:to]}
	return state, update
}

// SetSpeed changes the speed. The new speed applies with the next tick, the status does not change.
func SetSpeed(state State, strip *Strip, speed Speed) (State, *Update) {
	if _, ok := speedPresets[speed]; !ok {
		speed = NormalSpeed
	}
	if state.Speed == speed {
		return state, nil
	}
	state.Speed = speed
	return state, newUpdate(state, strip)
}
