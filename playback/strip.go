package playback

import (
	"fmt"

	"github.com/ftl/ecgscope/ecg"
	"github.com/ftl/ecgscope/fiducial"
)

const (
	viewportBeats = 3

	yPaddingBelow = 0.1
	yPaddingAbove = 0.15
)

// Strip is the synthesized waveform that is played back, together with its precomputed fiducials.
// A strip is never modified after it was built.
type Strip struct {
	Dataset    ecg.Dataset
	Class      ecg.Class
	Samples    []float64
	BeatLength int

	// Beat is the detection result of the first beat.
	Beat fiducial.Result
	// Fiducials of all beats in strip coordinates.
	Fiducials fiducial.Positions

	YMin float64
	YMax float64
}

// NewStrip synthesizes a strip of the given number of beats of the given class and detects its fiducials.
func NewStrip(dataset ecg.Dataset, class ecg.Class, beatLength int, beats int) (*Strip, error) {
	samples, err := ecg.GenerateStrip(beatLength, beats, class)
	if err != nil {
		return nil, fmt.Errorf("cannot build strip: %w", err)
	}
	return newStrip(dataset, class, samples, beatLength)
}

// NewStripFromSamples wraps existing samples, e.g. a recorded strip.
func NewStripFromSamples(dataset ecg.Dataset, class ecg.Class, samples []float64, beatLength int) (*Strip, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("cannot build strip: %w", ecg.ErrInvalidBeatLength)
	}
	return newStrip(dataset, class, append([]float64{}, samples...), beatLength)
}

func newStrip(dataset ecg.Dataset, class ecg.Class, samples []float64, beatLength int) (*Strip, error) {
	beats, err := fiducial.DetectStrip(samples, beatLength)
	if err != nil {
		return nil, fmt.Errorf("cannot detect fiducials: %w", err)
	}

	result := &Strip{
		Dataset:    dataset,
		Class:      class,
		Samples:    samples,
		BeatLength: beatLength,
		Beat:       fiducial.Detect(samples[:min(beatLength, len(samples))]),
		Fiducials:  fiducial.Group(beats),
		YMin:       samples[0],
		YMax:       samples[0],
	}
	for _, v := range samples {
		result.YMin = min(result.YMin, v)
		result.YMax = max(result.YMax, v)
	}
	result.YMin -= yPaddingBelow
	result.YMax += yPaddingAbove

	return result, nil
}

// Len is the number of samples in the strip. A nil strip is empty.
func (s *Strip) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Samples)
}

// Empty indicates that there is nothing to play back.
func (s *Strip) Empty() bool {
	return s.Len() == 0
}

func (s *Strip) beatLength() int {
	if s == nil || s.BeatLength <= 0 {
		return ecg.DefaultBeatLength
	}
	return s.BeatLength
}

// ViewportAt returns the viewport of this strip at the given frame.
func (s *Strip) ViewportAt(frame int) Viewport {
	return ViewportAt(frame, s.beatLength())
}

// Viewport is the visible range [Start, End] of the strip.
type Viewport struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// ViewportAt returns the viewport of three beats that follows the given frame: it stays at the beginning
// until the frame passes the initial width, then it scrolls so that the frame is at the right edge.
func ViewportAt(frame int, beatLength int) Viewport {
	width := viewportBeats * beatLength
	end := max(width, frame)
	start := max(0, end-width)
	return Viewport{Start: start, End: start + width}
}

// MarkersAt returns the fiducials that are already revealed at the given frame.
func (s *Strip) MarkersAt(frame int) fiducial.Positions {
	if s == nil {
		return fiducial.Positions(nil).Visible(frame)
	}
	return s.Fiducials.Visible(frame)
}
