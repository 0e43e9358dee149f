package fiducial

import (
	"errors"
	"fmt"
)

var ErrInvalidBeatLength = errors.New("beat length must be positive")

// Beat holds the fiducials of one beat within a strip, in strip coordinates.
type Beat struct {
	P *Point `json:"P,omitempty" yaml:"P,omitempty"`
	Q *Point `json:"Q,omitempty" yaml:"Q,omitempty"`
	R *Point `json:"R,omitempty" yaml:"R,omitempty"`
	S *Point `json:"S,omitempty" yaml:"S,omitempty"`
	T *Point `json:"T,omitempty" yaml:"T,omitempty"`
}

func (b Beat) Point(kind Kind) *Point {
	switch kind {
	case P:
		return b.P
	case Q:
		return b.Q
	case R:
		return b.R
	case S:
		return b.S
	case T:
		return b.T
	default:
		return nil
	}
}

func offset(p *Point, offset int) *Point {
	if p == nil {
		return nil
	}
	return &Point{Index: p.Index + offset, Amplitude: p.Amplitude}
}

// DetectStrip cuts the strip into windows of beatLength samples and detects the fiducials
// of each window. There is at least one window; a trailing partial window is not analyzed.
// Windows shorter than MinBeatLength are skipped, the order of the windows is preserved.
func DetectStrip(strip []float64, beatLength int) ([]Beat, error) {
	if beatLength <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBeatLength, beatLength)
	}

	beatCount := max(1, len(strip)/beatLength)
	result := make([]Beat, 0, beatCount)
	for i := 0; i < beatCount; i++ {
		start := i * beatLength
		end := min(start+beatLength, len(strip))
		if end-start < MinBeatLength {
			continue
		}

		fiducials := Detect(strip[start:end])
		result = append(result, Beat{
			P: offset(fiducials.P, start),
			Q: offset(fiducials.Q, start),
			R: offset(fiducials.R, start),
			S: offset(fiducials.S, start),
			T: offset(fiducials.T, start),
		})
	}
	return result, nil
}

// Series of fiducials of one kind, split into x and y for plotting.
type Series struct {
	X []int     `json:"x" yaml:"x"`
	Y []float64 `json:"y" yaml:"y"`
}

func (s Series) Len() int {
	return len(s.X)
}

// Positions groups the fiducials of a strip by kind.
type Positions map[Kind]Series

// Group collects the fiducials of all beats by kind, in beat order. Every kind is present
// in the result, even if no fiducial of that kind was found.
func Group(beats []Beat) Positions {
	result := make(Positions, len(Kinds))
	for _, kind := range Kinds {
		series := Series{X: []int{}, Y: []float64{}}
		for _, beat := range beats {
			p := beat.Point(kind)
			if p == nil {
				continue
			}
			series.X = append(series.X, p.Index)
			series.Y = append(series.Y, p.Amplitude)
		}
		result[kind] = series
	}
	return result
}

// Visible returns only the fiducials that were already revealed at the given frame, i.e. all
// fiducials with an index strictly smaller than the frame.
func (p Positions) Visible(frame int) Positions {
	result := make(Positions, len(Kinds))
	for _, kind := range Kinds {
		series := p[kind]
		visible := Series{X: []int{}, Y: []float64{}}
		for i, x := range series.X {
			if x < frame {
				visible.X = append(visible.X, x)
				visible.Y = append(visible.Y, series.Y[i])
			}
		}
		result[kind] = visible
	}
	return result
}

// Count is the total number of fiducials of all kinds.
func (p Positions) Count() int {
	result := 0
	for _, series := range p {
		result += series.Len()
	}
	return result
}
