// Package fiducial locates the characteristic points of a heartbeat: the P wave peak, the Q point,
// the R peak, the S point and the T wave peak, together with the PR, QT and ST intervals between them.
package fiducial

import (
	"github.com/ftl/ecgscope/dsp"
)

const (
	// MinBeatLength is the shortest beat that is analyzed at all.
	MinBeatLength = 10
	// FlatThreshold is the minimal peak-to-peak range of a beat. Flatter beats carry no fiducials.
	FlatThreshold = 0.15

	smoothingWindow = 5

	// the search windows for Q/S and for the start of T, as share of the beat length
	qsWindowShare = 0.18
	tOffsetShare  = 0.12
	pRegionShare  = 0.40

	// minimal drop of Q/S below R, as share of the beat's range
	qsDrop = 0.1

	pMinRegion     = 5
	pDistance      = 3
	pProminence    = 0.01
	pFallbackRise  = 0.02
	tMinRegion     = 5
	tSkipAfterS    = 5
	tDistance      = 5
	tProminence    = 0.03
	tFallbackRise  = 0.05
	pFallbackStart = 1
)

type Kind string

const (
	P Kind = "P"
	Q Kind = "Q"
	R Kind = "R"
	S Kind = "S"
	T Kind = "T"
)

// Kinds in temporal order.
var Kinds = []Kind{P, Q, R, S, T}

// Point is one detected fiducial.
type Point struct {
	Index     int     `json:"index" yaml:"index"`
	Amplitude float64 `json:"amplitude" yaml:"amplitude"`
}

// Interval between two fiducials. Length is End - Start and may be negative if the detector
// found the points in an unexpected order.
type Interval struct {
	Start  int `json:"start" yaml:"start"`
	End    int `json:"end" yaml:"end"`
	Length int `json:"length" yaml:"length"`
}

func newInterval(start, end *Point) *Interval {
	if start == nil || end == nil {
		return nil
	}
	return &Interval{
		Start:  start.Index,
		End:    end.Index,
		Length: end.Index - start.Index,
	}
}

// Inverted indicates that the end of the interval precedes its start.
func (i Interval) Inverted() bool {
	return i.Length < 0
}

// Result of the detection on a single beat. Everything that could not be found is nil.
type Result struct {
	R *Point `json:"R" yaml:"R"`
	Q *Point `json:"Q" yaml:"Q"`
	S *Point `json:"S" yaml:"S"`
	P *Point `json:"P" yaml:"P"`
	T *Point `json:"T" yaml:"T"`

	PRInterval *Interval `json:"PR_interval" yaml:"PR_interval"`
	QTInterval *Interval `json:"QT_interval" yaml:"QT_interval"`
	STSegment  *Interval `json:"ST_segment" yaml:"ST_segment"`
}

// Point returns the fiducial of the given kind.
func (r Result) Point(kind Kind) *Point {
	switch kind {
	case P:
		return r.P
	case Q:
		return r.Q
	case R:
		return r.R
	case S:
		return r.S
	case T:
		return r.T
	default:
		return nil
	}
}

// Found is the number of detected fiducials.
func (r Result) Found() int {
	result := 0
	for _, kind := range Kinds {
		if r.Point(kind) != nil {
			result++
		}
	}
	return result
}

// Detect finds the fiducials of the given beat. The beat is expected to be a single heartbeat,
// ideally normalized into [0, 1]. Detect never fails: beats that are too short or too flat
// simply yield an empty result.
func Detect(beat []float64) Result {
	n := len(beat)
	if n < MinBeatLength {
		return Result{}
	}
	signal := dsp.Block[float64](beat)
	signalRange := signal.Range()
	if signalRange < FlatThreshold {
		return Result{}
	}
	smoothed := dsp.MovingAverage(signal, smoothingWindow)

	var result Result
	rAmplitude, rIndex := signal.Max(0, n-1)
	result.R = &Point{Index: rIndex, Amplitude: rAmplitude}

	qsWindow := int(qsWindowShare * float64(n))
	minDrop := qsDrop * signalRange

	qStart := max(0, rIndex-qsWindow)
	if rIndex > qStart {
		qAmplitude, qIndex := signal.Min(qStart, rIndex-1)
		if rAmplitude-qAmplitude > minDrop {
			result.Q = &Point{Index: qIndex, Amplitude: qAmplitude}
		}
	}

	sStart := rIndex + 1
	sEnd := min(n, rIndex+qsWindow)
	if sEnd > sStart {
		sAmplitude, sIndex := signal.Min(sStart, sEnd-1)
		if rAmplitude-sAmplitude > minDrop {
			result.S = &Point{Index: sIndex, Amplitude: sAmplitude}
		}
	}

	result.P = detectP(signal, result.Q, rIndex, signalRange)
	result.T = detectT(signal, smoothed, result.S, rIndex, signalRange)

	result.PRInterval = newInterval(result.P, result.R)
	result.QTInterval = newInterval(result.Q, result.T)
	result.STSegment = newInterval(result.S, result.T)

	return result
}

// detectP looks for the tallest peak in the first part of the beat, before Q (or R).
func detectP(signal dsp.Block[float64], q *Point, rIndex int, signalRange float64) *Point {
	n := len(signal)
	pEnd := rIndex
	if q != nil {
		pEnd = q.Index
	}
	pEnd = min(pEnd, int(pRegionShare*float64(n)))
	if pEnd <= pMinRegion {
		return nil
	}

	region := signal[:pEnd]
	peaks := dsp.FindPeaks(region, dsp.PeakOptions{Distance: pDistance, Prominence: pProminence * signalRange})
	if len(peaks) > 0 {
		best := dsp.Tallest(region, peaks)
		return &Point{Index: best, Amplitude: signal[best]}
	}

	value, index := region.Max(0, len(region)-1)
	if index > pFallbackStart && value > region.Median()+pFallbackRise*signalRange {
		return &Point{Index: index, Amplitude: signal[index]}
	}
	return nil
}

// detectT looks for the tallest peak of the smoothed beat after S (or a fixed distance after R).
// The amplitude is taken from the unsmoothed beat.
func detectT(signal, smoothed dsp.Block[float64], s *Point, rIndex int, signalRange float64) *Point {
	n := len(signal)
	var tStart int
	if s != nil {
		tStart = s.Index + tSkipAfterS
	} else {
		tStart = rIndex + int(tOffsetShare*float64(n))
	}
	tStart = min(tStart, n-1)
	if n-tStart <= tMinRegion {
		return nil
	}

	region := smoothed[tStart:]
	peaks := dsp.FindPeaks(region, dsp.PeakOptions{Distance: tDistance, Prominence: tProminence * signalRange})
	if len(peaks) > 0 {
		index := tStart + dsp.Tallest(region, peaks)
		return &Point{Index: index, Amplitude: signal[index]}
	}

	value, best := region.Max(0, len(region)-1)
	if value > region.Median()+tFallbackRise*signalRange {
		index := tStart + best
		return &Point{Index: index, Amplitude: signal[index]}
	}
	return nil
}
