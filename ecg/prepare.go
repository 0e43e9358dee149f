package ecg

import (
	"github.com/ftl/ecgscope/dsp"
)

const (
	leadingTrim   = 15
	trailingTrim  = 5
	flatEpsilon   = 1e-8
	prepareWindow = 3

	periodShare = 0.9
)

// PrepareBeat cleans up a raw sampled beat for detection: it cuts off the recording
// artifacts at both ends, scales the beat into [0, 1] and smooths it lightly.
func PrepareBeat(raw []float64) []float64 {
	beat := raw
	if len(beat) > leadingTrim {
		beat = beat[leadingTrim:]
	} else {
		beat = nil
	}
	if len(beat) > trailingTrim {
		beat = beat[:len(beat)-trailingTrim]
	}
	if len(beat) == 0 {
		return []float64{}
	}

	normalized := dsp.Normalize(dsp.Block[float64](beat), flatEpsilon)
	return dsp.MovingAverage(normalized, prepareWindow)
}

// Features describe the overall shape of a beat.
type Features struct {
	PeakAmplitude float64 `json:"peak_amplitude" yaml:"peak_amplitude"`
	Energy        float64 `json:"energy" yaml:"energy"`
	ZeroCrossings int     `json:"zero_crossings" yaml:"zero_crossings"`
}

// FeaturesOf computes the features of the given beat. Zero crossings are counted around 0.5,
// the center line of a normalized beat.
func FeaturesOf(beat []float64) Features {
	if len(beat) == 0 {
		return Features{}
	}

	block := dsp.Block[float64](beat)
	peak, _ := block.Max(0, len(block)-1)
	result := Features{PeakAmplitude: peak}

	lastSign := sign(beat[0] - 0.5)
	for _, v := range beat {
		result.Energy += v * v
		s := sign(v - 0.5)
		if s != lastSign {
			result.ZeroCrossings++
		}
		lastSign = s
	}
	return result
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// DominantPeriod estimates the length of one beat in a strip of repeated beats.
// It returns 0 if the strip shows no repetition.
func DominantPeriod(strip []float64) int {
	if len(strip) < 2 {
		return 0
	}
	fft := dsp.NewFFT[float64]()
	correlation := fft.Autocorrelation(strip)
	return dsp.FundamentalLag(correlation, periodShare)
}

// MeanFeatures averages the features of several beats, as shown per class.
func MeanFeatures(beats [][]float64) (peakAmplitude, energy, zeroCrossings float64) {
	if len(beats) == 0 {
		return 0, 0, 0
	}
	for _, beat := range beats {
		f := FeaturesOf(beat)
		peakAmplitude += f.PeakAmplitude
		energy += f.Energy
		zeroCrossings += float64(f.ZeroCrossings)
	}
	n := float64(len(beats))
	return peakAmplitude / n, energy / n, zeroCrossings / n
}
