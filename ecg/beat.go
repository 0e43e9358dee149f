// Package ecg synthesizes single ECG beats as a sum of Gaussian waves, one set of wave
// parameters per diagnostic class, and builds strips of repeated beats.
package ecg

import (
	"errors"
	"fmt"
	"math"
)

const (
	DefaultBeatLength = 200
	DefaultBeatCount  = 20
)

var (
	ErrInvalidBeatLength = errors.New("beat length must be positive")
	ErrInvalidBeatCount  = errors.New("beat count must be positive")
)

// Class is the diagnostic label of a beat.
type Class string

const (
	NormalN          Class = "Normal (N)"
	Supraventricular Class = "Supraventricular (S)"
	Ventricular      Class = "Ventricular (V)"
	Fusion           Class = "Fusion (F)"
	Unknown          Class = "Unknown (Q)"
	Normal           Class = "Normal"
	Abnormal         Class = "Abnormal"
)

func (c Class) String() string {
	return string(c)
}

// Wave is one Gaussian component of a beat. Center and Width are given in beat time (0..1).
type Wave struct {
	Amplitude float64
	Center    float64
	Width     float64
}

func (w Wave) At(t float64) float64 {
	d := t - w.Center
	return w.Amplitude * math.Exp(-(d*d)/(2*w.Width*w.Width))
}

// Morphology holds the five waves that make up one beat.
type Morphology struct {
	P, Q, R, S, T Wave
}

// Waves returns the waves in P, Q, R, S, T order.
func (m Morphology) Waves() []Wave {
	return []Wave{m.P, m.Q, m.R, m.S, m.T}
}

var DefaultMorphology = Morphology{
	P: Wave{Amplitude: 0.12, Center: 0.20, Width: 0.04},
	Q: Wave{Amplitude: -0.08, Center: 0.33, Width: 0.012},
	R: Wave{Amplitude: 1.0, Center: 0.36, Width: 0.015},
	S: Wave{Amplitude: -0.15, Center: 0.39, Width: 0.012},
	T: Wave{Amplitude: 0.25, Center: 0.55, Width: 0.06},
}

var overrides = map[Class]func(*Morphology){
	Supraventricular: func(m *Morphology) {
		m.P.Amplitude = 0.18
		m.P.Width = 0.03
		m.T.Amplitude = 0.20
		m.T.Width = 0.05
	},
	Ventricular: func(m *Morphology) {
		m.Q.Amplitude = -0.15
		m.R.Width = 0.025
		m.S.Amplitude = -0.25
		m.T.Amplitude = 0.15
		m.T.Center = 0.60
		m.T.Width = 0.08
	},
	Fusion: func(m *Morphology) {
		m.R.Width = 0.022
		m.S.Amplitude = -0.20
		m.T.Amplitude = 0.18
		m.Q.Amplitude = -0.10
	},
	Unknown: func(m *Morphology) {
		m.P.Amplitude = 0.06
		m.R.Amplitude = 0.65
		m.T.Amplitude = 0.12
		m.R.Width = 0.020
	},
	Abnormal: func(m *Morphology) {
		m.Q.Amplitude = -0.12
		m.S.Amplitude = -0.22
		m.T.Amplitude = 0.35
		m.T.Center = 0.50
		m.T.Width = 0.055
	},
}

// MorphologyOf returns the wave parameters of the given class. Classes without overrides,
// including unknown labels, get the DefaultMorphology.
func MorphologyOf(class Class) Morphology {
	result := DefaultMorphology
	if override, ok := overrides[class]; ok {
		override(&result)
	}
	return result
}

// GenerateBeat synthesizes one beat of the given class with the given number of samples.
// The samples are evenly spaced over the beat time [0, 1].
func GenerateBeat(length int, class Class) ([]float64, error) {
	if length <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBeatLength, length)
	}

	morphology := MorphologyOf(class)
	result := make([]float64, length)
	for i := range result {
		t := timeAt(i, length)
		for _, wave := range morphology.Waves() {
			result[i] += wave.At(t)
		}
	}
	return result, nil
}

func timeAt(i, length int) float64 {
	if length == 1 {
		return 0
	}
	return float64(i) / float64(length-1)
}

// BuildStrip concatenates the given beat count times.
func BuildStrip(beat []float64, count int) ([]float64, error) {
	if len(beat) == 0 {
		return nil, fmt.Errorf("%w: empty beat", ErrInvalidBeatLength)
	}
	if count <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBeatCount, count)
	}

	result := make([]float64, 0, len(beat)*count)
	for i := 0; i < count; i++ {
		result = append(result, beat...)
	}
	return result, nil
}

// GenerateStrip synthesizes a strip of count beats of the given class.
func GenerateStrip(beatLength, count int, class Class) ([]float64, error) {
	beat, err := GenerateBeat(beatLength, class)
	if err != nil {
		return nil, err
	}
	return BuildStrip(beat, count)
}
