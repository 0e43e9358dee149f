package dsp

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
)

type FFT[T Number] struct {
	samples []float64
}

func NewFFT[T Number]() *FFT[T] {
	return &FFT[T]{}
}

// Autocorrelation returns the circular autocorrelation of the mean-free samples, normalized
// to 1 at lag 0. A constant signal yields all zeros.
func (f *FFT[T]) Autocorrelation(samples Block[T]) Block[float64] {
	f.setSamples(samples)
	n := len(f.samples)
	if n == 0 {
		return nil
	}

	var mean float64
	for _, s := range f.samples {
		mean += s
	}
	mean /= float64(n)
	for i := range f.samples {
		f.samples[i] -= mean
	}

	fftResult := fft.FFTReal(f.samples)
	for i, value := range fftResult {
		fftResult[i] = complex(PSD(value), 0)
	}
	correlation := fft.IFFT(fftResult)

	result := make(Block[float64], n)
	zeroLag := real(correlation[0])
	if zeroLag == 0 {
		return result
	}
	for i, value := range correlation {
		result[i] = real(value) / zeroLag
	}
	return result
}

func (f *FFT[T]) setSamples(samples Block[T]) {
	if len(f.samples) != len(samples) {
		f.samples = make([]float64, len(samples))
	}
	for i, s := range samples {
		f.samples[i] = float64(s)
	}
}

// PSD is the power of one FFT bin.
func PSD(fftValue complex128) float64 {
	return math.Pow(real(fftValue), 2) + math.Pow(imag(fftValue), 2)
}

// FundamentalLag finds the lag of the first repetition in the given autocorrelation:
// the first local maximum after the first zero crossing that reaches at least the given
// share of the highest correlation within the first half of the lags.
// It returns 0 if there is no such lag.
func FundamentalLag(correlation Block[float64], share float64) int {
	half := len(correlation) / 2
	start := 1
	for start < half && correlation[start] > 0 {
		start++
	}
	if start >= half {
		return 0
	}

	highest, _ := correlation.Max(start, half)
	if highest <= 0 {
		return 0
	}
	threshold := highest * share
	for i := start; i <= half; i++ {
		if correlation[i] < threshold {
			continue
		}
		if correlation[i] >= correlation[i-1] && (i == len(correlation)-1 || correlation[i] >= correlation[i+1]) {
			return i
		}
	}
	return 0
}
