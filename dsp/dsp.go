// Package dsp provides generic implementations of the signal helpers used by the
// beat synthesizer and the fiducial detector.
package dsp

import (
	"fmt"

	"golang.org/x/exp/constraints"
	"golang.org/x/exp/slices"
)

type Number interface {
	constraints.Integer | constraints.Float
}

// Block represents a block of samples that are processed as one unit.
type Block[T Number] []T

// Max imum value in the given section of this block and its index.
// The first occurrence wins on ties.
func (b Block[T]) Max(from, to int) (T, int) {
	maxValue := b[from]
	maxI := from
	for i := from + 1; i <= to; i++ {
		if maxValue < b[i] {
			maxValue = b[i]
			maxI = i
		}
	}
	return maxValue, maxI
}

// Min imum value in the given section of this block and its index.
// The first occurrence wins on ties.
func (b Block[T]) Min(from, to int) (T, int) {
	minValue := b[from]
	minI := from
	for i := from + 1; i <= to; i++ {
		if minValue > b[i] {
			minValue = b[i]
			minI = i
		}
	}
	return minValue, minI
}

// Range is the difference between the maximum and the minimum of the whole block.
func (b Block[T]) Range() T {
	if len(b) == 0 {
		return 0
	}
	maxValue, _ := b.Max(0, len(b)-1)
	minValue, _ := b.Min(0, len(b)-1)
	return maxValue - minValue
}

// Median of the whole block. For an even number of values, this is the mean of the two middle values.
func (b Block[T]) Median() float64 {
	if len(b) == 0 {
		panic("median of an empty block")
	}
	sorted := slices.Clone(b)
	slices.Sort(sorted)

	middle := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return float64(sorted[middle])
	}
	return (float64(sorted[middle-1]) + float64(sorted[middle])) / 2
}

// Floats converts the block into a float64 block.
func (b Block[T]) Floats() Block[float64] {
	result := make(Block[float64], len(b))
	for i, v := range b {
		result[i] = float64(v)
	}
	return result
}

// MovingAverage smooths the given signal with a boxcar window of the given size.
// The output has the same length as the input, the signal is padded with zeros at both edges
// (like a "same" convolution with a normalized kernel of ones).
func MovingAverage[T Number](signal Block[T], window int) Block[float64] {
	if window < 1 {
		panic(fmt.Sprintf("moving average window must be positive: %d", window))
	}

	n := len(signal)
	result := make(Block[float64], n)
	left := window - 1 - (window-1)/2
	for i := range result {
		var sum float64
		for j := i - left; j < i-left+window; j++ {
			if j < 0 || j >= n {
				continue
			}
			sum += float64(signal[j])
		}
		result[i] = sum / float64(window)
	}
	return result
}

// Normalize scales the signal into the range [0, 1]. Signals with a range smaller than epsilon
// are returned unchanged.
func Normalize[T Number](signal Block[T], epsilon float64) Block[float64] {
	result := signal.Floats()
	if len(result) == 0 {
		return result
	}
	minValue, _ := result.Min(0, len(result)-1)
	maxValue, _ := result.Max(0, len(result)-1)
	if maxValue-minValue < epsilon {
		return result
	}
	for i, v := range result {
		result[i] = (v - minValue) / (maxValue - minValue)
	}
	return result
}
