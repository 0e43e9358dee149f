package dsp

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocalMaxima(t *testing.T) {
	tt := []struct {
		desc     string
		x        Block[float64]
		expected []int
	}{
		{"empty", Block[float64]{}, []int{}},
		{"single peak", Block[float64]{0, 1, 0}, []int{1}},
		{"edges are not peaks", Block[float64]{1, 0, 1}, []int{}},
		{"odd plateau", Block[float64]{0, 1, 1, 1, 0}, []int{2}},
		{"even plateau", Block[float64]{0, 1, 1, 0}, []int{1}},
		{"plateau at the end", Block[float64]{0, 1, 1}, []int{}},
		{"shoulder", Block[float64]{0, 1, 1, 2, 0}, []int{3}},
		{"multiple", Block[float64]{0, 2, 0, 3, 0, 1, 0}, []int{1, 3, 5}},
	}
	for _, tc := range tt {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.expected, LocalMaxima(tc.x))
		})
	}
}

func TestFindPeaks(t *testing.T) {
	x := Block[float64]{0, 5, 0, 3, 0, 4, 0}
	tt := []struct {
		options  PeakOptions
		expected []int
	}{
		{PeakOptions{}, []int{1, 3, 5}},
		{PeakOptions{Distance: 2}, []int{1, 3, 5}},
		{PeakOptions{Distance: 3}, []int{1, 5}},
		{PeakOptions{Distance: 5}, []int{1}},
		{PeakOptions{Prominence: 3.5}, []int{1, 5}},
		{PeakOptions{Prominence: 3}, []int{1, 3, 5}},
		{PeakOptions{Prominence: 6}, []int{}},
	}
	for i, tc := range tt {
		t.Run(fmt.Sprintf("%d", i), func(t *testing.T) {
			assert.Equal(t, tc.expected, FindPeaks(x, tc.options))
		})
	}
}

func TestFindPeaks_DistanceKeepsLaterPeakOnTie(t *testing.T) {
	x := Block[float64]{0, 2, 0, 2, 0}
	assert.Equal(t, []int{3}, FindPeaks(x, PeakOptions{Distance: 3}))
}

func TestProminence(t *testing.T) {
	x := Block[float64]{0, 5, 0, 3, 1, 4, 2}
	assert.Equal(t, 5.0, Prominence(x, 1))
	assert.Equal(t, 2.0, Prominence(x, 3))
	assert.Equal(t, 2.0, Prominence(x, 5))
}

func TestTallest(t *testing.T) {
	x := Block[float64]{0, 5, 0, 7, 0, 7, 0}
	assert.Equal(t, 3, Tallest(x, []int{1, 3, 5}))
	assert.Equal(t, 1, Tallest(x, []int{1}))
	assert.Equal(t, -1, Tallest(x, nil))
}
