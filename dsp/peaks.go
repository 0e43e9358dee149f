package dsp

import (
	"math"
	"sort"
)

// PeakOptions restrict the peaks reported by FindPeaks.
type PeakOptions struct {
	// Distance is the minimal horizontal distance in samples between neighbouring peaks.
	// Smaller peaks are removed first until all remaining peaks fulfill the condition.
	// Values < 2 disable the distance filter.
	Distance int

	// Prominence is the minimal prominence a peak must have.
	Prominence float64
}

// FindPeaks returns the indexes of all local maxima in the given block that fulfill the given options.
// A local maximum is a sample (or the middle of a flat plateau) whose direct neighbours are both smaller.
// The first and the last sample of the block are never reported.
// The distance condition is applied before the prominence condition.
func FindPeaks[T Number](x Block[T], options PeakOptions) []int {
	peaks := LocalMaxima(x)
	if options.Distance > 1 && len(peaks) > 1 {
		peaks = selectByDistance(x, peaks, options.Distance)
	}

	result := peaks[:0]
	for _, peak := range peaks {
		if float64(Prominence(x, peak)) >= options.Prominence {
			result = append(result, peak)
		}
	}
	return result
}

// LocalMaxima returns the indexes of all local maxima, including the midpoints of flat plateaus.
func LocalMaxima[T Number](x Block[T]) []int {
	result := make([]int, 0, len(x)/2)
	last := len(x) - 1

	i := 1
	for i < last {
		if x[i-1] < x[i] {
			ahead := i + 1
			for ahead < last && x[ahead] == x[i] {
				ahead++
			}
			if x[ahead] < x[i] {
				leftEdge := i
				rightEdge := ahead - 1
				result = append(result, (leftEdge+rightEdge)/2)
				i = ahead
			}
		}
		i++
	}
	return result
}

func selectByDistance[T Number](x Block[T], peaks []int, distance int) []int {
	keep := make([]bool, len(peaks))
	for i := range keep {
		keep[i] = true
	}

	// highest peaks first, the later peak wins on equal height
	order := make([]int, len(peaks))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return x[peaks[order[a]]] < x[peaks[order[b]]]
	})

	for i := len(order) - 1; i >= 0; i-- {
		j := order[i]
		if !keep[j] {
			continue
		}
		for k := j - 1; k >= 0 && peaks[j]-peaks[k] < distance; k-- {
			keep[k] = false
		}
		for k := j + 1; k < len(peaks) && peaks[k]-peaks[j] < distance; k++ {
			keep[k] = false
		}
	}

	result := make([]int, 0, len(peaks))
	for i, peak := range peaks {
		if keep[i] {
			result = append(result, peak)
		}
	}
	return result
}

// Prominence of the peak at the given index: the height of the peak over the higher of the two
// lowest points that can be reached on either side without climbing above the peak.
func Prominence[T Number](x Block[T], peak int) T {
	leftMin := x[peak]
	for i := peak; i >= 0 && x[i] <= x[peak]; i-- {
		if x[i] < leftMin {
			leftMin = x[i]
		}
	}

	rightMin := x[peak]
	for i := peak; i < len(x) && x[i] <= x[peak]; i++ {
		if x[i] < rightMin {
			rightMin = x[i]
		}
	}

	return x[peak] - T(math.Max(float64(leftMin), float64(rightMin)))
}

// Tallest returns the peak with the highest value. The first one wins on ties.
// It returns -1 if there are no peaks.
func Tallest[T Number](x Block[T], peaks []int) int {
	if len(peaks) == 0 {
		return -1
	}
	best := peaks[0]
	for _, peak := range peaks[1:] {
		if x[peak] > x[best] {
			best = peak
		}
	}
	return best
}
