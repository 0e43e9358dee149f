package playback

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var ErrUnknownSpeed = errors.New("unknown speed")

// Speed selects how fast a strip is played back.
type Speed string

const (
	SlowSpeed   Speed = "slow"
	NormalSpeed Speed = "normal"
	FastSpeed   Speed = "fast"
)

type speedPreset struct {
	duration time.Duration
	interval time.Duration
}

// a full playback should take between 10 and 30 seconds
var speedPresets = map[Speed]speedPreset{
	SlowSpeed:   {duration: 25 * time.Second, interval: 150 * time.Millisecond},
	NormalSpeed: {duration: 15 * time.Second, interval: 100 * time.Millisecond},
	FastSpeed:   {duration: 10 * time.Second, interval: 50 * time.Millisecond},
}

// Speeds returns all speeds, from slow to fast.
func Speeds() []Speed {
	return []Speed{SlowSpeed, NormalSpeed, FastSpeed}
}

func ParseSpeed(s string) (Speed, error) {
	speed := Speed(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := speedPresets[speed]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSpeed, s)
	}
	return speed, nil
}

func (s Speed) String() string {
	return string(s)
}

func (s Speed) preset() speedPreset {
	if preset, ok := speedPresets[s]; ok {
		return preset
	}
	return speedPresets[NormalSpeed]
}

// Interval between two ticks. Unknown speeds fall back to the normal speed.
func (s Speed) Interval() time.Duration {
	return s.preset().interval
}

// Duration is the target time to play back a whole strip. Unknown speeds fall back to the normal speed.
func (s Speed) Duration() time.Duration {
	return s.preset().duration
}

// Step is the number of samples revealed per tick, so that a strip with the given number of samples
// is played back in about the target duration. The step is at least 1.
func (s Speed) Step(total int) int {
	preset := s.preset()
	ticks := math.Max(1, float64(preset.duration.Milliseconds())/float64(preset.interval.Milliseconds()))
	return max(1, int(math.RoundToEven(float64(total)/ticks)))
}
