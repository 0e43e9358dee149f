package playback

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSpeed(t *testing.T) {
	for _, value := range []string{"slow", "Normal", " FAST "} {
		_, err := ParseSpeed(value)
		assert.NoError(t, err, value)
	}

	_, err := ParseSpeed("warp")
	assert.ErrorIs(t, err, ErrUnknownSpeed)
}

func TestSpeed_Presets(t *testing.T) {
	tt := []struct {
		speed    Speed
		interval time.Duration
		duration time.Duration
	}{
		{SlowSpeed, 150 * time.Millisecond, 25 * time.Second},
		{NormalSpeed, 100 * time.Millisecond, 15 * time.Second},
		{FastSpeed, 50 * time.Millisecond, 10 * time.Second},
		{"unknown", 100 * time.Millisecond, 15 * time.Second},
		{"", 100 * time.Millisecond, 15 * time.Second},
	}
	for _, tc := range tt {
		t.Run(string(tc.speed), func(t *testing.T) {
			assert.Equal(t, tc.interval, tc.speed.Interval())
			assert.Equal(t, tc.duration, tc.speed.Duration())
		})
	}
}

func TestSpeed_Step(t *testing.T) {
	tt := []struct {
		speed    Speed
		total    int
		expected int
	}{
		{NormalSpeed, 4000, 27},
		{SlowSpeed, 4000, 24},
		{FastSpeed, 4000, 20},
		{NormalSpeed, 1, 1},
		{NormalSpeed, 0, 1},
		{NormalSpeed, 75, 1},  // 0.5 rounds to even
		{NormalSpeed, 225, 2}, // 1.5 rounds to even
		{FastSpeed, 500, 2},   // 2.5 rounds to even
		{"unknown", 4000, 27},
	}
	for _, tc := range tt {
		t.Run(fmt.Sprintf("%s %d", tc.speed, tc.total), func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.speed.Step(tc.total))
		})
	}
}

func TestSpeed_FullPlaybackDuration(t *testing.T) {
	for _, speed := range Speeds() {
		total := 4000
		step := speed.Step(total)
		ticks := (total + step - 1) / step
		duration := time.Duration(ticks) * speed.Interval()

		require.GreaterOrEqual(t, duration, 9*time.Second, speed)
		require.LessOrEqual(t, duration, 30*time.Second, speed)
	}
}
