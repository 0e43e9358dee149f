package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ftl/ecgscope/ecg"
	"github.com/ftl/ecgscope/fiducial"
)

func execute(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	return out.String(), err
}

// resetFlags restores the defaults, the flag values of the commands are global.
func resetFlags(cmd *cobra.Command) {
	reset := func(flag *pflag.Flag) {
		flag.Value.Set(flag.DefValue)
		flag.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, child := range cmd.Commands() {
		resetFlags(child)
	}
}

func TestSynth(t *testing.T) {
	out, err := execute(t, context.Background(), "synth", "--length", "100", "--count", "2", "--format", "json")
	require.NoError(t, err)

	var actual synthOutput
	require.NoError(t, json.Unmarshal([]byte(out), &actual))
	assert.Equal(t, ecg.MITBIH, actual.Dataset)
	assert.Equal(t, ecg.NormalN, actual.Class)
	assert.Equal(t, 100, actual.BeatLength)
	assert.Equal(t, 2, actual.Beats)
	assert.Len(t, actual.Samples, 200)
	assert.Equal(t, actual.Samples[:100], actual.Samples[100:])
	assert.Greater(t, actual.Features.Energy, 0.0)
}

func TestSynth_Text(t *testing.T) {
	out, err := execute(t, context.Background(), "synth", "--class", "v", "--length", "50")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 4+50)
	assert.Contains(t, lines[1], "Ventricular (V)")
	assert.True(t, strings.HasPrefix(lines[4], "0 "), lines[4])
}

func TestSynth_Invalid(t *testing.T) {
	_, err := execute(t, context.Background(), "synth", "--dataset", "holter")
	assert.ErrorIs(t, err, ecg.ErrUnknownDataset)

	_, err = execute(t, context.Background(), "synth", "--length", "0")
	assert.ErrorIs(t, err, ecg.ErrInvalidBeatLength)

	_, err = execute(t, context.Background(), "synth", "--format", "xml")
	assert.ErrorContains(t, err, "unknown output format")
}

func TestDetect_Beat(t *testing.T) {
	out, err := execute(t, context.Background(), "detect", "--format", "json")
	require.NoError(t, err)

	var actual detection
	require.NoError(t, json.Unmarshal([]byte(out), &actual))
	assert.Equal(t, "synthetic mitbih", actual.Source)
	assert.Equal(t, ecg.NormalN, actual.Class)
	require.NotNil(t, actual.Result.R)
	assert.Equal(t, 72, actual.Result.R.Index)
	require.NotNil(t, actual.Result.PRInterval)
	assert.Equal(t, 32, actual.Result.PRInterval.Length)
	assert.Len(t, actual.Summary, 8)
	assert.Empty(t, actual.Inverted)
}

func TestDetect_Text(t *testing.T) {
	out, err := execute(t, context.Background(), "detect")
	require.NoError(t, err)

	assert.Contains(t, out, "R Peak")
	assert.Contains(t, out, "32 pts")
	assert.NotContains(t, out, "inverted")
}

func TestDetect_Strip(t *testing.T) {
	out, err := execute(t, context.Background(), "detect", "--count", "20", "--format", "yaml")
	require.NoError(t, err)

	assert.Contains(t, out, "period: 200")
	assert.Equal(t, 20, strings.Count(out, "R:"))

	strip, err := detectStrip(ecg.DefaultBeatLength, ecg.DefaultBeatCount, ecg.NormalN)
	require.NoError(t, err)
	assert.Equal(t, ecg.DefaultBeatLength, strip.Period)
	require.Len(t, strip.Beats, ecg.DefaultBeatCount)
	require.NotNil(t, strip.Beats[1].R)
	assert.Equal(t, 272, strip.Beats[1].R.Index)
}

func TestDetect_File(t *testing.T) {
	beat, err := ecg.GenerateBeat(187, ecg.Ventricular)
	require.NoError(t, err)
	row := make([]string, 0, len(beat)+1)
	for _, v := range beat {
		row = append(row, formatFloat(v))
	}
	content := strings.Join(append(row, "2"), ",") + "\n" + strings.Join(append(row, "9"), ",") + "\n"
	filename := filepath.Join(t.TempDir(), "beats.csv")
	require.NoError(t, os.WriteFile(filename, []byte(content), 0644))

	out, err := execute(t, context.Background(), "detect", filename, "--format", "json")
	require.NoError(t, err)

	var actual []detection
	require.NoError(t, json.Unmarshal([]byte(out), &actual))
	require.Len(t, actual, 2)
	assert.Equal(t, filename+":1", actual[0].Source)
	assert.Equal(t, ecg.Ventricular, actual[0].Class)
	assert.Equal(t, ecg.Class("label 9"), actual[1].Class)
	assert.NotNil(t, actual[0].Result.R)

	out, err = execute(t, context.Background(), "detect", filename, "--rows", "1")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "R Peak"))

	_, err = execute(t, context.Background(), "detect", filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRender(t *testing.T) {
	out, err := execute(t, context.Background(), "render")
	require.NoError(t, err)
	assert.Contains(t, out, "<html>")
	assert.Contains(t, out, "Fiducial Points")

	filename := filepath.Join(t.TempDir(), "playback.html")
	out, err = execute(t, context.Background(), "render", "--chart", "playback", "--frame", "300", "-o", filename)
	require.NoError(t, err)
	assert.Empty(t, out)
	content, err := os.ReadFile(filename)
	require.NoError(t, err)
	assert.Contains(t, string(content), "echarts.min.js")

	_, err = execute(t, context.Background(), "render", "--chart", "pie")
	assert.ErrorContains(t, err, "unknown chart")
}

func TestPlay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := execute(t, ctx, "play", "--class", "S", "--beats", "2", "--telnet", "127.0.0.1:0")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "stopped at normal speed, frame 0")
	assert.Contains(t, lines[1], "playing at normal speed, frame 0")
}

func TestPlay_InvalidSpeed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := execute(t, ctx, "play", "--speed", "warp")
	assert.ErrorContains(t, err, "unknown speed")
}

func TestServe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := execute(t, ctx, "serve", "--address", "127.0.0.1:0")
	assert.NoError(t, err)
}

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, "develop", formatVersion())
}

func formatFloat(v float64) string {
	bytes, _ := json.Marshal(v)
	return string(bytes)
}

func TestDetectionSummaryRows(t *testing.T) {
	beat, err := ecg.GenerateBeat(ecg.DefaultBeatLength, ecg.NormalN)
	require.NoError(t, err)

	actual := newDetection("test", ecg.NormalN, beat)

	assert.Equal(t, fiducial.Summarize(actual.Result), actual.Summary)
	assert.Equal(t, "R Peak", actual.Summary[2].Feature)
	assert.Equal(t, "72", actual.Summary[2].Position)
}
