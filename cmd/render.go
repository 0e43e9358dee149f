package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ftl/ecgscope/ecg"
	"github.com/ftl/ecgscope/fiducial"
	"github.com/ftl/ecgscope/playback"
	"github.com/ftl/ecgscope/render"
)

const (
	beatChart     = "beat"
	playbackChart = "playback"
)

var renderFlags = struct {
	chart  string
	frame  int
	output string
}{}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "render a chart of a beat and its fiducial points, or of a playback frame, as HTML page",
	Args:  cobra.NoArgs,
	RunE:  runWithCtx(runRender),
}

func init() {
	rootCmd.AddCommand(renderCmd)

	addBeatFlags(renderCmd)
	renderCmd.Flags().Int("beats", 20, "the number of beats in the strip of the playback chart")
	renderCmd.Flags().StringVar(&renderFlags.chart, "chart", beatChart, "the chart: beat or playback")
	renderCmd.Flags().IntVar(&renderFlags.frame, "frame", 0, "the frame of the playback chart (default: the whole strip)")
	renderCmd.Flags().StringVarP(&renderFlags.output, "output", "o", "", "the output file (default: stdout)")
}

func runRender(_ context.Context, env *environment, cmd *cobra.Command, _ []string) error {
	cfg := env.Config().Playback
	dataset, class, err := resolveSelection(cfg.Dataset, cfg.Class)
	if err != nil {
		return err
	}

	var chart render.Chart
	switch renderFlags.chart {
	case beatChart:
		beat, err := ecg.GenerateBeat(cfg.BeatLength, class)
		if err != nil {
			return err
		}
		chart = render.BeatChart(beat, fiducial.Detect(beat))
	case playbackChart:
		strip, err := playback.NewStrip(dataset, class, cfg.BeatLength, cfg.Beats)
		if err != nil {
			return err
		}
		frame := renderFlags.frame
		if frame <= 0 {
			frame = strip.Len()
		}
		chart = render.PlaybackChart(strip, frame)
	default:
		return fmt.Errorf("unknown chart %q, use %s or %s", renderFlags.chart, beatChart, playbackChart)
	}

	var out io.Writer = cmd.OutOrStdout()
	if renderFlags.output != "" {
		file, err := os.Create(renderFlags.output)
		if err != nil {
			return err
		}
		defer file.Close()
		out = file
	}
	return render.Write(out, chart)
}
