package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ftl/ecgscope/ecg"
)

var synthFlags = struct {
	count  int
	format string
}{}

var synthCmd = &cobra.Command{
	Use:   "synth",
	Short: "synthesize a strip of ECG beats of one class",
	Args:  cobra.NoArgs,
	RunE:  runWithCtx(runSynth),
}

func init() {
	rootCmd.AddCommand(synthCmd)

	addBeatFlags(synthCmd)
	synthCmd.Flags().IntVar(&synthFlags.count, "count", 1, "the number of beats in the strip")
	synthCmd.Flags().StringVar(&synthFlags.format, "format", textFormat, "the output format: text, json or yaml")
}

// addBeatFlags defines the flags that select the synthesized beats.
func addBeatFlags(cmd *cobra.Command) {
	cmd.Flags().String("dataset", string(ecg.MITBIH), "the dataset: mitbih or ptbdb")
	cmd.Flags().String("class", "", "the class name or code, e.g. N or \"Ventricular (V)\" (default: the dataset's first class)")
	cmd.Flags().Int("length", ecg.DefaultBeatLength, "the number of samples per beat")
}

type synthOutput struct {
	Dataset    ecg.Dataset  `json:"dataset" yaml:"dataset"`
	Class      ecg.Class    `json:"class" yaml:"class"`
	BeatLength int          `json:"beat_length" yaml:"beat_length"`
	Beats      int          `json:"beats" yaml:"beats"`
	Features   ecg.Features `json:"features" yaml:"features"`
	Samples    []float64    `json:"samples" yaml:"samples"`
}

func runSynth(_ context.Context, env *environment, cmd *cobra.Command, _ []string) error {
	cfg := env.Config().Playback
	dataset, class, err := resolveSelection(cfg.Dataset, cfg.Class)
	if err != nil {
		return err
	}

	samples, err := ecg.GenerateStrip(cfg.BeatLength, synthFlags.count, class)
	if err != nil {
		return err
	}
	output := synthOutput{
		Dataset:    dataset,
		Class:      class,
		BeatLength: cfg.BeatLength,
		Beats:      synthFlags.count,
		Features:   ecg.FeaturesOf(ecg.PrepareBeat(samples[:cfg.BeatLength])),
		Samples:    samples,
	}

	return writeOutput(cmd.OutOrStdout(), synthFlags.format, output, func(w io.Writer) {
		fmt.Fprintf(w, "# dataset\t%s\n", output.Dataset)
		fmt.Fprintf(w, "# class\t%s\n", output.Class)
		fmt.Fprintf(w, "# beats\t%d x %d\n", output.Beats, output.BeatLength)
		fmt.Fprintf(w, "# features\tpeak %.4f, energy %.4f, zero crossings %d\n", output.Features.PeakAmplitude, output.Features.Energy, output.Features.ZeroCrossings)
		for i, v := range output.Samples {
			fmt.Fprintf(w, "%d\t%.6f\n", i, v)
		}
	})
}

// resolveSelection parses the dataset and resolves the class within it. An empty class
// selects the dataset's default class.
func resolveSelection(datasetName string, className string) (ecg.Dataset, ecg.Class, error) {
	dataset, err := ecg.ParseDataset(datasetName)
	if err != nil {
		return "", "", err
	}
	class := ecg.ResolveClass(dataset, className)
	if class == "" {
		class = ecg.DefaultClass(dataset)
	}
	return dataset, class, nil
}
