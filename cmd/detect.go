package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ftl/ecgscope/ecg"
	"github.com/ftl/ecgscope/fiducial"
)

var detectFlags = struct {
	count  int
	rows   int
	format string
}{}

var detectCmd = &cobra.Command{
	Use:   "detect [beats.csv]",
	Short: "detect the fiducial points of synthesized beats or of the beats in a CSV file",
	Long: `Detect the fiducial points (P, Q, R, S, T) and the PR, QT and ST intervals.

Without a file, one beat of the selected class is synthesized. With --count > 1, a strip of
beats is synthesized, its beat length is estimated from the strip itself, and every beat
of the strip is analyzed.

The CSV file holds one beat per row: the sample values followed by the numeric class label,
as in the MIT-BIH and PTB heartbeat datasets.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWithCtx(runDetect),
}

func init() {
	rootCmd.AddCommand(detectCmd)

	addBeatFlags(detectCmd)
	detectCmd.Flags().IntVar(&detectFlags.count, "count", 1, "the number of synthesized beats")
	detectCmd.Flags().IntVar(&detectFlags.rows, "rows", 0, "the maximum number of CSV rows to analyze (0: all)")
	detectCmd.Flags().StringVar(&detectFlags.format, "format", textFormat, "the output format: text, json or yaml")
}

// detection is the analysis of a single beat.
type detection struct {
	Source   string          `json:"source" yaml:"source"`
	Class    ecg.Class       `json:"class" yaml:"class"`
	Result   fiducial.Result `json:"result" yaml:"result"`
	Summary  []fiducial.Row  `json:"summary" yaml:"summary"`
	Inverted []string        `json:"inverted,omitempty" yaml:"inverted,omitempty"`
}

func newDetection(source string, class ecg.Class, beat []float64) detection {
	result := fiducial.Detect(beat)
	return detection{
		Source:   source,
		Class:    class,
		Result:   result,
		Summary:  fiducial.Summarize(result),
		Inverted: result.Inverted(),
	}
}

// stripDetection is the analysis of a strip of beats with an estimated beat length.
type stripDetection struct {
	Class  ecg.Class       `json:"class" yaml:"class"`
	Period int             `json:"period" yaml:"period"`
	Beats  []fiducial.Beat `json:"beats" yaml:"beats"`
}

func runDetect(_ context.Context, env *environment, cmd *cobra.Command, args []string) error {
	cfg := env.Config().Playback
	dataset, class, err := resolveSelection(cfg.Dataset, cfg.Class)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		detections, err := detectFile(args[0], dataset, detectFlags.rows)
		if err != nil {
			return err
		}
		return writeOutput(out, detectFlags.format, detections, func(w io.Writer) {
			for i, d := range detections {
				if i > 0 {
					fmt.Fprintln(w)
				}
				writeDetection(w, d)
			}
		})
	}

	if detectFlags.count > 1 {
		strip, err := detectStrip(cfg.BeatLength, detectFlags.count, class)
		if err != nil {
			return err
		}
		return writeOutput(out, detectFlags.format, strip, func(w io.Writer) {
			writeStripDetection(w, strip)
		})
	}

	beat, err := ecg.GenerateBeat(cfg.BeatLength, class)
	if err != nil {
		return err
	}
	d := newDetection(fmt.Sprintf("synthetic %s", dataset), class, beat)
	return writeOutput(out, detectFlags.format, d, func(w io.Writer) {
		writeDetection(w, d)
	})
}

// detectFile analyzes the prepared beats of the given CSV file.
func detectFile(filename string, dataset ecg.Dataset, maxRows int) ([]detection, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	beats, err := ecg.ReadBeats(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	if maxRows > 0 && len(beats) > maxRows {
		beats = beats[:maxRows]
	}

	result := make([]detection, 0, len(beats))
	for i, beat := range beats {
		class, ok := beat.Class(dataset)
		if !ok {
			class = ecg.Class(fmt.Sprintf("label %d", beat.Label))
		}
		result = append(result, newDetection(fmt.Sprintf("%s:%d", filename, i+1), class, ecg.PrepareBeat(beat.Samples)))
	}
	return result, nil
}

// detectStrip synthesizes a strip and analyzes it with the beat length that is estimated
// from the strip. Without a detectable repetition, the synthesized beat length is used.
func detectStrip(beatLength int, count int, class ecg.Class) (stripDetection, error) {
	samples, err := ecg.GenerateStrip(beatLength, count, class)
	if err != nil {
		return stripDetection{}, err
	}

	period := ecg.DominantPeriod(samples)
	if period <= 0 {
		period = beatLength
	}
	beats, err := fiducial.DetectStrip(samples, period)
	if err != nil {
		return stripDetection{}, err
	}
	return stripDetection{Class: class, Period: period, Beats: beats}, nil
}

func writeDetection(w io.Writer, d detection) {
	fmt.Fprintf(w, "# %s\t%s\n", d.Source, d.Class)
	fmt.Fprintln(w, "Feature\tPosition\tValue\t")
	for _, row := range d.Summary {
		flag := ""
		if row.Flagged {
			flag = "inverted"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", row.Feature, row.Position, row.Value, flag)
	}
	if len(d.Inverted) > 0 {
		fmt.Fprintf(w, "# review: %s\n", strings.Join(d.Inverted, ", "))
	}
}

func writeStripDetection(w io.Writer, d stripDetection) {
	fmt.Fprintf(w, "# %s\tperiod %d\n", d.Class, d.Period)
	fmt.Fprint(w, "Beat")
	for _, kind := range fiducial.Kinds {
		fmt.Fprintf(w, "\t%s", kind)
	}
	fmt.Fprintln(w)
	for i, beat := range d.Beats {
		fmt.Fprintf(w, "%d", i+1)
		for _, kind := range fiducial.Kinds {
			if p := beat.Point(kind); p != nil {
				fmt.Fprintf(w, "\t%d", p.Index)
			} else {
				fmt.Fprint(w, "\t--")
			}
		}
		fmt.Fprintln(w)
	}
}
