package ecg

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

var ErrNotFinite = errors.New("value is not a finite number")

// LabeledBeat is one row of a beat dataset: the samples and the numeric class label.
type LabeledBeat struct {
	Samples []float64
	Label   int
}

// ReadBeats reads beats in the layout of the MIT-BIH and PTB heartbeat CSV files: one beat per row,
// the sample values followed by the numeric class label.
func ReadBeats(r io.Reader) ([]LabeledBeat, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	result := make([]LabeledBeat, 0, 100)
	row := 0
	for {
		record, err := reader.Read()
		row++
		if errors.Is(err, io.EOF) {
			return result, nil
		}
		if err != nil {
			return nil, fmt.Errorf("cannot read row %d: %w", row, err)
		}
		if len(record) < 2 {
			return nil, fmt.Errorf("row %d: need at least one sample and a label, got %d columns", row, len(record))
		}

		beat := LabeledBeat{Samples: make([]float64, len(record)-1)}
		for i, field := range record[:len(record)-1] {
			beat.Samples[i], err = parseFinite(field)
			if err != nil {
				return nil, fmt.Errorf("row %d, column %d: %w", row, i+1, err)
			}
		}
		label, err := parseFinite(record[len(record)-1])
		if err != nil {
			return nil, fmt.Errorf("row %d, label: %w", row, err)
		}
		beat.Label = int(math.Round(label))

		result = append(result, beat)
	}
}

func parseFinite(field string) (float64, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%w: %q", ErrNotFinite, field)
	}
	return value, nil
}

// Class resolves the numeric label within the given dataset.
func (b LabeledBeat) Class(d Dataset) (Class, bool) {
	return ClassOf(d, b.Label)
}
