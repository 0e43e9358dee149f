package fiducial

import (
	"fmt"
)

const missing = "--"

// Row of the summary table of a single beat.
type Row struct {
	Feature  string `json:"feature" yaml:"feature"`
	Position string `json:"position" yaml:"position"`
	Value    string `json:"value" yaml:"value"`
	// Flagged marks an inverted interval that needs review.
	Flagged bool `json:"flagged,omitempty" yaml:"flagged,omitempty"`
}

var pointLabels = map[Kind]string{
	P: "P Wave Peak",
	Q: "Q Point",
	R: "R Peak",
	S: "S Point",
	T: "T Wave Peak",
}

// Label is the human readable name of the kind of fiducial.
func (k Kind) Label() string {
	return pointLabels[k]
}

// Summarize the detection result as table rows: one row per fiducial kind, followed by
// the PR interval, the QT interval and the ST segment.
func Summarize(result Result) []Row {
	rows := make([]Row, 0, len(Kinds)+3)
	for _, kind := range Kinds {
		row := Row{Feature: kind.Label(), Position: missing, Value: missing}
		if p := result.Point(kind); p != nil {
			row.Position = fmt.Sprintf("%d", p.Index)
			row.Value = fmt.Sprintf("%.4f", p.Amplitude)
		}
		rows = append(rows, row)
	}

	intervals := []struct {
		label    string
		interval *Interval
	}{
		{"PR Interval", result.PRInterval},
		{"QT Interval", result.QTInterval},
		{"ST Segment", result.STSegment},
	}
	for _, iv := range intervals {
		row := Row{Feature: iv.label, Position: missing, Value: missing}
		if iv.interval != nil {
			row.Position = fmt.Sprintf("%d - %d", iv.interval.Start, iv.interval.End)
			row.Value = fmt.Sprintf("%d pts", iv.interval.Length)
			row.Flagged = iv.interval.Inverted()
		}
		rows = append(rows, row)
	}
	return rows
}

// Inverted returns the names of all intervals of the result whose end precedes their start.
func (r Result) Inverted() []string {
	var result []string
	if r.PRInterval != nil && r.PRInterval.Inverted() {
		result = append(result, "PR")
	}
	if r.QTInterval != nil && r.QTInterval.Inverted() {
		result = append(result, "QT")
	}
	if r.STSegment != nil && r.STSegment.Inverted() {
		result = append(result, "ST")
	}
	return result
}
