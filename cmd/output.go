package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

const (
	textFormat = "text"
	jsonFormat = "json"
	yamlFormat = "yaml"
)

var outputFormats = []string{textFormat, jsonFormat, yamlFormat}

// writeOutput writes v as JSON or YAML. The text format is written by the given function
// into a tabwriter.
func writeOutput(w io.Writer, format string, v any, text func(w io.Writer)) error {
	switch strings.ToLower(format) {
	case textFormat, "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		text(tw)
		return tw.Flush()
	case jsonFormat:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(v)
	case yamlFormat:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(v); err != nil {
			return err
		}
		return encoder.Close()
	default:
		return fmt.Errorf("unknown output format %q, use one of %s", format, strings.Join(outputFormats, ", "))
	}
}
