package main

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

var outputFormat string

// render writes v in the selected --output format; text falls back to
// the human printer.
func render(w io.Writer, v any, text func(io.Writer)) error {
	switch outputFormat {
	case outputText, "":
		text(w)
		return nil

	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)

	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}

	return fmt.Errorf("unknown output format %q (want text, json or yaml)", outputFormat)
}
