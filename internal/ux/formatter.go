// Package ux renders command output.
package ux

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Formats lists the values accepted by --format.
var Formats = []string{"text", "json", "yaml"}

// Formatter writes one value in a chosen output format.
type Formatter interface {
	Format(data any) error
}

// FormatterOptions configures NewFormatter. Writer defaults to stdout.
type FormatterOptions struct {
	Writer  io.Writer
	NoColor bool
	Compact bool // no indentation in JSON and YAML
}

// Styler is implemented by values with a styled text rendering.
type Styler interface {
	Render(color bool) string
}

// FormatterFunc adapts a function to Formatter.
type FormatterFunc func(data any) error

func (f FormatterFunc) Format(data any) error { return f(data) }

// NewFormatter returns the formatter for format; "" means text.
func NewFormatter(format string, opts *FormatterOptions) (Formatter, error) {
	o := FormatterOptions{}
	if opts != nil {
		o = *opts
	}
	if o.Writer == nil {
		o.Writer = os.Stdout
	}

	switch format {
	case "json":
		return FormatterFunc(func(data any) error { return writeJSON(o, data) }), nil
	case "yaml":
		return FormatterFunc(func(data any) error { return writeYAML(o, data) }), nil
	case "text", "":
		return FormatterFunc(func(data any) error { return writeText(o, data) }), nil
	}
	return nil, fmt.Errorf("unknown format: %s (supported: %v)", format, Formats)
}

func writeJSON(o FormatterOptions, data any) error {
	enc := json.NewEncoder(o.Writer)
	if !o.Compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(data)
}

func writeYAML(o FormatterOptions, data any) error {
	enc := yaml.NewEncoder(o.Writer)
	if !o.Compact {
		enc.SetIndent(2)
	}
	if err := enc.Encode(data); err != nil {
		return err
	}
	return enc.Close()
}

// writeText accepts strings, Stylers and fmt.Stringers.
func writeText(o FormatterOptions, data any) error {
	var out string
	switch v := data.(type) {
	case string:
		out = v
	case Styler:
		out = v.Render(!o.NoColor)
	case fmt.Stringer:
		out = v.String()
	default:
		return fmt.Errorf("text output cannot render %T", data)
	}
	_, err := fmt.Fprintln(o.Writer, out)
	return err
}
