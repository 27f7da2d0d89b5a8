package log

import (
	"io"
	"os"
	"strings"
)

// Format selects the slog handler.
type Format int

const (
	FormatJSON Format = iota
	FormatText
)

func (f Format) String() string {
	if f == FormatText {
		return "text"
	}
	return "json"
}

// ParseFormat maps "text" and "console" to FormatText and anything else to JSON.
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "text", "console":
		return FormatText
	}
	return FormatJSON
}

// Output is the destination writer; the zero value writes to stderr.
type Output struct {
	writer io.Writer
}

func (o Output) Writer() io.Writer {
	if o.writer == nil {
		return os.Stderr
	}
	return o.writer
}

func NewOutput(w io.Writer) Output { return Output{writer: w} }
func OutputStdout() Output         { return Output{writer: os.Stdout} }
func OutputStderr() Output         { return Output{writer: os.Stderr} }

// Config holds configuration for the logger
type Config struct {
	Level     Level
	Format    Format
	Output    Output
	AddSource bool

	// ServiceName is attached to every record as "service" when set.
	ServiceName string
}

// Override applies the log.level and log.format settings; empty values keep
// the current ones.
func (c Config) Override(level, format string) Config {
	if level != "" {
		c.Level = ParseLevel(level)
	}
	if format != "" {
		c.Format = ParseFormat(format)
	}
	return c
}

// DefaultConfig is what the console server logs with: JSON at info.
func DefaultConfig() Config {
	return Config{
		Level:       LevelInfo,
		Format:      FormatJSON,
		Output:      OutputStdout(),
		ServiceName: "agriconnect",
	}
}

// CLIConfig keeps stdout for command output: text on stderr at warn.
func CLIConfig() Config {
	return Config{Level: LevelWarn, Format: FormatText, Output: OutputStderr()}
}
