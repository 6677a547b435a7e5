package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Log output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Log configures the process logger.
type Log struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level" yaml:"level" toml:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`

	// Format is text or json.
	Format string `json:"format" yaml:"format" toml:"format" jsonschema:"enum=text,enum=json"`
}

// SlogLevel parses Level. Empty means info.
func (l Log) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// Validate checks level and format.
func (l Log) Validate() error {
	if _, err := l.SlogLevel(); err != nil {
		return err
	}
	switch strings.ToLower(l.Format) {
	case "", FormatText, FormatJSON:
		return nil
	default:
		return fmt.Errorf("log.format must be %q or %q, got %q", FormatText, FormatJSON, l.Format)
	}
}

// Logger builds a logger writing to w.
func (l Log) Logger(w io.Writer) (*slog.Logger, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	level, _ := l.SlogLevel()
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(l.Format) == FormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
