package log

import (
	"fmt"
	"log/slog"
	"strings"
)

// Config declaratively describes how to build a Logger, suitable for
// loading from the process config file/env.
type Config struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
	// RedactKeys lists field keys whose values are replaced with
	// "[REDACTED]" before formatting.
	RedactKeys []string `json:"redactKeys" yaml:"redactKeys"`
	// SampleInitial/SampleThereafter configure per-message sampling: the
	// first SampleInitial occurrences of a message log unconditionally,
	// then one in every SampleThereafter after that.
	SampleInitial    int `json:"sampleInitial" yaml:"sampleInitial"`
	SampleThereafter int `json:"sampleThereafter" yaml:"sampleThereafter"`
}

// ParseLevel parses a case-insensitive level name.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "fatal":
		return FatalLevel, nil
	default:
		return InfoLevel, fmt.Errorf("log: unknown level %q", s)
	}
}

// ApplyConfig builds a Logger from cfg, defaulting to InfoLevel/text/console
// when fields are left at their zero value. Redaction and sampling hooks
// are applied to the underlying slog handler.
func ApplyConfig(cfg *Config) (Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var formatter Formatter
	switch strings.ToLower(cfg.Format) {
	case "json":
		formatter = &JSONFormatter{}
	case "text", "":
		formatter = &TextFormatter{}
	default:
		return nil, fmt.Errorf("log: unknown format %q", cfg.Format)
	}

	base := &BaseLogger{
		level:     level,
		fields:    Fields{},
		formatter: formatter,
		outputs:   []Output{NewConsoleOutput()},
	}
	handler := newBridgeHandler(base).withRedactions(cfg.RedactKeys).withSampler(cfg.SampleInitial, cfg.SampleThereafter)
	base.slogLogger = slog.New(handler)
	return base, nil
}
