// Package logging configures the global slog logger for cliptext binaries.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/pwntr/tinter"
)

// Format selects the log output format.
type Format string

const (
	FormatAuto Format = "auto"
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat converts a string to a Format, returning FormatAuto for unknown values.
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "text", "tint", "human":
		return FormatText
	case "json":
		return FormatJSON
	default:
		return FormatAuto
	}
}

// ParseLevel converts a string to a slog.Level. An empty string selects
// debug for interactive sessions and info otherwise; unknown values fall
// back to info.
func ParseLevel(s string, interactive bool) slog.Level {
	if s == "" {
		if interactive {
			return slog.LevelDebug
		}
		return slog.LevelInfo
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// IsTTY reports whether w is a terminal.
func IsTTY(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// Options describes a logger.
type Options struct {
	Format Format
	Level  slog.Level
}

// NewHandler returns a tinter handler for text output (or auto on a
// terminal) and a JSON handler otherwise.
func NewHandler(w io.Writer, opts Options) slog.Handler {
	if opts.Format == FormatText || (opts.Format == FormatAuto && IsTTY(w)) {
		return tinter.NewHandler(w, &tinter.Options{
			Level:      opts.Level,
			TimeFormat: "15:04:05.000",
		})
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: opts.Level})
}

// Setup installs a stderr logger as the slog default. Call once after
// flag/viper parsing.
func Setup(opts Options) *slog.Logger {
	l := slog.New(NewHandler(os.Stderr, opts))
	slog.SetDefault(l)
	return l
}
