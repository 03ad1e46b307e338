// Package parser turns raw command arguments into typed engine messages.
// It has no dependencies beyond a logger and never touches engine state.
package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mapscene/animator/internal/util"
)

// ErrArgs is returned when a command has too few or malformed arguments.
var ErrArgs = errors.New("invalid command arguments")

// Parser provides pure []string -> message conversion.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a parser.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Parser{logger: logger}
}

// clean strips the quoting UI bridges wrap around every argument.
func clean(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = strings.TrimSpace(util.TrimQuotes(strings.TrimSpace(a)))
	}
	return out
}

func need(args []string, n int, usage string) error {
	if len(args) < n {
		return fmt.Errorf("%w: want %s, got %d args", ErrArgs, usage, len(args))
	}
	return nil
}

// parseFloat parses a finite number.
func parseFloat(s, field string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q: %w", ErrArgs, field, s, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %s %q is not finite", ErrArgs, field, s)
	}
	return f, nil
}

// optFloat parses args[i] or returns def when it is absent or empty.
func optFloat(args []string, i int, field string, def float64) (float64, error) {
	if i >= len(args) || args[i] == "" {
		return def, nil
	}
	return parseFloat(args[i], field)
}

// parseIntFromFloat parses a string that may be an integer ("3") or a float
// ("3.00"). UI bridges often serialize every number as a float.
func parseIntFromFloat(s string) (int64, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int64(f)) {
		return 0, fmt.Errorf("parseIntFromFloat: %q is not a valid int64", s)
	}
	return int64(f), nil
}

// parseSeconds parses a positive number of seconds into a duration.
func parseSeconds(s, field string) (time.Duration, error) {
	f, err := parseFloat(s, field)
	if err != nil {
		return 0, err
	}
	if f <= 0 {
		return 0, fmt.Errorf("%w: %s must be > 0, got %v", ErrArgs, field, f)
	}
	return time.Duration(f * float64(time.Second)), nil
}

// parseBool accepts the usual spellings plus on/off.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "yes":
		return true, nil
	case "off", "no":
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%w: %q is not a boolean", ErrArgs, s)
	}
	return b, nil
}
