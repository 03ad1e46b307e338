// Package cycle blends sky colors over gradient-stop tables, either as a
// looping day cycle or as a short transition between named palettes.
package cycle

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/mapscene/animator/internal/util"
	"github.com/mapscene/animator/pkg/core"
)

var (
	// ErrInvalidTable is returned for tables that violate the stop ordering rules.
	ErrInvalidTable = errors.New("invalid cycle table")
	// ErrDiscontinuousCycle is returned when a closing stop at 1.0 differs from the stop at 0.0.
	ErrDiscontinuousCycle = errors.New("cycle table does not loop seamlessly")
	// ErrUnknownPalette is returned for palette names not in the library.
	ErrUnknownPalette = errors.New("unknown palette")
)

// Table is a validated, loopable list of gradient stops: strictly increasing
// progress from 0.0 to 1.0, with the 1.0 stop equal to the 0.0 stop. Colors
// are normalized to lowercase #rrggbb.
type Table struct {
	Name   string
	stops  []core.GradientStop
	cyclic bool
}

// NewTable validates and normalizes stops. When the last stop is below 1.0 a
// copy of the first stop is appended at 1.0 to close the loop.
func NewTable(name string, stops []core.GradientStop) (*Table, error) {
	out, err := validateStops(name, stops)
	if err != nil {
		return nil, err
	}
	first, last := out[0], out[len(out)-1]
	switch {
	case last.Progress < 1:
		closing := cloneStop(first)
		closing.Progress = 1
		out = append(out, closing)
	case !sameLook(first, last):
		return nil, fmt.Errorf("%w %q: stop at 1.0 differs from stop at 0.0", ErrDiscontinuousCycle, name)
	default:
		out[len(out)-1].Phase = first.Phase
	}
	return &Table{Name: name, stops: out, cyclic: true}, nil
}

// NewSpan builds a one-way table from 0.0 to 1.0 that does not loop. It can
// be sampled but not cycled.
func NewSpan(name string, stops []core.GradientStop) (*Table, error) {
	out, err := validateStops(name, stops)
	if err != nil {
		return nil, err
	}
	if out[len(out)-1].Progress != 1 {
		return nil, fmt.Errorf("%w %q: last stop at %v, want 1", ErrInvalidTable, name, out[len(out)-1].Progress)
	}
	return &Table{Name: name, stops: out}, nil
}

// Cyclic reports whether the table loops seamlessly.
func (t *Table) Cyclic() bool {
	return t.cyclic
}

func validateStops(name string, stops []core.GradientStop) ([]core.GradientStop, error) {
	if len(stops) == 0 {
		return nil, fmt.Errorf("%w %q: no stops", ErrInvalidTable, name)
	}
	out := make([]core.GradientStop, len(stops))
	for i, s := range stops {
		if !util.IsFinite(s.Progress) || s.Progress < 0 || s.Progress > 1 {
			return nil, fmt.Errorf("%w %q: stop %d progress %v out of [0,1]", ErrInvalidTable, name, i, s.Progress)
		}
		if i > 0 && s.Progress <= stops[i-1].Progress {
			return nil, fmt.Errorf("%w %q: stop %d progress %v not increasing", ErrInvalidTable, name, i, s.Progress)
		}
		n, err := normalizeStop(s)
		if err != nil {
			return nil, fmt.Errorf("%w %q: stop %d: %w", ErrInvalidTable, name, i, err)
		}
		out[i] = n
	}
	if out[0].Progress != 0 {
		return nil, fmt.Errorf("%w %q: first stop at %v, want 0", ErrInvalidTable, name, out[0].Progress)
	}
	return out, nil
}

// Stops returns a copy of the normalized stops.
func (t *Table) Stops() []core.GradientStop {
	out := make([]core.GradientStop, len(t.stops))
	for i, s := range t.stops {
		out[i] = cloneStop(s)
	}
	return out
}

// PaletteRef places a named palette at a cycle progress.
type PaletteRef struct {
	Progress float64 `yaml:"progress" json:"progress"`
	Palette  string  `yaml:"palette" json:"palette"`
}

// TableFromPalettes builds a table whose stops are named palettes.
func TableFromPalettes(name string, refs []PaletteRef, palettes map[string]core.Palette) (*Table, error) {
	stops := make([]core.GradientStop, 0, len(refs))
	for _, ref := range refs {
		p, ok := palettes[ref.Palette]
		if !ok {
			return nil, fmt.Errorf("table %q: %w: %s", name, ErrUnknownPalette, ref.Palette)
		}
		stops = append(stops, StopFromPalette(p, ref.Progress))
	}
	return NewTable(name, stops)
}

// StopFromPalette turns a palette into a stop at progress.
func StopFromPalette(p core.Palette, progress float64) core.GradientStop {
	return core.GradientStop{
		Progress:   progress,
		Colors:     slices.Clone(p.Colors),
		Background: p.Background,
		Phase:      p.Phase,
	}
}

// NormalizeHex parses a #rgb or #rrggbb color and returns lowercase #rrggbb.
func NormalizeHex(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return "", fmt.Errorf("color %q: %w", s, err)
	}
	return c.Hex(), nil
}

func normalizeStop(s core.GradientStop) (core.GradientStop, error) {
	if len(s.Colors) == 0 {
		return s, errors.New("no colors")
	}
	out := core.GradientStop{Progress: s.Progress, Phase: s.Phase, Colors: make([]string, len(s.Colors))}
	for i, c := range s.Colors {
		n, err := NormalizeHex(c)
		if err != nil {
			return s, err
		}
		out.Colors[i] = n
	}
	bg := s.Background
	if bg == "" {
		bg = s.Colors[len(s.Colors)-1]
	}
	n, err := NormalizeHex(bg)
	if err != nil {
		return s, err
	}
	out.Background = n
	return out, nil
}

func normalizePalette(p core.Palette) (core.Palette, error) {
	s, err := normalizeStop(StopFromPalette(p, 0))
	if err != nil {
		return p, fmt.Errorf("palette %q: %w", p.Name, err)
	}
	p.Colors = s.Colors
	p.Background = s.Background
	return p, nil
}

func cloneStop(s core.GradientStop) core.GradientStop {
	s.Colors = slices.Clone(s.Colors)
	return s
}

func sameLook(a, b core.GradientStop) bool {
	return slices.Equal(a.Colors, b.Colors) && a.Background == b.Background
}
