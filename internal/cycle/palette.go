package cycle

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/mapscene/animator/pkg/core"
)

// DefaultTable is the name of the built-in day cycle.
const DefaultTable = "day"

// Library is a set of named palettes and the cycle tables built from them.
type Library struct {
	Palettes map[string]core.Palette
	Tables   map[string]*Table
}

// Palette looks up a palette by name.
func (l *Library) Palette(name string) (core.Palette, error) {
	p, ok := l.Palettes[name]
	if !ok {
		return core.Palette{}, fmt.Errorf("%w: %s", ErrUnknownPalette, name)
	}
	return p, nil
}

// PaletteNames returns palette names sorted.
func (l *Library) PaletteNames() []string {
	names := make([]string, 0, len(l.Palettes))
	for name := range l.Palettes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type libraryFile struct {
	Palettes []core.Palette          `yaml:"palettes"`
	Cycles   map[string][]PaletteRef `yaml:"cycles"`
}

// ParseLibrary decodes a YAML palette library.
func ParseLibrary(data []byte) (*Library, error) {
	var f libraryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding palettes: %w", err)
	}
	return buildLibrary(f)
}

// LoadLibrary reads a YAML palette library from path.
func LoadLibrary(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading palettes: %w", err)
	}
	return ParseLibrary(data)
}

func buildLibrary(f libraryFile) (*Library, error) {
	lib := &Library{
		Palettes: make(map[string]core.Palette, len(f.Palettes)),
		Tables:   make(map[string]*Table, len(f.Cycles)),
	}
	for _, p := range f.Palettes {
		if p.Name == "" {
			return nil, errors.New("palette without a name")
		}
		if p.Phase == "" {
			p.Phase = p.Name
		}
		n, err := normalizePalette(p)
		if err != nil {
			return nil, err
		}
		lib.Palettes[p.Name] = n
	}
	for name, refs := range f.Cycles {
		t, err := TableFromPalettes(name, refs, lib.Palettes)
		if err != nil {
			return nil, err
		}
		lib.Tables[name] = t
	}
	return lib, nil
}

// DefaultLibrary returns the built-in palettes and day cycle.
func DefaultLibrary() *Library {
	lib, err := buildLibrary(libraryFile{
		Palettes: []core.Palette{
			{Name: "night", Colors: []string{"#0b1026", "#1b2a4a", "#2c3e66"}, Background: "#05070f", Phase: "night", Stars: true},
			{Name: "dawn", Colors: []string{"#3a4a7a", "#d98c6a", "#f6c28b"}, Background: "#2b2d42", Phase: "dawn"},
			{Name: "day", Colors: []string{"#4a90d9", "#87c1ee", "#cfe8fb"}, Background: "#9cc9ef", Phase: "day"},
			{Name: "dusk", Colors: []string{"#2d1e4a", "#b5517a", "#f29e5c"}, Background: "#1f1633", Phase: "dusk"},
		},
		Cycles: map[string][]PaletteRef{
			DefaultTable: {
				{Progress: 0, Palette: "night"},
				{Progress: 0.25, Palette: "dawn"},
				{Progress: 0.5, Palette: "day"},
				{Progress: 0.75, Palette: "dusk"},
			},
		},
	})
	if err != nil {
		panic(fmt.Sprintf("built-in palettes: %v", err))
	}
	return lib
}
