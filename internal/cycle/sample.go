package cycle

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"sort"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/mapscene/animator/internal/util"
	"github.com/mapscene/animator/pkg/core"
)

// Sun marker and stars thresholds.
const (
	SunRise      = 0.25
	SunSet       = 0.75
	StarsBelow   = 0.2
	StarsAbove   = 0.8
	GlowColor    = "#fff3b0"
	GlowSpread   = 0.1
	GlowStrength = 0.35
)

// State is the interpolated sky at one progress value.
type State struct {
	Progress   float64              `json:"progress"`
	Colors     []string             `json:"colors"`
	Background string               `json:"background"`
	Phase      string               `json:"phase"`
	Gradient   []core.GradientPoint `json:"gradient"`
	Sun        core.SunMarker       `json:"sun"`
	Stars      bool                 `json:"stars"`
}

// Sample interpolates table at progress, which is clamped to [0,1]. Authored
// stops are returned exactly; between stops the local factor is eased and
// every RGB channel is blended separately.
func Sample(t *Table, progress float64) State {
	progress = util.Clamp01(progress)
	i := bracket(t.stops, progress)
	a, b := t.stops[i], t.stops[i+1]
	f := util.Factor(progress, a.Progress, b.Progress)

	var st State
	switch {
	case f <= 0:
		st = stateFromStop(a)
	case f >= 1:
		st = stateFromStop(b)
	default:
		eased := util.EaseInOutCubic(f)
		st.Colors = blendLists(a.Colors, b.Colors, eased)
		st.Background = blendHex(a.Background, b.Background, eased)
		st.Phase = a.Phase
		if eased >= 0.5 {
			st.Phase = b.Phase
		}
	}
	st.Progress = progress
	st.Sun = SunAt(progress)
	st.Stars = progress < StarsBelow || progress > StarsAbove
	st.Gradient = withGlow(baseGradient(st.Colors), st.Sun)
	return st
}

// bracket returns i such that stops[i].Progress <= p <= stops[i+1].Progress.
func bracket(stops []core.GradientStop, p float64) int {
	j := sort.Search(len(stops), func(k int) bool { return stops[k].Progress > p })
	i := j - 1
	if i < 0 {
		i = 0
	}
	if i > len(stops)-2 {
		i = len(stops) - 2
	}
	return i
}

func stateFromStop(s core.GradientStop) State {
	return State{
		Colors:     slices.Clone(s.Colors),
		Background: s.Background,
		Phase:      s.Phase,
	}
}

// SunAt places the sun on a flattened half-ellipse across the viewport while
// progress is inside the visibility window.
func SunAt(progress float64) core.SunMarker {
	if progress < SunRise || progress > SunSet {
		return core.SunMarker{}
	}
	norm := (progress - SunRise) / (SunSet - SunRise)
	angle := norm * math.Pi
	return core.SunMarker{
		Visible: true,
		X:       0.5 - 0.45*math.Cos(angle),
		Y:       0.8 - 0.6*math.Sin(angle),
	}
}

func baseGradient(colors []string) []core.GradientPoint {
	if len(colors) == 1 {
		return []core.GradientPoint{{Offset: 0, Color: colors[0]}, {Offset: 1, Color: colors[0]}}
	}
	out := make([]core.GradientPoint, len(colors))
	for i, c := range colors {
		out[i] = core.GradientPoint{Offset: float64(i) / float64(len(colors)-1), Color: c}
	}
	return out
}

// colorAt reads a gradient at offset.
func colorAt(g []core.GradientPoint, offset float64) string {
	if offset <= g[0].Offset {
		return g[0].Color
	}
	for i := 1; i < len(g); i++ {
		if offset <= g[i].Offset {
			f := util.Factor(offset, g[i-1].Offset, g[i].Offset)
			return blendHex(g[i-1].Color, g[i].Color, f)
		}
	}
	return g[len(g)-1].Color
}

// withGlow merges transient stops around the sun's height into g.
func withGlow(g []core.GradientPoint, sun core.SunMarker) []core.GradientPoint {
	if !sun.Visible {
		return g
	}
	glow := []core.GradientPoint{{Offset: sun.Y, Color: GlowColor}}
	for _, off := range []float64{sun.Y - GlowSpread, sun.Y + GlowSpread} {
		if off < 0 || off > 1 {
			continue
		}
		glow = append(glow, core.GradientPoint{Offset: off, Color: blendHex(colorAt(g, off), GlowColor, GlowStrength)})
	}
	out := append(slices.Clone(g), glow...)
	slices.SortStableFunc(out, func(a, b core.GradientPoint) int {
		return cmp.Compare(a.Offset, b.Offset)
	})
	return out
}

// blendLists blends slot by slot; the shorter list repeats its last entry.
func blendLists(a, b []string, f float64) []string {
	n := max(len(a), len(b))
	out := make([]string, n)
	for k := range n {
		out[k] = blendHex(a[min(k, len(a)-1)], b[min(k, len(b)-1)], f)
	}
	return out
}

// blendHex blends two colors per 8-bit channel, truncating.
func blendHex(a, b string, f float64) string {
	ca, errA := colorful.Hex(a)
	cb, errB := colorful.Hex(b)
	if errA != nil || errB != nil {
		if f < 0.5 {
			return a
		}
		return b
	}
	ar, ag, ab := ca.RGB255()
	br, bg, bb := cb.RGB255()
	ch := func(x, y uint8) uint8 {
		return uint8(util.Lerp(float64(x), float64(y), f))
	}
	return fmt.Sprintf("#%02x%02x%02x", ch(ar, br), ch(ag, bg), ch(ab, bb))
}
