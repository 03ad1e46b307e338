package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapscene/animator/pkg/core"
)

func TestParseIntFromFloat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{"integer", "3", 3, false},
		{"zero", "0", 0, false},
		{"negative integer", "-1", -1, false},
		{"float with decimals", "2.00", 2, false},
		{"fractional rejects", "1.5", 0, true},
		{"empty string", "", 0, true},
		{"non-numeric", "abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseIntFromFloat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParseBool(t *testing.T) {
	for _, in := range []string{"on", "ON", "true", "1", "yes"} {
		got, err := parseBool(in)
		require.NoError(t, err, in)
		assert.True(t, got, in)
	}
	for _, in := range []string{"off", "false", "0", "no"} {
		got, err := parseBool(in)
		require.NoError(t, err, in)
		assert.False(t, got, in)
	}
	_, err := parseBool("maybe")
	assert.ErrorIs(t, err, ErrArgs)
}

func TestParseNewScene(t *testing.T) {
	p := NewParser(nil)

	got, err := p.ParseNewScene([]string{`"Harbour flyover"`, "12.5"})
	require.NoError(t, err)
	assert.Equal(t, NewScene{Name: "Harbour flyover", Duration: 12.5}, got)

	got, err = p.ParseNewScene([]string{"open"})
	require.NoError(t, err)
	assert.Zero(t, got.Duration)

	for _, args := range [][]string{nil, {"x", "-1"}, {"x", "soon"}} {
		_, err := p.ParseNewScene(args)
		assert.ErrorIs(t, err, ErrArgs, "%v", args)
	}
}

func TestParseActor(t *testing.T) {
	p := NewParser(nil)

	a, err := p.ParseActor([]string{"tower", "building", "models/tower.json", "13.4,52.5,10", "45"})
	require.NoError(t, err)
	assert.Equal(t, core.ActorBuilding, a.Kind)
	assert.Equal(t, "models/tower.json", a.ModelURL)
	assert.Equal(t, core.GeodeticPoint{Lng: 13.4, Lat: 52.5, Alt: 10}, a.Base.Position)
	assert.Equal(t, 45.0, a.Base.Rotation)
	assert.Equal(t, 1.0, a.Base.Scale)

	tests := []struct {
		name string
		args []string
	}{
		{"too few", []string{"tower", "building"}},
		{"bad kind", []string{"tower", "tree", "u", "13,52"}},
		{"bad position", []string{"tower", "model", "u", "13"}},
		{"out of range", []string{"tower", "model", "u", "13,95"}},
		{"bad scale", []string{"tower", "model", "u", "13,52", "0", "big"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.ParseActor(tt.args)
			assert.ErrorIs(t, err, ErrArgs)
		})
	}
}

func TestParseAnimation(t *testing.T) {
	p := NewParser(nil)

	actorID, anim, err := p.ParseAnimation([]string{"a1", "rotate", "1", "4", `[{"angle":0},{"angle":90}]`})
	require.NoError(t, err)
	assert.Equal(t, "a1", actorID)
	assert.Equal(t, core.AnimationRotate, anim.Kind)
	assert.Equal(t, 4.0, anim.Duration)
	require.Len(t, anim.Keyframes, 2)
	assert.Equal(t, 90.0, anim.Keyframes[1].Angle)

	_, _, err = p.ParseAnimation([]string{"a1", "rotate", "1", "4", `[{`})
	assert.ErrorIs(t, err, ErrArgs)
	_, _, err = p.ParseAnimation([]string{"a1", "spin", "1", "4", `[]`})
	assert.ErrorIs(t, err, ErrArgs)
}

func TestParseEffect(t *testing.T) {
	p := NewParser(nil)

	e, err := p.ParseEffect([]string{"light", "0", "3", `{"intensity":2}`})
	require.NoError(t, err)
	assert.Equal(t, core.EffectLight, e.Kind)
	assert.Equal(t, 2.0, e.Params["intensity"])

	e, err = p.ParseEffect([]string{"weather", "1", "2"})
	require.NoError(t, err)
	assert.Nil(t, e.Params)

	_, err = p.ParseEffect([]string{"smoke", "0", "1"})
	assert.ErrorIs(t, err, ErrArgs)
}

func TestParsePlayAndSeek(t *testing.T) {
	p := NewParser(nil)

	play, err := p.ParsePlay(nil)
	require.NoError(t, err)
	assert.Equal(t, "", play.SceneID)
	assert.Equal(t, 1.0, play.Speed)

	play, err = p.ParsePlay([]string{"s1", "2"})
	require.NoError(t, err)
	assert.Equal(t, "s1", play.SceneID)
	assert.Equal(t, 2.0, play.Speed)

	_, err = p.ParsePlay([]string{"s1", "0"})
	assert.ErrorIs(t, err, ErrArgs)
	_, err = p.ParsePlay([]string{"s1", "NaN"})
	assert.ErrorIs(t, err, ErrArgs)

	seek, err := p.ParseSeek([]string{"2.5", "s1"})
	require.NoError(t, err)
	assert.Equal(t, 2.5, seek.Time)
	assert.Equal(t, "s1", seek.SceneID)

	_, err = p.ParseCaptureTime([]string{"-1"})
	assert.ErrorIs(t, err, ErrArgs)
}

func TestParseCameraAndPointer(t *testing.T) {
	p := NewParser(nil)

	cam, err := p.ParseCamera([]string{"-0.1276,51.5072", "15", "40"})
	require.NoError(t, err)
	assert.Equal(t, 15.0, cam.Zoom)
	assert.Equal(t, 40.0, cam.Pitch)
	assert.Zero(t, cam.Bearing)

	ptr, err := p.ParsePointer([]string{"down", "120", "80"})
	require.NoError(t, err)
	assert.Equal(t, Pointer{Kind: core.PointerDown, X: 120, Y: 80, Index: -1}, ptr)

	ptr, err = p.ParsePointer([]string{"move", "1", "2", "3.00"})
	require.NoError(t, err)
	assert.Equal(t, 3, ptr.Index)

	_, err = p.ParsePointer([]string{"click", "1", "2"})
	assert.ErrorIs(t, err, ErrArgs)
	_, err = p.ParsePointer([]string{"up", "1", "2", "1.5"})
	assert.ErrorIs(t, err, ErrArgs)
}

func TestParseSky(t *testing.T) {
	p := NewParser(nil)

	pal, err := p.ParsePalette([]string{`"dusk"`})
	require.NoError(t, err)
	assert.Equal(t, "dusk", pal.Palette)

	dur, err := p.ParseCycleDuration([]string{"90"})
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, dur.Duration)
	_, err = p.ParseCycleDuration([]string{"0"})
	assert.ErrorIs(t, err, ErrArgs)

	seek, err := p.ParseProgress([]string{"0.25"})
	require.NoError(t, err)
	assert.Equal(t, 0.25, seek.Progress)

	sun, err := p.ParseSun([]string{"start", "30"})
	require.NoError(t, err)
	assert.Equal(t, SunCommand{Start: true, Duration: 30 * time.Second}, sun)
	sun, err = p.ParseSun([]string{"stop"})
	require.NoError(t, err)
	assert.False(t, sun.Start)
	_, err = p.ParseSun([]string{"pause"})
	assert.ErrorIs(t, err, ErrArgs)
}
