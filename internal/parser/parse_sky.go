package parser

import (
	"fmt"
	"strings"
	"time"

	"github.com/mapscene/animator/internal/cycle"
)

// ParsePalette parses [name].
func (p *Parser) ParsePalette(args []string) (cycle.TransitionMsg, error) {
	args = clean(args)
	if err := need(args, 1, "palette"); err != nil {
		return cycle.TransitionMsg{}, err
	}
	return cycle.TransitionMsg{Palette: args[0]}, nil
}

// ParseCycleDuration parses [seconds].
func (p *Parser) ParseCycleDuration(args []string) (cycle.SetDurationMsg, error) {
	args = clean(args)
	if err := need(args, 1, "seconds"); err != nil {
		return cycle.SetDurationMsg{}, err
	}
	d, err := parseSeconds(args[0], "duration")
	return cycle.SetDurationMsg{Duration: d}, err
}

// ParseProgress parses [progress].
func (p *Parser) ParseProgress(args []string) (cycle.SeekMsg, error) {
	args = clean(args)
	if err := need(args, 1, "progress"); err != nil {
		return cycle.SeekMsg{}, err
	}
	f, err := parseFloat(args[0], "progress")
	return cycle.SeekMsg{Progress: f}, err
}

// SunCommand is the parsed form of :SUN:CYCLE:.
type SunCommand struct {
	Start    bool
	Duration time.Duration
}

// ParseSun parses [start|stop, seconds?].
func (p *Parser) ParseSun(args []string) (SunCommand, error) {
	args = clean(args)
	if err := need(args, 1, "start|stop [seconds]"); err != nil {
		return SunCommand{}, err
	}
	var cmd SunCommand
	switch strings.ToLower(args[0]) {
	case "start":
		cmd.Start = true
	case "stop":
	default:
		return SunCommand{}, fmt.Errorf("%w: want start or stop, got %q", ErrArgs, args[0])
	}
	if len(args) > 1 && args[1] != "" {
		d, err := parseSeconds(args[1], "duration")
		if err != nil {
			return SunCommand{}, err
		}
		cmd.Duration = d
	}
	return cmd, nil
}
