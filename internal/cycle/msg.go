package cycle

import "time"

// Msg is an input to Engine.Update.
type Msg interface {
	cycleMsg()
}

// TransitionMsg blends to a named palette.
type TransitionMsg struct {
	Palette string
}

// StartCycleMsg starts the continuous cycle.
type StartCycleMsg struct{}

// StopMsg stops whichever mode runs.
type StopMsg struct{}

// SetDurationMsg changes the cycle length.
type SetDurationMsg struct {
	Duration time.Duration
}

// SeekMsg jumps to a progress value.
type SeekMsg struct {
	Progress float64
}

func (TransitionMsg) cycleMsg() {}
func (StartCycleMsg) cycleMsg() {}
func (StopMsg) cycleMsg() {}
func (SetDurationMsg) cycleMsg() {}
func (SeekMsg) cycleMsg() {}

// Update is the single entry point for engine inputs.
func (e *Engine) Update(msg Msg) error {
	switch m := msg.(type) {
	case TransitionMsg:
		return e.Transition(m.Palette)
	case StartCycleMsg:
		e.StartCycle()
	case StopMsg:
		e.Stop()
	case SetDurationMsg:
		return e.SetCycleDuration(m.Duration)
	case SeekMsg:
		e.Seek(m.Progress)
	}
	return nil
}
