package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/mapscene/animator/internal/dispatcher"
	"github.com/mapscene/animator/internal/session"
)

// Script directives besides dispatcher commands.
const (
	directiveWait     = "wait"
	directiveSnapshot = "snapshot"
)

type stepKind int

const (
	stepCommand stepKind = iota
	stepWait
	stepSnapshot
)

// Step is one script line.
type Step struct {
	Line    int
	Kind    stepKind
	Command string
	Args    []string
	Wait    time.Duration
	Path    string
}

// ParseScript reads one step per line. Blank lines and lines starting with
// '#' are skipped. Commands look like ":PLAY: 1"; arguments are separated by
// whitespace and may be quoted.
func ParseScript(r io.Reader) ([]Step, error) {
	var steps []Step
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields, err := splitArgs(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		step := Step{Line: line}
		switch head := fields[0]; {
		case head == directiveWait:
			if len(fields) != 2 {
				return nil, fmt.Errorf("line %d: wait takes one duration", line)
			}
			d, err := time.ParseDuration(fields[1])
			if err != nil || d < 0 {
				return nil, fmt.Errorf("line %d: invalid wait %q", line, fields[1])
			}
			step.Kind, step.Wait = stepWait, d
		case head == directiveSnapshot:
			if len(fields) != 2 {
				return nil, fmt.Errorf("line %d: snapshot takes one path", line)
			}
			step.Kind, step.Path = stepSnapshot, fields[1]
		case strings.HasPrefix(head, ":") && strings.HasSuffix(head, ":") && len(head) > 2:
			step.Kind, step.Command, step.Args = stepCommand, head, fields[1:]
		default:
			return nil, fmt.Errorf("line %d: unknown directive %q", line, head)
		}
		steps = append(steps, step)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return steps, nil
}

// splitArgs splits on whitespace. Single or double quotes keep a run
// together; the other quote character is literal inside it.
func splitArgs(s string) ([]string, error) {
	var (
		out     []string
		cur     strings.Builder
		quote   rune
		started bool
	)
	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			started = true
		case r == ' ' || r == '\t':
			if started {
				out = append(out, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if quote != 0 {
		return nil, errors.New("unterminated quote")
	}
	if started {
		out = append(out, cur.String())
	}
	return out, nil
}

// scriptRunner executes steps against one session.
type scriptRunner struct {
	d           *dispatcher.Dispatcher
	runner      dispatcher.Runner
	session     *session.Session
	wait        func(time.Duration)
	out         io.Writer
	snapshotDir string
	keepGoing   bool
}

// Run executes steps in order. The first failing command stops the run
// unless keepGoing is set.
func (r *scriptRunner) Run(ctx context.Context, steps []Step) error {
	var failed int
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch step.Kind {
		case stepWait:
			r.wait(step.Wait)

		case stepSnapshot:
			path := step.Path
			if r.snapshotDir != "" && !filepath.IsAbs(path) {
				path = filepath.Join(r.snapshotDir, path)
			}
			var err error
			if doErr := r.runner.Do(ctx, func() { err = r.session.Snapshot(path) }); doErr != nil {
				err = doErr
			}
			if err != nil {
				return fmt.Errorf("line %d: snapshot: %w", step.Line, err)
			}
			fmt.Fprintf(r.out, "snapshot %s\n", path)

		case stepCommand:
			result, err := r.d.Dispatch(dispatcher.Event{
				Command:   step.Command,
				Args:      step.Args,
				Timestamp: time.Now(),
			})
			if err != nil {
				fmt.Fprintf(r.out, "%s error: %v\n", step.Command, err)
				if !r.keepGoing {
					return fmt.Errorf("line %d: %s: %w", step.Line, step.Command, err)
				}
				failed++
				continue
			}
			fmt.Fprintf(r.out, "%s %s\n", step.Command, formatResult(result))
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d commands failed", failed)
	}
	return nil
}

func formatResult(v any) string {
	switch v := v.(type) {
	case nil:
		return "ok"
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
