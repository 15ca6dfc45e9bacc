package broker

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/srg/blebroker/internal/adapter"
)

// Chooser picks one matching device out of a RequestDevice scan, the way a
// browser's device-picker dialog would. The broker calls it after the
// discovery window, and only when at least one device matched.
type Chooser interface {
	Choose(ctx context.Context, candidates []adapter.DeviceSnapshot) (adapter.DeviceSnapshot, bool, error)
}

// AutoFirstChooser deterministically picks the first matching candidate in
// discovery order. It is the chooser the test harness and any headless
// deployment use, since there is no human present to ask.
type AutoFirstChooser struct{}

func (AutoFirstChooser) Choose(_ context.Context, candidates []adapter.DeviceSnapshot) (adapter.DeviceSnapshot, bool, error) {
	if len(candidates) == 0 {
		return adapter.DeviceSnapshot{}, false, nil
	}
	return candidates[0], true, nil
}

// ConsoleChooser prints numbered candidates to out and reads a selection
// from in, colorizing the prompt the way the teacher's cmd/blim CLI
// colorizes its device table. It is meant for an interactive brokerctl
// session, not the test harness.
type ConsoleChooser struct {
	In  io.Reader
	Out io.Writer
}

func NewConsoleChooser(in io.Reader, out io.Writer) *ConsoleChooser {
	return &ConsoleChooser{In: in, Out: out}
}

func (c *ConsoleChooser) Choose(ctx context.Context, candidates []adapter.DeviceSnapshot) (adapter.DeviceSnapshot, bool, error) {
	if len(candidates) == 0 {
		return adapter.DeviceSnapshot{}, false, nil
	}

	bold := color.New(color.Bold)
	cyan := color.New(color.FgCyan)

	bold.Fprintln(c.Out, "Select a device:")
	for i, d := range candidates {
		name := d.Name
		if name == "" {
			name = "(unnamed)"
		}
		cyan.Fprintf(c.Out, "  [%d] %s", i+1, name)
		fmt.Fprintf(c.Out, " - %s\n", d.Address)
	}

	var choice int
	if _, err := fmt.Fscan(c.In, &choice); err != nil {
		return adapter.DeviceSnapshot{}, false, fmt.Errorf("console chooser: %w", err)
	}
	if choice < 1 || choice > len(candidates) {
		return adapter.DeviceSnapshot{}, false, nil
	}
	return candidates[choice-1], true, nil
}
