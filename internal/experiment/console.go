package experiment

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/parkside-robotics/intent.report/internal/intent"
)

// JointSource returns the latest observed joint state, false when no
// observation has arrived yet.
type JointSource func() (intent.JointState, bool)

// CommandSink delivers one robot's velocity command downstream.
type CommandSink func(robotID string, cmd intent.Vec2) error

var spinnerFrames = []byte{'|', '/', '-', '\\'}

// Console runs an experiment interactively: enter starts the plans, q
// quits, and a spinner with per-robot progress is drawn while legs are
// in flight.
type Console struct {
	exp    *Experiment
	source JointSource
	sink   CommandSink
	period time.Duration
	in     io.Reader
	out    io.Writer
}

// NewConsole wires an experiment to its observation source and command
// sink. period is the planning step cadence.
func NewConsole(exp *Experiment, source JointSource, sink CommandSink, period time.Duration, in io.Reader, out io.Writer) *Console {
	return &Console{exp: exp, source: source, sink: sink, period: period, in: in, out: out}
}

// Run blocks until the experiment finishes, the user quits, or the
// context is cancelled.
func (c *Console) Run(ctx context.Context) error {
	fmt.Fprintf(c.out, "experiment: %d goals, robots %s\n",
		len(c.exp.Catalog()), strings.Join(c.exp.RobotIDs(), ", "))
	fmt.Fprint(c.out, "press enter to start, q to quit: ")

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
		close(lines)
	}()

	select {
	case line, ok := <-lines:
		if !ok || line == "q" {
			fmt.Fprintln(c.out, "aborted")
			return nil
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	c.exp.Start()

	ticker := time.NewTicker(c.period)
	defer ticker.Stop()
	frame := 0
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.out)
			return ctx.Err()
		case line, ok := <-lines:
			if !ok || line == "q" {
				fmt.Fprintln(c.out, "\nstopped")
				return nil
			}
		case <-ticker.C:
			joint, ok := c.source()
			if !ok {
				continue
			}
			cmds, err := c.exp.Step(ctx, joint)
			if err != nil {
				fmt.Fprintln(c.out)
				return err
			}
			for id, cmd := range cmds {
				if err := c.sink(id, cmd); err != nil {
					fmt.Fprintln(c.out)
					return fmt.Errorf("robot %s: %w", id, err)
				}
			}
			fmt.Fprintf(c.out, "\r%c %s", spinnerFrames[frame%len(spinnerFrames)], c.progressLine())
			frame++
			if c.exp.Done() {
				fmt.Fprintln(c.out, "\nall plans complete")
				return nil
			}
		}
	}
}

func (c *Console) progressLine() string {
	progress := c.exp.Progress()
	parts := make([]string, 0, len(progress))
	for _, id := range c.exp.RobotIDs() {
		p := progress[id]
		if p.Done {
			parts = append(parts, fmt.Sprintf("%s done", id))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s leg %d/%d -> g%d", id, p.Leg, p.Legs, p.GoalIndex))
	}
	return strings.Join(parts, "  ")
}
