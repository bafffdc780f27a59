// experiment runs multi-robot goal plans against the tracker link: it
// loads a goal catalog and per-robot plans, drives each robot through
// its plan with a planner backend, and advances legs as robots arrive.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/parkside-robotics/intent.report/internal/config"
	"github.com/parkside-robotics/intent.report/internal/experiment"
	"github.com/parkside-robotics/intent.report/internal/feed"
	"github.com/parkside-robotics/intent.report/internal/intent"
	"github.com/parkside-robotics/intent.report/internal/planner"
	"github.com/parkside-robotics/intent.report/internal/sim"
)

var (
	devMode       = flag.Bool("dev", false, "Run in dev mode: replay fixtures instead of opening the tracker link")
	expPath       = flag.String("config", "experiment.json", "Experiment config JSON path")
	tuningPath    = flag.String("tuning", "", "Tuning config JSON path (defaults when empty)")
	serialPath    = flag.String("serial", "/dev/ttyUSB0", "Tracker link serial device")
	baudRate      = flag.Int("baud", 115200, "Tracker link baud rate")
	fixturesPath  = flag.String("fixtures", "fixtures.jsonl", "Joint-state fixture file for dev mode")
	backendKind   = flag.String("backend", "sim", "Planner backend: sim or waypoint")
	arrivalRadius = flag.Float64("arrival-radius", 0.3, "Goal arrival radius (m)")
	setupOnly     = flag.Bool("setup", false, "Drive every robot to its first goal only")
)

// velocityCommand is the line sent back over the tracker link for each
// planned robot.
type velocityCommand struct {
	Cmd   string  `json:"cmd"`
	Robot string  `json:"robot"`
	VX    float64 `json:"vx"`
	VY    float64 `json:"vy"`
}

func buildBackend(robotID string, tuning *config.TuningConfig) (planner.Backend, error) {
	switch *backendKind {
	case "sim":
		oracle, err := sim.NewSocial(tuning.SocialConfig())
		if err != nil {
			return nil, err
		}
		return planner.NewSimBackend(oracle, robotID, *arrivalRadius)
	case "waypoint":
		return planner.NewWaypointBackend(robotID, tuning.GetPreferredSpeed(), *arrivalRadius)
	default:
		return nil, fmt.Errorf("unknown backend %q (want sim or waypoint)", *backendKind)
	}
}

func main() {
	flag.Parse()

	cfg, err := experiment.LoadConfig(*expPath)
	if err != nil {
		log.Fatalf("failed to load experiment config: %v", err)
	}
	if *setupOnly {
		for id, p := range cfg.Plans {
			cfg.Plans[id] = experiment.SetupPlan(p)
		}
	}

	tuning := config.EmptyTuningConfig()
	if *tuningPath != "" {
		tuning, err = config.LoadTuningConfig(*tuningPath)
		if err != nil {
			log.Fatalf("failed to load tuning config: %v", err)
		}
	}

	var m feed.FeedMuxInterface
	if *devMode {
		data, err := os.ReadFile(*fixturesPath)
		if err != nil {
			log.Fatalf("failed to load fixtures: %v", err)
		}
		var lines []string
		for _, l := range strings.Split(string(data), "\n") {
			if l = strings.TrimSpace(l); l != "" {
				lines = append(lines, l)
			}
		}
		m = feed.NewMockFeedMux(lines, tuning.GetCyclePeriod())
	} else {
		m, err = feed.NewRealFeedMux(*serialPath, feed.PortOptions{BaudRate: *baudRate})
		if err != nil {
			log.Fatalf("failed to open tracker link: %v", err)
		}
	}
	defer m.Close()

	dispatchers := make(map[string]*planner.Dispatcher, len(cfg.Plans))
	for id := range cfg.Plans {
		backend, err := buildBackend(id, tuning)
		if err != nil {
			log.Fatalf("failed to build planner for %s: %v", id, err)
		}
		d, err := planner.NewDispatcher(backend)
		if err != nil {
			log.Fatalf("failed to build dispatcher for %s: %v", id, err)
		}
		dispatchers[id] = d
	}

	exp, err := experiment.New(cfg, dispatchers)
	if err != nil {
		log.Fatalf("failed to build experiment: %v", err)
	}

	collector := feed.NewCollector()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := m.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("failed to monitor tracker link: %v", err)
		}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		id, c := m.Subscribe()
		defer m.Unsubscribe(id)
		collector.Consume(ctx, c)
	}()

	sink := func(robotID string, cmd intent.Vec2) error {
		payload, err := json.Marshal(velocityCommand{Cmd: "velocity", Robot: robotID, VX: cmd.X, VY: cmd.Y})
		if err != nil {
			return err
		}
		return m.SendCommand(string(payload))
	}

	console := experiment.NewConsole(exp, collector.Latest, sink, tuning.GetCyclePeriod(), os.Stdin, os.Stdout)
	if err := console.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("experiment failed: %v", err)
	}

	stop()
	wg.Wait()
}
