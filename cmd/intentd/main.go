// intentd is the inference daemon: it consumes the observation feed,
// runs the goal-inference cycle on a fixed cadence, records every cycle
// to the store, and serves the monitoring API.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/parkside-robotics/intent.report/internal/api"
	"github.com/parkside-robotics/intent.report/internal/config"
	"github.com/parkside-robotics/intent.report/internal/db"
	"github.com/parkside-robotics/intent.report/internal/feed"
	"github.com/parkside-robotics/intent.report/internal/intent"
	"github.com/parkside-robotics/intent.report/internal/sim"
	"github.com/parkside-robotics/intent.report/internal/version"
	"github.com/parkside-robotics/intent.report/internal/viz"
)

var (
	devMode       = flag.Bool("dev", false, "Run in dev mode: replay fixtures instead of opening the tracker link")
	listen        = flag.String("listen", ":8080", "Listen address")
	dbFile        = flag.String("db", "intent.db", "SQLite database path")
	configPath    = flag.String("config", "", "Tuning config JSON path (defaults when empty)")
	serialPath    = flag.String("serial", "/dev/ttyUSB0", "Tracker link serial device")
	baudRate      = flag.Int("baud", 115200, "Tracker link baud rate")
	fixturesPath  = flag.String("fixtures", "fixtures.jsonl", "Joint-state fixture file for dev mode")
	migrationsDir = flag.String("migrations", "./migrations", "Migration files directory")
	chartsDir     = flag.String("charts", "charts", "Output directory for exported charts")
)

func loadFixtureLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, l := range strings.Split(string(data), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("fixture file %s contains no lines", path)
	}
	return lines, nil
}

func main() {
	flag.Parse()

	// 'intentd migrate <action>' manages the schema and exits.
	if flag.Arg(0) == "migrate" {
		db.RunMigrateCommand(flag.Args()[1:], *dbFile, *migrationsDir)
		return
	}

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	log.Printf("intentd %s", version.String())

	tuning := config.EmptyTuningConfig()
	if *configPath != "" {
		var err error
		tuning, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load tuning config: %v", err)
		}
	}
	cyclePeriod := tuning.GetCyclePeriod()

	var m feed.FeedMuxInterface
	if *devMode {
		lines, err := loadFixtureLines(*fixturesPath)
		if err != nil {
			log.Fatalf("failed to load fixtures: %v", err)
		}
		m = feed.NewMockFeedMux(lines, cyclePeriod)
	} else {
		var err error
		m, err = feed.NewRealFeedMux(*serialPath, feed.PortOptions{BaudRate: *baudRate})
		if err != nil {
			log.Fatalf("failed to open tracker link: %v", err)
		}
	}
	defer m.Close()

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	cfgJSON, err := json.Marshal(tuning)
	if err != nil {
		log.Fatalf("failed to marshal tuning config: %v", err)
	}
	run, err := database.CreateRun(string(cfgJSON))
	if err != nil {
		log.Fatalf("failed to create run: %v", err)
	}
	runID := run.ID
	log.Printf("recording run %s", runID)

	oracle, err := sim.NewSocial(tuning.SocialConfig())
	if err != nil {
		log.Fatalf("failed to build forward model: %v", err)
	}
	engine, err := intent.NewEngine(tuning.InferenceConfig(), tuning.Generator(), oracle, nil)
	if err != nil {
		log.Fatalf("failed to build inference engine: %v", err)
	}

	collector := feed.NewCollector()
	apiServer := api.NewServer(engine, collector, m, database, tuning, runID)

	engine.AddConsumer(intent.ConsumerFunc(func(res intent.CycleResult) {
		if err := database.RecordCycle(runID, res); err != nil {
			log.Printf("failed to record cycle %d: %v", res.Cycle, err)
		}
	}))
	engine.AddConsumer(apiServer)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the tracker link
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := m.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("failed to monitor tracker link: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	// subscribe to the tracker link and keep the latest joint state
	wg.Add(1)
	go func() {
		defer wg.Done()
		id, c := m.Subscribe()
		defer m.Unsubscribe(id)
		collector.Consume(ctx, c)
		log.Printf("collector routine terminated")
	}()

	// cycle loop: run inference on the latest observation each period
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(cyclePeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Printf("cycle routine terminated")
				return
			case <-ticker.C:
				joint, ok := collector.Latest()
				if !ok {
					continue
				}
				start := time.Now()
				if _, err := engine.RunCycle(ctx, joint); err != nil {
					log.Printf("cycle failed: %v", err)
					continue
				}
				if elapsed := time.Since(start); elapsed > cyclePeriod {
					log.Printf("cycle overran its period: %v > %v", elapsed, cyclePeriod)
				}
			}
		}
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := apiServer.ServeMux()

		// mount the admin debugging routes and the chart pages
		database.AttachAdminRoutes(mux)
		m.AttachAdminRoutes(mux)
		viz.NewServer(database, engine, runID, *chartsDir).AttachRoutes(mux)

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
