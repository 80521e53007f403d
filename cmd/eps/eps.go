package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/eps.report/internal/api"
	"github.com/banshee-data/eps.report/internal/config"
	"github.com/banshee-data/eps.report/internal/db"
	"github.com/banshee-data/eps.report/internal/eps"
	"github.com/banshee-data/eps.report/internal/evaluator"
	"github.com/banshee-data/eps.report/internal/monitoring"
	"github.com/banshee-data/eps.report/internal/serialmux"
	"github.com/banshee-data/eps.report/internal/version"
)

var (
	configFile    = flag.String("config", "", "Path to JSON config file (built-in defaults when empty)")
	listen        = flag.String("listen", ":8080", "Listen address")
	port          = flag.String("port", "/dev/ttyS0", "Serial port to read telegrams from")
	replayFile    = flag.String("replay", "", "Replay telegrams from this capture file instead of the serial port")
	dbPath        = flag.String("db", "eps_data.db", "Path to the sqlite database")
	disableSerial = flag.Bool("disable-serial", false, "Run without a telegram source (API only)")
	showVersion   = flag.Bool("version", false, "Print version and exit")
)

// Main
func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg := config.EmptyConfig()
	if *configFile != "" {
		var err error
		if cfg, err = config.LoadConfig(*configFile); err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	applyOverrides(cfg, visitedFlags())
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logCloser := monitoring.SetupLogFile(cfg.GetLogFile(), monitoring.DefaultRotationOptions())
	defer logCloser.Close()
	log.Printf("starting %s", version.String())

	database, err := db.NewDB(cfg.GetDBPath())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	proc, err := eps.NewProcessor(cfg.GetTelegramFormat(), cfg.GetThreshold())
	if err != nil {
		log.Fatalf("failed to create processor: %v", err)
	}

	session, err := database.NewSession(proc.Format(), proc.Threshold(), cfg.GetSource())
	if err != nil {
		log.Fatalf("failed to start session: %v", err)
	}
	log.Printf("session %s (%s, threshold %d)", session.ID, proc.Format(), proc.Threshold())

	eval := evaluator.New(proc, evaluator.Options{
		Interval:      cfg.GetEvalInterval(),
		RefreshRate:   cfg.GetRefreshRate(),
		DisplayJitter: cfg.GetDisplayJitter(),
	}, db.NewRecorder(database, session.ID))

	if cfg.GetRestoreSession() {
		if err := restoreSession(database, eval, session.ID); err != nil {
			log.Printf("session restore failed: %v", err)
		}
	}

	source, err := openSource(cfg)
	if err != nil {
		log.Fatalf("failed to open telegram source: %v", err)
	}
	defer source.Close()

	// subscribe before Monitor starts so a replay cannot race ahead of us
	subID, lines := source.Subscribe()

	// Create a wait group for the HTTP server, source monitor, and evaluator routines
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the telegram source
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := source.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("failed to monitor telegram source: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer source.Unsubscribe(subID)
		if err := eval.Run(ctx, lines); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("evaluator stopped: %v", err)
		}
		log.Print("evaluator routine terminated")
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		server := &http.Server{
			Addr:    cfg.GetListen(),
			Handler: api.LoggingMiddleware(newServeMux(database, source, eval, session.ID)),
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

// newServeMux mounts the admin debugging routes (localhost or tailnet only)
// next to the API and chart handlers.
func newServeMux(database *db.DB, source serialmux.SerialMuxInterface, eval *evaluator.Evaluator, sessionID string) *http.ServeMux {
	mux := http.NewServeMux()
	database.AttachAdminRoutes(mux)
	source.AttachAdminRoutes(mux)

	apiMux := api.NewServer(eval, source, database, sessionID).ServeMux()
	mux.Handle("/api/", apiMux)
	mux.Handle("/charts/", apiMux)
	return mux
}

func visitedFlags() map[string]bool {
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

// applyOverrides copies the explicitly set command line flags over the
// file configuration.
func applyOverrides(cfg *config.Config, set map[string]bool) {
	if set["listen"] {
		cfg.Listen = listen
	}
	if set["db"] {
		cfg.DBPath = dbPath
	}
	if set["port"] {
		cfg.SerialPort = port
		source := config.SourceSerial
		cfg.Source = &source
	}
	if set["replay"] {
		cfg.ReplayFile = replayFile
		source := config.SourceReplay
		cfg.Source = &source
	}
	if *disableSerial {
		source := config.SourceNone
		cfg.Source = &source
	}
}

// openSource builds the telegram source selected by the configuration.
func openSource(cfg *config.Config) (serialmux.SerialMuxInterface, error) {
	switch cfg.GetSource() {
	case config.SourceSerial:
		m, err := serialmux.NewRealSerialMux(cfg.GetSerialPort(), cfg.GetSerialOptions(), cfg.GetQueueSize())
		if err != nil {
			return nil, err
		}
		log.Printf("reading telegrams from %s at %s", cfg.GetSerialPort(), cfg.GetSerialOptions())
		return m, nil
	case config.SourceReplay:
		m, err := serialmux.NewReplaySerialMux(cfg.GetReplayFile(), cfg.GetReplayInterval(), cfg.GetQueueSize())
		if err != nil {
			return nil, err
		}
		log.Printf("replaying telegrams from %s every %s", cfg.GetReplayFile(), cfg.GetReplayInterval())
		return m, nil
	case config.SourceNone:
		log.Print("telegram source disabled")
		return serialmux.NewDisabledSerialMux(), nil
	default:
		return nil, fmt.Errorf("unknown source %q", cfg.GetSource())
	}
}

// restoreSession carries the linearity history of the previous session
// into the current one and re-enqueues the telegrams that arrived after its
// last drain. Drained telegrams are already represented by the history.
func restoreSession(database *db.DB, eval *evaluator.Evaluator, currentID string) error {
	prev, err := database.LatestSession(currentID)
	if errors.Is(err, db.ErrNoSession) {
		log.Print("no previous session to restore")
		return nil
	}
	if err != nil {
		return err
	}

	history, err := database.LinearityHistory(prev.ID)
	if err != nil {
		return fmt.Errorf("failed to load history of %s: %w", prev.ID, err)
	}
	eval.LoadHistory(history)
	if err := database.RecordPoints(currentID, time.Now(), history); err != nil {
		return fmt.Errorf("failed to copy history: %w", err)
	}

	if prev.Format != eval.Processor().Format() {
		log.Printf("session %s used %s telegrams; restored history only", prev.ID, prev.Format)
		return nil
	}
	telegrams, err := database.UndrainedTelegrams(prev.ID)
	if err != nil {
		return fmt.Errorf("failed to load telegrams of %s: %w", prev.ID, err)
	}
	restored := 0
	for _, t := range telegrams {
		if eval.Ingest(t.Raw) {
			restored++
		}
	}
	eval.Flush()
	log.Printf("restored %d telegrams from session %s", restored, prev.ID)
	return nil
}
