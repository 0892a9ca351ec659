// mqtt-tape - MQTT traffic recorder and replayer
//
// This is the main entry point for the mqtt-tape command. It records live
// MQTT traffic into a SQLite tape and replays recorded runs back to the
// broker with their original timing:
//
//	mqtttape record [--duration 10m]
//	mqtttape play [--run 3] [--speed 2]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/mqtt-tape/migrations"

	"github.com/nerrad567/mqtt-tape/internal/infrastructure/config"
	"github.com/nerrad567/mqtt-tape/internal/infrastructure/database"
	"github.com/nerrad567/mqtt-tape/internal/infrastructure/influxdb"
	"github.com/nerrad567/mqtt-tape/internal/infrastructure/logging"
	"github.com/nerrad567/mqtt-tape/internal/playback"
	"github.com/nerrad567/mqtt-tape/internal/recorder"
	"github.com/nerrad567/mqtt-tape/internal/tape"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// shutdownTimeout bounds the final store writes after the context is
// cancelled (the cancelled context cannot be reused for them).
const shutdownTimeout = 5 * time.Second

const usage = `usage: mqtttape <command> [flags]

Commands:
  record    capture broker traffic into a new run
  play      replay a recorded run to the broker

Run 'mqtttape <command> -h' for command flags.`

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run dispatches to the subcommands, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - args: Command-line arguments without the program name
//
// Returns:
//   - error: nil on clean completion, or error describing failure
func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	switch args[0] {
	case "record":
		return recordCommand(ctx, args[1:])
	case "play":
		return playCommand(ctx, args[1:])
	default:
		return fmt.Errorf("unknown command %q\n\n%s", args[0], usage)
	}
}

// recordCommand captures broker traffic until interrupted or until the
// optional duration elapses.
func recordCommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("record", flag.ContinueOnError)
	configPath := fs.String("config", getConfigPath(), "path to configuration file")
	duration := fs.Duration("duration", 0, "stop automatically after this long (0 = until interrupted)")
	verbose := fs.Bool("verbose", false, "log at debug level")
	if err := fs.Parse(args); err != nil {
		return err
	}

	app, err := openApp(ctx, *configPath, *verbose)
	if err != nil {
		return err
	}
	defer app.Close()

	rec := recorder.New(app.cfg.MQTT, app.cfg.Recording.Topics, byte(app.cfg.MQTT.QoS), app.store)
	rec.SetLogger(app.log)
	if app.influx != nil {
		rec.SetMetrics(app.influx)
	}
	rec.SetOnStoreError(func(err error) {
		app.log.Error("message lost: store write failed", "error", err)
	})
	rec.SetOnDisconnect(func(err error) {
		app.log.Warn("broker connection lost, capture gap until reconnect", "error", err)
	})

	if err := rec.Start(ctx); err != nil {
		return fmt.Errorf("starting recording: %w", err)
	}
	app.log.Info("recording, press Ctrl+C to stop",
		"run_id", rec.RunID(),
		"topics", app.cfg.Recording.Topics,
	)

	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}
	<-ctx.Done()

	// The signal context is already cancelled; the final run-closing write
	// needs its own deadline.
	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := rec.Stop(stopCtx); err != nil {
		return fmt.Errorf("stopping recording: %w", err)
	}
	return nil
}

// playCommand replays a recorded run to the broker.
func playCommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("play", flag.ContinueOnError)
	configPath := fs.String("config", getConfigPath(), "path to configuration file")
	runID := fs.Int64("run", 0, "run id to replay (0 = most recent run)")
	speed := fs.Float64("speed", 0, "time-dilation factor (0 = value from config)")
	verbose := fs.Bool("verbose", false, "log at debug level")
	if err := fs.Parse(args); err != nil {
		return err
	}

	app, err := openApp(ctx, *configPath, *verbose)
	if err != nil {
		return err
	}
	defer app.Close()

	player := playback.New(app.cfg.MQTT, byte(app.cfg.MQTT.QoS), app.store)
	player.SetLogger(app.log)
	if app.influx != nil {
		player.SetMetrics(app.influx)
	}

	factor := *speed
	if factor == 0 {
		factor = app.cfg.Playback.Speed
	}

	if *runID > 0 {
		return player.PlayRun(ctx, *runID, factor)
	}
	return player.Play(ctx, factor)
}

// app bundles the infrastructure both subcommands need.
type app struct {
	cfg    *config.Config
	log    *logging.Logger
	db     *database.DB
	store  *tape.Store
	influx *influxdb.Client
}

// openApp loads configuration and brings up logging, the database
// (with migrations), the tape store, and the optional metrics client.
//
// Parameters:
//   - ctx: Context for database open and migrations
//   - configPath: Path to the YAML configuration file
//   - verbose: Forces debug-level logging regardless of config
//
// Returns:
//   - *app: Ready infrastructure; callers must Close it
//   - error: If any piece fails to initialise
func openApp(ctx context.Context, configPath string, verbose bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	log := logging.New(cfg.Logging, version)
	log.Debug("configuration loaded",
		"path", configPath,
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Debug("database ready", "path", cfg.Database.Path)

	a := &app{
		cfg:   cfg,
		log:   log,
		db:    db,
		store: tape.NewStore(db.DB),
	}

	if cfg.InfluxDB.Enabled {
		influx, err := influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		influx.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		a.influx = influx
		log.Debug("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	return a, nil
}

// Close releases infrastructure in reverse initialisation order.
func (a *app) Close() {
	if a.influx != nil {
		if err := a.influx.Close(); err != nil {
			a.log.Error("error closing InfluxDB", "error", err)
		}
	}
	if err := a.db.Close(); err != nil {
		a.log.Error("error closing database", "error", err)
	}
}

// getConfigPath returns the configuration file path.
// Uses MQTTTAPE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("MQTTTAPE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
