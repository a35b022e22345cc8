package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/luminance.report/internal/api"
	"github.com/banshee-data/luminance.report/internal/caldb"
	"github.com/banshee-data/luminance.report/internal/calplot"
	"github.com/banshee-data/luminance.report/internal/config"
	"github.com/banshee-data/luminance.report/internal/gamma"
	"github.com/banshee-data/luminance.report/internal/photometer"
	"github.com/banshee-data/luminance.report/internal/session"
	"github.com/banshee-data/luminance.report/internal/version"
)

var (
	devMode    = flag.Bool("dev", false, "Run against a simulated photometer and display")
	listen     = flag.String("listen", ":8080", "Listen address")
	dbFile     = flag.String("db", "calibration.db", "Calibration database file")
	configFile = flag.String("config", "", "Optional calibration config file (JSON)")
	calibrate  = flag.Bool("calibrate", false, "Run a measurement session at startup")
	plots      = flag.Bool("plot", false, "Write fit and table plots after a calibration run")
)

// consoleDisplay instructs the operator over the log to present each test
// patch. Used when no programmable display driver is attached.
type consoleDisplay struct{}

func (consoleDisplay) SetLevel(level int) error {
	log.Printf("set display to a full-field patch at gun value %d", level)
	return nil
}

func runCalibration(ctx context.Context, m photometer.Muxer, display session.DisplayDriver, db *caldb.DB, cfg *config.CalibrationConfig) (string, error) {
	res, err := session.Run(ctx, m, display, cfg.SessionOptions())
	if err != nil {
		return "", fmt.Errorf("measurement session: %w", err)
	}

	runID := uuid.NewString()
	if err := db.InsertRun(caldb.Run{
		ID:        runID,
		Device:    cfg.GetSerialPort(),
		Method:    int(cfg.GetMethod()),
		Steps:     cfg.GetSteps(),
		Channels:  cfg.GetChannels(),
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}
	if err := db.SaveSamples(runID, res.GunValues, res.Luminance); err != nil {
		return "", fmt.Errorf("save samples: %w", err)
	}
	log.Printf("run %s: collected %d levels x %d channels", runID, len(res.GunValues), cfg.GetChannels())

	fit, err := gamma.Calibrate(res.GunValues, res.Luminance, cfg.GetMethod())
	if err != nil {
		return "", fmt.Errorf("gamma fit: %w", err)
	}
	if err := db.SaveResult(runID, fit); err != nil {
		return "", fmt.Errorf("save result: %w", err)
	}
	for c, g := range fit.Gamma {
		log.Printf("run %s: channel %d gamma=%.4f", runID, c, g)
	}

	if *plots {
		files, err := calplot.Generate(cfg.GetPlotDir(), runID, res.GunValues, res.Luminance, fit)
		if err != nil {
			return "", fmt.Errorf("generate plots: %w", err)
		}
		log.Printf("run %s: wrote %v", runID, files)
	}
	return runID, nil
}

func main() {
	flag.Parse()

	log.Printf("luminance.report %s", version.String())

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	cfg := config.Empty()
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	var m photometer.Muxer
	var display session.DisplayDriver = consoleDisplay{}
	if *devMode {
		mux, port := photometer.NewMockMux()
		m = mux
		display = port
	} else {
		var err error
		m, err = photometer.NewRealMux(cfg.GetSerialPort(), cfg.PortOptions())
		if err != nil {
			log.Fatalf("failed to open photometer port: %v", err)
		}
	}
	defer m.Close()

	db, err := caldb.Open(*dbFile)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	if err := db.MigrateUp(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := m.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("failed to monitor serial port: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	if err := m.Initialize(); err != nil {
		log.Printf("failed to initialize photometer: %v", err)
	}

	if *calibrate {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := runCalibration(ctx, m, display, db, cfg); err != nil {
				log.Printf("calibration failed: %v", err)
			}
		}()
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		srv := api.NewServer(m, db, cfg.GetSerialPort(), cfg.GetUnits())
		srv.SetCalibrateFunc(func(ctx context.Context) (string, error) {
			return runCalibration(ctx, m, display, db, cfg)
		})
		handler := api.LoggingMiddleware(srv.ServeMux())

		server := &http.Server{
			Addr:    *listen,
			Handler: handler,
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
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
