package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"kiosk/internal/config"
	"kiosk/internal/device"
	"kiosk/internal/logger"
	"kiosk/internal/middleware"
	"kiosk/internal/repository"
	"kiosk/internal/repository/sqlite"
	"kiosk/internal/route"
	"kiosk/internal/scanner"
	"kiosk/internal/service"
	"kiosk/internal/service/broadcast"
	"kiosk/internal/service/watcher"
)

// ShutdownTimeout bounds how long the HTTP server waits for in-flight requests.
const ShutdownTimeout = 5 * time.Second

type App struct {
	config  *config.Config
	changed map[string]bool
	logger  *logger.Logger

	db      *sqlite.DB
	manager *service.Manager
	scanner *scanner.Scanner
	server  *http.Server
}

// NewApp opens the camera, the optional history database and builds the HTTP server.
// changed lists the flags set on the command line; the config watcher leaves them alone.
func NewApp(cfg *config.Config, changed map[string]bool) (*App, error) {
	log, err := logger.NewLogger(cfg.LogDirectory, cfg.Debug)
	if err != nil {
		return nil, err
	}

	a := &App{config: cfg, changed: changed, logger: log}

	var scans repository.ScanRepository
	if cfg.HistoryEnabled {
		db, repo, err := OpenHistory(cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.db = db
		scans = repo
	}

	auth, err := middleware.NewAuth(cfg.Password)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	if !auth.Enabled() {
		log.Warning("No admin password set - admin routes disabled")
	}

	a.manager = service.NewManager(broadcast.New(cfg.BroadcastCapacity), scans, cfg.HistoryWorkers, cfg.DevicePath, log)

	a.scanner, err = NewScanner(cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.manager.AttachScanner(a.scanner)

	a.server = &http.Server{
		Addr:    cfg.Addr(),
		Handler: route.SetupRoutes(a.manager, auth, cfg, log),
	}
	return a, nil
}

// OpenHistory opens the scan history database at cfg.DatabasePath.
func OpenHistory(cfg *config.Config) (*sqlite.DB, *sqlite.ScanRepository, error) {
	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open history: %w", err)
	}
	return db, sqlite.NewScanRepository(db), nil
}

// NewScanner opens the capture device and configures it for YUYV at the configured size.
func NewScanner(cfg *config.Config, log *logger.Logger) (*scanner.Scanner, error) {
	camera, err := device.Open(cfg.DevicePath, log)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", scanner.ErrCapture, err)
	}

	recognizer := scanner.NewRecognizer(scanner.NewZXingDecoder(), scanner.DefaultSymbologies...)
	s, err := scanner.New(camera, recognizer, scanner.Options{
		Width:       cfg.FrameWidth,
		Height:      cfg.FrameHeight,
		Encoding:    scanner.EncodingYUYV,
		BufferDepth: cfg.BufferDepth,
	}, log)
	if err != nil {
		camera.Close()
		return nil, err
	}

	log.Info("Capturing %s from %s", s.Format(), cfg.DevicePath)
	return s, nil
}

// Run serves until ctx is cancelled, the HTTP server fails or the camera fails,
// then shuts everything down in order.
func (a *App) Run(ctx context.Context) error {
	scanCtx, cancelScan := context.WithCancel(ctx)
	defer cancelScan()

	errc := make(chan error, 2)

	scanDone := make(chan struct{})
	go func() {
		defer close(scanDone)
		if err := a.runScanner(scanCtx); err != nil {
			errc <- err
		}
	}()

	if a.config.WatchConfig {
		w := watcher.New(a.config, a.changed, a.scanner, a.logger)
		go func() {
			if err := w.Run(scanCtx); err != nil {
				a.logger.Warning("Config watcher stopped: %v", err)
			}
		}()
	}

	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("http server: %w", err)
		}
	}()

	a.logger.Info("Kiosk listening on http://%s", a.config.Addr())
	a.logger.Info("Serving front-end from %s", a.config.StaticDirectory)

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down")
	case runErr = <-errc:
		a.logger.Error("Shutting down: %v", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warning("HTTP shutdown: %v", err)
	}

	cancelScan()
	<-scanDone
	a.manager.Stop()

	return runErr
}

// runScanner drives the scan loop on its own OS thread, since camera reads block.
// Reaching the MaxScans limit is not an error; the server keeps running.
func (a *App) runScanner(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var err error
	if a.config.MaxScans > 0 {
		err = a.scanner.RunN(ctx, a.config.MaxScans, a.manager.HandleScan)
	} else {
		err = a.scanner.Run(ctx, a.manager.HandleScan)
	}

	switch {
	case err == nil:
		a.logger.Info("Scan limit of %d reached, scanner stopped", a.config.MaxScans)
		return nil
	case errors.Is(err, context.Canceled):
		return nil
	default:
		a.logger.Error("Scanner stopped: %v", err)
		return err
	}
}

// Close releases the camera, the database and the log files.
func (a *App) Close() error {
	if a.manager != nil {
		a.manager.Stop()
	}
	if a.scanner != nil {
		if err := a.scanner.Close(); err != nil {
			a.logger.Warning("Closing camera: %v", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warning("Closing database: %v", err)
		}
	}
	return a.logger.Close()
}
