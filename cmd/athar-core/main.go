package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/tiroq/athar/internal/audio"
	"github.com/tiroq/athar/internal/audio/portaudio"
	"github.com/tiroq/athar/internal/config"
	"github.com/tiroq/athar/internal/diaglog"
	"github.com/tiroq/athar/internal/gateway/remote"
	"github.com/tiroq/athar/internal/history"
	"github.com/tiroq/athar/internal/ipc"
	"github.com/tiroq/athar/internal/notify"
	"github.com/tiroq/athar/internal/pidfile"
	"github.com/tiroq/athar/internal/player"
	"github.com/tiroq/athar/internal/scanner"
	"github.com/tiroq/athar/internal/storage"
	"github.com/tiroq/athar/internal/uiws"
)

const (
	logPrefix           = "[athar-core]"
	healthCheckInterval = time.Minute
)

var (
	// Version is set at build time via -ldflags "-X main.Version=..."
	Version = "dev"

	outLog *log.Logger
	errLog *log.Logger
)

func main() {
	// --export-diag: read log, write bundle, exit.
	if len(os.Args) > 1 && os.Args[1] == "--export-diag" {
		diaglog.Version = Version
		path, n, err := diaglog.Export(diaglog.PathFromEnv(), ".")
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			if errors.Is(err, os.ErrNotExist) {
				fmt.Fprintln(os.Stderr, "hint: run with ATHAR_DEBUG=true to enable logging")
				os.Exit(1)
			}
			os.Exit(2)
		}
		fmt.Printf("Wrote: %s (%d lines)\n", path, n)
		os.Exit(0)
	}

	// Recover from any panics and log them
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "PANIC in athar-core: %v\n", r)
			if outLog != nil {
				outLog.Printf("PANIC: %v", r)
			}
			if errLog != nil {
				errLog.Printf("PANIC: %v", r)
			}
			os.Exit(1)
		}
	}()

	if err := initLogging(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	// Library packages log through the standard logger.
	log.SetOutput(errLog.Writer())
	log.SetPrefix(logPrefix + " ")

	outLog.Println("===========================================")
	outLog.Println("Starting Athar Core v" + Version + "...")
	outLog.Printf("PID: %d", os.Getpid())
	outLog.Printf("Timestamp: %s", time.Now().Format(time.RFC3339))
	outLog.Println("===========================================")

	cacheDir := ipc.DefaultDir()
	pidFilePath := pidfile.Path(cacheDir, "athar-core")
	outLog.Printf("Checking PID file: %s", pidFilePath)
	pf, err := pidfile.Acquire(pidFilePath)
	if err != nil {
		var running *pidfile.RunningError
		if errors.As(err, &running) {
			errLog.Printf("Another instance is already running (PID %d)", running.PID)
			fmt.Fprintf(os.Stderr, "athar-core is already running (PID %d)\n", running.PID)
		} else {
			errLog.Printf("Failed to create PID file: %v", err)
		}
		os.Exit(1)
	}
	defer func() {
		if err := pf.Release(); err != nil {
			errLog.Printf("Failed to remove PID file: %v", err)
		}
	}()

	cfg, err := config.Load(config.Path())
	if err != nil {
		errLog.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}
	outLog.Printf("[STARTUP] Config loaded: gateway=%s storage=%s lang=%s", cfg.Gateway.BaseURL, cfg.Storage.Backend, cfg.UILanguage)

	diagPath := diaglog.PathFromEnv()
	diagLogger, err := diaglog.New(diagPath)
	if err != nil {
		errLog.Printf("Failed to open debug log %s: %v", diagPath, err)
		diagLogger = diaglog.NewNoOp()
	}
	defer func() { _ = diagLogger.Close() }()
	if diagLogger.Enabled() {
		outLog.Printf("[STARTUP] Debug logging to %s", diagPath)
	}

	backend, err := storage.Open(cfg.Storage.Backend, cfg.StorageDir())
	if err != nil {
		errLog.Printf("Failed to open %s storage in %s: %v", cfg.Storage.Backend, cfg.StorageDir(), err)
		os.Exit(1)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			errLog.Printf("Failed to close storage: %v", err)
		}
	}()

	archive := history.New(storage.WithQuota(backend, cfg.Storage.QuotaBytes))
	archive.SetLogger(diagLogger)
	archive.Load()
	outLog.Printf("[STARTUP] History loaded: %d entries", archive.Len())

	client := remote.NewClient(remote.Config{
		BaseURL:        cfg.Gateway.BaseURL,
		Token:          cfg.Gateway.Token,
		TimeoutSeconds: cfg.Gateway.TimeoutSeconds,
	})
	client.SetLogger(diagLogger)

	speaker := player.New(client, func() (audio.Output, error) {
		return portaudio.NewOutput()
	})
	speaker.SetLogger(diagLogger)

	sc := scanner.New(scanner.Options{
		Analyzer:     client,
		Speaker:      speaker,
		History:      archive,
		Notifier:     notify.New(cfg.Notifications),
		Language:     cfg.UILanguage,
		FactInterval: cfg.FactInterval(),
	})
	sc.SetLogger(diagLogger)

	d := newDaemon(sc, cacheDir, client.Name())
	d.setLogger(diagLogger)

	hub := uiws.NewHub(d.execute)
	hub.SetLogger(diagLogger)
	d.hub = hub
	sc.Subscribe(d.publish)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d.checkGateway(ctx, client)
	d.publish(sc.Snapshot())

	var srv *http.Server
	if cfg.Listen != "" {
		srv = &http.Server{Addr: cfg.Listen, Handler: hub.Handler(), ReadHeaderTimeout: 10 * time.Second}
		go func() {
			outLog.Printf("[STARTUP] UI websocket listening on ws://%s/ws", cfg.Listen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errLog.Printf("UI server failed: %v", err)
			}
		}()
	}

	go d.watchCommands(ctx)
	go func() {
		ticker := time.NewTicker(healthCheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.checkGateway(ctx, client)
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	outLog.Println("[RUNNING] Athar core ready")
	select {
	case sig := <-sigChan:
		outLog.Printf("[SHUTDOWN] Received signal %v", sig)
	case <-d.quit:
		outLog.Println("[SHUTDOWN] Quit command received")
	}

	cancel()
	speaker.Stop()
	hub.Close()
	if srv != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errLog.Printf("UI server shutdown: %v", err)
		}
		done()
	}
	outLog.Println("[SHUTDOWN] Athar core stopped")
}

// initLogging sets up log files with rotation support
func initLogging() error {
	logDir := "/tmp"

	outLogPath := filepath.Join(logDir, "athar-core.out.log")
	errLogPath := filepath.Join(logDir, "athar-core.err.log")

	if err := rotateLogIfNeeded(outLogPath, 10*1024*1024); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to rotate out log: %v\n", err)
	}
	if err := rotateLogIfNeeded(errLogPath, 10*1024*1024); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to rotate err log: %v\n", err)
	}

	outFile, err := os.OpenFile(outLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	errFile, err := os.OpenFile(errLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	outLog = log.New(outFile, logPrefix+" ", log.LstdFlags)
	errLog = log.New(errFile, logPrefix+" ERROR: ", log.LstdFlags)
	return nil
}

// rotateLogIfNeeded rotates a log file if it exceeds maxSize bytes
func rotateLogIfNeeded(logPath string, maxSize int64) error {
	info, err := os.Stat(logPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Size() < maxSize {
		return nil
	}

	oldPath := logPath + ".old"
	if err := os.Remove(oldPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove old log: %w", err)
	}
	return os.Rename(logPath, oldPath)
}
