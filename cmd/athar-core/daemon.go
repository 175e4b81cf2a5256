package main

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/tiroq/athar/internal/diaglog"
	"github.com/tiroq/athar/internal/gateway"
	"github.com/tiroq/athar/internal/i18n"
	"github.com/tiroq/athar/internal/imaging"
	"github.com/tiroq/athar/internal/ipc"
	"github.com/tiroq/athar/internal/scanner"
)

// maxImageBytes bounds the size of a photograph read for a scan command.
const maxImageBytes = 32 << 20

// broadcaster pushes status to connected UI clients.
type broadcaster interface {
	Broadcast(status interface{})
}

// healthChecker reports gateway health.
type healthChecker interface {
	HealthCheck(ctx context.Context) (*gateway.HealthStatus, error)
}

// daemon routes commands from the file channel and UI clients to the scanner
// and publishes every state change.
type daemon struct {
	scanner   *scanner.Scanner
	dir       string
	backend   string
	gatewayOK atomic.Bool
	hub       broadcaster

	quit     chan struct{}
	quitOnce sync.Once

	logger *diaglog.Logger
}

func newDaemon(sc *scanner.Scanner, dir, backend string) *daemon {
	return &daemon{scanner: sc, dir: dir, backend: backend, quit: make(chan struct{})}
}

func (d *daemon) setLogger(l *diaglog.Logger) { d.logger = l }

// publish writes status.json and forwards the snapshot to UI clients.
func (d *daemon) publish(snap scanner.Snapshot) {
	status := &ipc.StatusSnapshot{
		Snapshot:       snap,
		GatewayOK:      d.gatewayOK.Load(),
		GatewayBackend: d.backend,
		PID:            os.Getpid(),
		Timestamp:      time.Now(),
	}
	if err := ipc.WriteStatus(d.dir, status); err != nil {
		errLog.Printf("Failed to write status: %v", err)
	}
	if d.hub != nil {
		d.hub.Broadcast(status)
	}
}

// checkGateway records gateway health and republishes when it changes.
func (d *daemon) checkGateway(ctx context.Context, hc healthChecker) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	status, err := hc.HealthCheck(ctx)
	ok := err == nil && status.OK
	switch {
	case err != nil:
		errLog.Printf("Gateway health check failed: %v", err)
	case !status.OK:
		errLog.Printf("Gateway %s unhealthy: %s", status.Backend, status.Message)
	default:
		outLog.Printf("Gateway %s healthy (%v)", status.Backend, status.Latency.Round(time.Millisecond))
	}
	if d.gatewayOK.Swap(ok) != ok {
		d.publish(d.scanner.Snapshot())
	}
}

// execute runs one command. It is the executor for UI clients and the file
// channel alike.
func (d *daemon) execute(ctx context.Context, cmd ipc.Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	outLog.Printf("[EVENT] Received command: %s", cmd)
	d.logger.Log(diaglog.LogEntry{Component: diaglog.ComponentCore, Event: diaglog.EventCommand, Reason: string(cmd.Verb)})

	switch cmd.Verb {
	case ipc.CmdScan:
		uri, err := scanImage(cmd.Arg)
		if err != nil {
			return err
		}
		res, err := d.scanner.Submit(ctx, uri)
		if err != nil {
			return err
		}
		outLog.Printf("[EVENT] Analysis complete: %s", res.DetectedLanguage)
		return nil

	case ipc.CmdSpeak:
		return d.scanner.Speak(ctx)

	case ipc.CmdStop:
		d.scanner.StopSpeech()
		return nil

	case ipc.CmdLang:
		lang, err := i18n.Parse(cmd.Arg)
		if err != nil {
			return err
		}
		return d.scanner.SetLanguage(lang)

	case ipc.CmdReplay:
		return d.scanner.Replay(cmd.Arg)

	case ipc.CmdQuit:
		d.quitOnce.Do(func() { close(d.quit) })
		return nil
	}
	return fmt.Errorf("%w: %s", ipc.ErrInvalidCommand, cmd.Verb)
}

// dispatch runs a command from the file channel and logs its outcome.
func (d *daemon) dispatch(ctx context.Context, cmd ipc.Command) {
	if err := d.execute(ctx, cmd); err != nil {
		errLog.Printf("Command %q failed: %v", cmd, err)
	}
}

// readImage loads the photograph at path as a data URI.
// scanImage resolves a scan argument: UI clients send the photograph as a
// data URI, the file channel sends a path on this host.
func scanImage(arg string) (string, error) {
	if !strings.HasPrefix(arg, "data:") {
		return readImage(arg)
	}
	mediaType, raw, err := imaging.DecodeDataURI(arg)
	if err != nil {
		return "", fmt.Errorf("bad image data: %w", err)
	}
	if !strings.HasPrefix(mediaType, "image/") {
		return "", fmt.Errorf("data is not an image (%s)", mediaType)
	}
	if len(raw) > maxImageBytes {
		return "", fmt.Errorf("image is too large (%d bytes)", len(raw))
	}
	return arg, nil
}

func readImage(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > maxImageBytes {
		return "", fmt.Errorf("%s is too large (%d bytes)", path, info.Size())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	mediaType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if !strings.HasPrefix(mediaType, "image/") {
		mediaType = http.DetectContentType(data)
	}
	mediaType, _, _ = strings.Cut(mediaType, ";")
	if !strings.HasPrefix(mediaType, "image/") {
		return "", fmt.Errorf("%s is not an image (%s)", path, mediaType)
	}
	return imaging.EncodeDataURI(mediaType, data), nil
}

// watchCommands monitors cmd.txt for control commands until ctx is done.
func (d *daemon) watchCommands(ctx context.Context) {
	cmdPath := ipc.CommandPath(d.dir)
	if err := os.MkdirAll(d.dir, 0755); err != nil {
		errLog.Printf("Failed to create command directory: %v", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		errLog.Printf("fsnotify not available, falling back to polling: %v", err)
		d.watchCommandsWithPolling(ctx, cmdPath)
		return
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			errLog.Printf("Failed to close watcher: %v", err)
		}
	}()

	if err := watcher.Add(d.dir); err != nil {
		errLog.Printf("Failed to watch command directory, falling back to polling: %v", err)
		d.watchCommandsWithPolling(ctx, cmdPath)
		return
	}

	outLog.Println("Command watcher started (using fsnotify)")

	// Fallback polling in case an event is missed
	pollTicker := time.NewTicker(1 * time.Second)
	defer pollTicker.Stop()

	lastCheckTime := time.Now()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				outLog.Println("fsnotify watcher closed, switching to polling")
				d.watchCommandsWithPolling(ctx, cmdPath)
				return
			}
			if event.Name == cmdPath && (event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				// Small delay to ensure write is complete
				time.Sleep(50 * time.Millisecond)
				d.consumeCommand(ctx)
				lastCheckTime = time.Now()
			}

		case <-pollTicker.C:
			if info, err := os.Stat(cmdPath); err == nil && info.ModTime().After(lastCheckTime) {
				time.Sleep(50 * time.Millisecond)
				d.consumeCommand(ctx)
				lastCheckTime = time.Now()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				outLog.Println("fsnotify error channel closed, switching to polling")
				d.watchCommandsWithPolling(ctx, cmdPath)
				return
			}
			errLog.Printf("File watcher error: %v", err)
		}
	}
}

// watchCommandsWithPolling is a pure polling-based fallback for command monitoring
func (d *daemon) watchCommandsWithPolling(ctx context.Context, cmdPath string) {
	outLog.Println("Command watcher started (using polling fallback, 1s interval)")

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	lastCheckTime := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		info, err := os.Stat(cmdPath)
		if err != nil {
			continue // File doesn't exist yet, keep polling
		}
		if info.ModTime().After(lastCheckTime) {
			time.Sleep(50 * time.Millisecond)
			d.consumeCommand(ctx)
			lastCheckTime = time.Now()
		}
	}
}

// consumeCommand reads and clears cmd.txt. A scan runs in the background so
// the watcher keeps accepting stop and lang while the gateway works.
func (d *daemon) consumeCommand(ctx context.Context) {
	cmd, ok, err := ipc.ReadCommand(d.dir)
	if err != nil {
		errLog.Printf("Failed to read command: %v", err)
		return
	}
	if !ok {
		return
	}
	if cmd.Verb == ipc.CmdScan || cmd.Verb == ipc.CmdSpeak {
		go d.dispatch(ctx, cmd)
		return
	}
	d.dispatch(ctx, cmd)
}
