package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/tiroq/athar/internal/ipc"
	"github.com/tiroq/athar/internal/pidfile"
)

// Version is set at build time via -ldflags "-X main.Version=..."
var Version = "dev"

const usage = `usage: athar-ctl <command> [arg]

commands:
  scan <image>    analyse a photograph of an inscription
  speak           read the displayed translation aloud
  stop            stop speech
  lang <ar|en|fr> switch the display language
  replay <id>     show an archived analysis
  history         list archived analyses
  status          print the daemon state
  watch           print the daemon state on every change
  quit            shut the daemon down
  version         print the version
`

func main() {
	os.Exit(run(os.Args[1:], ipc.DefaultDir(), os.Stdout, os.Stderr))
}

// run executes one invocation and returns the exit code.
func run(args []string, dir string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	switch args[0] {
	case "-h", "--help", "help":
		fmt.Fprint(stdout, usage)
		return 0
	case "version", "--version":
		fmt.Fprintln(stdout, "athar-ctl "+Version)
		return 0
	case "status":
		return showStatus(dir, stdout, stderr)
	case "history":
		return showHistory(dir, stdout, stderr)
	case "watch":
		return watchStatus(dir, stdout, stderr)
	}

	cmd, err := ipc.ParseCommand(strings.Join(args, " "))
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		fmt.Fprint(stderr, usage)
		return 2
	}
	if cmd.Verb == ipc.CmdScan {
		abs, err := filepath.Abs(cmd.Arg)
		if err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}
		if _, err := os.Stat(abs); err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}
		cmd.Arg = abs
	}

	if _, running := pidfile.Running(pidfile.Path(dir, "athar-core")); !running {
		fmt.Fprintln(stderr, "warning: athar-core does not appear to be running; the command will wait for it")
	}
	if err := ipc.WriteCommand(dir, cmd); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	fmt.Fprintf(stdout, "sent: %s\n", cmd)
	return 0
}

func readStatus(dir string, stderr io.Writer) (*ipc.StatusSnapshot, bool) {
	status, err := ipc.ReadStatus(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintln(stderr, "no status yet: is athar-core running?")
		} else {
			fmt.Fprintln(stderr, "error:", err)
		}
		return nil, false
	}
	return status, true
}

func showStatus(dir string, stdout, stderr io.Writer) int {
	status, ok := readStatus(dir, stderr)
	if !ok {
		return 1
	}
	pid, running := pidfile.Running(pidfile.Path(dir, "athar-core"))
	printStatus(stdout, status, pid, running)
	return 0
}

// printStatus writes a human-readable summary of status.
func printStatus(w io.Writer, status *ipc.StatusSnapshot, pid int, running bool) {
	if running {
		fmt.Fprintf(w, "daemon:    running (PID %d)\n", pid)
	} else {
		fmt.Fprintln(w, "daemon:    not running")
	}
	gw := "unreachable"
	if status.GatewayOK {
		gw = "ok"
	}
	fmt.Fprintf(w, "gateway:   %s (%s)\n", gw, status.GatewayBackend)
	fmt.Fprintf(w, "language:  %s (%s)\n", status.Language, status.Direction)
	fmt.Fprintf(w, "state:     %s\n", status.Label)
	if status.Waiting && status.Fact != "" {
		fmt.Fprintf(w, "fact:      %s\n", status.Fact)
	}
	if status.Result != nil {
		fmt.Fprintf(w, "script:    %s (%.0f%%)\n", status.Result.DetectedLanguage, status.Result.Confidence*100)
		fmt.Fprintf(w, "text:      %s\n", status.Result.Translations.Get(status.Language))
		if status.ResultID != "" {
			fmt.Fprintf(w, "entry:     %s\n", status.ResultID)
		}
	}
	fmt.Fprintf(w, "speech:    %s\n", status.Playback)
	if status.LastError != "" {
		fmt.Fprintf(w, "error:     %s\n", status.LastError)
	}
	if status.LastWarning != "" {
		fmt.Fprintf(w, "warning:   %s\n", status.LastWarning)
	}
	fmt.Fprintf(w, "history:   %d entries\n", len(status.History))
	fmt.Fprintf(w, "updated:   %s\n", status.Timestamp.Format(time.RFC3339))
}

func showHistory(dir string, stdout, stderr io.Writer) int {
	status, ok := readStatus(dir, stderr)
	if !ok {
		return 1
	}
	if len(status.History) == 0 {
		fmt.Fprintln(stdout, "no archived analyses")
		return 0
	}
	for _, e := range status.History {
		ts := time.UnixMilli(e.Timestamp).Format("2006-01-02 15:04")
		fmt.Fprintf(stdout, "%s  %s  %-12s %s\n", e.ID, ts, e.DetectedLanguage, e.Translation)
	}
	return 0
}

// watchStatus prints the status every time status.json changes, until
// interrupted.
func watchStatus(dir string, stdout, stderr io.Writer) int {
	if err := os.MkdirAll(dir, 0755); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			log.Printf("Failed to close watcher: %v", err)
		}
	}()

	// Watch the directory (not the file, as it is replaced on every write)
	if err := watcher.Add(dir); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	statusPath := ipc.StatusPath(dir)
	pidPath := pidfile.Path(dir, "athar-core")
	show := func() {
		status, err := ipc.ReadStatus(dir)
		if err != nil {
			return
		}
		pid, running := pidfile.Running(pidPath)
		fmt.Fprintln(stdout, "---")
		printStatus(stdout, status, pid, running)
	}
	show()

	for {
		select {
		case <-sigChan:
			return 0

		case event, ok := <-watcher.Events:
			if !ok {
				return 0
			}
			if event.Name == statusPath && (event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				// Small delay to ensure write is complete
				time.Sleep(50 * time.Millisecond)
				show()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return 0
			}
			fmt.Fprintln(stderr, "watcher error:", err)
		}
	}
}
