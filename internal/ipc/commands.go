package ipc

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Verb names a command from a client to the daemon.
type Verb string

const (
	CmdScan   Verb = "scan"   // analyse the image file given as argument
	CmdSpeak  Verb = "speak"  // read the displayed translation aloud
	CmdStop   Verb = "stop"   // stop speech
	CmdLang   Verb = "lang"   // switch UI language: ar, en or fr
	CmdReplay Verb = "replay" // display the archived entry with the given id
	CmdQuit   Verb = "quit"   // shut the daemon down
)

// ErrInvalidCommand is returned for unknown verbs or missing arguments.
var ErrInvalidCommand = errors.New("ipc: invalid command")

// Command is one verb with its optional argument.
type Command struct {
	Verb Verb   `json:"command"`
	Arg  string `json:"arg,omitempty"`
}

func (c Command) String() string {
	if c.Arg == "" {
		return string(c.Verb)
	}
	return string(c.Verb) + " " + c.Arg
}

// Validate checks the verb and that the argument is present exactly when
// the verb takes one.
func (c Command) Validate() error {
	switch c.Verb {
	case CmdScan, CmdLang, CmdReplay:
		if c.Arg == "" {
			return fmt.Errorf("%w: %s needs an argument", ErrInvalidCommand, c.Verb)
		}
	case CmdSpeak, CmdStop, CmdQuit:
		if c.Arg != "" {
			return fmt.Errorf("%w: %s takes no argument", ErrInvalidCommand, c.Verb)
		}
	default:
		return fmt.Errorf("%w: unknown verb %q", ErrInvalidCommand, c.Verb)
	}
	return nil
}

// ParseCommand parses "verb [arg]". The argument is the rest of the line so
// that file paths may contain spaces.
func ParseCommand(line string) (Command, error) {
	verb, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	cmd := Command{Verb: Verb(strings.ToLower(verb)), Arg: strings.TrimSpace(arg)}
	if err := cmd.Validate(); err != nil {
		return Command{}, err
	}
	return cmd, nil
}

// CommandPath returns the command file inside dir.
func CommandPath(dir string) string {
	return filepath.Join(dir, commandFile)
}

// WriteCommand writes cmd to dir/cmd.txt.
func WriteCommand(dir string, cmd Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(CommandPath(dir), []byte(cmd.String()), 0644)
}

// ReadCommand reads and clears dir/cmd.txt. ok is false when no command is
// pending. A malformed command is cleared and returned as an error.
func ReadCommand(dir string) (cmd Command, ok bool, err error) {
	path := CommandPath(dir)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Command{}, false, nil
		}
		return Command{}, false, err
	}

	// Clear the file immediately to prevent re-execution
	if err := os.WriteFile(path, []byte(""), 0644); err != nil {
		return Command{}, false, err
	}

	line := strings.TrimSpace(string(data))
	if line == "" {
		return Command{}, false, nil
	}
	cmd, err = ParseCommand(line)
	if err != nil {
		return Command{}, false, err
	}
	return cmd, true, nil
}
