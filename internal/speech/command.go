package speech

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// CommandEngine synthesizes speech with a local program such as espeak or say.
// Args may contain the placeholders {file} and {text}.
type CommandEngine struct {
	command   string
	args      []string
	extension string
	run       runFunc
}

// NewCommandEngine creates an engine running command. An empty command selects
// the platform default synthesizer.
func NewCommandEngine(command string, args []string, extension string) *CommandEngine {
	if command == "" {
		command, args, extension = defaultSynthCommand()
	}
	if extension == "" {
		extension = ".wav"
	}
	return &CommandEngine{command: command, args: args, extension: extension, run: runCommand}
}

func (ce *CommandEngine) Name() string {
	return ce.command
}

func (ce *CommandEngine) Extension() string {
	return ce.extension
}

func (ce *CommandEngine) Synthesize(ctx context.Context, text string) ([]byte, error) {
	tmp, err := os.CreateTemp("", "alertai-tts-*"+ce.extension)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp audio file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	args := make([]string, len(ce.args))
	for i, a := range ce.args {
		a = strings.ReplaceAll(a, "{file}", tmpPath)
		args[i] = strings.ReplaceAll(a, "{text}", text)
	}

	if out, err := ce.run(ctx, ce.command, args...); err != nil {
		return nil, fmt.Errorf("%s failed: %w (%s)", ce.command, err, strings.TrimSpace(string(out)))
	}
	return os.ReadFile(tmpPath)
}

// CommandPlayer plays audio files by shelling out to a player program chosen by
// file extension.
type CommandPlayer struct {
	commands map[string][]string // extension -> argv prefix; "" is the fallback
	run      runFunc
}

// NewCommandPlayer creates a player. A non-empty command overrides the platform
// defaults for every file type.
func NewCommandPlayer(command []string) *CommandPlayer {
	commands := defaultPlayerCommands()
	if len(command) > 0 {
		commands = map[string][]string{"": command}
	}
	return &CommandPlayer{commands: commands, run: runCommand}
}

func (cp *CommandPlayer) Play(ctx context.Context, path string) error {
	argv, ok := cp.commands[strings.ToLower(filepath.Ext(path))]
	if !ok {
		argv, ok = cp.commands[""]
	}
	if !ok || len(argv) == 0 {
		return fmt.Errorf("no audio player configured for %s", path)
	}

	args := append(append([]string{}, argv[1:]...), path)
	if out, err := cp.run(ctx, argv[0], args...); err != nil {
		return fmt.Errorf("%s failed: %w (%s)", argv[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}
