// Package speech renders alert messages as audio and plays them.
package speech

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Speaker renders text audibly.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Engine turns text into encoded audio.
type Engine interface {
	Name() string
	Synthesize(ctx context.Context, text string) ([]byte, error)
	Extension() string // File extension of the produced audio, e.g. ".mp3"
}

// Player plays an audio file to completion.
type Player interface {
	Play(ctx context.Context, path string) error
}

// FileSpeaker synthesizes into a single transient audio file that is
// overwritten on every call, then hands it to a Player.
type FileSpeaker struct {
	engine Engine
	player Player
	path   string
	mu     sync.Mutex // One file, one utterance at a time
}

// NewFileSpeaker creates a FileSpeaker. An empty path places the audio file in
// the OS temp directory.
func NewFileSpeaker(engine Engine, player Player, path string) *FileSpeaker {
	if path == "" {
		path = filepath.Join(os.TempDir(), "alertai-alert"+engine.Extension())
	}
	return &FileSpeaker{engine: engine, player: player, path: path}
}

// Path returns the transient audio file location.
func (fs *FileSpeaker) Path() string {
	return fs.path
}

func (fs *FileSpeaker) Speak(ctx context.Context, text string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	audio, err := fs.engine.Synthesize(ctx, text)
	if err != nil {
		return fmt.Errorf("speech: %s synthesis failed: %w", fs.engine.Name(), err)
	}
	if len(audio) == 0 {
		return fmt.Errorf("speech: %s returned no audio", fs.engine.Name())
	}
	if err := os.WriteFile(fs.path, audio, 0644); err != nil {
		return fmt.Errorf("speech: failed to write audio file %s: %w", fs.path, err)
	}
	if err := fs.player.Play(ctx, fs.path); err != nil {
		return fmt.Errorf("speech: playback failed: %w", err)
	}
	return nil
}
