package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchNotifiesOnWrite(t *testing.T) {
	configFile := writeConfig(t, `cooldown: "5s"`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 10)
	done := make(chan struct{})
	go func() {
		defer close(done)
		Watch(ctx, configFile, 20*time.Millisecond, func() { changed <- struct{}{} })
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(configFile, []byte(`cooldown: "2s"`), 0644))

	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("expected a change notification")
	}

	cfg, err := LoadConfig(configFile)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.Cooldown)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop after cancel")
	}
}

func TestWatchIgnoresOtherFiles(t *testing.T) {
	configFile := writeConfig(t, `cooldown: "5s"`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 10)
	go Watch(ctx, configFile, 20*time.Millisecond, func() { changed <- struct{}{} })

	time.Sleep(100 * time.Millisecond)
	other := filepath.Join(filepath.Dir(configFile), "labels.yaml")
	require.NoError(t, os.WriteFile(other, []byte("names: [drowsy]"), 0644))

	select {
	case <-changed:
		t.Fatal("unexpected notification for an unrelated file")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatchWithPolling(t *testing.T) {
	configFile := writeConfig(t, `cooldown: "5s"`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 10)
	go watchWithPolling(ctx, configFile, 10*time.Millisecond, func() { changed <- struct{}{} })

	time.Sleep(50 * time.Millisecond)
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(configFile, future, future))

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("expected polling to notice the modification")
	}
}
