package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattmezza/alertai/internal/config"
	"github.com/mattmezza/alertai/internal/speech"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags("alertai", []string{"-cooldown", "2.5", "-conf", "0.6", "-no-preview", "test-notification", "voice"})
	require.NoError(t, err)

	assert.Equal(t, 2.5, opts.cooldown)
	assert.Equal(t, 0.6, opts.confidence)
	assert.True(t, opts.noPreview)
	assert.Equal(t, defaultConfigFile, opts.configPath)
	assert.Equal(t, []string{"test-notification", "voice"}, opts.args)
	assert.True(t, opts.set["cooldown"])
	assert.False(t, opts.set["detection-time"], "defaults are not explicit")

	_, err = parseFlags("alertai", []string{"-camera", "front"})
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	testCases := []struct {
		name        string
		configYAML  string // empty means no file
		args        []string
		expectError bool
		check       func(t *testing.T, cfg *config.Config)
	}{
		{
			name: "defaults_without_file",
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, "best.onnx", cfg.ModelPath)
				assert.Equal(t, 1500*time.Millisecond, cfg.DetectionTime)
				assert.Equal(t, 5*time.Second, cfg.Cooldown)
				assert.Equal(t, []string{"drowsy", "head drop", "yawn", "distracted"}, cfg.Categories)
			},
		},
		{
			name: "flags_override_file",
			configYAML: `
model: models/driver.onnx
camera: 1
detection_time: 3s
cooldown: 10s
confidence: 0.4
`,
			args: []string{"-cooldown", "2", "-camera", "2", "-no-preview"},
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, "models/driver.onnx", cfg.ModelPath)
				assert.Equal(t, 2, cfg.Camera)
				assert.Equal(t, 3*time.Second, cfg.DetectionTime, "not given on the command line")
				assert.Equal(t, 2*time.Second, cfg.Cooldown)
				assert.Equal(t, 0.4, cfg.Confidence)
				assert.True(t, cfg.Headless)
			},
		},
		{
			name:       "fractional_seconds",
			configYAML: "hostname: cab-07\n",
			args:       []string{"-detection-time", "0.25"},
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, 250*time.Millisecond, cfg.DetectionTime)
				assert.Equal(t, "cab-07", cfg.EffectiveHostname)
			},
		},
		{
			name:        "negative_cooldown_flag",
			args:        []string{"-cooldown", "-1"},
			expectError: true,
		},
		{
			name:        "confidence_out_of_range",
			args:        []string{"-conf", "1.5"},
			expectError: true,
		},
		{
			name:        "invalid_file",
			configYAML:  "cooldown: [1, 2\n",
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if tc.configYAML != "" {
				path = writeConfig(t, tc.configYAML)
			}

			opts, err := parseFlags("alertai", tc.args)
			require.NoError(t, err)
			opts.configPath = path

			cfg, err := loadConfig(opts)
			if tc.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tc.check(t, cfg)
		})
	}
}

func TestLoadConfigExplicitMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	opts, err := parseFlags("alertai", []string{"-config", missing})
	require.NoError(t, err)

	_, err = loadConfig(opts)
	assert.Error(t, err)
}

func TestPrintModelInfo(t *testing.T) {
	var buf bytes.Buffer
	printModelInfo(&buf, []string{"awake", "drowsy"})

	out := buf.String()
	assert.Contains(t, out, "=== AlertAI Model Information ===")
	assert.Contains(t, out, "Class ID: 0, Class Name: awake\n")
	assert.Contains(t, out, "Class ID: 1, Class Name: drowsy\n")
}

func TestUnknownCategories(t *testing.T) {
	missing := unknownCategories([]string{"drowsy", "head drop", "yawn"}, []string{"Drowsy", "Yawn", "awake"})
	assert.Equal(t, []string{"head drop"}, missing)
}

type recordingSpeaker struct {
	said []string
}

func (s *recordingSpeaker) Speak(_ context.Context, text string) error {
	s.said = append(s.said, text)
	return nil
}

func TestTestNotification(t *testing.T) {
	path := writeConfig(t, `
hostname: "test-host"
notification_channels:
  - name: "test-stdout"
    type: "stdout"
  - name: "voice"
    type: "speech"
templates:
  alert: "TEST: {{ .Category }} on {{ .Hostname }}"
`)
	opts, err := parseFlags("alertai", []string{"-config", path})
	require.NoError(t, err)
	cfg, err := loadConfig(opts)
	require.NoError(t, err)

	speaker := &recordingSpeaker{}
	speakers := func(config.SpeechChannelConfig) (speech.Speaker, error) { return speaker, nil }

	testCases := []struct {
		name        string
		channel     string
		expectError string
		spoken      int
	}{
		{name: "test_all_channels", spoken: 1},
		{name: "test_specific_valid_channel", channel: "test-stdout"},
		{name: "test_speech_channel", channel: "voice", spoken: 1},
		{name: "test_nonexistent_channel", channel: "nonexistent", expectError: "channel 'nonexistent' not found"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			speaker.said = nil
			err := testNotification(context.Background(), cfg, tc.channel, speakers)
			if tc.expectError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.expectError)
				return
			}
			require.NoError(t, err)
			require.Len(t, speaker.said, tc.spoken)
			if tc.spoken > 0 {
				assert.Equal(t, "TEST: test alert on test-host", speaker.said[0])
			}
		})
	}
}

func TestTestNotificationNoChannels(t *testing.T) {
	cfg := config.Default()
	cfg.NotificationChannels = nil
	require.NoError(t, cfg.Normalize())

	err := testNotification(context.Background(), cfg, "", nil)
	assert.Error(t, err)

	err = testNotification(context.Background(), cfg, "voice", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no notification channels configured")
}
