package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattmezza/alertai/internal/collector"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0644))
	return configFile
}

func TestLoadConfig(t *testing.T) {
	testCases := []struct {
		name     string
		yaml     string
		expected *Config
		wantErr  bool
	}{
		{
			name: "valid_full_config",
			yaml: `
model: "models/driver.onnx"
labels: "models/data.yaml"
camera: 1
confidence: 0.6
iou_threshold: 0.5
input_size: 320
detection_time: "2s"
cooldown: "10s"
categories: ["Drowsy", "yawn"]
headless: true
metrics_addr: ":9100"
events_addr: ":8088"
hostname: "cab-7"
notification_channels:
  - name: "voice"
    type: "speech"
    config:
      engine: "command"
      command: "espeak"
      args: ["-w", "{file}", "{text}"]
  - name: "console"
    type: "stdout"
templates:
  alert: "Wake up! {{ .Category }}"
`,
			expected: &Config{
				ModelPath:         "models/driver.onnx",
				LabelsPath:        "models/data.yaml",
				Camera:            1,
				Confidence:        0.6,
				IoUThreshold:      0.5,
				InputSize:         320,
				DetectionTime:     2 * time.Second,
				Cooldown:          10 * time.Second,
				Categories:        []string{"drowsy", "yawn"},
				Headless:          true,
				MetricsAddr:       ":9100",
				EventsAddr:        ":8088",
				HostnameOverride:  "cab-7",
				EffectiveHostname: "cab-7",
				Templates:         TemplateConfig{Alert: "Wake up! {{ .Category }}"},
			},
		},
		{
			name: "minimal_config_with_defaults",
			yaml: `
model: "best.onnx"
`,
			expected: &Config{
				ModelPath:     "best.onnx",
				Confidence:    0.5,
				IoUThreshold:  0.7,
				InputSize:     640,
				DetectionTime: 1500 * time.Millisecond,
				Cooldown:      5 * time.Second,
				Categories:    []string{"drowsy", "head drop", "yawn", "distracted"},
				Templates:     TemplateConfig{Alert: DefaultAlertTemplate},
			},
		},
		{
			name: "zero_thresholds_allowed",
			yaml: `
detection_time: "0s"
cooldown: "0"
`,
			expected: &Config{
				ModelPath:    "best.onnx",
				Confidence:   0.5,
				IoUThreshold: 0.7,
				InputSize:    640,
				Categories:   []string{"drowsy", "head drop", "yawn", "distracted"},
				Templates:    TemplateConfig{Alert: DefaultAlertTemplate},
			},
		},
		{
			name:    "invalid_yaml",
			yaml:    "categories: [\n",
			wantErr: true,
		},
		{
			name:    "negative_detection_time",
			yaml:    `detection_time: "-1s"`,
			wantErr: true,
		},
		{
			name:    "invalid_cooldown",
			yaml:    `cooldown: "forever"`,
			wantErr: true,
		},
		{
			name:    "confidence_out_of_range",
			yaml:    `confidence: 1.5`,
			wantErr: true,
		},
		{
			name:    "input_size_not_multiple_of_32",
			yaml:    `input_size: 600`,
			wantErr: true,
		},
		{
			name:    "empty_categories",
			yaml:    `categories: []`,
			wantErr: true,
		},
		{
			name:    "duplicate_categories_after_lowercasing",
			yaml:    `categories: ["yawn", "YAWN"]`,
			wantErr: true,
		},
		{
			name: "unknown_channel_type",
			yaml: `
notification_channels:
  - name: "pager"
    type: "pagerduty"
`,
			wantErr: true,
		},
		{
			name: "duplicate_channel_names",
			yaml: `
notification_channels:
  - name: "voice"
    type: "speech"
  - name: "voice"
    type: "stdout"
`,
			wantErr: true,
		},
		{
			name: "unknown_speech_engine",
			yaml: `
notification_channels:
  - name: "voice"
    type: "speech"
    config:
      engine: "festival"
`,
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := LoadConfig(writeConfig(t, tc.yaml))

			if tc.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expected.ModelPath, cfg.ModelPath)
			assert.Equal(t, tc.expected.LabelsPath, cfg.LabelsPath)
			assert.Equal(t, tc.expected.Camera, cfg.Camera)
			assert.Equal(t, tc.expected.Confidence, cfg.Confidence)
			assert.Equal(t, tc.expected.IoUThreshold, cfg.IoUThreshold)
			assert.Equal(t, tc.expected.InputSize, cfg.InputSize)
			assert.Equal(t, tc.expected.DetectionTime, cfg.DetectionTime)
			assert.Equal(t, tc.expected.Cooldown, cfg.Cooldown)
			assert.Equal(t, tc.expected.Categories, cfg.Categories)
			assert.Equal(t, tc.expected.Headless, cfg.Headless)
			assert.Equal(t, tc.expected.MetricsAddr, cfg.MetricsAddr)
			assert.Equal(t, tc.expected.EventsAddr, cfg.EventsAddr)
			assert.Equal(t, tc.expected.Templates, cfg.Templates)

			if tc.expected.HostnameOverride != "" {
				assert.Equal(t, tc.expected.EffectiveHostname, cfg.EffectiveHostname)
			} else {
				assert.NotEmpty(t, cfg.EffectiveHostname)
			}
			assert.NotEmpty(t, cfg.NotificationChannels)
		})
	}
}

func TestLoadConfigFileNotFound(t *testing.T) {
	_, err := LoadConfig("nonexistent.yaml")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Normalize())
	assert.Equal(t, 1500*time.Millisecond, cfg.DetectionTime)
	assert.Equal(t, 5*time.Second, cfg.Cooldown)
	require.Len(t, cfg.NotificationChannels, 1)
	assert.Equal(t, "speech", cfg.NotificationChannels[0].Type)

	// Default must not share the package-level category slice.
	cfg.Categories[0] = "changed"
	assert.Equal(t, "drowsy", DefaultCategories[0])
}

func TestNormalizedCategoriesMatchModelLabels(t *testing.T) {
	cfg := Default()
	cfg.Categories = []string{" Head Drop", "ΟΔΟΣ", "Yawn"}
	require.NoError(t, cfg.Normalize())
	assert.Equal(t, []string{"head drop", "οδος", "yawn"}, cfg.Categories)

	m := collector.NewCategoryMatcher(cfg.Categories)
	for _, label := range []string{"HEAD DROP", "ΟΔΟΣ", "οδος", "yawn"} {
		category, ok := m.Match(label)
		assert.True(t, ok, "label %q", label)
		assert.Contains(t, cfg.Categories, category)
	}
}

func TestSecondsOverrides(t *testing.T) {
	cfg := Default()
	cfg.SetDetectionSeconds(2.5)
	cfg.SetCooldownSeconds(0)
	require.NoError(t, cfg.Normalize())
	assert.Equal(t, 2500*time.Millisecond, cfg.DetectionTime)
	assert.Equal(t, time.Duration(0), cfg.Cooldown)

	cfg.SetCooldownSeconds(-3)
	assert.Error(t, cfg.Normalize())
}

func TestGetSpeechChannelConfig(t *testing.T) {
	testCases := []struct {
		name     string
		input    NotificationChannelConfig
		expected *SpeechChannelConfig
		wantErr  bool
	}{
		{
			name:  "defaults",
			input: NotificationChannelConfig{Name: "voice", Type: "speech"},
			expected: &SpeechChannelConfig{
				Engine:  "gtts",
				Timeout: 30 * time.Second,
			},
		},
		{
			name: "command_engine",
			input: NotificationChannelConfig{
				Name: "voice",
				Type: "speech",
				Config: map[string]interface{}{
					"engine":     "command",
					"command":    "say",
					"args":       []interface{}{"-o", "{file}", "{text}"},
					"extension":  ".aiff",
					"audio_file": "/tmp/alert.aiff",
					"player":     []interface{}{"afplay"},
					"timeout":    "5s",
				},
			},
			expected: &SpeechChannelConfig{
				Engine:     "command",
				Command:    "say",
				Args:       []string{"-o", "{file}", "{text}"},
				Extension:  ".aiff",
				AudioFile:  "/tmp/alert.aiff",
				Player:     []string{"afplay"},
				TimeoutStr: "5s",
				Timeout:    5 * time.Second,
			},
		},
		{
			name: "gtts_language",
			input: NotificationChannelConfig{
				Name:   "voice",
				Type:   "speech",
				Config: map[string]interface{}{"language": "de", "tld": "de"},
			},
			expected: &SpeechChannelConfig{
				Engine:   "gtts",
				Language: "de",
				TLD:      "de",
				Timeout:  30 * time.Second,
			},
		},
		{
			name: "bad_timeout",
			input: NotificationChannelConfig{
				Name:   "voice",
				Type:   "speech",
				Config: map[string]interface{}{"timeout": "soon"},
			},
			wantErr: true,
		},
		{
			name:    "wrong_type",
			input:   NotificationChannelConfig{Name: "console", Type: "stdout"},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := GetSpeechChannelConfig(tc.input)

			if tc.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expected, result)
		})
	}
}

func TestGetEmailChannelConfig(t *testing.T) {
	testCases := []struct {
		name     string
		input    NotificationChannelConfig
		expected *EmailChannelConfig
		wantErr  bool
	}{
		{
			name: "valid_email_config",
			input: NotificationChannelConfig{
				Name: "test-email",
				Type: "email",
				Config: map[string]interface{}{
					"smtp_host":     "smtp.example.com",
					"smtp_port":     587,
					"smtp_username": "user@example.com",
					"smtp_from":     "Test <test@example.com>",
					"smtp_to":       []interface{}{"admin@example.com", "ops@example.com"},
					"smtp_use_tls":  true,
				},
			},
			expected: &EmailChannelConfig{
				SMTPHost:     "smtp.example.com",
				SMTPPort:     587,
				SMTPUsername: "user@example.com",
				SMTPFrom:     "Test <test@example.com>",
				SMTPTo:       []string{"admin@example.com", "ops@example.com"},
				SMTPUseTLS:   true,
			},
			wantErr: false,
		},
		{
			name: "missing_required_field",
			input: NotificationChannelConfig{
				Name: "test-email",
				Type: "email",
				Config: map[string]interface{}{
					"smtp_port": 587,
				},
			},
			wantErr: true,
		},
		{
			name: "invalid_port_type",
			input: NotificationChannelConfig{
				Name: "test-email",
				Type: "email",
				Config: map[string]interface{}{
					"smtp_host": "smtp.example.com",
					"smtp_port": "not-a-number",
					"smtp_from": "test@example.com",
					"smtp_to":   []interface{}{"admin@example.com"},
				},
			},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := GetEmailChannelConfig(tc.input)

			if tc.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expected, result)
		})
	}
}

func TestGetTelegramChannelConfig(t *testing.T) {
	testCases := []struct {
		name     string
		input    NotificationChannelConfig
		expected *TelegramChannelConfig
		wantErr  bool
		envToken string
	}{
		{
			name: "valid_telegram_config_with_token",
			input: NotificationChannelConfig{
				Name: "test-telegram",
				Type: "telegram",
				Config: map[string]interface{}{
					"chat_id":   "-123456789",
					"bot_token": "test-token-123",
				},
			},
			expected: &TelegramChannelConfig{
				ChatID:   "-123456789",
				BotToken: "test-token-123",
			},
			wantErr: false,
		},
		{
			name: "missing_bot_token",
			input: NotificationChannelConfig{
				Name: "test-telegram",
				Type: "telegram",
				Config: map[string]interface{}{
					"chat_id": "-123456789",
				},
			},
			wantErr: true,
		},
		{
			name: "missing_chat_id",
			input: NotificationChannelConfig{
				Name:   "test-telegram",
				Type:   "telegram",
				Config: map[string]interface{}{},
			},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := GetTelegramChannelConfig(tc.input)

			if tc.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expected.ChatID, result.ChatID)
			assert.Equal(t, tc.expected.BotToken, result.BotToken)
		})
	}
}

func TestEnvironmentVariableInjection(t *testing.T) {
	t.Setenv("ALERTAI_SMTP_PASSWORD_FLEET_EMAIL", "test-password")
	t.Setenv("ALERTAI_TELEGRAM_TOKEN_FLEET_TELEGRAM", "test-token")

	yaml := `
notification_channels:
  - name: "fleet-email"
    type: "email"
    config:
      smtp_host: "smtp.example.com"
      smtp_port: 587
      smtp_from: "test@example.com"
      smtp_to: ["dispatch@example.com"]
  - name: "fleet-telegram"
    type: "telegram"
    config:
      chat_id: "-123456789"
`

	cfg, err := LoadConfig(writeConfig(t, yaml))
	require.NoError(t, err)

	emailResult, err := GetEmailChannelConfig(cfg.NotificationChannels[0])
	require.NoError(t, err)
	assert.Equal(t, "test-password", emailResult.SMTPPassword)

	telegramResult, err := GetTelegramChannelConfig(cfg.NotificationChannels[1])
	require.NoError(t, err)
	assert.Equal(t, "test-token", telegramResult.BotToken)
}
