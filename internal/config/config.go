package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mattmezza/alertai/internal/util"
	"gopkg.in/yaml.v3"
)

// DefaultCategories are the model classes that trigger alerts when no list is configured.
var DefaultCategories = []string{"drowsy", "head drop", "yawn", "distracted"}

const DefaultAlertTemplate = `Alert! {{.Category}} detected`

type Config struct {
	ModelPath            string                      `yaml:"model"`
	LabelsPath           string                      `yaml:"labels"` // Optional class-name file; model metadata otherwise
	RuntimeLibrary       string                      `yaml:"onnxruntime_library"`
	Camera               int                         `yaml:"camera"`
	Confidence           float64                     `yaml:"confidence"`
	IoUThreshold         float64                     `yaml:"iou_threshold"`
	InputSize            int                         `yaml:"input_size"`
	DetectionTimeStr     string                      `yaml:"detection_time"` // e.g. "1.5s"
	CooldownStr          string                      `yaml:"cooldown"`       // e.g. "5s"
	Categories           []string                    `yaml:"categories"`
	Headless             bool                        `yaml:"headless"`
	MetricsAddr          string                      `yaml:"metrics_addr"`
	EventsAddr           string                      `yaml:"events_addr"`
	HostnameOverride     string                      `yaml:"hostname"`
	NotificationChannels []NotificationChannelConfig `yaml:"notification_channels"`
	Templates            TemplateConfig              `yaml:"templates"`
	DetectionTime        time.Duration               `yaml:"-"` // Derived
	Cooldown             time.Duration               `yaml:"-"` // Derived
	EffectiveHostname    string                      `yaml:"-"` // Derived
}

type NotificationChannelConfig struct {
	Name   string                 `yaml:"name"`
	Type   string                 `yaml:"type"` // "speech", "stdout", "email", "telegram"
	Config map[string]interface{} `yaml:"config"`
}

type SpeechChannelConfig struct {
	Engine     string        `yaml:"engine"`   // "gtts" (default) or "command"
	Language   string        `yaml:"language"` // gtts language, e.g. "en"
	TLD        string        `yaml:"tld"`      // gtts Google domain, e.g. "com"
	Command    string        `yaml:"command"`  // command engine program, platform default if empty
	Args       []string      `yaml:"args"`     // supports {file} and {text}
	Extension  string        `yaml:"extension"`
	AudioFile  string        `yaml:"audio_file"` // Transient file, overwritten per alert
	Player     []string      `yaml:"player"`     // Overrides the platform player
	TimeoutStr string        `yaml:"timeout"`
	Timeout    time.Duration `yaml:"-"`
}

type EmailChannelConfig struct {
	SMTPHost     string   `yaml:"smtp_host"`
	SMTPPort     int      `yaml:"smtp_port"`
	SMTPUsername string   `yaml:"smtp_username"`
	SMTPPassword string   `yaml:"smtp_password"` // Will be populated from ENV
	SMTPFrom     string   `yaml:"smtp_from"`
	SMTPTo       []string `yaml:"smtp_to"`
	SMTPUseTLS   bool     `yaml:"smtp_use_tls"`
}

type TelegramChannelConfig struct {
	BotToken string `yaml:"bot_token"` // Will be populated from ENV
	ChatID   string `yaml:"chat_id"`
}

type TemplateConfig struct {
	Alert string `yaml:"alert"`
}

// Default returns the configuration used when no file is given: the settings the
// detector shipped with, speaking alerts through the default TTS engine.
func Default() *Config {
	return &Config{
		ModelPath:        "best.onnx",
		Camera:           0,
		Confidence:       0.5,
		IoUThreshold:     0.7,
		InputSize:        640,
		DetectionTimeStr: "1.5s",
		CooldownStr:      "5s",
		Categories:       append([]string(nil), DefaultCategories...),
		NotificationChannels: []NotificationChannelConfig{
			{Name: "voice", Type: "speech"},
		},
		Templates: TemplateConfig{Alert: DefaultAlertTemplate},
	}
}

// LoadConfig reads a YAML file on top of Default and validates the result.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML from %s: %w", filePath, err)
	}

	if err := cfg.Normalize(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", filePath, err)
	}
	return cfg, nil
}

// Normalize validates the configuration and fills in derived values. It is safe
// to call again after fields were overridden.
func (cfg *Config) Normalize() error {
	var err error

	if strings.TrimSpace(cfg.ModelPath) == "" {
		return fmt.Errorf("model path is required")
	}
	if cfg.Camera < 0 {
		return fmt.Errorf("camera index must be >= 0, got %d", cfg.Camera)
	}
	if cfg.Confidence < 0 || cfg.Confidence > 1 {
		return fmt.Errorf("confidence must be between 0 and 1, got %v", cfg.Confidence)
	}
	if cfg.IoUThreshold <= 0 || cfg.IoUThreshold > 1 {
		return fmt.Errorf("iou_threshold must be in (0, 1], got %v", cfg.IoUThreshold)
	}
	if cfg.InputSize <= 0 || cfg.InputSize%32 != 0 {
		return fmt.Errorf("input_size must be a positive multiple of 32, got %d", cfg.InputSize)
	}

	if cfg.DetectionTime, err = util.ParseDurationString(cfg.DetectionTimeStr); err != nil {
		return fmt.Errorf("invalid detection_time: %w", err)
	}
	if cfg.Cooldown, err = util.ParseDurationString(cfg.CooldownStr); err != nil {
		return fmt.Errorf("invalid cooldown: %w", err)
	}

	if len(cfg.Categories) == 0 {
		return fmt.Errorf("at least one alert category is required")
	}
	seen := make(map[string]bool, len(cfg.Categories))
	for i, c := range cfg.Categories {
		c = util.LowerLabel(strings.TrimSpace(c))
		if c == "" {
			return fmt.Errorf("category at index %d is empty", i)
		}
		if seen[c] {
			return fmt.Errorf("duplicate category: %s", c)
		}
		seen[c] = true
		cfg.Categories[i] = c
	}

	if strings.TrimSpace(cfg.HostnameOverride) != "" {
		cfg.EffectiveHostname = cfg.HostnameOverride
	} else {
		hostname, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("failed to get OS hostname: %w", err)
		}
		cfg.EffectiveHostname = hostname
	}

	names := make(map[string]bool, len(cfg.NotificationChannels))
	for i := range cfg.NotificationChannels {
		nc := &cfg.NotificationChannels[i]
		if nc.Name == "" {
			return fmt.Errorf("notification channel at index %d missing name", i)
		}
		if names[nc.Name] {
			return fmt.Errorf("duplicate notification channel name defined: %s", nc.Name)
		}
		names[nc.Name] = true

		// Sensitive values come from ENV:
		// ALERTAI_<SENSITIVE_FIELD_NAME>_<CHANNEL_NAME_UPPERCASE>, e.g. ALERTAI_TELEGRAM_TOKEN_FLEET
		envVarPrefix := "ALERTAI_"
		channelNameUpper := strings.ToUpper(strings.ReplaceAll(nc.Name, "-", "_"))

		switch nc.Type {
		case "email":
			passwordEnvKey := fmt.Sprintf("%sSMTP_PASSWORD_%s", envVarPrefix, channelNameUpper)
			if pass := os.Getenv(passwordEnvKey); pass != "" {
				if nc.Config == nil {
					nc.Config = make(map[string]interface{})
				}
				nc.Config["smtp_password"] = pass
			} else if v, ok := nc.Config["smtp_password"]; ok && v != "" {
				fmt.Printf("Warning: SMTP password for channel '%s' found in config file. It should be set via ENV var %s.\n", nc.Name, passwordEnvKey)
			}
		case "telegram":
			tokenEnvKey := fmt.Sprintf("%sTELEGRAM_TOKEN_%s", envVarPrefix, channelNameUpper)
			if token := os.Getenv(tokenEnvKey); token != "" {
				if nc.Config == nil {
					nc.Config = make(map[string]interface{})
				}
				nc.Config["bot_token"] = token
			} else if v, ok := nc.Config["bot_token"]; ok && v != "" {
				fmt.Printf("Warning: Telegram bot token for channel '%s' found in config file. It should be set via ENV var %s.\n", nc.Name, tokenEnvKey)
			}
		case "speech":
			if _, err := GetSpeechChannelConfig(*nc); err != nil {
				return err
			}
		case "stdout":
			// Nothing to resolve
		default:
			return fmt.Errorf("notification channel '%s' has unknown type '%s'", nc.Name, nc.Type)
		}
	}

	if strings.TrimSpace(cfg.Templates.Alert) == "" {
		cfg.Templates.Alert = DefaultAlertTemplate
	}

	return nil
}

// SetDetectionSeconds overrides detection_time with a number of seconds.
func (cfg *Config) SetDetectionSeconds(seconds float64) {
	cfg.DetectionTimeStr = strconv.FormatFloat(seconds, 'f', -1, 64)
}

// SetCooldownSeconds overrides cooldown with a number of seconds.
func (cfg *Config) SetCooldownSeconds(seconds float64) {
	cfg.CooldownStr = strconv.FormatFloat(seconds, 'f', -1, 64)
}

// GetSpeechChannelConfig decodes the free-form config map of a speech channel.
func GetSpeechChannelConfig(nc NotificationChannelConfig) (*SpeechChannelConfig, error) {
	if nc.Type != "speech" {
		return nil, fmt.Errorf("not a speech channel")
	}
	var speechCfg SpeechChannelConfig
	if len(nc.Config) > 0 {
		// Round-trip through YAML so the struct tags do the field mapping.
		raw, err := yaml.Marshal(nc.Config)
		if err != nil {
			return nil, fmt.Errorf("channel '%s': %w", nc.Name, err)
		}
		if err := yaml.Unmarshal(raw, &speechCfg); err != nil {
			return nil, fmt.Errorf("channel '%s': invalid speech config: %w", nc.Name, err)
		}
	}

	switch speechCfg.Engine {
	case "":
		speechCfg.Engine = "gtts"
	case "gtts", "command":
	default:
		return nil, fmt.Errorf("channel '%s': unknown speech engine '%s'", nc.Name, speechCfg.Engine)
	}

	if speechCfg.TimeoutStr == "" {
		speechCfg.Timeout = 30 * time.Second
	} else {
		timeout, err := util.ParseDurationString(speechCfg.TimeoutStr)
		if err != nil {
			return nil, fmt.Errorf("channel '%s': invalid timeout: %w", nc.Name, err)
		}
		speechCfg.Timeout = timeout
	}
	return &speechCfg, nil
}

// Helper to get typed Email config
func GetEmailChannelConfig(nc NotificationChannelConfig) (*EmailChannelConfig, error) {
	if nc.Type != "email" {
		return nil, fmt.Errorf("not an email channel")
	}
	var emailCfg EmailChannelConfig
	if host, ok := nc.Config["smtp_host"].(string); ok {
		emailCfg.SMTPHost = host
	} else {
		return nil, fmt.Errorf("channel '%s': smtp_host missing or not a string", nc.Name)
	}
	if port, ok := nc.Config["smtp_port"].(int); ok {
		emailCfg.SMTPPort = port
	} else {
		return nil, fmt.Errorf("channel '%s': smtp_port missing or not an int", nc.Name)
	}
	if user, ok := nc.Config["smtp_username"].(string); ok {
		emailCfg.SMTPUsername = user
	}
	if pass, ok := nc.Config["smtp_password"].(string); ok {
		emailCfg.SMTPPassword = pass
	}
	if from, ok := nc.Config["smtp_from"].(string); ok {
		emailCfg.SMTPFrom = from
	} else {
		return nil, fmt.Errorf("channel '%s': smtp_from missing or not a string", nc.Name)
	}
	if toVal, ok := nc.Config["smtp_to"].([]interface{}); ok {
		for _, t := range toVal {
			if tStr, ok := t.(string); ok {
				emailCfg.SMTPTo = append(emailCfg.SMTPTo, tStr)
			}
		}
	} else {
		return nil, fmt.Errorf("channel '%s': smtp_to missing or not a list of strings", nc.Name)
	}
	if useTLS, ok := nc.Config["smtp_use_tls"].(bool); ok {
		emailCfg.SMTPUseTLS = useTLS
	}

	if emailCfg.SMTPHost == "" || emailCfg.SMTPPort == 0 || emailCfg.SMTPFrom == "" || len(emailCfg.SMTPTo) == 0 {
		return nil, fmt.Errorf("channel '%s': one or more required email config fields are missing (host, port, from, to)", nc.Name)
	}
	return &emailCfg, nil
}

// Helper to get typed Telegram config
func GetTelegramChannelConfig(nc NotificationChannelConfig) (*TelegramChannelConfig, error) {
	if nc.Type != "telegram" {
		return nil, fmt.Errorf("not a telegram channel")
	}
	var telegramCfg TelegramChannelConfig
	if token, ok := nc.Config["bot_token"].(string); ok {
		telegramCfg.BotToken = token
	}
	if chatID, ok := nc.Config["chat_id"].(string); ok {
		telegramCfg.ChatID = chatID
	} else {
		return nil, fmt.Errorf("channel '%s': chat_id missing or not a string", nc.Name)
	}

	if telegramCfg.BotToken == "" || telegramCfg.ChatID == "" {
		return nil, fmt.Errorf("channel '%s': bot_token (from ENV) or chat_id are missing", nc.Name)
	}
	return &telegramCfg, nil
}
