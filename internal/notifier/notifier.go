package notifier

import (
	"bytes"
	"context"
	"fmt"
	"log"
	gotexttemplate "text/template"
	"time"

	"github.com/mattmezza/alertai/internal/config"
	"github.com/mattmezza/alertai/internal/speech"
)

// NotificationData is the data passed to templates.
type NotificationData struct {
	EventID        string
	Category       string
	Confidence     float64       // Peak confidence during the detection streak
	MeanConfidence float64       // Mean confidence during the detection streak
	Frames         int           // Frames in the streak that carried the detection
	ActiveFor      time.Duration // Continuous-detection duration when the alert fired
	Hostname       string
	Time           time.Time
	// Human-readable formatted values
	FormattedConfidence string
	FormattedActiveFor  string
}

type NotificationTemplates struct {
	AlertTemplate string
}

// Notifier is the interface for all notification channel types.
type Notifier interface {
	Send(data NotificationData, templates NotificationTemplates) error
	Name() string // Returns the configured channel name
}

// SpeakerFactory builds the Speaker behind a speech channel.
type SpeakerFactory func(cfg config.SpeechChannelConfig) (speech.Speaker, error)

// FormatConfidence renders a confidence score as a percentage.
func FormatConfidence(c float64) string {
	return fmt.Sprintf("%.0f%%", c*100)
}

// FormatActiveFor renders a detection duration with tenth-of-a-second precision.
func FormatActiveFor(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// RenderMessage renders the alert template for data.
func RenderMessage(templates NotificationTemplates, data NotificationData) (string, error) {
	return renderTemplate("alert", templates.AlertTemplate, data)
}

func renderTemplate(templateName string, templateStr string, data NotificationData) (string, error) {
	tmpl, err := gotexttemplate.New(templateName).Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse notification template '%s': %w", templateName, err)
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, data)
	if err != nil {
		return "", fmt.Errorf("failed to execute notification template '%s': %w", templateName, err)
	}
	return buf.String(), nil
}

// DefaultSpeakerFactory builds a FileSpeaker from the channel's engine and player settings.
func DefaultSpeakerFactory(cfg config.SpeechChannelConfig) (speech.Speaker, error) {
	var engine speech.Engine
	switch cfg.Engine {
	case "", "gtts":
		engine = speech.NewGoogleEngine(cfg.Language, cfg.TLD)
	case "command":
		engine = speech.NewCommandEngine(cfg.Command, cfg.Args, cfg.Extension)
	default:
		return nil, fmt.Errorf("unknown speech engine '%s'", cfg.Engine)
	}
	speaker := speech.NewFileSpeaker(engine, speech.NewCommandPlayer(cfg.Player), cfg.AudioFile)
	log.Printf("Speech: alert audio will be written to %s", speaker.Path())
	return speaker, nil
}

// InitializeNotifiers builds a notifier per channel. ctx bounds blocking sends,
// such as speech playback, for the lifetime of the process.
func InitializeNotifiers(ctx context.Context, cfgNotifChannels []config.NotificationChannelConfig, speakers SpeakerFactory) (map[string]Notifier, error) {
	if speakers == nil {
		speakers = DefaultSpeakerFactory
	}
	notifiers := make(map[string]Notifier)
	for _, ncCfg := range cfgNotifChannels {
		var instance Notifier
		var err error
		switch ncCfg.Type {
		case "speech":
			speechCfg, convErr := config.GetSpeechChannelConfig(ncCfg)
			if convErr != nil {
				log.Printf("Skipping speech channel '%s' due to config error: %v", ncCfg.Name, convErr)
				continue
			}
			instance, err = NewSpeechNotifier(ctx, ncCfg.Name, *speechCfg, speakers)
		case "email":
			emailCfg, convErr := config.GetEmailChannelConfig(ncCfg)
			if convErr != nil {
				log.Printf("Skipping email channel '%s' due to config error: %v", ncCfg.Name, convErr)
				continue
			}
			instance, err = NewEmailNotifier(ncCfg.Name, *emailCfg)
		case "telegram":
			telegramCfg, convErr := config.GetTelegramChannelConfig(ncCfg)
			if convErr != nil {
				log.Printf("Skipping telegram channel '%s' due to config error: %v", ncCfg.Name, convErr)
				continue
			}
			instance, err = NewTelegramNotifier(ncCfg.Name, *telegramCfg)
		case "stdout":
			instance, err = NewStdoutNotifier(ncCfg.Name)
		default:
			log.Printf("Unsupported notification channel type '%s' for channel '%s'. Skipping.", ncCfg.Type, ncCfg.Name)
			continue
		}

		if err != nil {
			log.Printf("Failed to initialize notifier for channel '%s' (%s): %v. Skipping.", ncCfg.Name, ncCfg.Type, err)
			continue
		}
		if _, exists := notifiers[ncCfg.Name]; exists {
			return nil, fmt.Errorf("duplicate notification channel name defined: %s", ncCfg.Name)
		}
		notifiers[ncCfg.Name] = instance
		log.Printf("Successfully initialized notifier for channel: %s (type: %s)", ncCfg.Name, ncCfg.Type)
	}
	return notifiers, nil
}
