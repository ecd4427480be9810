package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/mattmezza/alertai/internal/config"
	"github.com/mattmezza/alertai/internal/speech"
)

// SpeechNotifier speaks the rendered alert message aloud.
type SpeechNotifier struct {
	ctx     context.Context // Cancelling it aborts playback in progress
	name    string
	speaker speech.Speaker
	timeout time.Duration
}

func NewSpeechNotifier(ctx context.Context, name string, cfg config.SpeechChannelConfig, speakers SpeakerFactory) (*SpeechNotifier, error) {
	speaker, err := speakers(cfg)
	if err != nil {
		return nil, fmt.Errorf("speech notifier '%s': %w", name, err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SpeechNotifier{ctx: ctx, name: name, speaker: speaker, timeout: timeout}, nil
}

func (sn *SpeechNotifier) Name() string {
	return sn.name
}

// Send blocks until playback finishes or the channel timeout expires.
func (sn *SpeechNotifier) Send(data NotificationData, templates NotificationTemplates) error {
	msg, err := RenderMessage(templates, data)
	if err != nil {
		return fmt.Errorf("failed to render speech message for '%s': %w", data.Category, err)
	}

	ctx, cancel := context.WithTimeout(sn.ctx, sn.timeout)
	defer cancel()
	if err := sn.speaker.Speak(ctx, msg); err != nil {
		return fmt.Errorf("failed to speak alert for '%s': %w", data.Category, err)
	}
	return nil
}
