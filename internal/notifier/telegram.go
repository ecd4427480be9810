package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mattmezza/alertai/internal/config"
)

type TelegramNotifier struct {
	name   string
	config config.TelegramChannelConfig
	client *http.Client
}

func NewTelegramNotifier(name string, cfg config.TelegramChannelConfig) (*TelegramNotifier, error) {
	if cfg.BotToken == "" || cfg.ChatID == "" {
		return nil, fmt.Errorf("telegram notifier '%s' is missing bot_token (from ENV) or chat_id", name)
	}
	return &TelegramNotifier{
		name:   name,
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (tn *TelegramNotifier) Name() string {
	return tn.name
}

// Send posts the rendered alert to a Telegram chat using MarkdownV2, so the
// plain-text template output is escaped first.
func (tn *TelegramNotifier) Send(data NotificationData, templates NotificationTemplates) error {
	rawMessage, err := RenderMessage(templates, data)
	if err != nil {
		return fmt.Errorf("failed to render Telegram template for '%s': %w", data.Category, err)
	}

	apiURL := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", tn.config.BotToken)

	payload := map[string]string{
		"chat_id":    tn.config.ChatID,
		"text":       escapeTextForMarkdownV2(rawMessage),
		"parse_mode": "MarkdownV2",
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal Telegram payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, apiURL, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return fmt.Errorf("failed to create Telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := tn.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message to Telegram API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram API request failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	return nil
}

// escapeTextForMarkdownV2 escapes text for Telegram MarkdownV2.
// Telegram requires escaping: _ * [ ] ( ) ~ ` > # + - = | { } . !
func escapeTextForMarkdownV2(text string) string {
	const escapeChars = "_*[]()~`>#+-=|{}.!"
	var result strings.Builder
	for _, r := range text {
		if strings.ContainsRune(escapeChars, r) {
			result.WriteByte('\\')
		}
		result.WriteRune(r)
	}
	return result.String()
}
