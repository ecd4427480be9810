package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// maxChunkRunes is the longest text the translate_tts endpoint accepts per request.
const maxChunkRunes = 100

// GoogleEngine synthesizes MP3 speech with the Google Translate TTS endpoint.
type GoogleEngine struct {
	language string
	baseURL  string
	client   *http.Client
}

// NewGoogleEngine creates an engine for the given language (e.g. "en") and
// Google domain TLD (e.g. "com", "co.uk"). Empty values use "en" and "com".
func NewGoogleEngine(language, tld string) *GoogleEngine {
	if language == "" {
		language = "en"
	}
	if tld == "" {
		tld = "com"
	}
	return &GoogleEngine{
		language: language,
		baseURL:  "https://translate.google." + tld,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (ge *GoogleEngine) Name() string {
	return "gtts"
}

func (ge *GoogleEngine) Extension() string {
	return ".mp3"
}

// Synthesize fetches one MP3 per text chunk. MP3 frames are self-delimiting, so
// the chunks are simply concatenated.
func (ge *GoogleEngine) Synthesize(ctx context.Context, text string) ([]byte, error) {
	chunks := splitText(text, maxChunkRunes)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no text to speak")
	}

	var audio bytes.Buffer
	for i, chunk := range chunks {
		if err := ge.fetchChunk(ctx, &audio, chunk, i, len(chunks)); err != nil {
			return nil, err
		}
	}
	return audio.Bytes(), nil
}

func (ge *GoogleEngine) fetchChunk(ctx context.Context, w io.Writer, chunk string, idx, total int) error {
	params := url.Values{}
	params.Set("ie", "UTF-8")
	params.Set("client", "tw-ob")
	params.Set("tl", ge.language)
	params.Set("q", chunk)
	params.Set("idx", strconv.Itoa(idx))
	params.Set("total", strconv.Itoa(total))
	params.Set("textlen", strconv.Itoa(utf8.RuneCountInString(chunk)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ge.baseURL+"/translate_tts?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create TTS request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Referer", ge.baseURL+"/")

	resp, err := ge.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call TTS endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("TTS request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("failed to read TTS audio: %w", err)
	}
	return nil
}

// splitText breaks text into chunks of at most max runes, preferring word
// boundaries. Words longer than max are cut.
func splitText(text string, max int) []string {
	var chunks []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			currentLen = 0
		}
	}

	for _, word := range strings.Fields(text) {
		runes := []rune(word)
		for len(runes) > max {
			flush()
			chunks = append(chunks, string(runes[:max]))
			runes = runes[max:]
		}
		if len(runes) == 0 {
			continue
		}
		if currentLen > 0 && currentLen+1+len(runes) > max {
			flush()
		}
		if currentLen > 0 {
			current.WriteByte(' ')
			currentLen++
		}
		current.WriteString(string(runes))
		currentLen += len(runes)
	}
	flush()
	return chunks
}
