package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/KrzysztofStaron/graph-llm-backend/internal/config"
)

const (
	synthesisModel     = "eleven_multilingual_v2"
	transcriptionModel = "scribe_v1"

	requestTimeout    = 60 * time.Second
	maxAudioBodyBytes = 32 << 20
	maxErrorBodyBytes = 16 * 1024
)

// ErrMissingAPIKey indicates no speech-provider credential was configured.
var ErrMissingAPIKey = errors.New("missing ElevenLabs API key")

// Synthesizer is the speech boundary consumed by the HTTP handlers.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// Client proxies text-to-speech and transcription calls to an
// ElevenLabs-style API.
type Client struct {
	apiKey  string
	baseURL string
	voiceID string
	client  *http.Client
}

// New constructs a speech client from configuration.
func New(cfg config.SpeechConfig) *Client {
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		voiceID: cfg.VoiceID,
		client:  &http.Client{Timeout: requestTimeout},
	}
}

// Synthesize converts text to MP3 audio. An empty voiceID selects the
// configured default voice.
func (c *Client) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if voiceID == "" {
		voiceID = c.voiceID
	}

	payload, err := json.Marshal(map[string]any{
		"text":     text,
		"model_id": synthesisModel,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal synthesis payload: %w", err)
	}

	url := c.baseURL + "/text-to-speech/" + voiceID
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("construct synthesis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, apiError("synthesis", resp)
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read synthesis response: %w", err)
	}
	return audio, nil
}

// Transcribe sends audio for speech-to-text and returns the transcript.
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return "", ErrMissingAPIKey
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("build transcription form: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("write transcription form: %w", err)
	}
	if err := form.WriteField("model_id", transcriptionModel); err != nil {
		return "", fmt.Errorf("write transcription form: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("close transcription form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/speech-to-text", &body)
	if err != nil {
		return "", fmt.Errorf("construct transcription request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", apiError("transcription", resp)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode transcription response: %w", err)
	}
	return result.Text, nil
}

func apiError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	return fmt.Errorf("%s failed with status %d: %s", operation, resp.StatusCode, strings.TrimSpace(string(body)))
}
