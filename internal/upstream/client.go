package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/KrzysztofStaron/graph-llm-backend/internal/config"
	"github.com/KrzysztofStaron/graph-llm-backend/internal/models"
	"github.com/KrzysztofStaron/graph-llm-backend/internal/translator"
)

const (
	contentTypeJSON = "application/json"
	userAgent       = "graph-llm-backend/0.1"

	defaultDialTimeout     = 10 * time.Second
	defaultKeepAlive       = 30 * time.Second
	defaultIdleConnTimeout = 90 * time.Second

	maxErrorBodyBytes = 64 * 1024
	maxImageBodyBytes = 32 << 20
)

// ErrMissingAPIKey indicates no upstream credential was configured. It is
// classified as a configuration error at the relay's error site.
var ErrMissingAPIKey = errors.New("missing OpenRouter API key")

// Stream is an open upstream token stream. Recv blocks on network I/O and
// returns io.EOF once the stream is exhausted.
type Stream interface {
	Recv() (*models.StreamChunk, error)
	Close() error
}

// Opener opens streaming chat completions against the upstream LLM peer.
type Opener interface {
	OpenChatStream(ctx context.Context, req ChatStreamRequest) (Stream, error)
}

// ImageCompleter issues non-streaming multimodal completions and returns
// the first image reference of the response.
type ImageCompleter interface {
	CreateImageCompletion(ctx context.Context, req ImageRequest) (string, error)
}

// ChatStreamRequest describes one streaming chat completion.
type ChatStreamRequest struct {
	Model    string
	Messages []models.Message
	Provider *models.ProviderPreferences
	Plugins  []models.Plugin
}

// ImageRequest describes one non-streaming image completion.
type ImageRequest struct {
	Model    string
	Messages []models.Message
}

// Client talks to an OpenRouter-style chat-completions API.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	chatURL string
}

// New constructs a client for the configured upstream peer. The underlying
// HTTP client carries no global timeout: streams are unbounded and the
// secondary image call is bounded by its caller's context.
func New(cfg config.OpenRouterConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client:  newHTTPClient(),
		chatURL: baseURL + "/chat/completions",
	}
}

// OpenChatStream starts a streaming completion carrying the tool
// definitions and any provider/plugin directives.
func (c *Client) OpenChatStream(ctx context.Context, req ChatStreamRequest) (Stream, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return nil, ErrMissingAPIKey
	}

	payload := chatPayload{
		Model:         req.Model,
		Messages:      translator.Denormalize(req.Messages),
		Stream:        true,
		Tools:         toolDefinitions,
		ToolChoice:    "auto",
		Provider:      req.Provider,
		Plugins:       req.Plugins,
		StreamOptions: &streamOptions{IncludeUsage: true},
	}

	httpReq, err := c.newRequest(ctx, payload)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("open chat stream: %w", err)
	}

	if httpResp.StatusCode >= 400 {
		defer httpResp.Body.Close()
		return nil, parseAPIError(httpResp)
	}

	return newChatStream(httpResp.Body), nil
}

// CreateImageCompletion requests a multimodal (image+text) completion and
// extracts the first image URL. An empty return value means the response
// carried no image; the caller decides whether that warrants a retry.
func (c *Client) CreateImageCompletion(ctx context.Context, req ImageRequest) (string, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return "", ErrMissingAPIKey
	}

	payload := chatPayload{
		Model:      req.Model,
		Messages:   translator.Denormalize(req.Messages),
		Modalities: []string{"image", "text"},
	}

	httpReq, err := c.newRequest(ctx, payload)
	if err != nil {
		return "", err
	}

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("image completion request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 {
		return "", parseAPIError(httpResp)
	}

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxImageBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read image completion body: %w", err)
	}

	return gjson.GetBytes(body, "choices.0.message.images.0.image_url.url").String(), nil
}

func (c *Client) newRequest(ctx context.Context, payload chatPayload) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.chatURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("construct request: %w", err)
	}

	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	return req, nil
}

type chatPayload struct {
	Model         string                      `json:"model"`
	Messages      []translator.WireMessage    `json:"messages"`
	Stream        bool                        `json:"stream,omitempty"`
	Tools         []toolDefinition            `json:"tools,omitempty"`
	ToolChoice    string                      `json:"tool_choice,omitempty"`
	Provider      *models.ProviderPreferences `json:"provider,omitempty"`
	Plugins       []models.Plugin             `json:"plugins,omitempty"`
	Modalities    []string                    `json:"modalities,omitempty"`
	StreamOptions *streamOptions              `json:"stream_options,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type apiErrorResponse struct {
	Error apiErrorObject `json:"error"`
}

type apiErrorObject struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

func parseAPIError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if err != nil {
		return fmt.Errorf("upstream error status %d and failed to read body: %w", resp.StatusCode, err)
	}

	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return fmt.Errorf("upstream error: %s", apiErr.Error.Message)
	}

	return fmt.Errorf("upstream error status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

func newHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Transport: transport,
	}
}
