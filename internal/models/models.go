package models

import "encoding/json"

// Recognized conversation roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Content part tags.
const (
	PartText     = "text"
	PartImageURL = "image_url"
)

// Tool names advertised to the upstream peer.
const (
	ToolGenerateImage = "generate_image"
	ToolYouTubeVideo  = "youtube_video"
)

// Message represents a single conversational message in the internal schema.
// Content holds plain text; Parts, when non-nil, holds mixed content instead.
type Message struct {
	Role    string        `json:"role"`
	Content string        `json:"content,omitempty"`
	Parts   []ContentPart `json:"parts,omitempty"`
}

// ContentPart is one element of a mixed-content message. Parts tagged with
// neither recognized type carry their original wire bytes in Raw so they can
// be re-emitted untouched.
type ContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *ImageRef       `json:"imageUrl,omitempty"`
	Raw      json.RawMessage `json:"-"`
}

// ImageRef points at an image by URL with an optional detail hint
// (auto, low or high).
type ImageRef struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// ProviderPreferences carries optional upstream routing directives.
type ProviderPreferences struct {
	Sort           string `json:"sort,omitempty"`
	AllowFallbacks *bool  `json:"allow_fallbacks,omitempty"`
}

// Plugin is an opaque upstream plugin directive, forwarded unchanged.
type Plugin map[string]any

// Usage records token accounting information reported by the upstream peer.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StreamChunk is one decoded frame of the upstream chat-completion stream.
type StreamChunk struct {
	ID      string        `json:"id"`
	Choices []ChunkChoice `json:"choices"`
	Usage   *Usage        `json:"usage,omitempty"`
}

// ChunkChoice is a single choice within a stream chunk.
type ChunkChoice struct {
	Index        int        `json:"index"`
	Delta        ChunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

// ChunkDelta holds the incremental payload of one chunk.
type ChunkDelta struct {
	Content   string          `json:"content,omitempty"`
	Reasoning string          `json:"reasoning,omitempty"`
	ToolCalls []ToolCallDelta `json:"tool_calls,omitempty"`
}

// ToolCallDelta is a partial tool invocation fragment. Index identifies the
// call it belongs to within one stream; ID and Function fields may arrive
// empty on continuation fragments.
type ToolCallDelta struct {
	Index    int           `json:"index"`
	ID       string        `json:"id,omitempty"`
	Type     string        `json:"type,omitempty"`
	Function FunctionDelta `json:"function"`
}

// FunctionDelta carries incremental tool name and argument text.
type FunctionDelta struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// ToolCall is a fully assembled tool invocation, produced once the stream
// has been consumed.
type ToolCall struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}
