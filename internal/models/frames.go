package models

// SSE frame payloads delivered to the web client. Exactly one of the
// terminal markers (the literal [DONE] string or an ErrorFrame) closes
// every stream; ErrorFrame additionally appears inline for per-tool-call
// failures.

// ContentFrame forwards a text delta.
type ContentFrame struct {
	Content string `json:"content"`
}

// ReasoningFrame forwards a reasoning delta.
type ReasoningFrame struct {
	Reasoning string `json:"reasoning"`
}

// ImageFrame delivers a resolved image-generation result.
type ImageFrame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Prompt  string `json:"prompt"`
}

// YouTubeFrame delivers a video-embed directive.
type YouTubeFrame struct {
	Type        string `json:"type"`
	VideoID     string `json:"videoId"`
	Explanation string `json:"explanation,omitempty"`
}

// ErrorFrame carries a failure description.
type ErrorFrame struct {
	Error string `json:"error"`
}

// Frame type tags.
const (
	FrameTypeImage   = "image"
	FrameTypeYouTube = "youtube"
)

// DoneMarker is the literal terminal payload of a successful stream.
const DoneMarker = "[DONE]"
