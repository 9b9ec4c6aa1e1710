package translator

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/KrzysztofStaron/graph-llm-backend/internal/models"
)

var (
	errEmptyMessages  = errors.New("at least one message is required")
	errInvalidRole    = errors.New("invalid role")
	errInvalidContent = errors.New("invalid message content")
)

var allowedRoles = map[string]struct{}{
	models.RoleSystem:    {},
	models.RoleUser:      {},
	models.RoleAssistant: {},
}

// ChatRequest models the client-facing chat payload.
type ChatRequest struct {
	Messages   []WireMessage               `json:"messages"`
	Model      string                      `json:"model,omitempty"`
	ImageModel string                      `json:"imageModel,omitempty"`
	Provider   *models.ProviderPreferences `json:"provider,omitempty"`
	Plugins    []models.Plugin             `json:"plugins,omitempty"`
}

// Validate performs structural checks on the request.
func (r ChatRequest) Validate() error {
	if len(r.Messages) == 0 {
		return errEmptyMessages
	}
	for i, msg := range r.Messages {
		if err := msg.validate(); err != nil {
			return fmt.Errorf("message[%d]: %w", i, err)
		}
	}
	return nil
}

// WireMessage is a conversation message in the client/provider wire shape:
// content is either a plain string or an array of tagged parts whose image
// parts nest the URL under the snake-style "image_url" key.
type WireMessage struct {
	Role    string
	Content string
	Parts   []WirePart
}

// WirePart is one element of an array-form message content.
type WirePart struct {
	Type     string
	Text     string
	ImageURL *models.ImageRef

	// raw preserves unrecognized parts byte-for-byte.
	raw json.RawMessage
}

// UnmarshalJSON supports string and array-of-parts content forms.
func (m *WireMessage) UnmarshalJSON(data []byte) error {
	type alias struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	}

	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}

	m.Role = strings.TrimSpace(raw.Role)
	m.Content = ""
	m.Parts = nil

	if len(raw.Content) == 0 || string(raw.Content) == "null" {
		return fmt.Errorf("%w: missing content", errInvalidContent)
	}

	var text string
	if err := json.Unmarshal(raw.Content, &text); err == nil {
		m.Content = text
		return nil
	}

	var parts []WirePart
	if err := json.Unmarshal(raw.Content, &parts); err != nil {
		return fmt.Errorf("%w: unsupported content structure", errInvalidContent)
	}
	m.Parts = parts
	return nil
}

// MarshalJSON emits the wire shape, preferring the array form when parts
// are present.
func (m WireMessage) MarshalJSON() ([]byte, error) {
	out := struct {
		Role    string `json:"role"`
		Content any    `json:"content"`
	}{Role: m.Role}

	if m.Parts != nil {
		out.Content = m.Parts
	} else {
		out.Content = m.Content
	}
	return json.Marshal(out)
}

// UnmarshalJSON keeps unrecognized part payloads intact for re-emission.
func (p *WirePart) UnmarshalJSON(data []byte) error {
	type alias struct {
		Type     string           `json:"type"`
		Text     string           `json:"text"`
		ImageURL *models.ImageRef `json:"image_url"`
	}

	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode content part: %w", err)
	}

	p.Type = raw.Type
	p.Text = raw.Text
	p.ImageURL = raw.ImageURL
	p.raw = nil

	if p.Type != models.PartText && p.Type != models.PartImageURL {
		p.raw = append(json.RawMessage(nil), data...)
	}
	return nil
}

// MarshalJSON re-emits unrecognized parts byte-for-byte.
func (p WirePart) MarshalJSON() ([]byte, error) {
	if p.raw != nil {
		return p.raw, nil
	}
	out := struct {
		Type     string           `json:"type"`
		Text     string           `json:"text,omitempty"`
		ImageURL *models.ImageRef `json:"image_url,omitempty"`
	}{Type: p.Type, Text: p.Text, ImageURL: p.ImageURL}
	return json.Marshal(out)
}

func (m WireMessage) validate() error {
	if _, ok := allowedRoles[m.Role]; !ok {
		return fmt.Errorf("%w: %q", errInvalidRole, m.Role)
	}
	if m.Role == models.RoleSystem && m.Parts != nil {
		return fmt.Errorf("%w: system messages must carry plain text", errInvalidContent)
	}
	return nil
}

// Normalize converts wire messages into the internal representation,
// renaming nested image keys from the wire's snake style to the internal
// camel style. It is a pure transform; unrecognized part tags pass through
// unchanged.
func Normalize(input []WireMessage) []models.Message {
	out := make([]models.Message, 0, len(input))
	for _, msg := range input {
		internal := models.Message{Role: msg.Role, Content: msg.Content}
		if msg.Parts != nil {
			internal.Parts = make([]models.ContentPart, 0, len(msg.Parts))
			for _, part := range msg.Parts {
				internal.Parts = append(internal.Parts, normalizePart(part))
			}
		}
		out = append(out, internal)
	}
	return out
}

func normalizePart(part WirePart) models.ContentPart {
	switch part.Type {
	case models.PartText:
		return models.ContentPart{Type: models.PartText, Text: part.Text}
	case models.PartImageURL:
		return models.ContentPart{Type: models.PartImageURL, ImageURL: cloneImageRef(part.ImageURL)}
	default:
		slog.Debug("passing through unrecognized content part", "type", part.Type)
		return models.ContentPart{Type: part.Type, Text: part.Text, ImageURL: cloneImageRef(part.ImageURL), Raw: part.raw}
	}
}

// Denormalize converts internal messages back to the wire shape consumed by
// upstream peers, inverting Normalize.
func Denormalize(internal []models.Message) []WireMessage {
	out := make([]WireMessage, 0, len(internal))
	for _, msg := range internal {
		wire := WireMessage{Role: msg.Role, Content: msg.Content}
		if msg.Parts != nil {
			wire.Parts = make([]WirePart, 0, len(msg.Parts))
			for _, part := range msg.Parts {
				wire.Parts = append(wire.Parts, denormalizePart(part))
			}
		}
		out = append(out, wire)
	}
	return out
}

func denormalizePart(part models.ContentPart) WirePart {
	switch part.Type {
	case models.PartText:
		return WirePart{Type: models.PartText, Text: part.Text}
	case models.PartImageURL:
		return WirePart{Type: models.PartImageURL, ImageURL: cloneImageRef(part.ImageURL)}
	default:
		return WirePart{Type: part.Type, Text: part.Text, ImageURL: cloneImageRef(part.ImageURL), raw: part.Raw}
	}
}

func cloneImageRef(ref *models.ImageRef) *models.ImageRef {
	if ref == nil {
		return nil
	}
	clone := *ref
	return &clone
}
