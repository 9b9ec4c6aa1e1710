package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/KrzysztofStaron/graph-llm-backend/internal/models"
	"github.com/KrzysztofStaron/graph-llm-backend/internal/upstream"
)

const (
	imageGenTimeout  = 60 * time.Second
	imageGenAttempts = 3
	imageGenBackoff  = time.Second
)

const imageSystemInstruction = "You are an image generation assistant. " +
	"Produce exactly one image that matches the most recent request, grounded in the conversation so far. " +
	"Respond with the image only."

type invocationKind int

const (
	kindUnknown invocationKind = iota
	kindImageGeneration
	kindVideoEmbed
)

type imageArgs struct {
	Prompt string `json:"prompt"`
	Style  string `json:"style,omitempty"`
}

type videoArgs struct {
	VideoID     string `json:"videoId"`
	Explanation string `json:"explanation,omitempty"`
}

// invocation is the closed tagged variant a resolved tool call parses into.
type invocation struct {
	kind  invocationKind
	image imageArgs
	video videoArgs
	err   error
}

func parseInvocation(call models.ToolCall) invocation {
	switch call.Name {
	case models.ToolGenerateImage:
		var args imageArgs
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return invocation{kind: kindImageGeneration, err: fmt.Errorf("parse arguments: %w", err)}
		}
		if strings.TrimSpace(args.Prompt) == "" {
			return invocation{kind: kindImageGeneration, err: errors.New("prompt is required")}
		}
		return invocation{kind: kindImageGeneration, image: args}
	case models.ToolYouTubeVideo:
		var args videoArgs
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return invocation{kind: kindVideoEmbed, err: fmt.Errorf("parse arguments: %w", err)}
		}
		if strings.TrimSpace(args.VideoID) == "" {
			return invocation{kind: kindVideoEmbed, err: errors.New("videoId is required")}
		}
		return invocation{kind: kindVideoEmbed, video: args}
	default:
		return invocation{kind: kindUnknown}
	}
}

// dispatcher executes resolved tool calls. It holds a private copy of the
// normalized conversation for the image-generation path; the caller's
// message list is never touched.
type dispatcher struct {
	images       upstream.ImageCompleter
	model        string
	conversation []models.Message
	logger       *slog.Logger

	timeout time.Duration
	backoff time.Duration
}

func newDispatcher(images upstream.ImageCompleter, model string, conversation []models.Message, logger *slog.Logger) *dispatcher {
	return &dispatcher{
		images:       images,
		model:        model,
		conversation: conversation,
		logger:       logger,
		timeout:      imageGenTimeout,
		backoff:      imageGenBackoff,
	}
}

// Dispatch translates one resolved call into an output frame. Unrecognized
// tool names yield no frame. Every failure is isolated to the call: it
// becomes an inline error frame, never a relay-fatal error.
func (d *dispatcher) Dispatch(ctx context.Context, call models.ToolCall) (any, bool) {
	inv := parseInvocation(call)

	if inv.kind == kindUnknown {
		d.logger.Warn("ignoring unrecognized tool call", "tool", call.Name, "id", call.ID)
		return nil, false
	}

	if inv.err != nil {
		d.logger.Warn("tool call rejected", "tool", call.Name, "error", inv.err)
		return models.ErrorFrame{Error: fmt.Sprintf("tool %s failed: %v", call.Name, inv.err)}, true
	}

	switch inv.kind {
	case kindImageGeneration:
		return d.generateImage(ctx, inv.image), true
	case kindVideoEmbed:
		return models.YouTubeFrame{
			Type:        models.FrameTypeYouTube,
			VideoID:     inv.video.VideoID,
			Explanation: inv.video.Explanation,
		}, true
	}
	return nil, false
}

// generateImage issues the secondary upstream call. A structurally invalid
// response is retried up to two more times with a fixed backoff; a timeout
// is terminal for the call.
func (d *dispatcher) generateImage(ctx context.Context, args imageArgs) any {
	messages := d.imageConversation(args)

	var lastErr error
	for attempt := 1; attempt <= imageGenAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(d.backoff):
			case <-ctx.Done():
				return models.ErrorFrame{Error: "image generation canceled"}
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, d.timeout)
		url, err := d.images.CreateImageCompletion(callCtx, upstream.ImageRequest{
			Model:    d.model,
			Messages: messages,
		})
		cancel()

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				d.logger.Warn("image generation timed out", "attempt", attempt)
				return models.ErrorFrame{Error: "image generation timed out"}
			}
			if ctx.Err() != nil {
				return models.ErrorFrame{Error: "image generation canceled"}
			}
			lastErr = err
			d.logger.Warn("image generation attempt failed", "attempt", attempt, "error", err)
			continue
		}

		if validImageURL(url) {
			return models.ImageFrame{Type: models.FrameTypeImage, Content: url, Prompt: args.Prompt}
		}

		lastErr = fmt.Errorf("provider returned no usable image")
		d.logger.Warn("image generation returned invalid result", "attempt", attempt, "url_prefix", truncate(url, 32))
	}

	return models.ErrorFrame{Error: fmt.Sprintf("image generation failed: %v", lastErr)}
}

// imageConversation builds the private working copy for the secondary
// request: system instruction first, the conversation unchanged, and the
// extracted prompt as a trailing user turn.
func (d *dispatcher) imageConversation(args imageArgs) []models.Message {
	messages := make([]models.Message, 0, len(d.conversation)+2)
	messages = append(messages, models.Message{Role: models.RoleSystem, Content: imageSystemInstruction})
	messages = append(messages, d.conversation...)

	prompt := args.Prompt
	if args.Style != "" {
		prompt = fmt.Sprintf("%s (style: %s)", prompt, args.Style)
	}
	messages = append(messages, models.Message{Role: models.RoleUser, Content: "Generate an image: " + prompt})
	return messages
}

// validImageURL accepts only recognized result schemes; anything else is
// treated as an invalid provider response.
func validImageURL(url string) bool {
	return strings.HasPrefix(url, "data:image/") ||
		strings.HasPrefix(url, "http://") ||
		strings.HasPrefix(url, "https://")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
