package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/KrzysztofStaron/graph-llm-backend/internal/config"
	"github.com/KrzysztofStaron/graph-llm-backend/internal/models"
	"github.com/KrzysztofStaron/graph-llm-backend/internal/telemetry"
	"github.com/KrzysztofStaron/graph-llm-backend/internal/translator"
	"github.com/KrzysztofStaron/graph-llm-backend/internal/upstream"
)

const messagePreviewLimit = 80

// Relay owns the SSE response lifecycle for one chat request: header
// emission, the chunk forwarding loop, tool dispatch and exactly-once
// terminal framing. It is the single recovery point for the request;
// no error escapes past Serve.
type Relay struct {
	opener     upstream.Opener
	images     upstream.ImageCompleter
	recorder   telemetry.Recorder
	model      string
	imageModel string
	logger     *slog.Logger
}

// New constructs a relay with the configured default models.
func New(opener upstream.Opener, images upstream.ImageCompleter, recorder telemetry.Recorder, cfg config.OpenRouterConfig, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		opener:     opener,
		images:     images,
		recorder:   recorder,
		model:      cfg.Model,
		imageModel: cfg.ImageModel,
		logger:     logger,
	}
}

// Serve streams the chat completion to the client. Transport headers are
// written unconditionally before anything else; afterwards this method
// funnels every outcome, success or failure, through a single exit that
// emits one terminal frame and flushes one outcome record.
func (r *Relay) Serve(ctx context.Context, w http.ResponseWriter, req translator.ChatRequest, clientID string) {
	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	model := req.Model
	if model == "" {
		model = r.model
	}
	imageModel := req.ImageModel
	if imageModel == "" {
		imageModel = r.imageModel
	}

	outcome := telemetry.Outcome{ClientID: clientID, Model: model}
	writer := newEventWriter(w)

	err := r.run(ctx, writer, req, model, imageModel, &outcome)
	switch {
	case err == nil:
		outcome.Success = true
		if err := writer.writeDone(); err != nil {
			r.logger.Warn("failed to write terminal frame", "client_id", clientID, "error", err)
		}
	case ctx.Err() != nil:
		// Client went away: write nothing further, still record the outcome.
		outcome.Fail("client disconnected")
		r.logger.Info("client disconnected mid-stream",
			"client_id", clientID, "model", model, "chunks", outcome.Chunks)
	default:
		message := rewriteUpstreamError(err)
		outcome.Fail(message)
		r.logger.Error("relay failed",
			"client_id", clientID,
			"model", model,
			"preview", messagePreview(req.Messages),
			"error", err)
		if werr := writer.writeTerminalError(message); werr != nil {
			r.logger.Warn("failed to write terminal error frame", "client_id", clientID, "error", werr)
		}
	}

	r.recorder.Record(outcome)
}

// run consumes the upstream stream and forwards frames. It has exactly one
// error return path; classification and terminal framing happen in Serve.
func (r *Relay) run(ctx context.Context, writer *eventWriter, req translator.ChatRequest, model, imageModel string, outcome *telemetry.Outcome) error {
	conversation := translator.Normalize(req.Messages)

	stream, err := r.opener.OpenChatStream(ctx, upstream.ChatStreamRequest{
		Model:    model,
		Messages: conversation,
		Provider: req.Provider,
		Plugins:  req.Plugins,
	})
	if err != nil {
		return err
	}
	defer stream.Close()

	asm := newAssembler()

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		outcome.Chunks++
		if chunk.Usage != nil {
			// Providers report cumulative or final-only usage; last write wins.
			usage := *chunk.Usage
			outcome.Usage = &usage
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		choice := chunk.Choices[0]
		if choice.FinishReason != nil {
			outcome.FinishReason = choice.FinishReason
		}
		if choice.Delta.Reasoning != "" {
			outcome.ReasoningLength += len(choice.Delta.Reasoning)
			if err := writer.writeFrame(models.ReasoningFrame{Reasoning: choice.Delta.Reasoning}); err != nil {
				return err
			}
		}
		if choice.Delta.Content != "" {
			outcome.ResponseLength += len(choice.Delta.Content)
			if err := writer.writeFrame(models.ContentFrame{Content: choice.Delta.Content}); err != nil {
				return err
			}
		}
		if len(choice.Delta.ToolCalls) > 0 {
			asm.Ingest(choice.Delta.ToolCalls)
		}
	}

	// The stream ending does not mean the client is still there; nothing
	// may be dispatched or written once the context is gone.
	if err := ctx.Err(); err != nil {
		return err
	}

	calls := asm.Finalize()
	outcome.ToolCalls = len(calls)

	if len(calls) > 0 {
		d := newDispatcher(r.images, imageModel, conversation, r.logger)
		for _, call := range calls {
			if err := ctx.Err(); err != nil {
				return err
			}
			frame, ok := d.Dispatch(ctx, call)
			if !ok {
				continue
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := writer.writeFrame(frame); err != nil {
				return err
			}
		}
	}

	if outcome.ResponseLength == 0 && outcome.ReasoningLength == 0 && outcome.ToolCalls == 0 {
		outcome.Empty = true
		r.logger.Warn("stream produced no output", "client_id", outcome.ClientID, "model", model)
	}

	return nil
}

func messagePreview(messages []translator.WireMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != models.RoleUser {
			continue
		}
		text := messages[i].Content
		if text == "" {
			for _, part := range messages[i].Parts {
				if part.Type == models.PartText {
					text = part.Text
					break
				}
			}
		}
		if len(text) > messagePreviewLimit {
			return text[:messagePreviewLimit] + "..."
		}
		return text
	}
	return ""
}
