package telemetry

import (
	"log/slog"
	"sync"

	"github.com/KrzysztofStaron/graph-llm-backend/internal/models"
)

// Outcome is the per-request stream record, created empty at relay start,
// mutated throughout and emitted exactly once at the relay's single exit
// point. It is never persisted beyond the sink.
type Outcome struct {
	ClientID        string
	Model           string
	ResponseLength  int
	ReasoningLength int
	Chunks          int
	FinishReason    *string
	ToolCalls       int
	Usage           *models.Usage
	Success         bool
	Empty           bool
	Error           string
}

// Fail marks the outcome as failed with the given description.
func (o *Outcome) Fail(message string) {
	o.Success = false
	o.Error = message
}

// Recorder accepts outcome records. Implementations must not block the
// caller beyond enqueueing and must swallow their own failures.
type Recorder interface {
	Record(outcome Outcome)
}

// AsyncRecorder drains outcomes through a buffered channel into the
// structured log. Enqueueing never blocks; records are dropped when the
// buffer is full.
type AsyncRecorder struct {
	ch     chan Outcome
	done   chan struct{}
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewAsyncRecorder starts the drain goroutine.
func NewAsyncRecorder(bufferSize int, logger *slog.Logger) *AsyncRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &AsyncRecorder{
		ch:     make(chan Outcome, bufferSize),
		done:   make(chan struct{}),
		logger: logger,
	}
	go r.drain()
	return r
}

// Record enqueues the outcome without blocking. Records arriving during
// or after Close are dropped; in-flight SSE handlers may outlive server
// shutdown, so a late Record must never panic the process.
func (r *AsyncRecorder) Record(outcome Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		r.logger.Warn("telemetry recorder closed, outcome dropped", "client_id", outcome.ClientID)
		return
	}

	select {
	case r.ch <- outcome:
	default:
		r.logger.Warn("telemetry buffer full, outcome dropped", "client_id", outcome.ClientID)
	}
}

// Close stops accepting records and waits for the buffer to drain. It is
// idempotent.
func (r *AsyncRecorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.done
		return
	}
	r.closed = true
	close(r.ch)
	r.mu.Unlock()

	<-r.done
}

func (r *AsyncRecorder) drain() {
	defer close(r.done)
	for outcome := range r.ch {
		attrs := []any{
			"client_id", outcome.ClientID,
			"model", outcome.Model,
			"response_length", outcome.ResponseLength,
			"reasoning_length", outcome.ReasoningLength,
			"chunks", outcome.Chunks,
			"tool_calls", outcome.ToolCalls,
			"success", outcome.Success,
		}
		if outcome.FinishReason != nil {
			attrs = append(attrs, "finish_reason", *outcome.FinishReason)
		}
		if outcome.Usage != nil {
			attrs = append(attrs, "prompt_tokens", outcome.Usage.PromptTokens,
				"completion_tokens", outcome.Usage.CompletionTokens,
				"total_tokens", outcome.Usage.TotalTokens)
		}
		if outcome.Empty {
			attrs = append(attrs, "empty", true)
		}
		if outcome.Error != "" {
			attrs = append(attrs, "error", outcome.Error)
		}
		r.logger.Info("stream outcome", attrs...)
	}
}
