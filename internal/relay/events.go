package relay

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/KrzysztofStaron/graph-llm-backend/internal/models"
)

// eventWriter frames SSE payloads onto the client transport. A terminal
// guard makes emitting more than one closing frame impossible: once
// writeDone or writeTerminalError has run, every further write is a no-op.
type eventWriter struct {
	w          io.Writer
	flusher    http.Flusher
	terminated bool
}

func newEventWriter(w io.Writer) *eventWriter {
	flusher, _ := w.(http.Flusher)
	return &eventWriter{w: w, flusher: flusher}
}

// writeFrame emits one non-terminal data frame.
func (ew *eventWriter) writeFrame(payload any) error {
	if ew.terminated {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal SSE payload: %w", err)
	}
	return ew.write(data)
}

// writeDone emits the [DONE] marker and seals the stream.
func (ew *eventWriter) writeDone() error {
	if ew.terminated {
		return nil
	}
	ew.terminated = true
	return ew.write([]byte(models.DoneMarker))
}

// writeTerminalError emits a closing error frame and seals the stream. No
// [DONE] marker follows an error frame.
func (ew *eventWriter) writeTerminalError(message string) error {
	if ew.terminated {
		return nil
	}
	data, err := json.Marshal(models.ErrorFrame{Error: message})
	if err != nil {
		return fmt.Errorf("marshal SSE error payload: %w", err)
	}
	ew.terminated = true
	return ew.write(data)
}

func (ew *eventWriter) write(data []byte) error {
	if _, err := fmt.Fprintf(ew.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write SSE data: %w", err)
	}
	if ew.flusher != nil {
		ew.flusher.Flush()
	}
	return nil
}
