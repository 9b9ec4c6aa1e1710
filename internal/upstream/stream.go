package upstream

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/KrzysztofStaron/graph-llm-backend/internal/models"
)

const (
	scannerInitialBuffer = 64 * 1024
	scannerMaxBuffer     = 1 << 20
)

// chatStream decodes the upstream SSE body one "data:" line at a time.
type chatStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

func newChatStream(body io.ReadCloser) *chatStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, scannerInitialBuffer), scannerMaxBuffer)
	return &chatStream{body: body, scanner: scanner}
}

// Recv returns the next decoded chunk. Comment lines and blank keep-alives
// are skipped; the [DONE] sentinel and body exhaustion both surface as
// io.EOF.
func (s *chatStream) Recv() (*models.StreamChunk, error) {
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if !strings.HasPrefix(line, "data:") {
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == models.DoneMarker {
			return nil, io.EOF
		}

		var chunk models.StreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return nil, fmt.Errorf("decode stream chunk: %w", err)
		}
		return &chunk, nil
	}

	if err := s.scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}
	return nil, io.EOF
}

func (s *chatStream) Close() error {
	return s.body.Close()
}
