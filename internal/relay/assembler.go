package relay

import (
	"sort"
	"strings"

	"github.com/KrzysztofStaron/graph-llm-backend/internal/models"
)

// assembler reconstructs complete tool invocations from partial deltas
// keyed by the provider-assigned index. It lives for a single relay call
// and never validates argument JSON; a call is only considered resolved
// once the stream has been fully consumed.
type assembler struct {
	entries map[int]*assemblerEntry
}

type assemblerEntry struct {
	id   string
	name string
	args strings.Builder
}

func newAssembler() *assembler {
	return &assembler{entries: make(map[int]*assemblerEntry)}
}

// Ingest folds one chunk's tool-call fragments into the accumulator.
// Argument text is append-only; id and name are only overwritten by
// non-empty values, since continuation fragments routinely omit them.
func (a *assembler) Ingest(deltas []models.ToolCallDelta) {
	for _, delta := range deltas {
		entry, ok := a.entries[delta.Index]
		if !ok {
			entry = &assemblerEntry{}
			a.entries[delta.Index] = entry
		}
		if delta.ID != "" {
			entry.id = delta.ID
		}
		if delta.Function.Name != "" {
			entry.name = delta.Function.Name
		}
		if delta.Function.Arguments != "" {
			entry.args.WriteString(delta.Function.Arguments)
		}
	}
}

// Finalize snapshots all accumulated entries sorted by index. It must be
// called once, after stream consumption.
func (a *assembler) Finalize() []models.ToolCall {
	indexes := make([]int, 0, len(a.entries))
	for index := range a.entries {
		indexes = append(indexes, index)
	}
	sort.Ints(indexes)

	calls := make([]models.ToolCall, 0, len(indexes))
	for _, index := range indexes {
		entry := a.entries[index]
		calls = append(calls, models.ToolCall{
			Index:     index,
			ID:        entry.id,
			Name:      entry.name,
			Arguments: entry.args.String(),
		})
	}
	return calls
}
