package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/KrzysztofStaron/graph-llm-backend/internal/models"
)

func TestAssemblerAppendsArgumentsInArrivalOrder(t *testing.T) {
	asm := newAssembler()

	asm.Ingest([]models.ToolCallDelta{
		{Index: 0, ID: "call_1", Function: models.FunctionDelta{Name: "generate_image", Arguments: `{"pro`}},
	})
	asm.Ingest([]models.ToolCallDelta{
		{Index: 0, Function: models.FunctionDelta{Arguments: `mpt":"a`}},
	})
	asm.Ingest([]models.ToolCallDelta{
		{Index: 0, Function: models.FunctionDelta{Arguments: ` cat"}`}},
	})

	calls := asm.Finalize()
	assert.Len(t, calls, 1)
	assert.Equal(t, "call_1", calls[0].ID)
	assert.Equal(t, "generate_image", calls[0].Name)
	assert.Equal(t, `{"prompt":"a cat"}`, calls[0].Arguments)
}

func TestAssemblerNameSurvivesEmptyContinuations(t *testing.T) {
	asm := newAssembler()

	asm.Ingest([]models.ToolCallDelta{
		{Index: 0, Function: models.FunctionDelta{Name: "youtube_video", Arguments: `{"video`}},
	})
	// Continuation fragments omit the name; it must not be cleared.
	asm.Ingest([]models.ToolCallDelta{
		{Index: 0, Function: models.FunctionDelta{Arguments: `Id":"abc"}`}},
	})

	calls := asm.Finalize()
	assert.Len(t, calls, 1)
	assert.Equal(t, "youtube_video", calls[0].Name)
	assert.Equal(t, `{"videoId":"abc"}`, calls[0].Arguments)
}

func TestAssemblerIDFilledLate(t *testing.T) {
	asm := newAssembler()

	asm.Ingest([]models.ToolCallDelta{
		{Index: 0, Function: models.FunctionDelta{Name: "generate_image"}},
	})
	asm.Ingest([]models.ToolCallDelta{
		{Index: 0, ID: "call_late", Function: models.FunctionDelta{Arguments: `{}`}},
	})

	calls := asm.Finalize()
	assert.Len(t, calls, 1)
	assert.Equal(t, "call_late", calls[0].ID)
}

func TestAssemblerMultipleIndexesSortedAscending(t *testing.T) {
	asm := newAssembler()

	asm.Ingest([]models.ToolCallDelta{
		{Index: 2, ID: "c", Function: models.FunctionDelta{Name: "youtube_video"}},
		{Index: 0, ID: "a", Function: models.FunctionDelta{Name: "generate_image"}},
	})
	asm.Ingest([]models.ToolCallDelta{
		{Index: 1, ID: "b", Function: models.FunctionDelta{Name: "generate_image"}},
		{Index: 2, Function: models.FunctionDelta{Arguments: `{"videoId":"x"}`}},
	})

	calls := asm.Finalize()
	assert.Len(t, calls, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{calls[0].Index, calls[1].Index, calls[2].Index})
	assert.Equal(t, "a", calls[0].ID)
	assert.Equal(t, "b", calls[1].ID)
	assert.Equal(t, `{"videoId":"x"}`, calls[2].Arguments)
}

func TestAssemblerEmptyFinalize(t *testing.T) {
	asm := newAssembler()
	assert.Empty(t, asm.Finalize())
}
