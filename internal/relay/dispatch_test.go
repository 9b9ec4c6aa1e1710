package relay

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KrzysztofStaron/graph-llm-backend/internal/models"
	"github.com/KrzysztofStaron/graph-llm-backend/internal/upstream"
)

type fakeImages struct {
	urls     []string
	errs     []error
	calls    int
	requests []upstream.ImageRequest
}

func (f *fakeImages) CreateImageCompletion(ctx context.Context, req upstream.ImageRequest) (string, error) {
	f.requests = append(f.requests, req)
	i := f.calls
	f.calls++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	var url string
	if i < len(f.urls) {
		url = f.urls[i]
	}
	return url, err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDispatcher(images upstream.ImageCompleter, conversation []models.Message) *dispatcher {
	d := newDispatcher(images, "test-image-model", conversation, discardLogger())
	d.backoff = time.Millisecond
	return d
}

func TestDispatchImageFirstAttemptSucceeds(t *testing.T) {
	images := &fakeImages{urls: []string{"https://cdn.example.com/cat.png"}}
	d := testDispatcher(images, nil)

	frame, ok := d.Dispatch(context.Background(), models.ToolCall{
		Name:      models.ToolGenerateImage,
		Arguments: `{"prompt":"a cat"}`,
	})

	require.True(t, ok)
	assert.Equal(t, models.ImageFrame{
		Type:    "image",
		Content: "https://cdn.example.com/cat.png",
		Prompt:  "a cat",
	}, frame)
	assert.Equal(t, 1, images.calls)
}

func TestDispatchImageRetryBound(t *testing.T) {
	// Provider keeps returning something that is not an accepted URL.
	images := &fakeImages{urls: []string{"garbage", "garbage", "garbage"}}
	d := testDispatcher(images, nil)

	frame, ok := d.Dispatch(context.Background(), models.ToolCall{
		Name:      models.ToolGenerateImage,
		Arguments: `{"prompt":"a cat"}`,
	})

	require.True(t, ok)
	assert.Equal(t, 3, images.calls)
	errFrame, isErr := frame.(models.ErrorFrame)
	require.True(t, isErr)
	assert.Contains(t, errFrame.Error, "image generation failed")
}

func TestDispatchImageRecoversOnRetry(t *testing.T) {
	images := &fakeImages{urls: []string{"", "data:image/png;base64,abcd"}}
	d := testDispatcher(images, nil)

	frame, ok := d.Dispatch(context.Background(), models.ToolCall{
		Name:      models.ToolGenerateImage,
		Arguments: `{"prompt":"a diagram","style":"diagram"}`,
	})

	require.True(t, ok)
	assert.Equal(t, 2, images.calls)
	imageFrame, isImage := frame.(models.ImageFrame)
	require.True(t, isImage)
	assert.Equal(t, "data:image/png;base64,abcd", imageFrame.Content)
	assert.Equal(t, "a diagram", imageFrame.Prompt)
}

func TestDispatchImageTimeoutIsTerminal(t *testing.T) {
	images := &fakeImages{errs: []error{context.DeadlineExceeded}}
	d := testDispatcher(images, nil)

	frame, ok := d.Dispatch(context.Background(), models.ToolCall{
		Name:      models.ToolGenerateImage,
		Arguments: `{"prompt":"slow"}`,
	})

	require.True(t, ok)
	assert.Equal(t, 1, images.calls, "a timeout must not be retried")
	assert.Equal(t, models.ErrorFrame{Error: "image generation timed out"}, frame)
}

func TestDispatchImageConversationIsPrivateCopy(t *testing.T) {
	conversation := []models.Message{
		{Role: models.RoleSystem, Content: "be helpful"},
		{Role: models.RoleUser, Content: "draw me a cat"},
	}
	images := &fakeImages{urls: []string{"https://cdn.example.com/cat.png"}}
	d := testDispatcher(images, conversation)

	_, ok := d.Dispatch(context.Background(), models.ToolCall{
		Name:      models.ToolGenerateImage,
		Arguments: `{"prompt":"a cat"}`,
	})
	require.True(t, ok)

	require.Len(t, images.requests, 1)
	sent := images.requests[0].Messages
	require.Len(t, sent, 4)
	assert.Equal(t, models.RoleSystem, sent[0].Role)
	assert.Equal(t, conversation[0], sent[1])
	assert.Equal(t, conversation[1], sent[2])
	assert.Equal(t, models.RoleUser, sent[3].Role)
	assert.Contains(t, sent[3].Content, "a cat")

	// The caller's list is untouched.
	assert.Len(t, conversation, 2)
	assert.Equal(t, "be helpful", conversation[0].Content)
}

func TestDispatchVideoEmbed(t *testing.T) {
	d := testDispatcher(&fakeImages{}, nil)

	frame, ok := d.Dispatch(context.Background(), models.ToolCall{
		Name:      models.ToolYouTubeVideo,
		Arguments: `{"videoId":"dQw4w9WgXcQ","explanation":"relevant"}`,
	})

	require.True(t, ok)
	assert.Equal(t, models.YouTubeFrame{
		Type:        "youtube",
		VideoID:     "dQw4w9WgXcQ",
		Explanation: "relevant",
	}, frame)
}

func TestDispatchVideoMissingID(t *testing.T) {
	d := testDispatcher(&fakeImages{}, nil)

	frame, ok := d.Dispatch(context.Background(), models.ToolCall{
		Name:      models.ToolYouTubeVideo,
		Arguments: `{"explanation":"no id"}`,
	})

	require.True(t, ok)
	errFrame, isErr := frame.(models.ErrorFrame)
	require.True(t, isErr)
	assert.Contains(t, errFrame.Error, "videoId is required")
}

func TestDispatchMalformedArguments(t *testing.T) {
	d := testDispatcher(&fakeImages{}, nil)

	frame, ok := d.Dispatch(context.Background(), models.ToolCall{
		Name:      models.ToolGenerateImage,
		Arguments: `{"prompt": unterminated`,
	})

	require.True(t, ok)
	errFrame, isErr := frame.(models.ErrorFrame)
	require.True(t, isErr)
	assert.Contains(t, errFrame.Error, "generate_image")
}

func TestDispatchUnknownToolIgnored(t *testing.T) {
	d := testDispatcher(&fakeImages{}, nil)

	frame, ok := d.Dispatch(context.Background(), models.ToolCall{
		Name:      "search_web",
		Arguments: `{}`,
	})

	assert.False(t, ok)
	assert.Nil(t, frame)
}
