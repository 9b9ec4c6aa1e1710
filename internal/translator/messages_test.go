package translator

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeMessages(t *testing.T, raw string) []WireMessage {
	t.Helper()
	var messages []WireMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &messages))
	return messages
}

func TestNormalizeRoundTrip(t *testing.T) {
	raw := `[
		{"role":"system","content":"be concise"},
		{"role":"user","content":[
			{"type":"text","text":"what is in this picture?"},
			{"type":"image_url","image_url":{"url":"https://example.com/a.png","detail":"high"}}
		]},
		{"role":"assistant","content":"a cat"}
	]`

	messages := decodeMessages(t, raw)
	roundTripped := Denormalize(Normalize(messages))
	assert.Equal(t, messages, roundTripped)

	encoded, err := json.Marshal(roundTripped)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(encoded))
}

func TestNormalizeRenamesImageKey(t *testing.T) {
	messages := decodeMessages(t, `[
		{"role":"user","content":[
			{"type":"image_url","image_url":{"url":"https://example.com/a.png"}}
		]}
	]`)

	internal := Normalize(messages)
	require.Len(t, internal, 1)
	require.Len(t, internal[0].Parts, 1)

	part := internal[0].Parts[0]
	require.NotNil(t, part.ImageURL)
	assert.Equal(t, "https://example.com/a.png", part.ImageURL.URL)

	encoded, err := json.Marshal(internal[0].Parts[0])
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"imageUrl"`)
	assert.NotContains(t, string(encoded), `"image_url"`)
}

func TestUnrecognizedPartPassesThroughUnchanged(t *testing.T) {
	raw := `[
		{"role":"user","content":[
			{"type":"audio","sample_rate":44100,"data":"zzzz"}
		]}
	]`

	messages := decodeMessages(t, raw)
	roundTripped := Denormalize(Normalize(messages))

	encoded, err := json.Marshal(roundTripped)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(encoded))
}

func TestValidateRejectsUnknownRole(t *testing.T) {
	req := ChatRequest{Messages: decodeMessages(t, `[{"role":"tool","content":"x"}]`)}
	err := req.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid role")
}

func TestValidateRejectsSystemWithParts(t *testing.T) {
	req := ChatRequest{Messages: decodeMessages(t, `[
		{"role":"system","content":[{"type":"text","text":"x"}]}
	]`)}
	err := req.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plain text")
}

func TestValidateRejectsEmptyConversation(t *testing.T) {
	assert.Error(t, ChatRequest{}.Validate())
}

func TestUnmarshalRejectsMissingContent(t *testing.T) {
	var msg WireMessage
	err := json.Unmarshal([]byte(`{"role":"user"}`), &msg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing content")
}

func TestDetailHintPreserved(t *testing.T) {
	messages := decodeMessages(t, `[
		{"role":"user","content":[
			{"type":"image_url","image_url":{"url":"https://x/a.png","detail":"low"}}
		]}
	]`)

	internal := Normalize(messages)
	require.NotNil(t, internal[0].Parts[0].ImageURL)
	assert.Equal(t, "low", internal[0].Parts[0].ImageURL.Detail)

	wire := Denormalize(internal)
	assert.Equal(t, "low", wire[0].Parts[0].ImageURL.Detail)
}
