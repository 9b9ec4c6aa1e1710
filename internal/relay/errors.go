package relay

import (
	"errors"
	"strings"

	"github.com/KrzysztofStaron/graph-llm-backend/internal/upstream"
)

// errorOverrides maps known upstream error substrings to user-actionable
// text. Evaluated once, at the relay's single error-handling site.
var errorOverrides = []struct {
	substring string
	message   string
}{
	{
		substring: "User not found",
		message:   "Invalid or missing OpenRouter API key. Check OPENROUTER_API_KEY and restart the server.",
	},
	{
		substring: "flagged",
		message:   "The request was rejected by the upstream content-safety filter. Rephrase the prompt and try again.",
	},
}

func rewriteUpstreamError(err error) string {
	if errors.Is(err, upstream.ErrMissingAPIKey) {
		return "OpenRouter API key is not configured. Set OPENROUTER_API_KEY and restart the server."
	}

	message := err.Error()
	for _, override := range errorOverrides {
		if strings.Contains(message, override.substring) {
			return override.message
		}
	}
	return message
}
