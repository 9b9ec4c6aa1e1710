package upstream

import "github.com/KrzysztofStaron/graph-llm-backend/internal/models"

type toolDefinition struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// toolDefinitions advertises the side-effecting tools the relay can
// dispatch. Tool choice stays automatic; the model decides when to call.
var toolDefinitions = []toolDefinition{
	{
		Type: "function",
		Function: toolFunction{
			Name:        models.ToolGenerateImage,
			Description: "Generate an image from a text prompt. Use when the user asks for a picture, diagram, illustration or any visual.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"prompt": map[string]any{
						"type":        "string",
						"description": "A detailed description of the image to generate.",
					},
					"style": map[string]any{
						"type":        "string",
						"enum":        []string{"realistic", "illustration", "diagram"},
						"description": "Optional rendering style.",
					},
				},
				"required": []string{"prompt"},
			},
		},
	},
	{
		Type: "function",
		Function: toolFunction{
			Name:        models.ToolYouTubeVideo,
			Description: "Embed a relevant YouTube video in the answer.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"videoId": map[string]any{
						"type":        "string",
						"description": "The YouTube video identifier.",
					},
					"explanation": map[string]any{
						"type":        "string",
						"description": "Why this video is relevant.",
					},
				},
				"required": []string{"videoId"},
			},
		},
	},
}
