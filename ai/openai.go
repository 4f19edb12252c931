package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// SummarizeActivity turns a batch of per-user pull request statistics into
// a standup-style digest. The model is forced through a single function
// call so the payload always matches the structure the dashboard expects.
func SummarizeActivity(ctx context.Context, apiKey string, job DigestJob) (DigestPayload, error) {
	client := openai.NewClient(option.WithAPIKey(apiKey))

	sys := `You are a dashboard's activity summarizer. Output ONE function call "emit_activity_digest" with JSON matching the provided schema.
Given per-user pull request counts (created/open/closed/merged/reviewed) over a window, produce:
- title: short headline for the period,
- highlights: a few notable bullets (most active user, biggest merge count, quiet repos),
- perUser: one short sentence per user,
- narrative: 2-3 plain sentences for non-technical readers.
Be concise, truthful, and never invent numbers that are not in the payload.`

	jobJSON, _ := json.Marshal(job)

	tool := openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
		Name:        "emit_activity_digest",
		Description: openai.String("Return the final activity digest in the exact structure the app expects."),
		Parameters: openai.FunctionParameters{
			"type": "object",
			"properties": map[string]any{
				"title": map[string]any{"type": "string"},
				"window": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"since": map[string]any{"type": "string"},
						"until": map[string]any{"type": "string"},
					},
					"required": []string{"since", "until"},
				},
				"highlights": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string"},
				},
				"perUser": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"username": map[string]any{"type": "string"},
							"summary":  map[string]any{"type": "string"},
						},
						"required": []string{"username", "summary"},
					},
				},
				"narrative": map[string]any{"type": "string"},
			},
			"required": []string{"title", "window", "narrative"},
		},
	})

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModelGPT4o,
		Seed:  openai.Int(0),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(sys),
			openai.UserMessage(fmt.Sprintf(`{"instruction":"Summarize pull request activity into the exact structure","payload":%s}`, string(jobJSON))),
		},
		Tools: []openai.ChatCompletionToolUnionParam{tool},
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return DigestPayload{}, err
	}
	if len(resp.Choices) == 0 || len(resp.Choices[0].Message.ToolCalls) == 0 {
		return DigestPayload{}, fmt.Errorf("model did not return tool call")
	}

	var out DigestPayload
	for _, tc := range resp.Choices[0].Message.ToolCalls {
		if tc.Function.Name == "emit_activity_digest" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &out); err != nil {
				return DigestPayload{}, fmt.Errorf("bad tool args: %w", err)
			}
			break
		}
	}
	if out.Narrative == "" {
		return DigestPayload{}, fmt.Errorf("empty payload")
	}

	return out, nil
}
