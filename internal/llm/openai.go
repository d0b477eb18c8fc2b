package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// OpenAI calls an OpenAI-compatible chat completions endpoint
// (OpenAI, Groq, vLLM, and similar).
type OpenAI struct {
	cfg    ProviderConfig
	url    string
	client *http.Client
}

// NewOpenAI creates an OpenAI-compatible provider.
func NewOpenAI(cfg *ProviderConfig) *OpenAI {
	return &OpenAI{
		cfg:    *cfg,
		url:    endpoint(cfg.BaseURL, "/chat/completions"),
		client: newHTTPClient(cfg),
	}
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
}

func (p *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	messages := make([]openAIMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: req.Prompt})

	body := map[string]any{
		"model":       p.cfg.Model,
		"messages":    messages,
		"temperature": p.cfg.Temperature,
		"max_tokens":  p.cfg.MaxTokens,
	}
	if req.JSON {
		body["response_format"] = map[string]string{"type": "json_object"}
	}

	headers := map[string]string{}
	if p.cfg.Token != "" {
		headers["Authorization"] = "Bearer " + p.cfg.Token
	}

	raw, err := postJSON(ctx, p.client, ProviderOpenAI, p.url, headers, body)
	if err != nil {
		return "", err
	}

	var resp openAIResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("unmarshaling response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	if resp.Choices[0].FinishReason == "length" {
		return "", fmt.Errorf("output truncated (finish_reason: length)")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}
