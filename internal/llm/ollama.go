package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Ollama calls a local Ollama server's chat endpoint with streaming off.
type Ollama struct {
	cfg    ProviderConfig
	url    string
	client *http.Client
}

// NewOllama creates an Ollama provider.
func NewOllama(cfg *ProviderConfig) *Ollama {
	return &Ollama{
		cfg:    *cfg,
		url:    endpoint(cfg.BaseURL, "/api/chat"),
		client: newHTTPClient(cfg),
	}
}

type ollamaChatResponse struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

func (p *Ollama) Complete(ctx context.Context, req Request) (string, error) {
	messages := make([]map[string]string, 0, 2)
	if req.System != "" {
		messages = append(messages, map[string]string{"role": "system", "content": req.System})
	}
	messages = append(messages, map[string]string{"role": "user", "content": req.Prompt})

	body := map[string]any{
		"model":    p.cfg.Model,
		"messages": messages,
		"stream":   false,
		"options": map[string]any{
			"temperature": p.cfg.Temperature,
			"num_predict": p.cfg.MaxTokens,
		},
	}
	if req.JSON {
		body["format"] = "json"
	}

	raw, err := postJSON(ctx, p.client, ProviderOllama, p.url, nil, body)
	if err != nil {
		return "", err
	}

	var resp ollamaChatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("unmarshaling response: %w", err)
	}

	content := strings.TrimSpace(resp.Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}
