package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type ollamaGenerateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// OllamaProvider implements Provider against a local Ollama instance. Ollama's
// generate endpoint takes a single prompt, so the conversation is flattened
// with role prefixes.
type OllamaProvider struct {
	baseURL string
	model   string
	client  *http.Client
}

func NewOllamaProvider(baseURL, model string) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3"
	}
	return &OllamaProvider{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 300 * time.Second},
	}
}

func (p *OllamaProvider) Name() string {
	return "ollama-" + p.model
}

func (p *OllamaProvider) Generate(ctx context.Context, messages []Message, _ int, temperature float64) (string, error) {
	var prompt strings.Builder
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			prompt.WriteString(msg.Content)
			prompt.WriteString("\n\n")
		case RoleAssistant:
			prompt.WriteString("Assistant: ")
			prompt.WriteString(msg.Content)
			prompt.WriteString("\n\n")
		default:
			prompt.WriteString(msg.Content)
			prompt.WriteString("\n\n")
		}
	}

	request := ollamaGenerateRequest{
		Model:  p.model,
		Prompt: strings.TrimSpace(prompt.String()),
		Stream: false,
		Options: map[string]interface{}{
			"temperature": temperature,
			"top_p":       0.9,
		},
	}
	body, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to encode generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama API call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama API returned status %d", resp.StatusCode)
	}

	var parsed ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode ollama response: %w", err)
	}
	return parsed.Response, nil
}
