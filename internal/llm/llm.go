package llm

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/triagedesk/backend/internal/logger"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of an LLM conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider generates a completion for a conversation. Implementations must
// be safe for concurrent use.
type Provider interface {
	Generate(ctx context.Context, messages []Message, maxTokens int, temperature float64) (string, error)
	Name() string
}

// Gateway is the single entry point for LLM calls. Every call is timed and
// logged with the provider name. Failures surface to the caller unchanged;
// retry policy belongs to the features, not the gateway.
type Gateway struct {
	provider Provider
}

func NewGateway(provider Provider) *Gateway {
	return &Gateway{provider: provider}
}

func (g *Gateway) Provider() string {
	return g.provider.Name()
}

func (g *Gateway) Generate(ctx context.Context, messages []Message, maxTokens int, temperature float64) (string, error) {
	start := time.Now()
	response, err := g.provider.Generate(ctx, messages, maxTokens, temperature)
	duration := time.Since(start)

	if err != nil {
		logger.WithLLM(g.provider.Name(), "generate").WithField("duration_ms", duration.Milliseconds()).
			WithError(err).Error("LLM call failed")
		return "", err
	}

	logger.WithLLM(g.provider.Name(), "generate").WithField("duration_ms", duration.Milliseconds()).
		Info("LLM response generated")
	return response, nil
}

// NewProviderFromEnv selects a provider from LLM_PROVIDER. The deterministic
// mock is the default so the engine runs with no credentials configured.
func NewProviderFromEnv() (Provider, error) {
	switch os.Getenv("LLM_PROVIDER") {
	case "anthropic":
		return NewAnthropicProvider(os.Getenv("ANTHROPIC_API_KEY"), os.Getenv("ANTHROPIC_MODEL"))
	case "openai":
		return NewOpenAIProvider(os.Getenv("OPENAI_API_KEY"), os.Getenv("OPENAI_MODEL"))
	case "ollama":
		return NewOllamaProvider(os.Getenv("OLLAMA_URL"), os.Getenv("OLLAMA_MODEL")), nil
	case "", "mock":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", os.Getenv("LLM_PROVIDER"))
	}
}
