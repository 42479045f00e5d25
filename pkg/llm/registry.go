package llm

import (
	"fmt"

	"github.com/cortexkit/cortex/pkg/config"
	"github.com/cortexkit/cortex/pkg/registry"
)

// Registry holds named providers.
type Registry struct {
	*registry.Named[Provider]
}

func NewRegistry() *Registry {
	return &Registry{
		Named: registry.New[Provider](),
	}
}

func (r *Registry) RegisterProvider(name string, provider Provider) error {
	if name == "" {
		return fmt.Errorf("provider name cannot be empty")
	}
	if provider == nil {
		return fmt.Errorf("provider cannot be nil")
	}
	return r.Register(name, provider)
}

func (r *Registry) GetProvider(name string) (Provider, error) {
	provider, exists := r.Get(name)
	if !exists {
		return nil, fmt.Errorf("LLM provider '%s' not found", name)
	}
	return provider, nil
}

// New builds a provider from configuration.
func New(cfg *config.LLMConfig) (Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("LLM config cannot be nil")
	}

	switch cfg.Provider {
	case config.LLMProviderGemini:
		return NewGeminiProvider(cfg)
	case config.LLMProviderOllama:
		return NewOllamaProvider(cfg)
	case config.LLMProviderPlugin:
		return NewPluginProvider(cfg)
	case config.LLMProviderMock:
		return NewMockProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s (supported: gemini, ollama, plugin, mock)", cfg.Provider)
	}
}
