package llm

import (
	"fmt"
	"log/slog"
	"sync"
)

// Factory creates a Completer from a provider config.
type Factory func(cfg *ProviderConfig) (Completer, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{
		ProviderOpenAI:    func(cfg *ProviderConfig) (Completer, error) { return NewOpenAI(cfg), nil },
		ProviderOllama:    func(cfg *ProviderConfig) (Completer, error) { return NewOllama(cfg), nil },
		ProviderAnthropic: func(cfg *ProviderConfig) (Completer, error) { return NewAnthropic(cfg), nil },
	}
)

// Register adds or replaces a provider factory by name.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// NewProvider creates a single provider from its config.
func NewProvider(cfg *ProviderConfig) (Completer, error) {
	registryMu.RLock()
	factory, ok := registry[cfg.Name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Name)
	}
	return factory(cfg)
}

// New creates the configured Completer. A single provider is returned
// directly; several are wrapped in a Fallback in config order.
func New(cfg *Config, logger *slog.Logger) (Completer, error) {
	if len(cfg.Providers) == 0 {
		return nil, ErrNoProviders
	}

	completers := make([]Completer, 0, len(cfg.Providers))
	names := make([]string, 0, len(cfg.Providers))

	for i := range cfg.Providers {
		c, err := NewProvider(&cfg.Providers[i])
		if err != nil {
			return nil, err
		}
		completers = append(completers, c)
		names = append(names, cfg.Providers[i].Name)
	}

	if len(completers) == 1 {
		return completers[0], nil
	}

	return NewFallback(completers, names, logger), nil
}
