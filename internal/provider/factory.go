package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"meetly/internal/config"
	"meetly/internal/domain"
)

// Constructor builds a completer from a config entry.
type Constructor func(pc config.ProviderConfig, logger *slog.Logger) domain.Completer

// Factory creates and caches completers from config.
type Factory struct {
	cfg          *config.Config
	logger       *slog.Logger
	constructors map[string]Constructor
	cache        map[string]domain.Completer
	mu           sync.RWMutex
}

func NewFactory(cfg *config.Config, logger *slog.Logger) *Factory {
	f := &Factory{
		cfg:          cfg,
		logger:       logger,
		constructors: make(map[string]Constructor),
		cache:        make(map[string]domain.Completer),
	}
	f.registerDefaults()
	return f
}

// RegisterConstructor adds (or replaces) a completer constructor by name.
func (f *Factory) RegisterConstructor(name string, ctor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[name] = ctor
}

func (f *Factory) registerDefaults() {
	f.constructors["ollama"] = func(pc config.ProviderConfig, logger *slog.Logger) domain.Completer {
		return NewOllama(OllamaConfig{APIBase: pc.APIBase, DefaultModel: pc.DefaultModel, Logger: logger})
	}

	f.constructors["openai"] = func(pc config.ProviderConfig, logger *slog.Logger) domain.Completer {
		return NewOpenAI(OpenAIConfig{APIKey: pc.APIKey, APIBase: pc.APIBase, Model: pc.DefaultModel, Logger: logger})
	}
}

// Get returns the completer with the given name, or the default if name is
// empty. Created completers are cached so the same instance is reused.
func (f *Factory) Get(name string) (domain.Completer, error) {
	if name == "" {
		name = f.cfg.General.DefaultProvider
	}

	f.mu.RLock()
	if cached, ok := f.cache[name]; ok {
		f.mu.RUnlock()
		return cached, nil
	}
	f.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()

	// Re-check under write lock.
	if cached, ok := f.cache[name]; ok {
		return cached, nil
	}

	pc, ok := f.cfg.Providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
	if !pc.Enabled {
		return nil, fmt.Errorf("provider %s is disabled", name)
	}

	ctor, found := f.constructors[name]

	var p domain.Completer
	if found {
		p = ctor(pc, f.logger)
	} else if pc.APIBase != "" && pc.APIKey != "" {
		// Unknown providers are treated as OpenAI-compatible.
		p = NewOpenAI(OpenAIConfig{APIKey: pc.APIKey, APIBase: pc.APIBase, Model: pc.DefaultModel, Logger: f.logger})
	} else {
		return nil, fmt.Errorf("provider %s: no constructor registered and no API base/key configured", name)
	}

	f.cache[name] = p
	return p, nil
}

// DefaultCompleter returns the configured default completer.
func (f *Factory) DefaultCompleter() (domain.Completer, error) {
	return f.Get("")
}

// Chain builds the configured failover chain. With no chain configured it
// falls back to the default completer alone.
func (f *Factory) Chain() (domain.Completer, error) {
	names := f.cfg.General.FailoverChain
	if len(names) == 0 {
		return f.DefaultCompleter()
	}

	var completers []domain.Completer
	for _, name := range names {
		p, err := f.Get(name)
		if err != nil {
			f.logger.Warn("skipping provider in failover chain", "provider", name, "err", err)
			continue
		}
		completers = append(completers, p)
	}
	if len(completers) == 0 {
		return nil, fmt.Errorf("no usable providers in failover chain %v", names)
	}
	if len(completers) == 1 {
		return completers[0], nil
	}
	return NewFailover(completers, f.logger), nil
}

// HealthyCompleter returns the first completer that passes a health check, or nil.
func (f *Factory) HealthyCompleter(ctx context.Context) domain.Completer {
	for name := range f.cfg.Providers {
		p, err := f.Get(name)
		if err != nil || p == nil {
			continue
		}
		if p.Healthy(ctx) == nil {
			return p
		}
	}
	return nil
}
