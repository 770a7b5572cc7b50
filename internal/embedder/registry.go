package embedder

import (
	"go.uber.org/zap"

	"github.com/nnennaai/nai/internal/config"
	"github.com/nnennaai/nai/internal/module"
)

// registry maps provider names to constructors. Closed set: unknown names
// are rejected at engine setup, not at call time.
var registry = map[string]func(config.EmbeddingSettings, *zap.Logger) module.Embedder{
	"openai": func(cfg config.EmbeddingSettings, logger *zap.Logger) module.Embedder {
		return NewOpenAI(cfg, logger)
	},
}

// New resolves the configured provider to a concrete embedder.
func New(cfg config.EmbeddingSettings, logger *zap.Logger) (module.Embedder, error) {
	ctor, ok := registry[cfg.Provider]
	if !ok {
		return nil, module.NewConfigError("embedder", "provider "+cfg.Provider, module.ErrUnknownProvider)
	}
	return ctor(cfg, logger), nil
}

// Providers lists the registered provider names.
func Providers() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
