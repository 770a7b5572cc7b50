package retriever

import (
	"go.uber.org/zap"

	"github.com/nnennaai/nai/internal/config"
	"github.com/nnennaai/nai/internal/module"
)

// registry maps provider names to constructors. Closed set: unknown names
// are rejected at engine setup, not at call time.
var registry = map[string]func(config.RetrieverSettings, *zap.Logger) module.Retriever{
	"memory": func(cfg config.RetrieverSettings, logger *zap.Logger) module.Retriever {
		return NewMemory(logger)
	},
	"chromem": func(cfg config.RetrieverSettings, logger *zap.Logger) module.Retriever {
		return NewChromem(cfg, logger)
	},
	"qdrant": func(cfg config.RetrieverSettings, logger *zap.Logger) module.Retriever {
		return NewQdrant(cfg, logger)
	},
}

// New resolves the configured provider to a concrete retriever.
func New(cfg config.RetrieverSettings, logger *zap.Logger) (module.Retriever, error) {
	ctor, ok := registry[cfg.Provider]
	if !ok {
		return nil, module.NewConfigError("retriever", "provider "+cfg.Provider, module.ErrUnknownProvider)
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
