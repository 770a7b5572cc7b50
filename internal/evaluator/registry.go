package evaluator

import (
	"go.uber.org/zap"

	"github.com/nnennaai/nai/internal/config"
	"github.com/nnennaai/nai/internal/module"
)

// registry maps provider names to constructors. "simple" and "exact_match"
// alias the heuristic evaluator and "ragas" aliases the LLM judge, kept for
// config compatibility.
var registry = map[string]func(config.EvalSettings, *zap.Logger) module.Evaluator{
	"llm": func(cfg config.EvalSettings, logger *zap.Logger) module.Evaluator {
		return NewLLM(cfg, logger)
	},
	"ragas": func(cfg config.EvalSettings, logger *zap.Logger) module.Evaluator {
		return NewLLM(cfg, logger)
	},
	"heuristic": func(cfg config.EvalSettings, logger *zap.Logger) module.Evaluator {
		return NewHeuristic(cfg, logger)
	},
	"simple": func(cfg config.EvalSettings, logger *zap.Logger) module.Evaluator {
		return NewHeuristic(cfg, logger)
	},
	"exact_match": func(cfg config.EvalSettings, logger *zap.Logger) module.Evaluator {
		return NewHeuristic(cfg, logger)
	},
}

// New resolves the configured provider to a concrete evaluator.
func New(cfg config.EvalSettings, logger *zap.Logger) (module.Evaluator, error) {
	ctor, ok := registry[cfg.Provider]
	if !ok {
		return nil, module.NewConfigError("evaluator", "provider "+cfg.Provider, module.ErrUnknownProvider)
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
