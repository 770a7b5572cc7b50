// Package main provides the nai CLI for running RAG pipelines: ingest
// documents, ask questions, and score answers.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nnennaai/nai/internal/config"
	"github.com/nnennaai/nai/internal/engine"
	"github.com/nnennaai/nai/internal/logging"
)

var (
	configPath string
	overrides  map[string]string
)

var rootCmd = &cobra.Command{
	Use:   "nai",
	Short: "Modular RAG pipeline runner",
	Long: `nai runs retrieval-augmented generation pipelines from the command line:
ingest documents into a vector store, answer questions against them, and
score the answers with quality metrics.

Configuration comes from .nai.yaml, NAI_* environment variables, and
--set overrides, in increasing precedence. API keys are read from the
environment (OPENAI_API_KEY).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default .nai.yaml)")
	rootCmd.PersistentFlags().StringToStringVar(&overrides, "set", nil, "config overrides, e.g. --set generator.model=gpt-4o")
}

func main() {
	// Load .env if present for local development; missing is fine.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadSettings builds the effective configuration for a command invocation.
func loadSettings() (*config.Settings, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := config.ApplyOverrides(cfg, overrides); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newEngine wires settings, logger, and engine for the pipeline commands.
func newEngine() (*engine.Engine, *config.Settings, *zap.Logger, error) {
	cfg, err := loadSettings()
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, nil, err
	}
	eng, err := engine.New(cfg, engine.WithLogger(logger))
	if err != nil {
		return nil, nil, nil, err
	}
	return eng, cfg, logger, nil
}
