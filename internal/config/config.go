// Package config provides the settings tree for nai pipelines.
//
// Configuration precedence (highest to lowest):
//  1. CLI dot-path overrides (generator.model=gpt-4o)
//  2. Environment variables (NAI_PIPELINE_CHUNK_SIZE, ...)
//  3. YAML config file (.nai.yaml)
//  4. Hardcoded defaults
//
// Every section carries complete defaults, so a Settings value is always
// constructible without any file or environment present.
package config

import (
	"fmt"
	"os"
)

// EmbeddingSettings configures the embedder role.
type EmbeddingSettings struct {
	Provider  string `koanf:"provider" json:"provider"`
	Model     string `koanf:"model" json:"model"`
	APIKey    Secret `koanf:"api_key" json:"api_key"`
	BatchSize int    `koanf:"batch_size" json:"batch_size"`
}

// RetrieverSettings configures the retriever role. Host/Port apply to the
// qdrant provider; PersistDir/Collection to the embedded chromem provider.
type RetrieverSettings struct {
	Provider       string `koanf:"provider" json:"provider"`
	PersistDir     string `koanf:"persist_dir" json:"persist_dir"`
	Collection     string `koanf:"collection" json:"collection"`
	DistanceMetric string `koanf:"distance_metric" json:"distance_metric"`
	Host           string `koanf:"host" json:"host"`
	Port           int    `koanf:"port" json:"port"`
	VectorSize     int    `koanf:"vector_size" json:"vector_size"`
}

// GeneratorSettings configures the generator role.
type GeneratorSettings struct {
	Provider     string  `koanf:"provider" json:"provider"`
	Model        string  `koanf:"model" json:"model"`
	APIKey       Secret  `koanf:"api_key" json:"api_key"`
	Temperature  float64 `koanf:"temperature" json:"temperature"`
	MaxTokens    int     `koanf:"max_tokens" json:"max_tokens"`
	SystemPrompt string  `koanf:"system_prompt" json:"system_prompt"`
}

// EvalSettings configures the evaluator role.
type EvalSettings struct {
	Provider  string   `koanf:"provider" json:"provider"`
	Metrics   []string `koanf:"metrics" json:"metrics"`
	Threshold float64  `koanf:"threshold" json:"threshold"`
	Model     string   `koanf:"model" json:"model"`
	APIKey    Secret   `koanf:"api_key" json:"api_key"`
}

// TelemetrySettings configures the optional OTLP trace export. When enabled,
// run cost is deferred to the tracing backend and the in-process estimate is
// omitted from run records.
type TelemetrySettings struct {
	Enabled     bool   `koanf:"enabled" json:"enabled"`
	Endpoint    string `koanf:"endpoint" json:"endpoint"`
	ServiceName string `koanf:"service_name" json:"service_name"`
}

// PipelineSettings configures pipeline execution.
type PipelineSettings struct {
	ChunkSize    int               `koanf:"chunk_size" json:"chunk_size"`
	ChunkOverlap int               `koanf:"chunk_overlap" json:"chunk_overlap"`
	TopK         int               `koanf:"top_k" json:"top_k"`
	Trace        bool              `koanf:"trace" json:"trace"`
	SaveRuns     bool              `koanf:"save_runs" json:"save_runs"`
	RunDir       string            `koanf:"run_dir" json:"run_dir"`
	Telemetry    TelemetrySettings `koanf:"telemetry" json:"telemetry"`
}

// LoggingSettings configures the zap logger built by internal/logging.
type LoggingSettings struct {
	Level  string `koanf:"level" json:"level"`
	Format string `koanf:"format" json:"format"`
}

// Settings is the full configuration tree.
type Settings struct {
	Embeddings EmbeddingSettings `koanf:"embeddings" json:"embeddings"`
	Retriever  RetrieverSettings `koanf:"retriever" json:"retriever"`
	Generator  GeneratorSettings `koanf:"generator" json:"generator"`
	Eval       EvalSettings      `koanf:"eval" json:"eval"`
	Pipeline   PipelineSettings  `koanf:"pipeline" json:"pipeline"`
	Logging    LoggingSettings   `koanf:"logging" json:"logging"`
}

// Default returns a Settings tree with every section fully populated. API
// keys are seeded from OPENAI_API_KEY when present.
func Default() *Settings {
	key := Secret(os.Getenv("OPENAI_API_KEY"))
	return &Settings{
		Embeddings: EmbeddingSettings{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			APIKey:    key,
			BatchSize: 100,
		},
		Retriever: RetrieverSettings{
			Provider:       "chromem",
			PersistDir:     ".nai/chromem",
			Collection:     "nai_docs",
			DistanceMetric: "cosine",
			Host:           "localhost",
			Port:           6334,
			VectorSize:     1536,
		},
		Generator: GeneratorSettings{
			Provider:     "openai",
			Model:        "gpt-4o-mini",
			APIKey:       key,
			Temperature:  0.7,
			MaxTokens:    1000,
			SystemPrompt: "You are a helpful AI assistant.",
		},
		Eval: EvalSettings{
			Provider:  "llm",
			Metrics:   []string{"faithfulness", "answer_relevancy", "context_precision"},
			Threshold: 0.7,
			Model:     "gpt-4o-mini",
			APIKey:    key,
		},
		Pipeline: PipelineSettings{
			ChunkSize:    400,
			ChunkOverlap: 50,
			TopK:         5,
			Trace:        false,
			SaveRuns:     true,
			RunDir:       ".nai/runs",
			Telemetry: TelemetrySettings{
				Enabled:     false,
				Endpoint:    "localhost:4318",
				ServiceName: "nai",
			},
		},
		Logging: LoggingSettings{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks cross-field invariants. It does not check provider names;
// registries reject unknown providers at engine setup.
func (s *Settings) Validate() error {
	if s.Pipeline.ChunkSize <= 0 {
		return fmt.Errorf("pipeline.chunk_size must be positive, got %d", s.Pipeline.ChunkSize)
	}
	if s.Pipeline.ChunkOverlap < 0 {
		return fmt.Errorf("pipeline.chunk_overlap must not be negative, got %d", s.Pipeline.ChunkOverlap)
	}
	if s.Pipeline.ChunkOverlap >= s.Pipeline.ChunkSize {
		return fmt.Errorf("pipeline.chunk_overlap (%d) must be smaller than pipeline.chunk_size (%d)",
			s.Pipeline.ChunkOverlap, s.Pipeline.ChunkSize)
	}
	if s.Pipeline.TopK <= 0 {
		return fmt.Errorf("pipeline.top_k must be positive, got %d", s.Pipeline.TopK)
	}
	if s.Eval.Threshold < 0 || s.Eval.Threshold > 1 {
		return fmt.Errorf("eval.threshold must be in [0,1], got %v", s.Eval.Threshold)
	}
	if s.Generator.Temperature < 0 {
		return fmt.Errorf("generator.temperature must not be negative, got %v", s.Generator.Temperature)
	}
	if s.Generator.MaxTokens <= 0 {
		return fmt.Errorf("generator.max_tokens must be positive, got %d", s.Generator.MaxTokens)
	}
	if s.Embeddings.BatchSize <= 0 {
		return fmt.Errorf("embeddings.batch_size must be positive, got %d", s.Embeddings.BatchSize)
	}
	return nil
}
