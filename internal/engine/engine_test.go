package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nnennaai/nai/internal/config"
	"github.com/nnennaai/nai/internal/module"
	"github.com/nnennaai/nai/internal/runstore"
)

type fakeEmbedder struct {
	calls     int
	callSizes []int
	fail      bool
}

func (f *fakeEmbedder) Setup(ctx context.Context) error { return nil }

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	f.callSizes = append(f.callSizes, len(texts))
	if f.fail {
		return nil, errors.New("embedding backend unavailable")
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text)), 1, 0}
	}
	return out, nil
}

func (f *fakeEmbedder) Teardown() error     { return nil }
func (f *fakeEmbedder) Stats() module.Stats { return module.Stats{} }

type fakeRetriever struct {
	texts    []string
	metadata []map[string]any
}

func (f *fakeRetriever) Setup(ctx context.Context) error { return nil }

func (f *fakeRetriever) Add(ctx context.Context, texts []string, embeddings [][]float32, metadata []map[string]any) error {
	if len(texts) != len(embeddings) {
		return module.ErrLengthMismatch
	}
	f.texts = append(f.texts, texts...)
	f.metadata = append(f.metadata, metadata...)
	return nil
}

func (f *fakeRetriever) Search(ctx context.Context, embedding []float32, k int) ([]module.Context, error) {
	if k > len(f.texts) {
		k = len(f.texts)
	}
	out := make([]module.Context, 0, k)
	for i := 0; i < k; i++ {
		out = append(out, module.Context{
			ID:       "doc-" + f.texts[i],
			Text:     f.texts[i],
			Score:    0.9 - float64(i)*0.1,
			Metadata: f.metadata[i],
		})
	}
	return out, nil
}

func (f *fakeRetriever) Reset(ctx context.Context) error {
	f.texts, f.metadata = nil, nil
	return nil
}

func (f *fakeRetriever) Count() int          { return len(f.texts) }
func (f *fakeRetriever) Teardown() error     { return nil }
func (f *fakeRetriever) Stats() module.Stats { return module.Stats{} }

type fakeGenerator struct {
	answer  string
	err     error
	gotOpts module.GenerateOptions
}

func (f *fakeGenerator) Setup(ctx context.Context) error { return nil }

func (f *fakeGenerator) Generate(ctx context.Context, prompt string, opts module.GenerateOptions) (string, error) {
	f.gotOpts = opts
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeGenerator) Usage() module.GeneratorUsage {
	return module.GeneratorUsage{Model: "fake-model", PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120}
}

func (f *fakeGenerator) Teardown() error     { return nil }
func (f *fakeGenerator) Stats() module.Stats { return module.Stats{} }

type fakeEvaluator struct {
	eval           module.Evaluation
	gotQuery       string
	gotAnswer      string
	gotContexts    []string
	gotGroundTruth string
}

func (f *fakeEvaluator) Setup(ctx context.Context) error { return nil }

func (f *fakeEvaluator) Evaluate(ctx context.Context, query, answer string, contexts []string, groundTruth string) (module.Evaluation, error) {
	f.gotQuery, f.gotAnswer, f.gotContexts, f.gotGroundTruth = query, answer, contexts, groundTruth
	return f.eval, nil
}

func (f *fakeEvaluator) Teardown() error     { return nil }
func (f *fakeEvaluator) Stats() module.Stats { return module.Stats{} }

func testConfig(t *testing.T) *config.Settings {
	t.Helper()
	cfg := config.Default()
	cfg.Pipeline.RunDir = t.TempDir()
	return cfg
}

func testEngine(t *testing.T, cfg *config.Settings) (*Engine, *fakeEmbedder, *fakeRetriever, *fakeGenerator, *fakeEvaluator) {
	t.Helper()
	emb := &fakeEmbedder{}
	ret := &fakeRetriever{}
	gen := &fakeGenerator{answer: "Paris is the capital of France."}
	ev := &fakeEvaluator{}
	eng, err := New(cfg, WithModules(emb, ret, gen, ev))
	require.NoError(t, err)
	return eng, emb, ret, gen, ev
}

func TestRun_ProducesCompleteRecord(t *testing.T) {
	cfg := testConfig(t)
	eng, _, ret, _, _ := testEngine(t, cfg)
	ctx := context.Background()

	docs := []module.Document{
		{Text: "Paris is the capital of France.", Metadata: map[string]any{"source": "geo.txt"}},
		{Text: "Berlin is the capital of Germany.", Metadata: map[string]any{"source": "geo.txt"}},
	}
	_, err := eng.Ingest(ctx, docs, 10)
	require.NoError(t, err)
	require.Equal(t, 2, ret.Count())

	result, err := eng.Run(ctx, "What is the capital of France?", RunOptions{})
	require.NoError(t, err)

	assert.Len(t, result.RunID, 12)
	assert.Equal(t, "What is the capital of France?", result.Query)
	assert.Equal(t, "Paris is the capital of France.", result.Answer)
	assert.Len(t, result.Contexts, 2)

	assert.GreaterOrEqual(t, result.Metrics.Latency.TotalSeconds, 0.0)
	assert.Equal(t, 2, result.Metrics.Retrieval.NumContexts)
	assert.InDelta(t, 0.85, result.Metrics.Retrieval.AvgScore, 1e-9)
	assert.Equal(t, "fake-model", result.Metrics.Generator.Model)
	assert.False(t, result.Metrics.TelemetryEnabled)
	require.NotNil(t, result.Metrics.EstimatedCost)

	steps := make([]string, len(result.Trace))
	for i, step := range result.Trace {
		steps[i] = step.Step
	}
	assert.Equal(t, []string{"run_start", "embed_query", "retrieve", "generate"}, steps)
}

func TestRun_PersistsAndRoundTrips(t *testing.T) {
	cfg := testConfig(t)
	eng, _, _, _, _ := testEngine(t, cfg)
	ctx := context.Background()

	_, err := eng.Ingest(ctx, []module.Document{{Text: "some fact"}}, 10)
	require.NoError(t, err)

	result, err := eng.Run(ctx, "a question", RunOptions{})
	require.NoError(t, err)

	path := filepath.Join(cfg.Pipeline.RunDir, "run_"+result.RunID+".json")
	_, err = os.Stat(path)
	require.NoError(t, err, "run record should be written")

	store, err := runstore.New(cfg.Pipeline.RunDir, nil)
	require.NoError(t, err)
	loaded, err := store.Load(result.RunID)
	require.NoError(t, err)
	assert.Equal(t, result.RunID, loaded.RunID)
	assert.Equal(t, result.Answer, loaded.Answer)
	assert.Equal(t, result.Metrics.Latency, loaded.Metrics.Latency)

	assert.Len(t, eng.History(), 1)
}

func TestRun_KClampedToStoreSize(t *testing.T) {
	cfg := testConfig(t)
	eng, _, _, _, _ := testEngine(t, cfg)
	ctx := context.Background()

	_, err := eng.Ingest(ctx, []module.Document{{Text: "one"}, {Text: "two"}}, 10)
	require.NoError(t, err)

	result, err := eng.Run(ctx, "anything", RunOptions{K: 10})
	require.NoError(t, err)
	assert.Len(t, result.Contexts, 2)
}

func TestRun_GeneratorFailureLeavesNoRecord(t *testing.T) {
	cfg := testConfig(t)
	eng, _, _, gen, _ := testEngine(t, cfg)
	gen.err = errors.New("model overloaded")
	ctx := context.Background()

	_, err := eng.Ingest(ctx, []module.Document{{Text: "a fact"}}, 10)
	require.NoError(t, err)

	_, err = eng.Run(ctx, "a question", RunOptions{})
	require.Error(t, err)
	assert.ErrorContains(t, err, "model overloaded")

	entries, err := os.ReadDir(cfg.Pipeline.RunDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "failed runs must not be persisted")
	assert.Empty(t, eng.History())
}

func TestRun_GeneratorReceivesContextsAndRunID(t *testing.T) {
	cfg := testConfig(t)
	eng, _, _, gen, _ := testEngine(t, cfg)
	ctx := context.Background()

	_, err := eng.Ingest(ctx, []module.Document{{Text: "a fact"}}, 10)
	require.NoError(t, err)

	result, err := eng.Run(ctx, "a question", RunOptions{})
	require.NoError(t, err)

	assert.True(t, gen.gotOpts.UseRAGTemplate)
	assert.Len(t, gen.gotOpts.Contexts, 1)
	assert.Equal(t, result.RunID, gen.gotOpts.RunID)
}

func TestIngest_ChunkMetadata(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pipeline.ChunkSize = 100
	cfg.Pipeline.ChunkOverlap = 20
	eng, emb, ret, _, _ := testEngine(t, cfg)
	ctx := context.Background()

	long := make([]byte, 250)
	for i := range long {
		long[i] = 'z'
	}
	docs := []module.Document{
		{Text: string(long), Metadata: map[string]any{"source": "big.txt"}},
		{Text: "tiny"},
	}
	stats, err := eng.Ingest(ctx, docs, 2)
	require.NoError(t, err)

	// 250 chars at 100/20 chunks at offsets 0, 80, 160, 240, plus one chunk
	// for "tiny". Both documents fit in one batch of 2, so one embed call.
	assert.Equal(t, 2, stats.DocumentsProcessed)
	assert.Equal(t, 5, stats.ChunksCreated)
	assert.Equal(t, 5, stats.RetrieverCount)
	assert.Equal(t, 1, emb.calls)

	require.Len(t, ret.metadata, 5)
	assert.Equal(t, "big.txt", ret.metadata[0]["source"])
	assert.Equal(t, 0, ret.metadata[0]["chunk_index"])
	assert.Equal(t, 4, ret.metadata[0]["total_chunks"])
	assert.Equal(t, 2, ret.metadata[2]["chunk_index"])
	assert.Equal(t, 3, ret.metadata[3]["chunk_index"])

	// Documents without metadata are tagged as manual input.
	assert.Equal(t, "manual", ret.metadata[4]["source"])
	assert.Equal(t, 0, ret.metadata[4]["chunk_index"])
	assert.Equal(t, 1, ret.metadata[4]["total_chunks"])
}

func TestIngest_BatchesByDocuments(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pipeline.ChunkSize = 100
	cfg.Pipeline.ChunkOverlap = 20
	eng, emb, _, _, _ := testEngine(t, cfg)
	ctx := context.Background()

	long := make([]byte, 250)
	for i := range long {
		long[i] = 'q'
	}

	// A batch is batchSize documents, not chunks: one 4-chunk document with
	// batch size 2 is still a single embed call carrying all 4 chunks.
	stats, err := eng.Ingest(ctx, []module.Document{{Text: string(long)}}, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.ChunksCreated)
	assert.Equal(t, []int{4}, emb.callSizes)

	// Three documents at batch size 2 split into batches of 2 and 1
	// documents, each embedded in one call.
	emb.callSizes = nil
	docs := []module.Document{
		{Text: string(long)},
		{Text: "tiny"},
		{Text: "small"},
	}
	stats, err = eng.Ingest(ctx, docs, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.DocumentsProcessed)
	assert.Equal(t, 6, stats.ChunksCreated)
	assert.Equal(t, []int{5, 1}, emb.callSizes)
}

func TestScore_ComposesRunAndEvaluation(t *testing.T) {
	cfg := testConfig(t)
	eng, _, _, _, ev := testEngine(t, cfg)
	ev.eval = module.Evaluation{
		Scores:       map[string]float64{"faithfulness": 0.9},
		OverallScore: 0.9,
		Passed:       true,
	}
	ctx := context.Background()

	_, err := eng.Ingest(ctx, []module.Document{{Text: "a fact"}}, 10)
	require.NoError(t, err)

	result, err := eng.Score(ctx, "a question", "the truth", 0)
	require.NoError(t, err)

	assert.Len(t, result.RunID, 12)
	assert.True(t, result.Evaluation.Passed)
	assert.Equal(t, "a question", ev.gotQuery)
	assert.Equal(t, "Paris is the capital of France.", ev.gotAnswer)
	assert.Equal(t, []string{"a fact"}, ev.gotContexts)
	assert.Equal(t, "the truth", ev.gotGroundTruth)
}

func TestScore_PipelineFailureAborts(t *testing.T) {
	cfg := testConfig(t)
	eng, emb, _, _, _ := testEngine(t, cfg)
	emb.fail = true
	ctx := context.Background()

	_, err := eng.Score(ctx, "a question", "", 0)
	require.Error(t, err)
	assert.ErrorContains(t, err, "embedding backend unavailable")
}

func TestSetup_UnknownProviderFailsFast(t *testing.T) {
	cfg := testConfig(t)
	cfg.Embeddings.Provider = "nonexistent"
	eng, err := New(cfg)
	require.NoError(t, err)

	err = eng.Setup(context.Background())
	require.Error(t, err)
	assert.True(t, module.IsConfigError(err))
	assert.ErrorIs(t, err, module.ErrUnknownProvider)
}

func TestNewRunID_Deterministic(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 123456789, time.UTC)
	a := newRunID("query", ts)
	b := newRunID("query", ts)
	c := newRunID("other", ts)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 12)
}
