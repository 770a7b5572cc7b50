package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nnennaai/nai/internal/engine"
	"github.com/nnennaai/nai/internal/logging"
	"github.com/nnennaai/nai/internal/telemetry"
)

var (
	runK     int
	runTrace bool
)

var runCmd = &cobra.Command{
	Use:   "run <query>",
	Short: "Answer a question against the ingested documents",
	Long: `Embeds the query, retrieves the most similar chunks, and generates an
answer conditioned on them. Prints the answer, the sources, and timing.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().IntVarP(&runK, "top-k", "k", 0, "number of contexts to retrieve (default from config)")
	runCmd.Flags().BoolVar(&runTrace, "trace", false, "log each pipeline step")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	eng, cfg, logger, err := newEngine()
	if err != nil {
		return err
	}
	defer logging.Sync(logger)
	defer eng.Teardown() //nolint:errcheck

	ctx := context.Background()
	tp, err := telemetry.Setup(ctx, cfg.Pipeline.Telemetry)
	if err != nil {
		return err
	}
	defer tp.Shutdown(ctx) //nolint:errcheck

	query := strings.Join(args, " ")
	opts := engine.RunOptions{K: runK}
	if cmd.Flags().Changed("trace") {
		opts.Trace = &runTrace
	}

	result, err := eng.Run(ctx, query, opts)
	if err != nil {
		return err
	}

	fmt.Println(result.Answer)
	fmt.Println()
	printSources(result)
	printTiming(result)
	return nil
}

func printSources(result *engine.RunResult) {
	if len(result.Contexts) == 0 {
		fmt.Println("No contexts retrieved.")
		return
	}
	fmt.Printf("Sources (%d, avg score %.3f):\n", result.Metrics.Retrieval.NumContexts, result.Metrics.Retrieval.AvgScore)
	for i, doc := range result.Contexts {
		source := "unknown"
		if s, ok := doc.Metadata["source"].(string); ok {
			source = s
		}
		fmt.Printf("  [%d] %.3f  %s\n", i+1, doc.Score, source)
	}
}

func printTiming(result *engine.RunResult) {
	lat := result.Metrics.Latency
	fmt.Printf("\nRun %s: %.3fs total (embed %.3fs, retrieve %.3fs, generate %.3fs)\n",
		result.RunID, lat.TotalSeconds, lat.EmbedSeconds, lat.RetrieveSeconds, lat.GenerateSeconds)
	if result.Metrics.EstimatedCost != nil {
		fmt.Printf("Estimated cost: $%.5f (%d tokens)\n",
			*result.Metrics.EstimatedCost, result.Metrics.Generator.TotalTokens)
	}
}
