package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nnennaai/nai/internal/logging"
	"github.com/nnennaai/nai/internal/telemetry"
)

var (
	scoreGroundTruth string
	scoreK           int
)

var scoreCmd = &cobra.Command{
	Use:   "score <query>",
	Short: "Run the pipeline and evaluate the answer",
	Long: `Runs the pipeline for the query, then scores the generated answer
against the configured quality metrics. With --ground-truth, metrics that
compare against a reference answer are included.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScore,
}

func init() {
	scoreCmd.Flags().StringVar(&scoreGroundTruth, "ground-truth", "", "reference answer for comparison metrics")
	scoreCmd.Flags().IntVarP(&scoreK, "top-k", "k", 0, "number of contexts to retrieve (default from config)")
	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
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
	result, err := eng.Score(ctx, query, scoreGroundTruth, scoreK)
	if err != nil {
		return err
	}

	fmt.Println(result.Answer)
	fmt.Println()

	metrics := make([]string, 0, len(result.Evaluation.Scores))
	for name := range result.Evaluation.Scores {
		metrics = append(metrics, name)
	}
	sort.Strings(metrics)
	fmt.Println("Scores:")
	for _, name := range metrics {
		fmt.Printf("  %-20s %.3f\n", name, result.Evaluation.Scores[name])
	}
	verdict := "FAIL"
	if result.Evaluation.Passed {
		verdict = "PASS"
	}
	fmt.Printf("Overall: %.3f (%s, threshold %.2f)\n", result.Evaluation.OverallScore, verdict, cfg.Eval.Threshold)
	if result.Evaluation.Error != "" {
		fmt.Printf("Evaluation degraded: %s\n", result.Evaluation.Error)
	}
	return nil
}
