package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nnennaai/nai/internal/loader"
	"github.com/nnennaai/nai/internal/logging"
)

var (
	ingestBatchSize int
	ingestReset     bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <path>",
	Short: "Load documents into the vector store",
	Long: `Reads text and markdown files from a file or directory, chunks them,
embeds the chunks, and adds them to the configured retriever.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().IntVar(&ingestBatchSize, "batch-size", 10, "documents processed per batch")
	ingestCmd.Flags().BoolVar(&ingestReset, "reset", false, "clear the store before ingesting")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	eng, _, logger, err := newEngine()
	if err != nil {
		return err
	}
	defer logging.Sync(logger)
	defer eng.Teardown() //nolint:errcheck

	ctx := context.Background()
	docs, err := loader.New(logger).Load(args[0])
	if err != nil {
		return err
	}

	if ingestReset {
		if err := eng.Setup(ctx); err != nil {
			return err
		}
		if err := eng.Retriever().Reset(ctx); err != nil {
			return fmt.Errorf("reset store: %w", err)
		}
		fmt.Println("Cleared vector store.")
	}

	stats, err := eng.Ingest(ctx, docs, ingestBatchSize)
	if err != nil {
		return err
	}

	fmt.Printf("Ingested %d documents as %d chunks in %.2fs (%.2f chunks/s)\n",
		stats.DocumentsProcessed, stats.ChunksCreated, stats.DurationSeconds, stats.ChunksPerSecond)
	fmt.Printf("Store now holds %d chunks.\n", stats.RetrieverCount)
	return nil
}
