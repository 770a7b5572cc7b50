package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nnennaai/nai/internal/runstore"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List saved runs or show one in full",
	Long: `Without arguments, lists persisted runs newest first. With a run
identifier, prints that run's full JSON record.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "number of runs to list")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}
	store, err := runstore.New(cfg.Pipeline.RunDir, zap.NewNop())
	if err != nil {
		return err
	}

	if len(args) == 1 {
		result, err := store.Load(args[0])
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	results, err := store.List()
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No saved runs.")
		return nil
	}

	// Newest first for display.
	shown := 0
	for i := len(results) - 1; i >= 0 && shown < historyLimit; i-- {
		r := results[i]
		query := r.Query
		if len(query) > 60 {
			query = query[:57] + "..."
		}
		fmt.Printf("%s  %s  %.3fs  %q\n",
			r.RunID, r.Timestamp.Format("2006-01-02 15:04:05"), r.Metrics.Latency.TotalSeconds, query)
		shown++
	}
	fmt.Printf("\n%d of %d runs in %s\n", shown, len(results), store.Dir())
	return nil
}
