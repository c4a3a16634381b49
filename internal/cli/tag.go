package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/minime/inspirations/internal/genai"
	"github.com/minime/inspirations/internal/metrics"
	"github.com/minime/inspirations/internal/tagging"
)

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Tag unlabeled assets interactively",
	Long: `Tag pulls unlabeled assets in batches and labels them with a bounded
worker pool against the Gemini API. With --provider mock, a keyword
heuristic labels assets from their title and board text instead; no API
key is needed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		provider, _ := cmd.Flags().GetString("provider")
		source, _ := cmd.Flags().GetString("source")
		limit, _ := cmd.Flags().GetInt("limit")
		plain, _ := cmd.Flags().GetBool("plain")
		if source == "" {
			source = cfg.Source
		}

		if provider == "mock" {
			report, err := tagging.RunHeuristic(ctx, database, logger, source, limit)
			if err != nil {
				return err
			}
			return printJSON(report)
		}
		if provider != "gemini" {
			return fmt.Errorf("unknown provider %q", provider)
		}

		collector := metrics.NewCollector()
		client, err := geminiClient(genai.WithCollector(collector))
		if err != nil {
			return err
		}
		runner := &tagging.Runner{
			Store:  database,
			Gen:    client,
			Logger: logger,
			Config: tagging.RunnerConfig{
				Source:         source,
				Model:          cfg.Model,
				FallbackModel:  cfg.FallbackModel,
				ImageKind:      tagging.ImageKind(cfg.ImageKind),
				Prompt:         tagging.DefaultPrompt,
				BatchSize:      cfg.TagBatchSize,
				Workers:        cfg.TagWorkers,
				RequestTimeout: cfg.RequestTimeout,
				BatchDeadline:  cfg.BatchDeadline,
			},
		}

		if plain {
			err = runner.Run(ctx)
		} else {
			err = runWithProgress(ctx, runner)
		}
		if err != nil {
			return err
		}
		if snap := collector.Snapshot(); snap.Generate != nil {
			logger.Info("api usage",
				"calls", snap.Generate.Count,
				"avg_ms", snap.Generate.AvgTimeMs,
			)
		}
		return nil
	},
}

func init() {
	tagCmd.Flags().String("provider", "gemini", "labeler: gemini or mock")
	tagCmd.Flags().String("source", "", "asset source (default from config)")
	tagCmd.Flags().Int("limit", 0, "limit assets for the mock labeler (0 = no limit)")
	tagCmd.Flags().Bool("plain", false, "log progress instead of the interactive display")
}
