// Package cli provides the command-line interface for inspirations.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/minime/inspirations/internal/config"
	"github.com/minime/inspirations/internal/db"
	"github.com/minime/inspirations/internal/genai"
)

// Version is set at build time.
var Version = "0.1.0"

var (
	verbose bool

	cfg        config.Config
	database   *db.DB
	logger     *slog.Logger
	logCleanup func() error
)

var rootCmd = &cobra.Command{
	Use:   "inspirations",
	Short: "Personal media library tagging utilities",
	Long: `Inspirations imports, tags, and searches a personal media library.

Tagging runs against the Gemini API either interactively (bounded worker
pool) or through the asynchronous batch endpoint, with idempotent result
ingestion, error triage, text embeddings, and similarity search.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		level := cfg.LogLevel
		if verbose {
			level = slog.LevelDebug
		}
		logger, logCleanup = config.SetupLogger(cfg.LogFile, level)

		ctx := context.Background()
		database, err = db.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		if err := database.InitSchema(ctx); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if database != nil {
			if err := database.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
			}
		}
		if logCleanup != nil {
			_ = logCleanup()
		}
	},
}

// geminiClient builds an API client or fails when no key is configured.
func geminiClient(opts ...genai.Option) (*genai.Client, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is not set")
	}
	return genai.NewClient(cfg.GeminiAPIKey, opts...), nil
}

// printJSON writes a report to stdout the way every subcommand does.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(tagCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(triageCmd)
	rootCmd.AddCommand(embedCmd)
	rootCmd.AddCommand(searchCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Schema init already ran in PersistentPreRunE.
		logger.Info("schema initialized")
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show asset counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		source, _ := cmd.Flags().GetString("source")

		total, err := database.CountAssets(ctx, source)
		if err != nil {
			return err
		}
		unlabeled, err := database.CountUnlabeled(ctx, source, "gemini")
		if err != nil {
			return err
		}
		return printJSON(map[string]any{
			"assets":           total,
			"unlabeled_gemini": unlabeled,
			"source":           source,
		})
	},
}

func init() {
	listCmd.Flags().String("source", "", "limit counts to one source")
}
