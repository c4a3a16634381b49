package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/minime/inspirations/internal/embedding"
)

// newEmbedder builds the embedding backend selected by EMBED_BACKEND.
func newEmbedder(ctx context.Context, backend string) (embedding.Embedder, error) {
	switch backend {
	case "gemini", "":
		client, err := geminiClient()
		if err != nil {
			return nil, err
		}
		return embedding.NewGeminiEmbedder(client, cfg.EmbeddingModel), nil
	case "langchain":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY not set")
		}
		return embedding.NewLangchainEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbeddingModel)
	default:
		return nil, fmt.Errorf("unknown embedding backend %q", backend)
	}
}

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Generate text embeddings for assets without one",
	RunE: func(cmd *cobra.Command, args []string) error {
		source, _ := cmd.Flags().GetString("source")
		limit, _ := cmd.Flags().GetInt("limit")

		emb, err := newEmbedder(cmd.Context(), cfg.EmbedBackend)
		if err != nil {
			return err
		}
		report, err := embedding.EmbedAssets(cmd.Context(), database, emb, logger, embedding.RunOptions{
			Source: source,
			Limit:  limit,
		})
		if err != nil {
			return err
		}
		return printJSON(report)
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Rank assets against a query by embedding similarity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, _ := cmd.Flags().GetString("source")
		limit, _ := cmd.Flags().GetInt("limit")

		emb, err := newEmbedder(cmd.Context(), cfg.EmbedBackend)
		if err != nil {
			return err
		}
		report, err := embedding.SimilaritySearch(cmd.Context(), database, emb, embedding.SearchOptions{
			Query:  args[0],
			Source: source,
			Limit:  limit,
		})
		if err != nil {
			return err
		}
		return printJSON(report)
	},
}

func init() {
	embedCmd.Flags().String("source", "", "limit to one asset source")
	embedCmd.Flags().Int("limit", 0, "limit assets (0 = no limit)")
	searchCmd.Flags().String("source", "", "limit to one asset source")
	searchCmd.Flags().Int("limit", 0, "result cap (default 25)")
}
