package cli

import (
	"github.com/spf13/cobra"

	"github.com/minime/inspirations/internal/models"
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add or update a single asset",
	Long: `Add upserts one asset keyed by (source, ref). Existing assets keep any
field the flags leave empty, so re-adding after an import refresh is safe.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		strFlag := func(name string) *string {
			v, _ := cmd.Flags().GetString(name)
			if v == "" {
				return nil
			}
			return &v
		}
		source, _ := cmd.Flags().GetString("source")
		ref, _ := cmd.Flags().GetString("ref")
		if source == "" {
			source = cfg.Source
		}

		id, err := database.UpsertAsset(cmd.Context(), models.Asset{
			Source:      source,
			SourceRef:   ref,
			Title:       strFlag("title"),
			Description: strFlag("description"),
			Board:       strFlag("board"),
			Notes:       strFlag("notes"),
			ImageURL:    strFlag("image-url"),
			StoredPath:  strFlag("stored-path"),
			ThumbPath:   strFlag("thumb-path"),
		})
		if err != nil {
			return err
		}
		logger.Info("asset stored", "id", id, "source", source, "ref", ref)
		return printJSON(map[string]string{"id": id})
	},
}

func init() {
	addCmd.Flags().String("source", "", "asset source (default from config)")
	addCmd.Flags().String("ref", "", "source-native identifier, e.g. a pin id")
	addCmd.Flags().String("title", "", "title")
	addCmd.Flags().String("description", "", "description")
	addCmd.Flags().String("board", "", "board or collection name")
	addCmd.Flags().String("notes", "", "free-form notes")
	addCmd.Flags().String("image-url", "", "remote image URL")
	addCmd.Flags().String("stored-path", "", "local path of the original image")
	addCmd.Flags().String("thumb-path", "", "local path of the thumbnail")
	_ = addCmd.MarkFlagRequired("ref")
}
