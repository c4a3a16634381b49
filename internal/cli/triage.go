package cli

import (
	"github.com/spf13/cobra"

	"github.com/minime/inspirations/internal/tagging"
)

var triageCmd = &cobra.Command{
	Use:   "triage",
	Short: "Classify recorded tagging failures into a JSON report",
	RunE: func(cmd *cobra.Command, args []string) error {
		source, _ := cmd.Flags().GetString("source")
		provider, _ := cmd.Flags().GetString("provider")
		model, _ := cmd.Flags().GetString("model")
		days, _ := cmd.Flags().GetInt("days")
		limit, _ := cmd.Flags().GetInt("limit")
		examples, _ := cmd.Flags().GetInt("examples")

		report, err := tagging.Triage(cmd.Context(), database, tagging.TriageOptions{
			Source:            source,
			Provider:          provider,
			Model:             model,
			Days:              days,
			Limit:             limit,
			ExamplesPerAction: examples,
		})
		if err != nil {
			return err
		}
		return printJSON(report)
	},
}

func init() {
	triageCmd.Flags().String("source", "", "limit to one asset source")
	triageCmd.Flags().String("provider", "", "limit to one provider")
	triageCmd.Flags().String("model", "", "limit to one model")
	triageCmd.Flags().Int("days", 0, "only errors from the last N days")
	triageCmd.Flags().Int("limit", 0, "cap the number of error rows examined")
	triageCmd.Flags().Int("examples", 3, "examples per recommended action")
}
