package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/minime/inspirations/internal/tagging"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Tag assets through the asynchronous batch API",
	Long: `Batch builds JSONL request files for every unlabeled asset, uploads
them, and submits one batch job per file. Each job writes a durable
meta_NNN.json sidecar, so watch, fetch, and ingest can resume any phase
later from the run directory alone.`,
}

func newPipeline() (*tagging.Pipeline, error) {
	client, err := geminiClient()
	if err != nil {
		return nil, err
	}
	return &tagging.Pipeline{
		Store:  database,
		Client: client,
		Logger: logger,
		Config: tagging.PipelineConfig{
			Source:       cfg.Source,
			Model:        cfg.Model,
			ImageKind:    tagging.ImageKind(cfg.ImageKind),
			Prompt:       tagging.DefaultPrompt,
			OutDir:       cfg.BatchOutDir,
			MaxBytes:     cfg.BatchMaxBytes,
			PollInterval: cfg.PollInterval,
			MaxWait:      cfg.MaxWait,
		},
	}, nil
}

// batchDir resolves the --dir flag, required by the resume subcommands.
func batchDir(cmd *cobra.Command) (string, error) {
	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		return "", fmt.Errorf("--dir is required (the batch run directory)")
	}
	return dir, nil
}

var batchRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Submit, watch, and ingest in one go",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline()
		if err != nil {
			return err
		}
		metas, err := p.Run(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(metas)
	},
}

var batchSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Build input files and submit batch jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline()
		if err != nil {
			return err
		}
		dir, err := p.NewRunDir()
		if err != nil {
			return err
		}
		metas, err := p.Submit(cmd.Context(), dir)
		if err != nil {
			return err
		}
		logger.Info("batches submitted", "dir", dir, "count", len(metas))
		return printJSON(metas)
	},
}

var batchWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll submitted batches to completion and ingest their output",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline()
		if err != nil {
			return err
		}
		dir, err := batchDir(cmd)
		if err != nil {
			return err
		}
		metas, err := tagging.LoadMetas(dir)
		if err != nil {
			return err
		}
		for i := range metas {
			if err := p.WatchAndIngest(cmd.Context(), dir, &metas[i]); err != nil {
				return err
			}
		}
		return printJSON(metas)
	},
}

var batchFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download batch output files",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline()
		if err != nil {
			return err
		}
		dir, err := batchDir(cmd)
		if err != nil {
			return err
		}
		metas, err := tagging.LoadMetas(dir)
		if err != nil {
			return err
		}
		for i := range metas {
			meta := &metas[i]
			metaPath := tagging.MetaPath(dir, meta.Idx)
			if err := p.ResolveOutput(cmd.Context(), metaPath, meta); err != nil {
				logger.Warn("skipping batch", "batch", meta.Idx, "error", err)
				continue
			}
			if err := p.Fetch(cmd.Context(), meta); err != nil {
				return err
			}
		}
		return printJSON(metas)
	},
}

var batchIngestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest downloaded batch output into the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline()
		if err != nil {
			return err
		}
		dir, err := batchDir(cmd)
		if err != nil {
			return err
		}
		metas, err := tagging.LoadMetas(dir)
		if err != nil {
			return err
		}
		for i := range metas {
			meta := &metas[i]
			if meta.OutputPath == "" {
				logger.Warn("no output downloaded, skipping", "batch", meta.Idx)
				continue
			}
			if err := p.Ingest(cmd.Context(), tagging.MetaPath(dir, meta.Idx), meta); err != nil {
				return err
			}
		}
		return printJSON(metas)
	},
}

var batchStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current state of each batch in a run directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := geminiClient()
		if err != nil {
			return err
		}
		dir, err := batchDir(cmd)
		if err != nil {
			return err
		}
		metas, err := tagging.LoadMetas(dir)
		if err != nil {
			return err
		}
		type status struct {
			Idx       int    `json:"idx"`
			BatchName string `json:"batch_name"`
			State     string `json:"state"`
			Requests  int    `json:"requests"`
			Ingested  bool   `json:"ingested"`
		}
		var out []status
		for _, meta := range metas {
			st := status{
				Idx:       meta.Idx,
				BatchName: meta.BatchName,
				State:     meta.State,
				Requests:  meta.RequestCount,
				Ingested:  meta.IngestReport != nil && meta.IngestReport.Labeled > 0,
			}
			if op, err := client.GetBatch(cmd.Context(), meta.BatchName); err == nil {
				st.State = op.State()
			}
			out = append(out, st)
		}
		return printJSON(out)
	},
}

func init() {
	for _, c := range []*cobra.Command{batchWatchCmd, batchFetchCmd, batchIngestCmd, batchStatusCmd} {
		c.Flags().String("dir", "", "batch run directory containing meta_NNN.json files")
	}
	batchCmd.AddCommand(batchRunCmd)
	batchCmd.AddCommand(batchSubmitCmd)
	batchCmd.AddCommand(batchWatchCmd)
	batchCmd.AddCommand(batchFetchCmd)
	batchCmd.AddCommand(batchIngestCmd)
	batchCmd.AddCommand(batchStatusCmd)
}
