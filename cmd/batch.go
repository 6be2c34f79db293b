package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/folio/internal/config"
	"github.com/Yates-Labs/folio/internal/pipeline"
)

var (
	batchFile        string
	batchWorkers     int
	batchMetricsFile string
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Generate several chapters from a batch file",
	Long: `Generate every chapter listed in a batch file on a bounded pool of workers.
A failing chapter is reported and does not stop the others.

Batch file format:
  output_directory: OEBPS/text
  max_workers: 3
  chapters:
    - number: XIII
      data_file: data/chapters/chapter-xiii.yaml
    - data_file: data/chapters/chapter-xiv.yaml

Here --config names the batch file; use --agent-config for the agent
configuration.

Examples:
  folio batch --config batch.yaml
  folio batch --config batch.yaml --workers 2 --metrics-file folio.prom`,
	Args: cobra.NoArgs,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().StringVar(&batchFile, "config", "", "Batch file (YAML)")
	batchCmd.Flags().StringVar(&configPath, "agent-config", config.DefaultPath, "Agent configuration file")
	batchCmd.Flags().IntVar(&batchWorkers, "workers", 0, "Maximum concurrent chapters (overrides the batch file)")
	batchCmd.Flags().StringVar(&batchMetricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")
	_ = batchCmd.MarkFlagRequired("config")
}

func runBatch(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	bc, err := pipeline.LoadBatchConfig(batchFile)
	if err != nil {
		return err
	}
	if batchWorkers > 0 {
		bc.MaxWorkers = batchWorkers
	}

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}

	step(out, "Generating %d chapters...", len(bc.Chapters))
	run, err := a.pipeline.RunBatch(ctx, *bc)
	if err != nil {
		return err
	}

	for _, res := range run.Chapters {
		if res.Error != "" {
			fail(out, "%s: %s", res.DataFile, res.Error)
			continue
		}
		issues := ""
		if res.Validation != nil && len(res.Validation.Issues) > 0 {
			issues = fmt.Sprintf(", %d issues", len(res.Validation.Issues))
		}
		ok(out, "Chapter %s -> %s%s", res.Number, res.Output, issues)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, accentStyle.Render(fmt.Sprintf("Run %s: %d succeeded, %d failed in %s",
		run.RunID[:8], run.Succeeded, run.Failed, run.Duration.Round(1e6))))

	if batchMetricsFile != "" {
		if err := a.metrics.WriteTextfile(batchMetricsFile); err != nil {
			return err
		}
		ok(out, "Metrics written to %s", batchMetricsFile)
	}

	if run.Failed > 0 {
		return errFailed
	}
	return nil
}
