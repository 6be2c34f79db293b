package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/folio/internal/vcs"
)

var (
	genNumber     string
	genDataFile   string
	genOutput     string
	genNoValidate bool
	genReview     bool
	genCommit     bool
)

var generateCmd = &cobra.Command{
	Use:   "generate-chapter",
	Short: "Generate a chapter's XHTML from its data file",
	Long: `Generate the complete six-page XHTML for one chapter with the chapter agent.

The generated markup is checked by the static validator before it is written;
issues are reported but do not stop the file from being written.

Examples:
  folio generate-chapter --chapter-number XIII \
    --data-file data/chapters/chapter-xiii.yaml \
    --output OEBPS/text/chapter-xiii.xhtml
  folio generate-chapter --data-file data/chapters/chapter-xiv.yaml --review --commit`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringVar(&genNumber, "chapter-number", "", "Chapter number, roman (XIII) or decimal (13); defaults to the data file's")
	generateCmd.Flags().StringVar(&genDataFile, "data-file", "", "Chapter data file (YAML or JSON)")
	generateCmd.Flags().StringVar(&genOutput, "output", "", "Output XHTML file (default: <output_directory>/chapter-<roman>.xhtml)")
	generateCmd.Flags().BoolVar(&genNoValidate, "no-validate", false, "Skip static validation of the generated markup")
	generateCmd.Flags().BoolVar(&genReview, "review", false, "Ask the validation agent to review the result")
	generateCmd.Flags().BoolVar(&genCommit, "commit", false, "Commit the generated file to the project's git repository")
	_ = generateCmd.MarkFlagRequired("data-file")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}

	opts := a.pipeline.DefaultOptions()
	if genNoValidate {
		opts.Validate = false
	}
	opts.Review = genReview

	step(out, "Generating chapter from %s...", genDataFile)
	res, err := a.pipeline.GenerateChapter(ctx, genNumber, genDataFile, genOutput, opts)
	if err != nil {
		return fmt.Errorf("chapter generation failed: %w", err)
	}

	for _, w := range res.Warnings {
		warn(out, "%s", w)
	}
	ok(out, "Chapter %s written to %s (%d bytes, %s)", res.Number, res.Output, res.Bytes, res.Duration.Round(1e6))

	if v := res.Validation; v != nil {
		if v.Passed && len(v.Issues) == 0 {
			ok(out, "Validation passed")
		} else {
			for _, is := range v.Issues {
				fmt.Fprintf(out, "  %s %s %s\n",
					severityStyle(is.Severity).Render(fmt.Sprintf("[%s]", is.Severity)),
					numberStyle.Render(is.Rule),
					textStyle.Render(is.Message),
				)
			}
		}
		if v.Review != "" {
			fmt.Fprintln(out)
			fmt.Fprintln(out, headerStyle.Render("Review:"))
			fmt.Fprintln(out, textStyle.Render(v.Review))
		}
	}

	if genCommit {
		return commitChapter(cmd, res.Output, res.Number)
	}
	return nil
}

func commitChapter(cmd *cobra.Command, output, number string) error {
	out := cmd.OutOrStdout()

	abs, err := filepath.Abs(output)
	if err != nil {
		return err
	}
	repo, err := vcs.OpenRepository(filepath.Dir(abs))
	if err != nil {
		return err
	}
	hash, err := vcs.CommitPaths(repo, []string{abs}, fmt.Sprintf("Generate chapter %s", number), vcs.Author{})
	if errors.Is(err, vcs.ErrNothingToCommit) {
		step(out, "chapter unchanged, nothing to commit")
		return nil
	}
	if err != nil {
		return err
	}
	ok(out, "Committed %s", hash.String()[:7])
	return nil
}
