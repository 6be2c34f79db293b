package cmd

import (
	"github.com/spf13/cobra"
)

var (
	fmType     string
	fmDataFile string
	fmOutput   string
)

var frontMatterCmd = &cobra.Command{
	Use:   "front-matter",
	Short: "Generate a front or back matter page",
	Long: `Generate a single-page front or back matter XHTML file (title, copyright,
dedication, preface, glossary, ...) from a YAML or JSON data file with the
content agent.

Examples:
  folio front-matter --type title --data-file data/title.yaml --output OEBPS/text/title.xhtml
  folio front-matter --type glossary --data-file data/glossary.json --output OEBPS/text/glossary.xhtml`,
	Args: cobra.NoArgs,
	RunE: runFrontMatter,
}

func init() {
	rootCmd.AddCommand(frontMatterCmd)
	frontMatterCmd.Flags().StringVar(&fmType, "type", "", "Page type (title, copyright, dedication, ...)")
	frontMatterCmd.Flags().StringVar(&fmDataFile, "data-file", "", "Page data file (YAML or JSON)")
	frontMatterCmd.Flags().StringVar(&fmOutput, "output", "", "Output XHTML file")
	for _, name := range []string{"type", "data-file", "output"} {
		_ = frontMatterCmd.MarkFlagRequired(name)
	}
}

func runFrontMatter(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}

	step(out, "Generating %s page...", fmType)
	n, err := a.pipeline.GenerateFrontMatter(ctx, fmType, fmDataFile, fmOutput)
	if err != nil {
		return err
	}
	ok(out, "%s page written to %s (%d bytes)", fmType, fmOutput, n)
	return nil
}
