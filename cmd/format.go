package cmd

import (
	"github.com/spf13/cobra"
)

var (
	formatType   string
	formatInput  string
	formatOutput string
)

var formatCmd = &cobra.Command{
	Use:   "format",
	Short: "Restyle an existing file with the formatter agent",
	Long: `Pass an existing XHTML or CSS file through the formatter agent so it follows
the ACISS design system. Without --output the input file is replaced.

Examples:
  folio format --type chapter --input OEBPS/text/chapter-xiii.xhtml
  folio format --type css --input OEBPS/styles/aciss.css --output OEBPS/styles/aciss.new.css`,
	Args: cobra.NoArgs,
	RunE: runFormat,
}

func init() {
	rootCmd.AddCommand(formatCmd)
	formatCmd.Flags().StringVar(&formatType, "type", "chapter", "Content type (chapter, css, front-matter, ...)")
	formatCmd.Flags().StringVar(&formatInput, "input", "", "File to format")
	formatCmd.Flags().StringVar(&formatOutput, "output", "", "Output file (default: overwrite the input)")
	_ = formatCmd.MarkFlagRequired("input")
}

func runFormat(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}

	output := formatOutput
	if output == "" {
		output = formatInput
	}
	step(out, "Formatting %s...", formatInput)
	n, err := a.pipeline.FormatFile(ctx, formatType, formatInput, output)
	if err != nil {
		return err
	}
	ok(out, "Formatted %s written to %s (%d bytes)", formatType, output, n)
	return nil
}
