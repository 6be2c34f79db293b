package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Yates-Labs/folio/internal/config"
	"github.com/Yates-Labs/folio/internal/logging"
)

var (
	configPath string
	verbose    bool

	logger = zap.NewNop()
)

// errFailed signals a command that already reported its failure and only
// needs a non-zero exit.
var errFailed = errors.New("command failed")

var rootCmd = &cobra.Command{
	Use:   "folio",
	Short: "folio - LLM-assisted EPUB chapter production",
	Long: `folio generates, validates and formats EPUB chapter content for a book
project using a hosted language model.

Chapter data lives in YAML files; generated XHTML is checked against the
chapter structure and the project's style guide before it is written.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.New(verbose)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Agent configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// Execute runs the root command
func Execute() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintln(os.Stderr, errorStyle.Render("Error:"), err)
		}
		os.Exit(1)
	}
}
