package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Yates-Labs/folio/internal/scaffold"
	"github.com/Yates-Labs/folio/internal/vcs"
)

var (
	initProjectName string
	initBaseDir     string
	initForce       bool
	initGit         bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a new EPUB project",
	Long: `Create the project tree with agent configuration, project metadata, the
ACISS style guide, a sample chapter data file and the base stylesheet.

Existing files are kept unless --force is given.

Examples:
  folio init --project-name ACISS-Hairstyling-Book
  folio init --base-dir ./book --git`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVar(&initProjectName, "project-name", scaffold.DefaultProjectName, "Project name")
	initCmd.Flags().StringVar(&initBaseDir, "base-dir", "EPUB_PROJECT", "Directory to create the project in")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing files")
	initCmd.Flags().BoolVar(&initGit, "git", false, "Initialize a git repository and commit the scaffold")
}

func runInit(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	res, err := scaffold.Init(scaffold.Options{
		Dir:         initBaseDir,
		ProjectName: initProjectName,
		Force:       initForce,
		Log:         logger,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(out, headerStyle.Render("Project "+initProjectName))
	ok(out, "Created project structure in %s", res.Root)
	for _, f := range res.Written {
		fmt.Fprintln(out, "  "+textStyle.Render(f))
	}
	for _, f := range res.Skipped {
		warn(out, "kept existing %s (use --force to overwrite)", f)
	}

	if initGit {
		repo, created, err := vcs.InitRepository(res.Root)
		if err != nil {
			return err
		}
		if created {
			ok(out, "Initialized git repository")
		}

		paths := make([]string, 0, len(res.Written))
		for _, f := range res.Written {
			paths = append(paths, filepath.FromSlash(f))
		}
		hash, err := vcs.CommitPaths(repo, paths, "Initialize "+initProjectName, vcs.Author{})
		switch {
		case errors.Is(err, vcs.ErrNothingToCommit):
			step(out, "nothing new to commit")
		case err != nil:
			return err
		default:
			logger.Info("scaffold committed", zap.String("hash", hash.String()))
			ok(out, "Committed scaffold %s", hash.String()[:7])
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, accentStyle.Render("Next: cp .env.template .env, add an API key, then run folio health-check"))
	return nil
}
