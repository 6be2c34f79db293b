package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Yates-Labs/folio/internal/publish"
	"github.com/Yates-Labs/folio/internal/validate"
)

var (
	valDirectory  string
	valOutput     string
	valReview     bool
	valWatch      bool
	valGitHubRepo string
)

// settleDelay coalesces the burst of events an editor save produces.
const settleDelay = 300 * time.Millisecond

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the XHTML and CSS files in a directory",
	Long: `Statically validate every .xhtml, .html and .css file in a directory against
the EPUB chapter structure and the project's style guide.

Exits non-zero when any file has a critical issue.

Examples:
  folio validate --directory OEBPS/text
  folio validate --directory OEBPS --output report.json --review
  folio validate --directory OEBPS/text --watch
  folio validate --directory OEBPS --github-repo acme/hair-book`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVar(&valDirectory, "directory", "", "Directory to validate")
	validateCmd.Flags().StringVar(&valOutput, "output", "", "Write the JSON report to this file")
	validateCmd.Flags().BoolVar(&valReview, "review", false, "Ask the validation agent to review every file")
	validateCmd.Flags().BoolVar(&valWatch, "watch", false, "Revalidate whenever a file in the directory changes")
	validateCmd.Flags().StringVar(&valGitHubRepo, "github-repo", "", "Open or update a GitHub issue (owner/name) when validation fails")
	_ = validateCmd.MarkFlagRequired("directory")
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	var owner, repo string
	if valGitHubRepo != "" {
		var err error
		owner, repo, err = publish.ParseRepo(valGitHubRepo)
		if err != nil {
			return err
		}
	}

	a, err := newApp(cmd.Context(), valReview)
	if err != nil {
		return err
	}

	step(out, "Validating %s against the %s style guide", valDirectory, a.validator.StyleGuide().Name)

	validateOnce := func(ctx context.Context) (*validate.Report, error) {
		report, err := a.pipeline.ValidateDirectory(ctx, valDirectory, valReview)
		if err != nil {
			return nil, err
		}
		printReport(out, report)
		if valOutput != "" {
			if err := report.Save(valOutput); err != nil {
				return nil, err
			}
			ok(out, "Report written to %s", valOutput)
		}
		return report, nil
	}

	if valWatch {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return watchDirectory(ctx, out, valDirectory, func() error {
			_, err := validateOnce(ctx)
			return err
		})
	}

	report, err := validateOnce(cmd.Context())
	if err != nil {
		return err
	}

	if owner != "" && !report.Passed() {
		if err := reportToGitHub(cmd.Context(), out, owner, repo, report); err != nil {
			return err
		}
	}

	if !report.Passed() {
		return errFailed
	}
	return nil
}

func reportToGitHub(ctx context.Context, out io.Writer, owner, repo string, report *validate.Report) error {
	client, err := publish.NewClient(os.Getenv("GITHUB_TOKEN"))
	if err != nil {
		return err
	}
	ref, err := publish.NewIssueReporter(client, logger).ReportValidation(ctx, owner, repo, report)
	if err != nil {
		return err
	}
	if ref == nil {
		return nil
	}
	if ref.Comment {
		ok(out, "Commented on issue #%d %s", ref.Number, ref.URL)
	} else {
		ok(out, "Opened issue #%d %s", ref.Number, ref.URL)
	}
	return nil
}

// watchDirectory runs fn once and then again after every settled change to
// a checkable file in dir, until ctx is done. Errors from fn are reported
// and do not stop the watch.
func watchDirectory(ctx context.Context, out io.Writer, dir string, fn func() error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	run := func() {
		if err := fn(); err != nil {
			fail(out, "%v", err)
		}
		step(out, "watching %s (Ctrl+C to stop)", dir)
	}
	run()

	timer := time.NewTimer(settleDelay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, open := <-watcher.Events:
			if !open {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if !validate.IsCheckable(ev.Name) {
				continue
			}
			logger.Debug("file changed", zap.String("path", ev.Name), zap.String("op", ev.Op.String()))
			timer.Reset(settleDelay)
		case err, open := <-watcher.Errors:
			if !open {
				return nil
			}
			logger.Warn("watch error", zap.Error(err))
		case <-timer.C:
			fmt.Fprintln(out)
			run()
		}
	}
}
