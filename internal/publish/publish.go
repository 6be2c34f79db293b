// Package publish files validation failures as GitHub issues.
package publish

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/go-github/v77/github"
	"go.uber.org/zap"

	"github.com/Yates-Labs/folio/internal/logging"
	"github.com/Yates-Labs/folio/internal/validate"
)

var (
	ErrMissingToken = errors.New("GITHUB_TOKEN is not set")
	ErrInvalidRepo  = errors.New("invalid repository, expected owner/name")
)

// Label marks issues opened by folio.
const Label = "epub-validation"

// NewClient creates a GitHub API client with authentication
func NewClient(token string) (*github.Client, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	return github.NewClient(nil).WithAuthToken(token), nil
}

// ParseRepo accepts owner/name, an https URL or an ssh remote.
func ParseRepo(s string) (owner, repo string, err error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "git@")
	s = strings.Replace(s, "github.com:", "github.com/", 1)
	s = strings.TrimPrefix(s, "github.com/")
	s = strings.TrimSuffix(s, "/")
	s = strings.TrimSuffix(s, ".git")

	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRepo, s)
	}
	return parts[0], parts[1], nil
}

// IssueRef identifies the issue a report was filed on.
type IssueRef struct {
	Number  int    `json:"number"`
	URL     string `json:"url"`
	Comment bool   `json:"comment"`
}

// IssueReporter opens, or comments on, one issue per validated directory.
type IssueReporter struct {
	client *github.Client
	log    *zap.Logger
}

// NewIssueReporter wraps an authenticated client.
func NewIssueReporter(client *github.Client, log *zap.Logger) *IssueReporter {
	return &IssueReporter{client: client, log: logging.OrNop(log)}
}

// ReportValidation files a failing report. A passing report files nothing
// and returns nil. When an open issue for the same directory exists the
// report is added to it as a comment.
func (r *IssueReporter) ReportValidation(ctx context.Context, owner, repo string, report *validate.Report) (*IssueRef, error) {
	if report == nil || report.Passed() {
		return nil, nil
	}

	title := IssueTitle(report)
	body := IssueBody(report)

	existing, err := r.findOpenIssue(ctx, owner, repo, title)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		comment, _, err := r.client.Issues.CreateComment(ctx, owner, repo, existing.GetNumber(), &github.IssueComment{
			Body: github.Ptr(body),
		})
		if err != nil {
			return nil, handleAPIError(err, "failed to comment on issue")
		}
		r.log.Info("validation report added to issue",
			zap.String("repo", owner+"/"+repo),
			zap.Int("issue", existing.GetNumber()),
		)
		return &IssueRef{Number: existing.GetNumber(), URL: comment.GetHTMLURL(), Comment: true}, nil
	}

	issue, _, err := r.client.Issues.Create(ctx, owner, repo, &github.IssueRequest{
		Title:  github.Ptr(title),
		Body:   github.Ptr(body),
		Labels: &[]string{Label},
	})
	if err != nil {
		return nil, handleAPIError(err, "failed to create issue")
	}
	r.log.Info("validation issue opened",
		zap.String("repo", owner+"/"+repo),
		zap.Int("issue", issue.GetNumber()),
	)
	return &IssueRef{Number: issue.GetNumber(), URL: issue.GetHTMLURL()}, nil
}

func (r *IssueReporter) findOpenIssue(ctx context.Context, owner, repo, title string) (*github.Issue, error) {
	issues, _, err := r.client.Issues.ListByRepo(ctx, owner, repo, &github.IssueListByRepoOptions{
		State:       "open",
		Labels:      []string{Label},
		ListOptions: github.ListOptions{PerPage: 100},
	})
	if err != nil {
		return nil, handleAPIError(err, "failed to list issues")
	}
	for _, is := range issues {
		if is.GetTitle() == title && !is.IsPullRequest() {
			return is, nil
		}
	}
	return nil, nil
}

// IssueTitle is stable per directory so repeated runs reuse one issue.
func IssueTitle(report *validate.Report) string {
	return fmt.Sprintf("EPUB validation failed: %s", report.Directory)
}

// IssueBody renders the failing files and their critical issues as Markdown.
func IssueBody(report *validate.Report) string {
	var b strings.Builder
	s := report.Summary

	b.WriteString(fmt.Sprintf("Validation run `%s` at %s\n\n", report.ID, report.GeneratedAt.Format("2006-01-02 15:04 MST")))
	b.WriteString(fmt.Sprintf("**%d of %d files failed** (%d critical, %d warnings, %d info)\n\n",
		s.Failed, s.Files, s.Critical, s.Warnings, s.Info))

	for _, f := range report.Failures() {
		b.WriteString(fmt.Sprintf("### `%s`\n\n", f.Path))
		if f.Error != "" {
			b.WriteString(fmt.Sprintf("- error: %s\n", f.Error))
		}
		for _, is := range f.Issues {
			if is.Severity != validate.SeverityCritical {
				continue
			}
			if is.Line > 0 {
				b.WriteString(fmt.Sprintf("- **%s** (line %d): %s\n", is.Rule, is.Line, is.Message))
			} else {
				b.WriteString(fmt.Sprintf("- **%s**: %s\n", is.Rule, is.Message))
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

// handleAPIError wraps API errors with context and detects rate limiting
func handleAPIError(err error, msg string) error {
	var rateLimitErr *github.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return fmt.Errorf("%s: hit primary rate limit (used %d of %d, resets at %v): %w",
			msg, rateLimitErr.Rate.Used, rateLimitErr.Rate.Limit, rateLimitErr.Rate.Reset.Time, err)
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return fmt.Errorf("%s: hit secondary rate limit (retry after %v): %w",
			msg, abuseErr.GetRetryAfter(), err)
	}

	return fmt.Errorf("%s: %w", msg, err)
}
