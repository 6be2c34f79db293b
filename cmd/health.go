package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/folio/internal/agent"
	"github.com/Yates-Labs/folio/internal/config"
	"github.com/Yates-Labs/folio/internal/vcs"
)

var healthCmd = &cobra.Command{
	Use:   "health-check",
	Short: "Check configuration, API key and agents",
	Long: `Check that the configuration loads, an API key is available for the
configured provider, the style guide parses and every agent can be built.

Exits non-zero when any required check fails.`,
	Args: cobra.NoArgs,
	RunE: runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	failed := false

	fmt.Fprintln(out, headerStyle.Render("folio health check"))

	cfg, err := config.Load(configPath)
	if err != nil {
		fail(out, "configuration: %v", err)
		return errFailed
	}
	if _, statErr := os.Stat(configPath); statErr == nil {
		ok(out, "configuration loaded from %s", configPath)
	} else {
		warn(out, "%s not found, using defaults", configPath)
	}
	fmt.Fprintln(out, "  "+mutedStyle.Render(fmt.Sprintf("provider %s, model %s", cfg.Provider, cfg.Model)))

	if err := cfg.RequireAPIKey(); err != nil {
		fail(out, "API key: %v", err)
		failed = true
	} else {
		ok(out, "API key found (%s)", config.APIKeyEnv(cfg.Provider))
	}

	if style, err := loadStyleGuide(cfg); err != nil {
		fail(out, "style guide: %v", err)
		failed = true
	} else {
		ok(out, "style guide %s (%d fonts)", style.Name, len(style.Fonts()))
	}

	if !failed {
		reg, err := agent.Connect(cmd.Context(), cfg, logger)
		if err != nil {
			fail(out, "agents: %v", err)
			failed = true
		} else {
			for _, role := range reg.Roles() {
				a, _ := reg.Get(role)
				s := a.Settings()
				ok(out, "%s agent ready (max_tokens %d, temperature %.1f)", role, s.MaxTokens, s.Temperature)
			}
		}
	}

	checkRepository(out)

	if cfg.Embedding.APIKey == "" {
		warn(out, "OPENAI_API_KEY not set: index and chat --context are unavailable")
	}
	if os.Getenv("GITHUB_TOKEN") == "" {
		warn(out, "GITHUB_TOKEN not set: validate --github-repo is unavailable")
	}

	if failed {
		return errFailed
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, successStyle.Render("All required checks passed"))
	return nil
}

// checkRepository reports the git repository holding the project, found from
// the configuration file's directory. Problems are warnings only.
func checkRepository(out io.Writer) {
	dir, err := filepath.Abs(filepath.Dir(configPath))
	if err != nil {
		return
	}
	repo, err := vcs.OpenRepository(dir)
	if err != nil {
		warn(out, "no git repository: generate-chapter --commit is unavailable")
		return
	}
	commits, err := vcs.History(repo, 1)
	if err != nil || len(commits) == 0 {
		warn(out, "git repository has no readable commits")
		return
	}
	c := commits[0]
	ok(out, "git repository, last commit %s %s (%s)", c.Hash[:7], c.Subject, c.When.Format("2006-01-02"))
}
