package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Yates-Labs/folio/internal/agent"
	"github.com/Yates-Labs/folio/internal/config"
	"github.com/Yates-Labs/folio/internal/rag"
	"github.com/Yates-Labs/folio/internal/validate"
	"github.com/Yates-Labs/folio/internal/vcs"
)

// execute runs the CLI with args and returns what it printed. Flag values
// are reset first since cobra keeps them between runs.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var reset func(c *cobra.Command)
	reset = func(c *cobra.Command) {
		for _, fs := range []*pflag.FlagSet{c.Flags(), c.PersistentFlags()} {
			fs.VisitAll(func(f *pflag.Flag) {
				if sv, ok := f.Value.(pflag.SliceValue); ok {
					_ = sv.Replace(nil)
				} else {
					_ = f.Value.Set(f.DefValue)
				}
				f.Changed = false
			})
		}
		for _, sub := range c.Commands() {
			reset(sub)
		}
	}
	reset(rootCmd)

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func clearKeys(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
}

func TestInitCommand(t *testing.T) {
	root := filepath.Join(t.TempDir(), "book")

	out, err := execute(t, "init", "--project-name", "Test-Book", "--base-dir", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Test-Book")
	assert.FileExists(t, filepath.Join(root, "config", "agents.yaml"))
	assert.FileExists(t, filepath.Join(root, "OEBPS", "styles", "aciss.css"))

	out, err = execute(t, "init", "--base-dir", root)
	require.NoError(t, err)
	assert.Contains(t, out, "kept existing config/agents.yaml")
}

func TestInitCommand_Git(t *testing.T) {
	root := filepath.Join(t.TempDir(), "book")

	out, err := execute(t, "init", "--project-name", "Test-Book", "--base-dir", root, "--git")
	require.NoError(t, err)
	assert.Contains(t, out, "Initialized git repository")

	repo, err := vcs.OpenRepository(root)
	require.NoError(t, err)
	commits, err := vcs.History(repo, 0)
	require.NoError(t, err)
	require.Len(t, commits, 1)
	assert.Equal(t, "Initialize Test-Book", commits[0].Subject)

	// a second run writes nothing new
	out, err = execute(t, "init", "--project-name", "Test-Book", "--base-dir", root, "--git")
	require.NoError(t, err)
	assert.Contains(t, out, "nothing new to commit")
}

func TestValidateCommand(t *testing.T) {
	clearKeys(t)
	root := filepath.Join(t.TempDir(), "book")
	_, err := execute(t, "init", "--base-dir", root)
	require.NoError(t, err)

	styles := filepath.Join(root, "OEBPS", "styles")
	cfgPath := filepath.Join(root, "config", "agents.yaml")
	reportPath := filepath.Join(t.TempDir(), "report.json")

	out, err := execute(t, "validate", "--config", cfgPath, "--directory", styles, "--output", reportPath)
	require.NoError(t, err)
	assert.Contains(t, out, "style guide")
	assert.Contains(t, out, "PASS")
	assert.Contains(t, out, "1 files: 1 passed, 0 failed")

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	var report validate.Report
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, 1, report.Summary.Passed)
}

func TestValidateCommand_Failure(t *testing.T) {
	clearKeys(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.xhtml"), []byte("<html><body><p>open"), 0644))

	out, err := execute(t, "validate", "--config", filepath.Join(dir, "missing.yaml"), "--directory", dir)
	assert.ErrorIs(t, err, errFailed)
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, validate.RuleWellFormed)
}

func TestValidateCommand_BadRepo(t *testing.T) {
	_, err := execute(t, "validate", "--directory", t.TempDir(), "--github-repo", "not-a-repo")
	assert.Error(t, err)
}

func TestHealthCheck_MissingKey(t *testing.T) {
	clearKeys(t)
	out, err := execute(t, "health-check", "--config", filepath.Join(t.TempDir(), "agents.yaml"))
	assert.ErrorIs(t, err, errFailed)
	assert.Contains(t, out, "API key")
}

func TestHealthCheck_ReportsLastCommit(t *testing.T) {
	clearKeys(t)
	root := filepath.Join(t.TempDir(), "book")
	_, err := execute(t, "init", "--project-name", "Test-Book", "--base-dir", root, "--git")
	require.NoError(t, err)

	out, err := execute(t, "health-check", "--config", filepath.Join(root, "config", "agents.yaml"))
	assert.ErrorIs(t, err, errFailed)
	assert.Contains(t, out, "last commit")
	assert.Contains(t, out, "Initialize Test-Book")
}

func TestHealthCheck_NoRepository(t *testing.T) {
	clearKeys(t)
	out, _ := execute(t, "health-check", "--config", filepath.Join(t.TempDir(), "agents.yaml"))
	assert.Contains(t, out, "no git repository")
}

func TestBatchCommand_RequiresConfig(t *testing.T) {
	_, err := execute(t, "batch")
	assert.Error(t, err)
}

func newTestSession(t *testing.T, llm *agent.MockLLM) *chatSession {
	t.Helper()
	cfg := config.DefaultConfig()
	reg, err := agent.NewRegistry(llm, cfg, zap.NewNop())
	require.NoError(t, err)
	ag, err := reg.Get(config.RoleContent)
	require.NoError(t, err)
	return &chatSession{agent: ag, render: func(s string) string { return s + "\n" }}
}

func TestChatSession(t *testing.T) {
	llm := agent.NewMockLLM("Use a round brush.")
	s := newTestSession(t, llm)

	in := strings.NewReader("help\nHow do I add volume?\n\nFollow up?\nreset\nexit\n")
	var out bytes.Buffer
	require.NoError(t, s.run(context.Background(), in, &out))

	text := out.String()
	assert.Contains(t, text, "Chatting with the content agent")
	assert.Contains(t, text, "reset  clear the conversation")
	assert.Contains(t, text, "Use a round brush.")
	assert.Contains(t, text, "Conversation cleared")
	assert.Contains(t, text, "Goodbye.")

	// the second question carried the first exchange
	assert.Len(t, llm.LastRequest().Messages, 3)
	assert.Empty(t, s.history)
}

func TestChatSession_EndOfInput(t *testing.T) {
	s := newTestSession(t, agent.NewMockLLM("ok"))
	var out bytes.Buffer
	require.NoError(t, s.run(context.Background(), strings.NewReader("hi"), &out))
	assert.Len(t, s.history, 2)
}

func TestChatSession_Context(t *testing.T) {
	llm := agent.NewMockLLM("Chapter XIII covers it.")
	s := newTestSession(t, llm)
	s.retrieve = func(ctx context.Context, q string) ([]agent.ContextChunk, error) {
		return []agent.ContextChunk{{ChapterID: "Chapter XIII", Title: "Thermal Styling", Text: "Blow drying basics", Score: 0.9}}, nil
	}

	reply, err := s.ask(context.Background(), "Where is blow drying covered?")
	require.NoError(t, err)
	assert.Equal(t, "Chapter XIII covers it.", reply)

	sent := llm.LastRequest().Messages
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Content, "# Related Chapters")
	assert.Contains(t, sent[0].Content, "Thermal Styling")

	require.Len(t, s.history, 2)
	assert.Equal(t, "Where is blow drying covered?", s.history[0].Content)
}

func TestChatCommand_ChaptersNeedContext(t *testing.T) {
	_, err := execute(t, "chat", "--chapters", "chapter-i")
	assert.ErrorContains(t, err, "--chapters requires --context")
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, texts []string) ([]rag.EmbeddingRecord, error) {
	out := make([]rag.EmbeddingRecord, len(texts))
	for i, t := range texts {
		out[i] = rag.EmbeddingRecord{Text: t, Embedding: []float32{1, 0}, Index: i}
	}
	return out, nil
}

func (stubEmbedder) Model() string  { return "stub" }
func (stubEmbedder) Dimension() int { return 2 }

// stubStore returns one chunk per indexed chapter, honouring the id filter.
type stubStore struct {
	chunks []rag.ContextChunk
	opts   *rag.SearchOptions
}

func (s *stubStore) Insert(ctx context.Context, records []rag.ChapterRecord) error { return nil }
func (s *stubStore) Flush(ctx context.Context) error                               { return nil }
func (s *stubStore) Query(ctx context.Context, ids []string) (map[string]bool, error) {
	return nil, nil
}
func (s *stubStore) Delete(ctx context.Context, ids []string) error { return nil }
func (s *stubStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	return nil, nil
}
func (s *stubStore) Close() error { return nil }

func (s *stubStore) Search(ctx context.Context, vec []float32, topK int, opts *rag.SearchOptions) ([]rag.ContextChunk, error) {
	s.opts = opts
	var out []rag.ContextChunk
	for _, c := range s.chunks {
		if opts != nil && len(opts.ChapterIDs) > 0 && !slices.Contains(opts.ChapterIDs, c.ChapterID) {
			continue
		}
		out = append(out, c)
	}
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func TestChapterRetrieval(t *testing.T) {
	store := &stubStore{chunks: []rag.ContextChunk{
		{ChapterID: "chapter-xiii", Roman: "XIII", Title: "Thermal Styling", Score: 0.9},
		{ChapterID: "chapter-xiv", Roman: "XIV", Title: "Braiding", Score: 0.5},
	}}
	r, err := rag.NewRetriever(stubEmbedder{}, store)
	require.NoError(t, err)

	all, err := chapterRetrieval(r, 5, nil)(context.Background(), "styling")
	require.NoError(t, err)
	assert.Nil(t, store.opts)
	require.Len(t, all, 2)
	assert.Equal(t, "Chapter XIII", all[0].ChapterID)

	only, err := chapterRetrieval(r, 5, []string{"chapter-xiv"})(context.Background(), "styling")
	require.NoError(t, err)
	require.NotNil(t, store.opts)
	assert.Equal(t, []string{"chapter-xiv"}, store.opts.ChapterIDs)
	require.Len(t, only, 1)
	assert.Equal(t, "Braiding", only[0].Title)
}

func TestWatchDirectory(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- watchDirectory(ctx, &bytes.Buffer{}, dir, func() error {
			runs.Add(1)
			return nil
		})
	}()

	require.Eventually(t, func() bool { return runs.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	// ignored: not a checkable file
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chapter-i.xhtml"), []byte("<html/>"), 0644))

	require.Eventually(t, func() bool { return runs.Load() == 2 }, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestWatchDirectory_MissingDir(t *testing.T) {
	err := watchDirectory(context.Background(), &bytes.Buffer{}, filepath.Join(t.TempDir(), "nope"), func() error { return nil })
	assert.Error(t, err)
}

func TestPrintReport(t *testing.T) {
	report := validate.NewReport("OEBPS", []validate.FileResult{
		{Path: "OEBPS/text/chapter-i.xhtml", Passed: true},
		{
			Path:   "OEBPS/text/chapter-ii.xhtml",
			Passed: false,
			Issues: []validate.Issue{{Rule: validate.RuleDoctype, Severity: validate.SeverityCritical, Message: "missing DOCTYPE", Line: 1}},
			Review: "Score 4/10",
		},
	})

	var buf bytes.Buffer
	printReport(&buf, report)
	out := buf.String()

	assert.Contains(t, out, "chapter-i.xhtml")
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, "missing DOCTYPE")
	assert.Contains(t, out, "line 1")
	assert.Contains(t, out, "Score 4/10")
	assert.Contains(t, out, "2 files: 1 passed, 1 failed")
}

func TestShorten(t *testing.T) {
	assert.Equal(t, "short", shorten("short", 10))
	assert.Equal(t, "...efghij", shorten("abcdefghij", 9))
	assert.Equal(t, "abcdefghij", shorten("abcdefghij", 3))
}
