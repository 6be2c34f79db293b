// Package pipeline wires the chapter loader, agents and validator into the
// generate, validate and batch workflows.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Yates-Labs/folio/internal/agent"
	"github.com/Yates-Labs/folio/internal/chapter"
	"github.com/Yates-Labs/folio/internal/config"
	"github.com/Yates-Labs/folio/internal/logging"
	"github.com/Yates-Labs/folio/internal/metrics"
	"github.com/Yates-Labs/folio/internal/validate"
)

var (
	ErrNoAgents        = errors.New("agents are not configured")
	ErrEmptyText       = errors.New("model returned empty content")
	ErrDuplicateOutput = errors.New("chapters share an output file")
)

// Options tune a single orchestrated call.
type Options struct {
	// Validate runs the static validator on generated markup.
	Validate bool

	// Review additionally asks the validation agent for a review.
	Review bool
}

// Orchestrator coordinates the agents for one book project. It holds no
// mutable state between calls and is safe for concurrent use.
type Orchestrator struct {
	cfg       *config.Config
	agents    *agent.Registry
	validator *validate.Validator
	metrics   *metrics.Metrics
	log       *zap.Logger
}

// New creates an orchestrator. metrics may be nil.
func New(cfg *config.Config, agents *agent.Registry, validator *validate.Validator, m *metrics.Metrics, log *zap.Logger) *Orchestrator {
	if validator == nil {
		validator = validate.New(nil, log)
	}
	return &Orchestrator{
		cfg:       cfg,
		agents:    agents,
		validator: validator,
		metrics:   m,
		log:       logging.OrNop(log),
	}
}

// DefaultOptions follows the project's validation setting.
func (o *Orchestrator) DefaultOptions() Options {
	return Options{Validate: o.cfg.Project.ValidationEnabled}
}

// ChapterResult describes one generated chapter.
type ChapterResult struct {
	Number     string               `json:"number"`
	DataFile   string               `json:"data_file"`
	Output     string               `json:"output"`
	Bytes      int                  `json:"bytes"`
	Validation *validate.FileResult `json:"validation,omitempty"`
	Warnings   []string             `json:"warnings,omitempty"`
	Duration   time.Duration        `json:"duration"`
	Error      string               `json:"error,omitempty"`
}

func (o *Orchestrator) agent(role string) (*agent.Agent, error) {
	if o.agents == nil {
		return nil, ErrNoAgents
	}
	return o.agents.Get(role)
}

// GenerateChapter loads dataFile, generates chapter markup and writes it to
// outputFile. number overrides the record's roman numeral when set; it may
// be roman ("XIII") or decimal ("13").
func (o *Orchestrator) GenerateChapter(ctx context.Context, number, dataFile, outputFile string, opts Options) (*ChapterResult, error) {
	start := time.Now()
	result := &ChapterResult{Number: number, DataFile: dataFile, Output: outputFile}

	err := o.generateChapter(ctx, result, opts)
	result.Duration = time.Since(start)
	o.metrics.ObserveChapter(err == nil, result.Duration)
	if err != nil {
		result.Error = err.Error()
		return result, err
	}

	o.log.Info("chapter generated",
		zap.String("chapter", result.Number),
		zap.String("output", result.Output),
		zap.Int("bytes", result.Bytes),
		zap.Duration("elapsed", result.Duration),
	)
	return result, nil
}

func (o *Orchestrator) generateChapter(ctx context.Context, result *ChapterResult, opts Options) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before generation: %w", err)
	}

	rec, err := chapter.Load(result.DataFile)
	if err != nil {
		return err
	}

	if result.Number != "" {
		if err := applyNumber(rec, result.Number); err != nil {
			return err
		}
	}

	result.Warnings = rec.Normalize()
	for _, w := range result.Warnings {
		o.log.Warn("chapter data adjusted", zap.String("data_file", result.DataFile), zap.String("warning", w))
	}
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("%s: %w", result.DataFile, err)
	}
	result.Number = rec.Roman

	if result.Output == "" {
		result.Output = filepath.Join(o.cfg.Project.OutputDirectory, rec.OutputName())
	}

	prompt, err := agent.ChapterPrompt(rec)
	if err != nil {
		return err
	}

	chapterAgent, err := o.agent(config.RoleChapter)
	if err != nil {
		return err
	}
	resp, err := chapterAgent.Generate(ctx, prompt)
	if err != nil {
		return fmt.Errorf("chapter %s: %w", rec.Roman, err)
	}
	o.metrics.ObserveTokens(resp.InputTokens, resp.OutputTokens)

	markup := agent.ExtractMarkup(resp.Text)
	if markup == "" {
		return fmt.Errorf("chapter %s: %w", rec.Roman, ErrEmptyText)
	}
	if !strings.HasSuffix(markup, "\n") {
		markup += "\n"
	}

	if opts.Validate || opts.Review {
		fr := o.validator.ValidateContent(result.Output, []byte(markup))
		o.observeIssues(&fr)
		for _, is := range fr.Issues {
			o.log.Warn("validation issue",
				zap.String("chapter", rec.Roman),
				zap.String("rule", is.Rule),
				zap.String("severity", string(is.Severity)),
				zap.String("message", is.Message),
			)
		}
		if opts.Review {
			fr.Review = o.review(ctx, result.Output, markup)
		}
		result.Validation = &fr
	}

	if err := WriteFile(result.Output, []byte(markup)); err != nil {
		return err
	}
	result.Bytes = len(markup)
	return nil
}

// applyNumber sets the record's numeral from a roman or decimal string.
func applyNumber(rec *chapter.Record, number string) error {
	number = strings.TrimSpace(number)
	if n, err := strconv.Atoi(number); err == nil {
		roman := chapter.ToRoman(n)
		if roman == "" {
			return fmt.Errorf("%w: chapter number %d out of range", chapter.ErrInvalidRecord, n)
		}
		rec.Roman, rec.Number = roman, n
		return nil
	}

	n, err := chapter.ParseRoman(number)
	if err != nil {
		return fmt.Errorf("%w: %w", chapter.ErrInvalidRecord, err)
	}
	rec.Roman, rec.Number = strings.ToUpper(number), n
	return nil
}

// review asks the validation agent for a free-text review. Failures are
// returned as the review text so a report still records them.
func (o *Orchestrator) review(ctx context.Context, path, content string) string {
	a, err := o.agent(config.RoleValidation)
	if err != nil {
		return "review unavailable: " + err.Error()
	}
	resp, err := a.Generate(ctx, agent.ValidationPrompt(path, content))
	if err != nil {
		o.log.Warn("review failed", zap.String("path", path), zap.Error(err))
		return "review failed: " + err.Error()
	}
	o.metrics.ObserveTokens(resp.InputTokens, resp.OutputTokens)
	return strings.TrimSpace(resp.Text)
}

func (o *Orchestrator) observeIssues(fr *validate.FileResult) {
	o.metrics.ObserveIssues(map[string]int{
		string(validate.SeverityCritical): fr.Count(validate.SeverityCritical),
		string(validate.SeverityWarning):  fr.Count(validate.SeverityWarning),
		string(validate.SeverityInfo):     fr.Count(validate.SeverityInfo),
	})
}

// ValidateDirectory statically validates dir. With review, every readable
// file also gets the validation agent's review.
func (o *Orchestrator) ValidateDirectory(ctx context.Context, dir string, review bool) (*validate.Report, error) {
	report, err := o.validator.ValidateDirectory(dir)
	if err != nil {
		return nil, err
	}

	for i := range report.Files {
		f := &report.Files[i]
		o.observeIssues(f)
		if !review || f.Error != "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("review cancelled: %w", err)
		}
		content, err := os.ReadFile(f.Path)
		if err != nil {
			f.Error = fmt.Sprintf("failed to read file: %v", err)
			f.Passed = false
			continue
		}
		f.Review = o.review(ctx, f.Path, string(content))
	}
	report.Summarize()

	o.log.Info("directory validated",
		zap.String("directory", dir),
		zap.Int("files", report.Summary.Files),
		zap.Int("failed", report.Summary.Failed),
	)
	return report, nil
}

// GenerateFrontMatter renders a front or back matter page of the given kind
// (title, copyright, dedication, ...) from a YAML or JSON data file.
func (o *Orchestrator) GenerateFrontMatter(ctx context.Context, kind, dataFile, output string) (int, error) {
	data, err := chapter.LoadData(dataFile)
	if err != nil {
		return 0, err
	}
	prompt, err := agent.FrontMatterPrompt(kind, data)
	if err != nil {
		return 0, err
	}
	return o.run(ctx, config.RoleContent, prompt, output)
}

// FormatFile passes an existing file through the formatter agent.
func (o *Orchestrator) FormatFile(ctx context.Context, kind, input, output string) (int, error) {
	content, err := os.ReadFile(input)
	if err != nil {
		return 0, fmt.Errorf("failed to read input: %w", err)
	}
	if output == "" {
		output = input
	}
	return o.run(ctx, config.RoleFormatter, agent.FormatPrompt(kind, string(content)), output)
}

func (o *Orchestrator) run(ctx context.Context, role, prompt, output string) (int, error) {
	a, err := o.agent(role)
	if err != nil {
		return 0, err
	}
	resp, err := a.Generate(ctx, prompt)
	if err != nil {
		return 0, err
	}
	o.metrics.ObserveTokens(resp.InputTokens, resp.OutputTokens)

	text := agent.ExtractMarkup(resp.Text)
	if text == "" {
		return 0, ErrEmptyText
	}
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	if err := WriteFile(output, []byte(text)); err != nil {
		return 0, err
	}
	o.log.Info("file written", zap.String("agent", role), zap.String("output", output), zap.Int("bytes", len(text)))
	return len(text), nil
}

// WriteFile writes data to path, creating parent directories. The bytes on
// disk are exactly data.
func WriteFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
