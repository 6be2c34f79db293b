package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/Yates-Labs/folio/internal/chapter"
)

// BatchConfig lists the chapters generated by one batch run.
type BatchConfig struct {
	OutputDirectory string         `yaml:"output_directory"`
	MaxWorkers      int            `yaml:"max_workers"`
	Chapters        []BatchChapter `yaml:"chapters"`
}

// BatchChapter is one entry of a batch file.
type BatchChapter struct {
	// Number is a roman numeral or decimal; empty uses the data file's.
	Number   string `yaml:"number"`
	DataFile string `yaml:"data_file"`

	// Output defaults to chapter-<roman>.xhtml in the output directory.
	Output string `yaml:"output"`
}

// LoadBatchConfig reads a batch file. Relative data and output paths are
// kept as written, relative to the working directory.
func LoadBatchConfig(path string) (*BatchConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch config: %w", err)
	}
	var bc BatchConfig
	if err := yaml.Unmarshal(data, &bc); err != nil {
		return nil, fmt.Errorf("failed to parse batch config %s: %w", path, err)
	}
	if len(bc.Chapters) == 0 {
		return nil, fmt.Errorf("batch config %s lists no chapters", path)
	}
	outputs := make(map[string]int)
	for i, ch := range bc.Chapters {
		if strings.TrimSpace(ch.DataFile) == "" {
			return nil, fmt.Errorf("batch config %s: chapter %d has no data_file", path, i+1)
		}
		if ch.Output == "" {
			continue
		}
		out := filepath.Clean(ch.Output)
		if j, ok := outputs[out]; ok {
			return nil, fmt.Errorf("batch config %s: %w: chapters %d and %d both write %s", path, ErrDuplicateOutput, j+1, i+1, out)
		}
		outputs[out] = i
	}
	return &bc, nil
}

// BatchResult is the outcome of a batch run. Chapters are in input order.
type BatchResult struct {
	RunID     string          `json:"run_id"`
	StartedAt time.Time       `json:"started_at"`
	Duration  time.Duration   `json:"duration"`
	Chapters  []ChapterResult `json:"chapters"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
}

// RunBatch generates every chapter in bc on a bounded worker pool. A failed
// chapter is recorded in its result and does not cancel the others.
func (o *Orchestrator) RunBatch(ctx context.Context, bc BatchConfig) (*BatchResult, error) {
	if len(bc.Chapters) == 0 {
		return nil, fmt.Errorf("batch has no chapters")
	}

	workers := bc.MaxWorkers
	if workers <= 0 {
		workers = o.cfg.Project.MaxWorkers
	}
	if workers <= 0 {
		workers = 1
	}
	outDir := bc.OutputDirectory
	if outDir == "" {
		outDir = o.cfg.Project.OutputDirectory
	}

	outputs, err := batchOutputs(outDir, bc.Chapters)
	if err != nil {
		return nil, err
	}

	run := &BatchResult{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Chapters:  make([]ChapterResult, len(bc.Chapters)),
	}
	log := o.log.With(zap.String("run_id", run.RunID))
	log.Info("batch started", zap.Int("chapters", len(bc.Chapters)), zap.Int("workers", workers))

	opts := o.DefaultOptions()

	var g errgroup.Group
	g.SetLimit(workers)
	for i, ch := range bc.Chapters {
		g.Go(func() error {
			res, err := o.GenerateChapter(ctx, ch.Number, ch.DataFile, outputs[i], opts)
			if err != nil {
				log.Error("chapter failed", zap.String("data_file", ch.DataFile), zap.Error(err))
			}
			run.Chapters[i] = *res
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range run.Chapters {
		if res.Error == "" {
			run.Succeeded++
		} else {
			run.Failed++
		}
	}
	run.Duration = time.Since(run.StartedAt)

	log.Info("batch finished",
		zap.Int("succeeded", run.Succeeded),
		zap.Int("failed", run.Failed),
		zap.Duration("elapsed", run.Duration),
	)
	return run, nil
}

// batchOutputs resolves the output file of every chapter. Two chapters
// resolving to the same file fail the whole batch before anything runs.
func batchOutputs(dir string, chapters []BatchChapter) ([]string, error) {
	outputs := make([]string, len(chapters))
	seen := make(map[string]int, len(chapters))
	for i, ch := range chapters {
		out := ch.Output
		if out == "" {
			out = defaultOutput(dir, ch)
		}
		out = filepath.Clean(out)
		if j, ok := seen[out]; ok {
			return nil, fmt.Errorf("%w: chapters %d and %d both write %s", ErrDuplicateOutput, j+1, i+1, out)
		}
		seen[out] = i
		outputs[i] = out
	}
	return outputs, nil
}

// defaultOutput names a chapter's file from its number, or from the data
// file stem when the number is only known after loading.
func defaultOutput(dir string, ch BatchChapter) string {
	if ch.Number != "" {
		rec := &chapter.Record{}
		if err := applyNumber(rec, ch.Number); err == nil {
			return filepath.Join(dir, rec.OutputName())
		}
	}
	if rec, err := chapter.Load(ch.DataFile); err == nil {
		rec.Normalize()
		if rec.Roman != "" {
			return filepath.Join(dir, rec.OutputName())
		}
	}
	base := filepath.Base(ch.DataFile)
	return filepath.Join(dir, strings.TrimSuffix(base, filepath.Ext(base))+".xhtml")
}
