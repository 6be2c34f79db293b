package validate

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Report is the JSON validation report for a directory.
type Report struct {
	ID          string       `json:"id"`
	GeneratedAt time.Time    `json:"generated_at"`
	Directory   string       `json:"directory"`
	Files       []FileResult `json:"files"`
	Summary     Summary      `json:"summary"`
}

// Summary aggregates a report.
type Summary struct {
	Files    int `json:"files"`
	Passed   int `json:"passed"`
	Failed   int `json:"failed"`
	Critical int `json:"critical"`
	Warnings int `json:"warnings"`
	Info     int `json:"info"`
}

// NewReport builds a report over per-file results.
func NewReport(dir string, files []FileResult) *Report {
	if files == nil {
		files = []FileResult{}
	}
	r := &Report{
		ID:          uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Directory:   dir,
		Files:       files,
	}
	r.Summarize()
	return r
}

// Summarize recomputes the summary from the file results.
func (r *Report) Summarize() {
	s := Summary{Files: len(r.Files)}
	for i := range r.Files {
		f := &r.Files[i]
		if f.Passed {
			s.Passed++
		} else {
			s.Failed++
		}
		s.Critical += f.Count(SeverityCritical)
		s.Warnings += f.Count(SeverityWarning)
		s.Info += f.Count(SeverityInfo)
	}
	r.Summary = s
}

// Passed reports whether every file passed.
func (r *Report) Passed() bool {
	return r.Summary.Failed == 0
}

// Failures returns the files that did not pass.
func (r *Report) Failures() []FileResult {
	var out []FileResult
	for _, f := range r.Files {
		if !f.Passed {
			out = append(out, f)
		}
	}
	return out
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// Save writes the report to path, creating parent directories.
func (r *Report) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	defer f.Close()

	if err := r.WriteJSON(f); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return f.Close()
}
