package validate

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/Yates-Labs/folio/internal/logging"
)

// Patterns selects the files ValidateDirectory checks.
var Patterns = []string{"*.xhtml", "*.html", "*.css"}

// Validator runs the static rule set.
type Validator struct {
	style *StyleGuide
	log   *zap.Logger
}

// New creates a validator. A nil style guide uses the ACISS defaults.
func New(style *StyleGuide, log *zap.Logger) *Validator {
	if style == nil {
		style = DefaultStyleGuide()
	}
	return &Validator{style: style, log: logging.OrNop(log)}
}

// StyleGuide returns the design system in use.
func (v *Validator) StyleGuide() *StyleGuide { return v.style }

// ValidateFile reads and checks one file. Read failures are recorded on the
// result rather than returned.
func (v *Validator) ValidateFile(path string) FileResult {
	content, err := os.ReadFile(path)
	if err != nil {
		res := FileResult{Path: path, Error: fmt.Sprintf("failed to read file: %v", err)}
		res.finish()
		return res
	}
	return v.validate(path, filepath.Dir(path), content)
}

// ValidateContent checks in-memory content. name selects the rule set by
// extension; image references are not resolved.
func (v *Validator) ValidateContent(name string, content []byte) FileResult {
	return v.validate(name, "", content)
}

func (v *Validator) validate(name, dir string, content []byte) FileResult {
	res := FileResult{Path: name}

	if strings.EqualFold(filepath.Ext(name), ".css") {
		v.checkCSS(content, &res)
	} else {
		v.checkXHTML(content, dir, &res)
	}
	res.finish()

	v.log.Debug("validated file",
		zap.String("path", name),
		zap.Bool("passed", res.Passed),
		zap.Int("issues", len(res.Issues)),
	)
	return res
}

// ValidateDirectory checks every matching file directly inside dir, in name
// order. One unreadable file does not stop the others.
func (v *Validator) ValidateDirectory(dir string) (*Report, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNoDirectory, dir)
	}

	files, err := ListFiles(dir)
	if err != nil {
		return nil, err
	}

	results := make([]FileResult, 0, len(files))
	for _, f := range files {
		results = append(results, v.ValidateFile(f))
	}
	return NewReport(dir, results), nil
}

// ListFiles returns the files in dir matching Patterns, sorted.
func ListFiles(dir string) ([]string, error) {
	var files []string
	for _, pattern := range Patterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", dir, err)
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

// IsCheckable reports whether ValidateDirectory would pick up path.
func IsCheckable(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range Patterns {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}
