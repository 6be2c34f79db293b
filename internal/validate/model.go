// Package validate statically checks generated EPUB XHTML and CSS against
// the structural rules of a chapter and the book's style guide.
package validate

import "errors"

var (
	ErrNoDirectory = errors.New("validation directory not found")
)

// Severity grades an issue. Only critical issues fail a file.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Rule identifiers reported in issues.
const (
	RuleWellFormed   = "xml-wellformed"
	RuleDoctype      = "doctype"
	RuleNamespace    = "namespace"
	RuleHead         = "head"
	RuleTitle        = "title"
	RuleCharset      = "charset"
	RuleStylesheet   = "stylesheet"
	RuleStructure    = "structure"
	RulePageBreaks   = "page-breaks"
	RuleQuizCount    = "quiz-count"
	RuleQuizOptions  = "quiz-options"
	RuleImgAlt       = "img-alt"
	RuleImgSrc       = "img-src"
	RuleHeadingOrder = "heading-order"
	RuleCSSBraces    = "css-braces"
	RuleCSSFonts     = "css-fonts"
	RuleCSSColors    = "css-colors"
)

// XHTMLNamespace is the namespace every XHTML document must declare.
const XHTMLNamespace = "http://www.w3.org/1999/xhtml"

// ChapterSections are the classes of the required chapter page elements,
// in reading order.
var ChapterSections = []string{
	"roman-badge",
	"title-stack",
	"bible-quote",
	"introduction",
	"chapter-body",
	"endnotes",
	"quiz",
	"worksheet",
	"closing-image",
}

// MinPageBreaks separates the six pages of a chapter.
const MinPageBreaks = 5

// Issue is a single rule violation.
type Issue struct {
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Line     int      `json:"line,omitempty"`
}

// FileResult holds the outcome for one file.
type FileResult struct {
	Path   string  `json:"path"`
	Passed bool    `json:"passed"`
	Issues []Issue `json:"issues"`

	// Error is set when the file could not be read or checked at all.
	Error string `json:"error,omitempty"`

	// Review is the validation agent's free-text review, when requested.
	Review string `json:"review,omitempty"`
}

// Count returns the number of issues with the given severity.
func (r *FileResult) Count(s Severity) int {
	n := 0
	for _, is := range r.Issues {
		if is.Severity == s {
			n++
		}
	}
	return n
}

// Rules returns the rule ids reported for the file, in order.
func (r *FileResult) Rules() []string {
	rules := make([]string, len(r.Issues))
	for i, is := range r.Issues {
		rules[i] = is.Rule
	}
	return rules
}

func (r *FileResult) add(rule string, sev Severity, msg string) {
	r.Issues = append(r.Issues, Issue{Rule: rule, Severity: sev, Message: msg})
}

func (r *FileResult) finish() {
	if r.Issues == nil {
		r.Issues = []Issue{}
	}
	r.Passed = r.Error == "" && r.Count(SeverityCritical) == 0
}
