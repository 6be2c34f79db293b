// Package chapter models the per-chapter data record that drives generation.
package chapter

// MaxQuizQuestions is the most quiz questions a chapter may carry.
const MaxQuizQuestions = 4

// OptionsPerQuestion is the number of answer options every quiz question has.
const OptionsPerQuestion = 4

// DefaultClosingImage is used when a record names no closing image.
const DefaultClosingImage = "images/chapter-default.jpg"

// Record is the structured input to a single chapter generation call.
type Record struct {
	Roman          string   `yaml:"roman" json:"roman"`
	Number         int      `yaml:"number,omitempty" json:"number,omitempty"`
	Title          string   `yaml:"title" json:"title"`
	TitleLines     []string `yaml:"title_lines,omitempty" json:"title_lines,omitempty"`
	BibleQuote     string   `yaml:"bible_quote" json:"bible_quote"`
	BibleReference string   `yaml:"bible_reference" json:"bible_reference"`
	Introduction   string   `yaml:"introduction" json:"introduction"`
	Dropcap        string   `yaml:"dropcap,omitempty" json:"dropcap,omitempty"`

	// Content is pre-formatted body markup.
	Content            string    `yaml:"content" json:"content"`
	ContentSections    []Section `yaml:"content_sections,omitempty" json:"content_sections,omitempty"`
	LearningObjectives []string  `yaml:"learning_objectives,omitempty" json:"learning_objectives,omitempty"`

	Endnotes      []string     `yaml:"endnotes,omitempty" json:"endnotes,omitempty"`
	QuizQuestions []Question   `yaml:"quiz_questions,omitempty" json:"quiz_questions,omitempty"`
	QuizFocus     []string     `yaml:"quiz_focus,omitempty" json:"quiz_focus,omitempty"`
	Worksheet     Worksheet    `yaml:"worksheet" json:"worksheet"`
	ClosingImage  ClosingImage `yaml:"closing_image" json:"closing_image"`

	// source is the file the record was loaded from.
	source string
}

// Section is a headed block of chapter body content.
type Section struct {
	Heading string `yaml:"heading" json:"heading"`
	Content string `yaml:"content" json:"content"`
}

// Question is a multiple-choice quiz question.
type Question struct {
	Question string   `yaml:"question" json:"question"`
	Options  []string `yaml:"options" json:"options"`
}

// Worksheet is the static exercise page of a chapter.
type Worksheet struct {
	Title    string             `yaml:"title" json:"title"`
	Sections []WorksheetSection `yaml:"sections,omitempty" json:"sections,omitempty"`
}

// WorksheetSection is one prompt on the worksheet page.
// Lines is the number of blank writing lines to render, 0 for none.
type WorksheetSection struct {
	Heading string `yaml:"heading" json:"heading"`
	Content string `yaml:"content" json:"content"`
	Lines   int    `yaml:"lines,omitempty" json:"lines,omitempty"`
}

// ClosingImage is the inspirational image that ends a chapter.
type ClosingImage struct {
	Src     string `yaml:"src" json:"src"`
	Alt     string `yaml:"alt,omitempty" json:"alt,omitempty"`
	Caption string `yaml:"caption" json:"caption"`
}

// Source returns the path the record was loaded from, if any.
func (r *Record) Source() string {
	return r.source
}
