package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Yates-Labs/folio/internal/chapter"
)

var (
	ErrMissingRecord = errors.New("chapter record required for chapter prompt")
)

// ReviewContentLimit caps how much of a file is sent for review.
const ReviewContentLimit = 3000

// ContextChunk is a piece of retrieved chapter text for prompt assembly.
// It mirrors the rag result type so this package stays free of the store.
type ContextChunk struct {
	ChapterID string
	Title     string
	Text      string
	Score     float32
}

// ChapterPrompt builds the generation prompt for one chapter record.
func ChapterPrompt(rec *chapter.Record) (string, error) {
	if rec == nil {
		return "", ErrMissingRecord
	}

	var b strings.Builder

	b.WriteString(fmt.Sprintf("Generate the complete XHTML for Chapter %s using this data.\n\n", rec.Roman))

	b.WriteString("# Chapter Data\n\n")
	b.WriteString(fmt.Sprintf("**Roman Numeral:** %s\n", rec.Roman))
	b.WriteString(fmt.Sprintf("**Title:** %s\n", rec.Title))
	if len(rec.TitleLines) > 0 {
		b.WriteString(fmt.Sprintf("**Title Lines:** %s\n", strings.Join(rec.TitleLines, " / ")))
	}
	b.WriteString(fmt.Sprintf("**Bible Quote:** %s\n", orNA(rec.BibleQuote)))
	b.WriteString(fmt.Sprintf("**Bible Reference:** %s\n\n", orNA(rec.BibleReference)))

	b.WriteString("**Introduction:**\n")
	if rec.Dropcap != "" {
		b.WriteString(fmt.Sprintf("(drop cap %q) ", rec.Dropcap))
	}
	b.WriteString(orNA(rec.Introduction) + "\n\n")

	if len(rec.LearningObjectives) > 0 {
		b.WriteString("**Learning Objectives:**\n")
		for _, o := range rec.LearningObjectives {
			b.WriteString("- " + o + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("**Content:**\n")
	if rec.Content != "" {
		b.WriteString(rec.Content + "\n")
	}
	for _, s := range rec.ContentSections {
		b.WriteString(fmt.Sprintf("## %s\n%s\n", s.Heading, s.Content))
	}
	if rec.Content == "" && len(rec.ContentSections) == 0 {
		b.WriteString("(write the body from the title, introduction and objectives)\n")
	}
	b.WriteString("\n")

	b.WriteString("**Endnotes:**\n")
	if len(rec.Endnotes) == 0 {
		b.WriteString("- (none)\n")
	}
	for i, n := range rec.Endnotes {
		b.WriteString(fmt.Sprintf("%d. %s\n", i+1, n))
	}
	b.WriteString("\n")

	b.WriteString(fmt.Sprintf("**Quiz Questions:** %d (maximum %d)\n", len(rec.QuizQuestions), chapter.MaxQuizQuestions))
	for i, q := range rec.QuizQuestions {
		b.WriteString(fmt.Sprintf("%d. %s\n", i+1, q.Question))
		for j, opt := range q.Options {
			if opt == "" {
				opt = "(write a plausible option)"
			}
			b.WriteString(fmt.Sprintf("   %c) %s\n", 'A'+j, opt))
		}
	}
	if len(rec.QuizQuestions) == 0 && len(rec.QuizFocus) > 0 {
		b.WriteString(fmt.Sprintf("Write up to %d questions covering: %s\n", chapter.MaxQuizQuestions, strings.Join(rec.QuizFocus, ", ")))
	}
	b.WriteString("\n")

	b.WriteString(fmt.Sprintf("**Worksheet:** %s\n", orNA(rec.Worksheet.Title)))
	for _, s := range rec.Worksheet.Sections {
		b.WriteString(fmt.Sprintf("- %s: %s", s.Heading, s.Content))
		if s.Lines > 0 {
			b.WriteString(fmt.Sprintf(" (%d writing lines)", s.Lines))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(fmt.Sprintf("**Closing Image:** %s", rec.ClosingImage.Src))
	if rec.ClosingImage.Alt != "" {
		b.WriteString(fmt.Sprintf(" (alt: %s)", rec.ClosingImage.Alt))
	}
	b.WriteString("\n")
	if rec.ClosingImage.Caption != "" {
		b.WriteString(fmt.Sprintf("**Caption:** %s\n", rec.ClosingImage.Caption))
	}
	b.WriteString("\n")

	b.WriteString("# Requirements\n\n")
	b.WriteString("- Complete XHTML document with XML declaration, DOCTYPE and XHTML namespace\n")
	b.WriteString("- All 6 pages separated by page breaks\n")
	b.WriteString("- ACISS design system classes throughout\n")
	b.WriteString("- Accessibility features, every image with alt text\n")
	b.WriteString(fmt.Sprintf("- No more than %d quiz questions, each with exactly %d options\n\n", chapter.MaxQuizQuestions, chapter.OptionsPerQuestion))
	b.WriteString("Return only the XHTML file, ready for EPUB inclusion.\n")

	return b.String(), nil
}

// ValidationPrompt builds the review prompt for one file. Content beyond
// ReviewContentLimit bytes is cut and marked with "...".
func ValidationPrompt(path, content string) string {
	if len(content) > ReviewContentLimit {
		n := ReviewContentLimit
		for n > 0 && !utf8.RuneStart(content[n]) {
			n--
		}
		content = content[:n] + "..."
	}

	var b strings.Builder
	b.WriteString("Validate this EPUB file for professional standards.\n\n")
	b.WriteString(fmt.Sprintf("**File:** %s\n\n", path))
	b.WriteString("```\n" + content + "\n```\n\n")
	b.WriteString("# Checklist\n\n")
	for _, item := range []string{
		"XHTML 1.1 compliance",
		"DOCTYPE and namespace",
		"CSS class consistency",
		"image reference accuracy",
		"accessibility",
		"typography consistency",
		"professional formatting",
		"cross-device compatibility",
	} {
		b.WriteString("- " + item + "\n")
	}
	b.WriteString("\nReport issues with line numbers, a severity (critical, warning, info), the correction needed and an overall quality score (1-10).\n")
	return b.String()
}

// FrontMatterPrompt builds the prompt for a single front or back matter page.
func FrontMatterPrompt(kind string, data map[string]any) (string, error) {
	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode %s data: %w", kind, err)
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Generate the %s page for the EPUB.\n\n", kind))
	b.WriteString("# Data\n\n")
	b.WriteString("```json\n" + string(encoded) + "\n```\n\n")
	b.WriteString("# Requirements\n\n")
	b.WriteString("- Single page layout, no pagination\n")
	b.WriteString("- Two-column layout where appropriate\n")
	b.WriteString("- XHTML 1.1 with the ACISS design system\n")
	b.WriteString("- Complete content, nothing truncated\n\n")
	b.WriteString("Return only the XHTML file, ready for EPUB inclusion.\n")
	return b.String(), nil
}

// FormatPrompt asks the formatter to restyle existing content.
func FormatPrompt(kind, content string) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Apply professional formatting to this %s content.\n\n", kind))
	b.WriteString("```\n" + content + "\n```\n\n")
	b.WriteString("# Requirements\n\n")
	b.WriteString("- ACISS design system compliance\n")
	b.WriteString("- Consistent typography, spacing and layout\n")
	b.WriteString("- Responsive and accessible on every device\n\n")
	b.WriteString("Return the formatted content with the CSS classes applied.\n")
	return b.String()
}

// ContextPrompt grounds a chat question in retrieved chapter excerpts,
// most relevant first.
func ContextPrompt(question string, chunks []ContextChunk) string {
	if len(chunks) == 0 {
		return question
	}

	sorted := make([]ContextChunk, len(chunks))
	copy(sorted, chunks)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	var b strings.Builder
	b.WriteString("# Related Chapters\n\n")
	for _, ch := range sorted {
		b.WriteString(fmt.Sprintf("**%s** %s (relevance: %.2f)\n", ch.ChapterID, ch.Title, ch.Score))
		b.WriteString(ch.Text + "\n\n")
	}
	b.WriteString("# Question\n\n")
	b.WriteString(question + "\n\n")
	b.WriteString("Base your answer on the chapters above where they apply and say so when they do not cover the question.\n")
	return b.String()
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
