package rag

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Yates-Labs/folio/internal/chapter"
)

/*
Chapter XIII: Embracing Ethics and Sustainability in Hairstyling
Quote: The earth is the Lord's... (Psalm 24:1)

Objectives:
- Understanding eco-friendly salon practices

Sections:
- Cultivating Eco-Friendly Salon Environments

Quiz:
- Which lighting uses the least energy?

Worksheet: Chapter Worksheet
*/

// BuildChapterDocument turns a chapter record into the text embedded for
// retrieval. The record should already be normalized.
func BuildChapterDocument(rec *chapter.Record) ChapterDocument {
	if rec == nil {
		return ChapterDocument{}
	}

	return ChapterDocument{
		ChapterID: rec.ID(),
		Roman:     rec.Roman,
		Title:     rec.Title,
		Text:      buildDocumentText(rec),
		Source:    rec.Source(),
	}
}

func buildDocumentText(rec *chapter.Record) string {
	var parts []string

	heading := fmt.Sprintf("Chapter %s", rec.Roman)
	if rec.Title != "" {
		heading += ": " + rec.Title
	}
	parts = append(parts, heading)

	if rec.BibleQuote != "" {
		quote := "Quote: " + rec.BibleQuote
		if rec.BibleReference != "" {
			quote += fmt.Sprintf(" (%s)", rec.BibleReference)
		}
		parts = append(parts, quote)
	}

	if rec.Introduction != "" {
		parts = append(parts, "\nIntroduction: "+rec.Dropcap+rec.Introduction)
	}

	parts = appendList(parts, "Objectives", rec.LearningObjectives)

	headings := make([]string, 0, len(rec.ContentSections))
	for _, s := range rec.ContentSections {
		headings = append(headings, s.Heading)
	}
	parts = appendList(parts, "Sections", headings)

	questions := make([]string, 0, len(rec.QuizQuestions))
	for _, q := range rec.QuizQuestions {
		questions = append(questions, q.Question)
	}
	if len(questions) == 0 {
		questions = rec.QuizFocus
	}
	parts = appendList(parts, "Quiz", questions)

	if rec.Worksheet.Title != "" {
		parts = append(parts, "\nWorksheet: "+rec.Worksheet.Title)
	}

	return strings.Join(parts, "\n")
}

func appendList(parts []string, label string, items []string) []string {
	if len(items) == 0 {
		return parts
	}
	lines := []string{"\n" + label + ":"}
	for _, it := range items {
		lines = append(lines, "- "+it)
	}
	return append(parts, strings.Join(lines, "\n"))
}

// LoadDocuments builds documents for every chapter data file in dir. Files
// that fail to load or validate are returned in failed and do not stop the
// others.
func LoadDocuments(dir string) (docs []ChapterDocument, failed map[string]error, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ferr := chapter.FormatOf(e.Name()); ferr == nil {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	failed = make(map[string]error)
	for _, p := range paths {
		rec, lerr := chapter.Load(p)
		if lerr != nil {
			failed[p] = lerr
			continue
		}
		rec.Normalize()
		if verr := rec.Validate(); verr != nil {
			failed[p] = verr
			continue
		}
		docs = append(docs, BuildChapterDocument(rec))
	}
	return docs, failed, nil
}
