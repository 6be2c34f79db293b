package chapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported chapter data format")
	ErrInvalidRecord     = errors.New("invalid chapter record")
)

// Format identifies a chapter data encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatOf returns the encoding implied by a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// Load reads a chapter record from a YAML or JSON file.
func Load(path string) (*Record, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chapter data: %w", err)
	}

	rec, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	rec.source = path
	return rec, nil
}

// Parse decodes a chapter record. Both the flat layout and the layout nested
// under a top-level `chapter:` key are accepted.
func Parse(data []byte, format Format) (*Record, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidRecord)
	}

	var unmarshal func([]byte, any) error
	switch format {
	case FormatYAML:
		unmarshal = yaml.Unmarshal
	case FormatJSON:
		unmarshal = json.Unmarshal
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	var wrapper struct {
		Chapter *nestedRecord `yaml:"chapter" json:"chapter"`
	}
	if err := unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if wrapper.Chapter != nil {
		return wrapper.Chapter.record(), nil
	}

	rec := &Record{}
	if err := unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return rec, nil
}

// nestedRecord is the layout written by `folio init` for sample chapters.
type nestedRecord struct {
	Roman      string   `yaml:"roman" json:"roman"`
	Number     int      `yaml:"number" json:"number"`
	Title      string   `yaml:"title" json:"title"`
	TitleLines []string `yaml:"title_lines" json:"title_lines"`
	BibleQuote struct {
		Text string `yaml:"text" json:"text"`
		Ref  string `yaml:"ref" json:"ref"`
	} `yaml:"bible_quote" json:"bible_quote"`
	Intro struct {
		Label   string `yaml:"label" json:"label"`
		Dropcap string `yaml:"dropcap" json:"dropcap"`
		Text    string `yaml:"text" json:"text"`
	} `yaml:"intro" json:"intro"`
	Content            string     `yaml:"content" json:"content"`
	ContentSections    []Section  `yaml:"content_sections" json:"content_sections"`
	LearningObjectives []string   `yaml:"learning_objectives" json:"learning_objectives"`
	Endnotes           []string   `yaml:"endnotes" json:"endnotes"`
	QuizQuestions      []Question `yaml:"quiz_questions" json:"quiz_questions"`
	QuizFocus          []string   `yaml:"quiz_focus" json:"quiz_focus"`
	WorksheetTitle     string     `yaml:"worksheet_title" json:"worksheet_title"`
	WorksheetSections  []struct {
		Title  string `yaml:"title" json:"title"`
		Prompt string `yaml:"prompt" json:"prompt"`
		Lines  int    `yaml:"lines" json:"lines"`
	} `yaml:"worksheet_sections" json:"worksheet_sections"`
	Images struct {
		Closing ClosingImage `yaml:"closing" json:"closing"`
	} `yaml:"images" json:"images"`
}

func (n *nestedRecord) record() *Record {
	rec := &Record{
		Roman:              n.Roman,
		Number:             n.Number,
		Title:              n.Title,
		TitleLines:         n.TitleLines,
		BibleQuote:         n.BibleQuote.Text,
		BibleReference:     n.BibleQuote.Ref,
		Introduction:       n.Intro.Text,
		Dropcap:            n.Intro.Dropcap,
		Content:            n.Content,
		ContentSections:    n.ContentSections,
		LearningObjectives: n.LearningObjectives,
		Endnotes:           n.Endnotes,
		QuizQuestions:      n.QuizQuestions,
		QuizFocus:          n.QuizFocus,
		ClosingImage:       n.Images.Closing,
	}

	rec.Worksheet.Title = n.WorksheetTitle
	if rec.Worksheet.Title == "" && len(n.WorksheetSections) > 0 {
		rec.Worksheet.Title = "Chapter Worksheet"
	}
	for _, s := range n.WorksheetSections {
		rec.Worksheet.Sections = append(rec.Worksheet.Sections, WorksheetSection{
			Heading: s.Title,
			Content: s.Prompt,
			Lines:   s.Lines,
		})
	}
	return rec
}

// LoadData reads an arbitrary YAML or JSON mapping, used for front and back
// matter whose shape depends on the page kind.
func LoadData(path string) (map[string]any, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read data file: %w", err)
	}

	out := map[string]any{}
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &out)
	case FormatJSON:
		err = json.Unmarshal(data, &out)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRecord, path, err)
	}
	return out, nil
}
