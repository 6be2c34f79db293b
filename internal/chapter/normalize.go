package chapter

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Normalize brings a record into the shape the chapter prompt expects and
// returns a warning for every change that discarded or invented data.
func (r *Record) Normalize() []string {
	var warnings []string

	r.Roman = strings.ToUpper(strings.TrimSpace(r.Roman))
	switch {
	case r.Roman == "" && r.Number > 0:
		r.Roman = ToRoman(r.Number)
	case r.Number == 0 && r.Roman != "":
		if n, err := ParseRoman(r.Roman); err == nil {
			r.Number = n
		}
	}

	if r.Title == "" && len(r.TitleLines) > 0 {
		r.Title = strings.Join(r.TitleLines, " ")
		warnings = append(warnings, "title derived from title_lines")
	}

	if len(r.QuizQuestions) > MaxQuizQuestions {
		warnings = append(warnings, fmt.Sprintf("quiz has %d questions, truncated to %d", len(r.QuizQuestions), MaxQuizQuestions))
		r.QuizQuestions = r.QuizQuestions[:MaxQuizQuestions]
	}
	for i := range r.QuizQuestions {
		q := &r.QuizQuestions[i]
		switch n := len(q.Options); {
		case n > OptionsPerQuestion:
			warnings = append(warnings, fmt.Sprintf("quiz question %d has %d options, trimmed to %d", i+1, n, OptionsPerQuestion))
			q.Options = q.Options[:OptionsPerQuestion]
		case n < OptionsPerQuestion:
			warnings = append(warnings, fmt.Sprintf("quiz question %d has %d options, padded to %d", i+1, n, OptionsPerQuestion))
			for len(q.Options) < OptionsPerQuestion {
				q.Options = append(q.Options, "")
			}
		}
	}

	if r.ClosingImage.Src == "" {
		r.ClosingImage.Src = DefaultClosingImage
		warnings = append(warnings, "no closing image, using "+DefaultClosingImage)
	}
	if r.ClosingImage.Alt == "" && r.Roman != "" {
		r.ClosingImage.Alt = "Chapter " + r.Roman + " closing image"
	}

	return warnings
}

// Validate reports records that cannot produce a chapter.
func (r *Record) Validate() error {
	if r.Roman == "" && r.Number == 0 {
		return fmt.Errorf("%w: roman numeral or number is required", ErrInvalidRecord)
	}
	if r.Number < 0 || r.Number > MaxNumber {
		return fmt.Errorf("%w: chapter number %d out of range 1..%d", ErrInvalidRecord, r.Number, MaxNumber)
	}
	if r.Roman != "" {
		n, err := ParseRoman(r.Roman)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}
		if r.Number != 0 && n != r.Number {
			return fmt.Errorf("%w: roman %s is %d but number is %d", ErrInvalidRecord, r.Roman, n, r.Number)
		}
	}
	if strings.TrimSpace(r.Title) == "" && len(r.TitleLines) == 0 {
		return fmt.Errorf("%w: title is required", ErrInvalidRecord)
	}
	if len(r.QuizQuestions) > MaxQuizQuestions {
		return fmt.Errorf("%w: %d quiz questions, at most %d allowed", ErrInvalidRecord, len(r.QuizQuestions), MaxQuizQuestions)
	}
	return nil
}

// ID identifies a record by the stem of its source file, falling back to the
// chapter numeral for records that were not loaded from disk.
func (r *Record) ID() string {
	if r.source != "" {
		base := filepath.Base(r.source)
		return strings.TrimSuffix(base, filepath.Ext(base))
	}
	if r.Roman != "" {
		return "chapter-" + strings.ToLower(r.Roman)
	}
	if r.Number > 0 {
		return "chapter-" + strings.ToLower(ToRoman(r.Number))
	}
	return ""
}

// OutputName is the default XHTML file name for the record.
func (r *Record) OutputName() string {
	roman := r.Roman
	if roman == "" {
		roman = ToRoman(r.Number)
	}
	return "chapter-" + strings.ToLower(roman) + ".xhtml"
}
