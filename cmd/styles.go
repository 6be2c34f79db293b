package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Yates-Labs/folio/internal/validate"
)

// LipGloss signature purple/pink palette
var (
	headerColor  = lipgloss.Color("#F780FF") // Bright pink
	accentColor  = lipgloss.Color("#8BE9FD") // Cyan
	textColor    = lipgloss.Color("#E9E9F4") // Light purple/white
	mutedColor   = lipgloss.Color("#6272A4") // Muted purple
	numberColor  = lipgloss.Color("#FF79C6") // Pink
	errorColor   = lipgloss.Color("#FF5555") // Red
	warningColor = lipgloss.Color("#FFB86C") // Orange
	successColor = lipgloss.Color("#50FA7B") // Green
)

var (
	headerStyle  = lipgloss.NewStyle().Foreground(headerColor).Bold(true)
	accentStyle  = lipgloss.NewStyle().Foreground(accentColor).Italic(true)
	textStyle    = lipgloss.NewStyle().Foreground(textColor)
	mutedStyle   = lipgloss.NewStyle().Foreground(mutedColor).Italic(true)
	numberStyle  = lipgloss.NewStyle().Foreground(numberColor)
	errorStyle   = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(warningColor)
	successStyle = lipgloss.NewStyle().Foreground(successColor)
	borderStyle  = lipgloss.NewStyle().Foreground(mutedColor)
)

func ok(w io.Writer, format string, a ...any) {
	fmt.Fprintln(w, successStyle.Render("✓ "+fmt.Sprintf(format, a...)))
}

func fail(w io.Writer, format string, a ...any) {
	fmt.Fprintln(w, errorStyle.Render("✗ "+fmt.Sprintf(format, a...)))
}

func warn(w io.Writer, format string, a ...any) {
	fmt.Fprintln(w, warningStyle.Render("! "+fmt.Sprintf(format, a...)))
}

func step(w io.Writer, format string, a ...any) {
	fmt.Fprintln(w, mutedStyle.Render("→ "+fmt.Sprintf(format, a...)))
}

func severityStyle(s validate.Severity) lipgloss.Style {
	switch s {
	case validate.SeverityCritical:
		return errorStyle
	case validate.SeverityWarning:
		return warningStyle
	default:
		return mutedStyle
	}
}

// printReport renders a validation report as a table followed by the
// issues of each file.
func printReport(w io.Writer, report *validate.Report) {
	const (
		fileWidth   = 40
		statusWidth = 8
		countWidth  = 10
	)

	cell := lipgloss.NewStyle().Padding(0, 1)
	head := headerStyle.Padding(0, 1)

	fmt.Fprintln(w, strings.Join([]string{
		head.Width(fileWidth).Render("FILE"),
		head.Width(statusWidth).Render("STATUS"),
		head.Width(countWidth).Render("CRITICAL"),
		head.Width(countWidth).Render("WARNINGS"),
	}, borderStyle.Render("│")))
	fmt.Fprintln(w, borderStyle.Render(strings.Join([]string{
		strings.Repeat("─", fileWidth),
		strings.Repeat("─", statusWidth),
		strings.Repeat("─", countWidth),
		strings.Repeat("─", countWidth),
	}, "┼")))

	for _, f := range report.Files {
		status := successStyle.Render("PASS")
		if !f.Passed {
			status = errorStyle.Render("FAIL")
		}
		fmt.Fprintln(w, strings.Join([]string{
			cell.Foreground(accentColor).Width(fileWidth).Render(shorten(f.Path, fileWidth-2)),
			cell.Width(statusWidth).Render(status),
			cell.Foreground(numberColor).Width(countWidth).Align(lipgloss.Right).Render(fmt.Sprint(f.Count(validate.SeverityCritical))),
			cell.Foreground(numberColor).Width(countWidth).Align(lipgloss.Right).Render(fmt.Sprint(f.Count(validate.SeverityWarning))),
		}, borderStyle.Render("│")))
	}

	for _, f := range report.Files {
		if len(f.Issues) == 0 && f.Error == "" && f.Review == "" {
			continue
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, headerStyle.Render(f.Path))
		if f.Error != "" {
			fmt.Fprintln(w, "  "+errorStyle.Render("error: "+f.Error))
		}
		for _, is := range f.Issues {
			loc := ""
			if is.Line > 0 {
				loc = fmt.Sprintf(" line %d", is.Line)
			}
			fmt.Fprintf(w, "  %s %s%s %s\n",
				severityStyle(is.Severity).Render(fmt.Sprintf("[%s]", is.Severity)),
				numberStyle.Render(is.Rule),
				mutedStyle.Render(loc),
				textStyle.Render(is.Message),
			)
		}
		if f.Review != "" {
			fmt.Fprintln(w, "  "+accentStyle.Render("review:"))
			for _, line := range strings.Split(f.Review, "\n") {
				fmt.Fprintln(w, "    "+textStyle.Render(line))
			}
		}
	}

	s := report.Summary
	fmt.Fprintln(w)
	fmt.Fprintln(w, accentStyle.Render(fmt.Sprintf("%d files: %d passed, %d failed (%d critical, %d warnings, %d info)",
		s.Files, s.Passed, s.Failed, s.Critical, s.Warnings, s.Info)))
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n || n < 4 {
		return s
	}
	return "..." + string(r[len(r)-n+3:])
}
