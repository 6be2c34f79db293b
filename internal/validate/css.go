package validate

import (
	"fmt"
	"sort"
	"strings"
)

func (v *Validator) checkCSS(content []byte, res *FileResult) {
	css := stripCSSComments(string(content))

	if line, msg := braceBalance(css); msg != "" {
		res.Issues = append(res.Issues, Issue{Rule: RuleCSSBraces, Severity: SeverityCritical, Message: msg, Line: line})
	}

	lower := strings.ToLower(css)
	for _, font := range v.style.Fonts() {
		if !strings.Contains(lower, strings.ToLower(font)) {
			res.add(RuleCSSFonts, SeverityWarning, fmt.Sprintf("style guide font %q is not used", font))
		}
	}

	colors := v.style.BrandColors()
	keys := make([]string, 0, len(colors))
	for k := range colors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !strings.Contains(lower, strings.ToLower(colors[k])) {
			res.add(RuleCSSColors, SeverityInfo, fmt.Sprintf("%s colour %s is not used", k, colors[k]))
		}
	}
}

// stripCSSComments blanks /* */ comments, keeping newlines so line numbers
// still line up.
func stripCSSComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inComment := false
	for i := 0; i < len(s); i++ {
		switch {
		case !inComment && i+1 < len(s) && s[i] == '/' && s[i+1] == '*':
			inComment = true
			i++
		case inComment && i+1 < len(s) && s[i] == '*' && s[i+1] == '/':
			inComment = false
			i++
		case inComment:
			if s[i] == '\n' {
				b.WriteByte('\n')
			}
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// braceBalance reports the first unbalanced brace. Braces inside quoted
// strings are ignored.
func braceBalance(css string) (int, string) {
	depth, line, openLine := 0, 1, 0
	var quote byte
	for i := 0; i < len(css); i++ {
		c := css[i]
		if c == '\n' {
			line++
		}
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '{':
			if depth == 0 {
				openLine = line
			}
			depth++
		case '}':
			depth--
			if depth < 0 {
				return line, "unexpected closing brace"
			}
		}
	}
	if depth > 0 {
		return openLine, fmt.Sprintf("%d unclosed brace(s)", depth)
	}
	return 0, ""
}
