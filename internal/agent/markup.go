package agent

import "strings"

// ExtractMarkup returns the document inside the first fenced code block of a
// model reply, or the trimmed reply when it carries no fence. Leading chatter
// before an XML declaration or DOCTYPE is dropped as well.
func ExtractMarkup(text string) string {
	s := strings.TrimSpace(text)

	if start := strings.Index(s, "```"); start >= 0 {
		body := s[start+3:]
		// Skip the info string (```xml, ```html, ...).
		if nl := strings.IndexByte(body, '\n'); nl >= 0 {
			body = body[nl+1:]
		} else {
			body = ""
		}
		if end := strings.Index(body, "```"); end >= 0 {
			body = body[:end]
		}
		s = strings.TrimSpace(body)
	}

	for _, marker := range []string{"<?xml", "<!DOCTYPE", "<!doctype", "<html"} {
		if i := strings.Index(s, marker); i > 0 {
			s = s[i:]
			break
		} else if i == 0 {
			break
		}
	}
	return s
}
