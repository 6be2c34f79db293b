package validate

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	doctypeRe = regexp.MustCompile(`(?i)<!DOCTYPE\s+html`)
	xmlEncRe  = regexp.MustCompile(`^\s*<\?xml[^>]*encoding=["'][^"']+["']`)
	breakRe   = regexp.MustCompile(`(?i)(page-break-(before|after)\s*:\s*always|break-(before|after)\s*:\s*page)`)
)

// checkWellFormed runs the document through a strict XML decoder.
func checkWellFormed(content []byte, res *FileResult) {
	d := xml.NewDecoder(bytes.NewReader(content))
	d.Strict = true
	d.Entity = xml.HTMLEntity
	d.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) { return input, nil }

	for {
		_, err := d.Token()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			issue := Issue{Rule: RuleWellFormed, Severity: SeverityCritical, Message: fmt.Sprintf("document is not well-formed XML: %v", err)}
			var syn *xml.SyntaxError
			if errors.As(err, &syn) {
				issue.Line = syn.Line
				issue.Message = "document is not well-formed XML: " + syn.Msg
			}
			res.Issues = append(res.Issues, issue)
			return
		}
	}
}

// document is the parsed view of an XHTML file the structural rules run on.
type document struct {
	root *html.Node

	// explicit records start tags present in the source, since the HTML
	// parser synthesizes <head> and <body> when they are missing.
	explicit map[atom.Atom]bool
}

func parseDocument(content []byte) (*document, error) {
	root, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}

	explicit := make(map[atom.Atom]bool)
	z := html.NewTokenizer(bytes.NewReader(content))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt == html.StartTagToken || tt == html.SelfClosingTagToken {
			name, _ := z.TagName()
			explicit[atom.Lookup(name)] = true
		}
	}
	return &document{root: root, explicit: explicit}, nil
}

func (d *document) find(match func(*html.Node) bool) []*html.Node {
	return findAll(d.root, match)
}

func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func (d *document) first(a atom.Atom) *html.Node {
	nodes := d.find(func(n *html.Node) bool { return n.DataAtom == a })
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

func hasClass(n *html.Node, class string) bool {
	v, _ := attr(n, "class")
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}

func byClass(class string) func(*html.Node) bool {
	return func(n *html.Node) bool { return hasClass(n, class) }
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}

// isChapter reports whether the structural chapter rules apply.
func (d *document) isChapter() bool {
	if body := d.first(atom.Body); body != nil && hasClass(body, "chapter") {
		return true
	}
	return len(d.find(byClass("roman-badge"))) > 0
}

// checkXHTML applies every XHTML rule. dir, when set, resolves relative
// image references.
func (v *Validator) checkXHTML(content []byte, dir string, res *FileResult) {
	checkWellFormed(content, res)

	if !doctypeRe.Match(content) {
		res.add(RuleDoctype, SeverityCritical, "missing DOCTYPE declaration")
	}

	doc, err := parseDocument(content)
	if err != nil {
		res.Error = fmt.Sprintf("failed to parse markup: %v", err)
		return
	}

	checkHead(doc, content, res)

	if doc.isChapter() {
		checkStructure(doc, res)
	}
	checkQuiz(doc, res)
	checkImages(doc, dir, res)
	checkHeadingOrder(doc, res)
}

func checkHead(doc *document, content []byte, res *FileResult) {
	var ns string
	if htmlEl := doc.first(atom.Html); htmlEl != nil && doc.explicit[atom.Html] {
		ns, _ = attr(htmlEl, "xmlns")
	}
	if ns != XHTMLNamespace {
		res.add(RuleNamespace, SeverityCritical, fmt.Sprintf("<html> must declare xmlns=%q", XHTMLNamespace))
	}

	if !doc.explicit[atom.Head] {
		res.add(RuleHead, SeverityCritical, "missing <head> section")
	}
	if title := doc.first(atom.Title); title == nil || textOf(title) == "" {
		res.add(RuleTitle, SeverityCritical, "missing or empty <title>")
	}

	metas := doc.find(func(n *html.Node) bool {
		if n.DataAtom != atom.Meta {
			return false
		}
		if _, ok := attr(n, "charset"); ok {
			return true
		}
		equiv, _ := attr(n, "http-equiv")
		return strings.EqualFold(equiv, "content-type")
	})
	if len(metas) == 0 && !xmlEncRe.Match(content) {
		res.add(RuleCharset, SeverityWarning, "no character encoding declared")
	}

	links := doc.find(func(n *html.Node) bool {
		if n.DataAtom != atom.Link {
			return false
		}
		rel, _ := attr(n, "rel")
		return strings.Contains(strings.ToLower(rel), "stylesheet")
	})
	if len(links) == 0 {
		res.add(RuleStylesheet, SeverityWarning, "no stylesheet linked")
	}
}

func checkStructure(doc *document, res *FileResult) {
	for _, class := range ChapterSections {
		if len(doc.find(byClass(class))) == 0 {
			res.add(RuleStructure+":"+class, SeverityCritical, fmt.Sprintf("missing required element with class %q", class))
		}
	}

	breaks := doc.find(func(n *html.Node) bool {
		if hasClass(n, "page-break") {
			return true
		}
		style, _ := attr(n, "style")
		return breakRe.MatchString(style)
	})
	if len(breaks) < MinPageBreaks {
		res.add(RulePageBreaks, SeverityWarning, fmt.Sprintf("found %d page breaks, a six page chapter needs %d", len(breaks), MinPageBreaks))
	}
}

func checkQuiz(doc *document, res *FileResult) {
	questions := doc.find(byClass("quiz-question"))
	if len(questions) > 4 {
		res.add(RuleQuizCount, SeverityCritical, fmt.Sprintf("quiz has %d questions, at most 4 allowed", len(questions)))
	}

	for i, q := range questions {
		options := findAll(q, byClass("quiz-option"))
		if len(options) == 0 {
			options = findAll(q, func(n *html.Node) bool { return n.DataAtom == atom.Li })
		}
		if len(options) != 4 {
			res.add(RuleQuizOptions, SeverityWarning, fmt.Sprintf("quiz question %d has %d options, expected 4", i+1, len(options)))
		}
	}
}

func checkImages(doc *document, dir string, res *FileResult) {
	for _, img := range doc.find(func(n *html.Node) bool { return n.DataAtom == atom.Img }) {
		src, _ := attr(img, "src")
		if alt, ok := attr(img, "alt"); !ok || strings.TrimSpace(alt) == "" {
			res.add(RuleImgAlt, SeverityCritical, fmt.Sprintf("image %q has no alt text", src))
		}

		if dir == "" || src == "" {
			continue
		}
		u, err := url.Parse(src)
		if err != nil || u.Scheme != "" || u.Host != "" {
			continue
		}
		ref := filepath.Join(dir, filepath.FromSlash(u.Path))
		if _, err := os.Stat(ref); err != nil {
			res.add(RuleImgSrc, SeverityWarning, fmt.Sprintf("image %q not found", src))
		}
	}
}

var headingLevels = map[atom.Atom]int{
	atom.H1: 1, atom.H2: 2, atom.H3: 3, atom.H4: 4, atom.H5: 5, atom.H6: 6,
}

func checkHeadingOrder(doc *document, res *FileResult) {
	prev := 0
	for _, h := range doc.find(func(n *html.Node) bool { _, ok := headingLevels[n.DataAtom]; return ok }) {
		level := headingLevels[h.DataAtom]
		if prev > 0 && level > prev+1 {
			res.add(RuleHeadingOrder, SeverityInfo, fmt.Sprintf("heading level skips from h%d to h%d", prev, level))
		}
		prev = level
	}
}
