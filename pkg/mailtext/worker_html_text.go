// Package mailtext converts mail bodies to plain text.
package mailtext

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	blankRuns = regexp.MustCompile(`[ \t\x{00a0}]+`)
	lineRuns  = regexp.MustCompile(`\n{3,}`)
)

// blockElements end a line of text
var blockElements = map[string]bool{
	"br": true, "p": true, "div": true, "tr": true, "li": true, "table": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// HTMLToText flattens an HTML mail body into plain text. Script and style
// content is dropped. Unparseable input is returned unchanged.
func HTMLToText(s string) string {
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return s
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			return
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "head":
				return
			case "td", "th":
				sb.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode && blockElements[n.Data] {
			sb.WriteString("\n")
		}
	}
	walk(doc)

	lines := strings.Split(sb.String(), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(blankRuns.ReplaceAllString(line, " "))
	}
	text := strings.Join(lines, "\n")
	return strings.TrimSpace(lineRuns.ReplaceAllString(text, "\n\n"))
}
