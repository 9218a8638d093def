// Package richtext handles the HTML fragments stored in text items: it
// sanitises editor output, extracts plain text, and toggles list markup.
package richtext

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ListKind selects the list element ToggleList works with.
type ListKind string

const (
	Bulleted ListKind = "ul"
	Numbered ListKind = "ol"
)

var allowed = map[atom.Atom]bool{
	atom.B: true, atom.Strong: true, atom.I: true, atom.Em: true, atom.U: true,
	atom.S: true, atom.Strike: true, atom.Br: true, atom.P: true,
	atom.Ul: true, atom.Ol: true, atom.Li: true, atom.Span: true,
}

// dropped elements lose their content too: it is never visible text.
var dropped = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Head: true, atom.Title: true,
}

func parse(fragment string) ([]*html.Node, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return nodes, nil
}

// Sanitize keeps only inline formatting and list markup, strips every
// attribute, and unwraps unknown elements so their text survives.
func Sanitize(fragment string) (string, error) {
	nodes, err := parse(fragment)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	for _, n := range nodes {
		writeClean(&buf, n)
	}
	return buf.String(), nil
}

func writeClean(buf *bytes.Buffer, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		buf.WriteString(html.EscapeString(n.Data))
		return
	case html.ElementNode:
		if dropped[n.DataAtom] {
			return
		}
		if allowed[n.DataAtom] {
			if n.DataAtom == atom.Br {
				buf.WriteString("<br>")
				return
			}
			buf.WriteString("<" + n.Data + ">")
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				writeClean(buf, c)
			}
			buf.WriteString("</" + n.Data + ">")
			return
		}
	case html.CommentNode, html.DoctypeNode:
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeClean(buf, c)
	}
}

// PlainText renders the visible text of fragment. Line breaks, paragraphs
// and list items become newlines.
func PlainText(fragment string) string {
	nodes, err := parse(fragment)
	if err != nil {
		return fragment
	}
	var sb strings.Builder
	for _, n := range nodes {
		writeText(&sb, n)
	}
	return tidyLines(sb.String())
}

func writeText(sb *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.ElementNode:
		if dropped[n.DataAtom] {
			return
		}
		if n.DataAtom == atom.Br {
			sb.WriteString("\n")
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(sb, c)
	}
	if n.Type == html.ElementNode && isBlock(n.DataAtom) {
		sb.WriteString("\n")
	}
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Li, atom.Ul, atom.Ol, atom.H1, atom.H2, atom.H3:
		return true
	}
	return false
}

func tidyLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, l := range lines {
		l = strings.TrimRight(l, " \t")
		if l == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, l)
	}
	return strings.Trim(strings.Join(out, "\n"), "\n")
}

// ToggleList wraps the lines of fragment into a kind list. When fragment
// already is exactly one list of that kind it is unwrapped back into lines
// separated by <br>.
func ToggleList(fragment string, kind ListKind) (string, error) {
	nodes, err := parse(fragment)
	if err != nil {
		return "", err
	}

	if root := singleElement(nodes); root != nil && root.Data == string(kind) {
		var lines []string
		for c := root.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode || c.DataAtom != atom.Li {
				continue
			}
			var inner bytes.Buffer
			for cc := c.FirstChild; cc != nil; cc = cc.NextSibling {
				writeClean(&inner, cc)
			}
			lines = append(lines, inner.String())
		}
		return strings.Join(lines, "<br>"), nil
	}

	var sb strings.Builder
	sb.WriteString("<" + string(kind) + ">")
	for _, line := range strings.Split(PlainText(fragment), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		sb.WriteString("<li>" + html.EscapeString(line) + "</li>")
	}
	sb.WriteString("</" + string(kind) + ">")
	return sb.String(), nil
}

func singleElement(nodes []*html.Node) *html.Node {
	var found *html.Node
	for _, n := range nodes {
		switch n.Type {
		case html.ElementNode:
			if found != nil {
				return nil
			}
			found = n
		case html.TextNode:
			if strings.TrimSpace(n.Data) != "" {
				return nil
			}
		}
	}
	return found
}

// Preview returns at most n runes of the plain text on a single line.
func Preview(fragment string, n int) string {
	text := strings.Join(strings.Fields(PlainText(fragment)), " ")
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n]) + "…"
}

// FromPlain escapes s and turns its line breaks into <br>.
func FromPlain(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	for i, l := range lines {
		lines[i] = html.EscapeString(l)
	}
	return strings.Join(lines, "<br>")
}
