// Package richtext extracts searchable text from editor JSON documents.
package richtext

import (
	"encoding/json"
	"strings"
)

type node struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	Content []node `json:"content"`
}

var inline = map[string]bool{
	"text":      true,
	"hardBreak": true,
	"mention":   true,
	"emoji":     true,
}

// PlainText returns the text of doc with block nodes separated by newlines.
// A JSON string is returned as-is; anything unparsable yields "".
func PlainText(doc json.RawMessage) string {
	if len(doc) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(doc, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var root node
	if err := json.Unmarshal(doc, &root); err != nil {
		return ""
	}
	var blocks []string
	collect(root, &blocks)
	return strings.TrimSpace(strings.Join(blocks, "\n"))
}

// collect appends one entry per block whose direct children are inline.
func collect(n node, blocks *[]string) {
	if n.Type == "text" {
		if t := strings.TrimSpace(n.Text); t != "" {
			*blocks = append(*blocks, n.Text)
		}
		return
	}
	if hasInline(n) {
		var b strings.Builder
		for _, c := range n.Content {
			writeInline(c, &b)
		}
		if t := strings.TrimSpace(b.String()); t != "" {
			*blocks = append(*blocks, t)
		}
		return
	}
	for _, c := range n.Content {
		collect(c, blocks)
	}
}

func hasInline(n node) bool {
	for _, c := range n.Content {
		if inline[c.Type] {
			return true
		}
	}
	return false
}

func writeInline(n node, b *strings.Builder) {
	switch n.Type {
	case "hardBreak":
		b.WriteByte('\n')
	case "text":
		b.WriteString(n.Text)
	default:
		b.WriteString(n.Text)
		for _, c := range n.Content {
			writeInline(c, b)
		}
	}
}
