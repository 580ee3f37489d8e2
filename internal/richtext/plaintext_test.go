package richtext

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlainText(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"empty", ``, ""},
		{"invalid", `{"type":`, ""},
		{"string", `"  just text "`, "just text"},
		{
			"paragraphs",
			`{"type":"doc","content":[
				{"type":"paragraph","content":[{"type":"text","text":"Hello "},{"type":"text","marks":[{"type":"bold"}],"text":"world"}]},
				{"type":"paragraph"},
				{"type":"heading","attrs":{"level":2},"content":[{"type":"text","text":"Agenda"}]}
			]}`,
			"Hello world\nAgenda",
		},
		{
			"nested list",
			`{"type":"doc","content":[{"type":"bulletList","content":[
				{"type":"listItem","content":[{"type":"paragraph","content":[{"type":"text","text":"one"}]}]},
				{"type":"listItem","content":[{"type":"paragraph","content":[{"type":"text","text":"two"}]}]}
			]}]}`,
			"one\ntwo",
		},
		{
			"hard break",
			`{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"a"},{"type":"hardBreak"},{"type":"text","text":"b"}]}]}`,
			"a\nb",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PlainText(json.RawMessage(tt.doc)))
		})
	}
}
