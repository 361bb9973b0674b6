package generator

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// PostProcess trims surrounding whitespace from a model reply. With unwrap set,
// a reply that consists of nothing but one fenced code block is replaced by the
// block's body, since models often wrap raw files in markdown fences.
func PostProcess(raw string, unwrap bool) string {
	out := strings.TrimSpace(raw)
	if !unwrap || !strings.HasPrefix(out, "```") && !strings.HasPrefix(out, "~~~") {
		return out
	}
	if body, ok := soleFencedBlock(out); ok {
		return strings.TrimSpace(body)
	}
	return out
}

func soleFencedBlock(md string) (string, bool) {
	src := []byte(md)
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))
	if doc.ChildCount() != 1 {
		return "", false
	}
	block, ok := doc.FirstChild().(*ast.FencedCodeBlock)
	if !ok {
		return "", false
	}
	// An unterminated fence also parses as a block; only unwrap a closed one.
	trimmed := strings.TrimRight(md, " \t\n")
	if !strings.HasSuffix(trimmed, "```") && !strings.HasSuffix(trimmed, "~~~") {
		return "", false
	}

	var buf bytes.Buffer
	lines := block.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(src))
	}
	return buf.String(), true
}
