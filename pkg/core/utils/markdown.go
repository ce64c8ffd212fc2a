package utils

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// FencedBlock is the interior of one fenced code block.
type FencedBlock struct {
	Language string
	Content  string
}

// FencedBlocks returns every fenced code block in document order.
// Unterminated fences run to the end of the input, as in CommonMark.
func FencedBlocks(input string) []FencedBlock {
	source := []byte(input)
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))

	var blocks []FencedBlock
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fence, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}

		var sb strings.Builder
		lines := fence.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			sb.Write(seg.Value(source))
		}
		blocks = append(blocks, FencedBlock{
			Language: string(fence.Language(source)),
			Content:  sb.String(),
		})
		return ast.WalkSkipChildren, nil
	})
	return blocks
}
