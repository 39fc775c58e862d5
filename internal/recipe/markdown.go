package recipe

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
)

// Plain CommonMark; raw HTML in model output is dropped by the default renderer.
var markdown = goldmark.New()

// RenderMarkdown converts model output to an HTML fragment.
func RenderMarkdown(src string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("render markdown failed: %w", err)
	}
	return buf.String(), nil
}
