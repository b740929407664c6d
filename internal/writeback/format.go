package writeback

import (
	"bytes"
	"encoding/json"

	"github.com/hashicorp/hcl/v2/hclwrite"
	"mvdan.cc/gofumpt/format"

	"github.com/agentic-research/pocket/internal/lang"
)

// Format reformats a buffer in-memory: gofumpt for Go, hclwrite for HCL,
// two-space indentation for JSON. It returns the original buffer and false
// for other languages or when the content does not parse.
func Format(content []byte, tag lang.Tag) ([]byte, bool) {
	switch tag {
	case lang.Go:
		formatted, err := format.Source(content, format.Options{})
		if err != nil {
			return content, false // formatting failed, return original
		}
		return formatted, true
	case lang.HCL:
		if errs := Check(content, lang.HCL, ""); len(errs) > 0 {
			return content, false
		}
		return hclwrite.Format(content), true
	case lang.JSON:
		var buf bytes.Buffer
		if err := json.Indent(&buf, bytes.TrimSpace(content), "", "  "); err != nil {
			return content, false
		}
		buf.WriteByte('\n')
		return buf.Bytes(), true
	default:
		return content, false
	}
}

// Formattable reports whether Format understands tag.
func Formattable(tag lang.Tag) bool {
	return tag == lang.Go || tag == lang.HCL || tag == lang.JSON
}
