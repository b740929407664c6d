package writeback

import (
	"context"
	"fmt"
	"strings"

	"github.com/ohler55/ojg/oj"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/css"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/hcl"
	"github.com/smacker/go-tree-sitter/html"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/php"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	sqllang "github.com/smacker/go-tree-sitter/sql"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/agentic-research/pocket/internal/lang"
)

// ValidationError contains structured information about a syntax error.
type ValidationError struct {
	FilePath string
	Line     uint32 // 0-indexed
	Column   uint32 // 0-indexed
	Message  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.FilePath, e.Line+1, e.Column+1, e.Message)
}

// Validate checks content for syntax errors using the language resolved
// from filePath and returns the first one. Files with no known grammar
// pass through without validation (returns nil).
func Validate(content []byte, filePath string) error {
	errs := Check(content, lang.Resolve(filePath), filePath)
	if len(errs) == 0 {
		return nil
	}
	return &errs[0]
}

// Check returns every syntax error in content for the given language.
// JSON is checked with a strict parser; other languages with tree-sitter.
func Check(content []byte, tag lang.Tag, filePath string) []ValidationError {
	if tag == lang.JSON {
		return checkJSON(content, filePath)
	}
	grammar := grammarFor(tag, filePath)
	if grammar == nil {
		return nil // unknown language, pass through
	}

	parser := sitter.NewParser()
	parser.SetLanguage(grammar)

	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return []ValidationError{{FilePath: filePath, Message: fmt.Sprintf("tree-sitter parse failed: %v", err)}}
	}
	root := tree.RootNode()
	if root == nil || !root.HasError() {
		return nil
	}

	var errs []ValidationError
	collectErrors(root, filePath, &errs)
	if len(errs) == 0 {
		errs = append(errs, ValidationError{FilePath: filePath, Message: "AST contains errors"})
	}
	return errs
}

func checkJSON(content []byte, filePath string) []ValidationError {
	if strings.TrimSpace(string(content)) == "" {
		return nil
	}
	if _, err := oj.Parse(content); err != nil {
		return []ValidationError{{FilePath: filePath, Message: err.Error()}}
	}
	return nil
}

// collectErrors gathers all ERROR/MISSING nodes in the tree.
func collectErrors(node *sitter.Node, filePath string, errs *[]ValidationError) {
	if node.IsError() || node.IsMissing() {
		msg := "syntax error"
		if node.IsMissing() {
			msg = fmt.Sprintf("missing %s", node.Type())
		}
		*errs = append(*errs, ValidationError{
			FilePath: filePath,
			Line:     node.StartPoint().Row,
			Column:   node.StartPoint().Column,
			Message:  msg,
		})
		return // don't recurse into error children
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.HasError() || child.IsError() || child.IsMissing() {
			collectErrors(child, filePath, errs)
		}
	}
}

// Checkable reports whether Check understands tag.
func Checkable(tag lang.Tag) bool {
	return tag == lang.JSON || grammarFor(tag, "") != nil
}

// grammarFor maps language tags to tree-sitter grammars.
func grammarFor(tag lang.Tag, filePath string) *sitter.Language {
	switch tag {
	case lang.JavaScript:
		return javascript.GetLanguage()
	case lang.TypeScript:
		if strings.HasSuffix(strings.ToLower(filePath), ".tsx") {
			return tsx.GetLanguage()
		}
		return typescript.GetLanguage()
	case lang.Python:
		return python.GetLanguage()
	case lang.HTML:
		return html.GetLanguage()
	case lang.CSS:
		return css.GetLanguage()
	case lang.Java:
		return java.GetLanguage()
	case lang.CPP:
		return cpp.GetLanguage()
	case lang.Rust:
		return rust.GetLanguage()
	case lang.PHP:
		return php.GetLanguage()
	case lang.SQL:
		return sqllang.GetLanguage()
	case lang.Go:
		return golang.GetLanguage()
	case lang.HCL:
		return hcl.GetLanguage()
	default:
		return nil
	}
}
