// Package linter reports style problems found with tree-sitter queries.
// It complements writeback.Check: the buffer parses, but something in it
// is probably a mistake.
package linter

import (
	"context"
	"fmt"
	"sort"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"

	"github.com/agentic-research/pocket/internal/lang"
)

// Diagnostic is one lint finding. Line is 0-indexed.
type Diagnostic struct {
	Rule    string
	Message string
	Line    uint32
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("line %d: %s (%s)", d.Line+1, d.Message, d.Rule)
}

// rule matches a query capture named @hit. keep, when set, filters matches.
type rule struct {
	name    string
	query   string
	message string
	keep    func(n *sitter.Node) bool
}

type ruleSet struct {
	grammar *sitter.Language
	rules   []rule
}

var sets = map[lang.Tag]ruleSet{
	lang.JavaScript: {
		grammar: javascript.GetLanguage(),
		rules: []rule{
			{
				name:    "no-debugger",
				query:   `(debugger_statement) @hit`,
				message: "Unexpected debugger statement.",
			},
			{
				name:    "eqeqeq",
				query:   `(binary_expression operator: ["==" "!="] @hit)`,
				message: "Use === and !== instead of == and !=.",
			},
			{
				name:    "no-var",
				query:   `(variable_declaration) @hit`,
				message: "Use let or const instead of var.",
			},
		},
	},
	lang.Go: {
		grammar: golang.GetLanguage(),
		rules: []rule{
			{
				name:    "nil-slice",
				query:   `(var_spec name: (identifier) type: (slice_type)) @hit`,
				message: "Nil slice declaration. Consider make([]T, 0) if it is encoded as JSON.",
				keep: func(n *sitter.Node) bool {
					return n.ChildByFieldName("value") == nil
				},
			},
		},
	},
}

// Lintable reports whether tag has lint rules.
func Lintable(tag lang.Tag) bool {
	_, ok := sets[tag]
	return ok
}

// Lint runs the rules for tag over content. Languages without rules
// return nil.
func Lint(ctx context.Context, content []byte, tag lang.Tag) ([]Diagnostic, error) {
	set, ok := sets[tag]
	if !ok {
		return nil, nil
	}

	parser := sitter.NewParser()
	parser.SetLanguage(set.grammar)
	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var diags []Diagnostic
	for _, r := range set.rules {
		q, err := sitter.NewQuery([]byte(r.query), set.grammar)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.name, err)
		}
		qc := sitter.NewQueryCursor()
		qc.Exec(q, tree.RootNode())
		for {
			m, ok := qc.NextMatch()
			if !ok {
				break
			}
			for _, c := range m.Captures {
				if r.keep != nil && !r.keep(c.Node) {
					continue
				}
				diags = append(diags, Diagnostic{Rule: r.name, Message: r.message, Line: c.Node.StartPoint().Row})
			}
		}
		qc.Close()
		q.Close()
	}
	sort.SliceStable(diags, func(i, j int) bool { return diags[i].Line < diags[j].Line })
	return diags, nil
}
