package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/agentic-research/pocket/api"
	"github.com/agentic-research/pocket/internal/tree"
)

// ErrUnknownTemplate is returned for a template name not in the catalog.
var ErrUnknownTemplate = errors.New("unknown template")

// Catalog is a set of project templates keyed by name.
type Catalog struct {
	byName map[string]api.Template
}

// NewCatalog builds a catalog from in-memory templates.
func NewCatalog(ts ...api.Template) *Catalog {
	c := &Catalog{byName: make(map[string]api.Template, len(ts))}
	for _, t := range ts {
		c.byName[t.Name] = t
	}
	return c
}

// LoadCatalog decodes every *.hcl file in dir as a template. A missing
// directory yields an empty catalog.
func LoadCatalog(dir string) (*Catalog, error) {
	c := NewCatalog()
	if dir == "" {
		return c, nil
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.hcl"))
	if err != nil {
		return nil, fmt.Errorf("scan templates: %w", err)
	}
	if len(files) == 0 {
		if _, err := os.Stat(dir); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("scan templates: %w", err)
		}
	}
	for _, f := range files {
		var t api.Template
		if err := hclsimple.DecodeFile(f, nil, &t); err != nil {
			return nil, fmt.Errorf("template %s: %w", filepath.Base(f), err)
		}
		c.byName[t.Name] = t
	}
	return c, nil
}

// Get returns the named template.
func (c *Catalog) Get(name string) (api.Template, error) {
	if c != nil {
		if t, ok := c.byName[name]; ok {
			return t, nil
		}
	}
	return api.Template{}, fmt.Errorf("%q: %w", name, ErrUnknownTemplate)
}

// List returns the templates sorted by name.
func (c *Catalog) List() []api.Template {
	if c == nil {
		return nil
	}
	out := make([]api.Template, 0, len(c.byName))
	for _, t := range c.byName {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Expand adds a template's files to t. Each path is split on "/";
// intermediate folders are created once and reused, and the leaf becomes a
// file with the literal content and a language resolved from its name.
func Expand(t *tree.Tree, tpl api.Template) {
	folders := map[string]tree.NodeID{}
	for _, f := range tpl.Files {
		var parts []string
		for _, p := range strings.Split(f.Path, "/") {
			if p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) == 0 {
			continue
		}

		parent := tree.Root
		for i, name := range parts[:len(parts)-1] {
			key := strings.Join(parts[:i+1], "/")
			id, ok := folders[key]
			if !ok {
				id, _ = t.Insert(parent, tree.NewFolder(name))
				folders[key] = id
			}
			parent = id
		}
		t.Insert(parent, tree.NewFile(parts[len(parts)-1], f.Content))
	}
}
