package tree

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/agentic-research/pocket/api"
)

// Entry pairs a file with its slash-joined path.
type Entry struct {
	Node Node
	Path string
}

// Flatten returns every file in depth-first traversal order with its path.
// Folders are traversed but not returned.
func (t *Tree) Flatten() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []Entry
	var walk func(ids []NodeID, prefix string)
	walk = func(ids []NodeID, prefix string) {
		for _, id := range ids {
			n := t.nodes[id]
			p := n.name
			if prefix != "" {
				p = prefix + "/" + n.name
			}
			if n.kind == Folder {
				walk(n.children, p)
				continue
			}
			out = append(out, Entry{Node: t.export(id, n), Path: p})
		}
	}
	walk(t.roots, "")
	return out
}

// Search returns the files whose name or path contains query, ignoring
// case, in Flatten order. A blank query matches every file.
func (t *Tree) Search(query string) []Entry {
	all := t.Flatten()
	query = strings.TrimSpace(query)
	if query == "" {
		return all
	}
	fold := cases.Fold()
	q := fold.String(query)
	out := make([]Entry, 0, len(all))
	for _, e := range all {
		if strings.Contains(fold.String(e.Node.Name), q) || strings.Contains(fold.String(e.Path), q) {
			out = append(out, e)
		}
	}
	return out
}

// SortAlpha reorders every child list as folders first, then by name using
// less. Used when a tree is rebuilt from storage.
func (t *Tree) SortAlpha(less func(a, b string) bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sortList(t.roots, less)
	for _, n := range t.nodes {
		if n.kind == Folder {
			t.sortList(n.children, less)
		}
	}
	t.gen++
}

func (t *Tree) sortList(list []NodeID, less func(a, b string) bool) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := t.nodes[list[i]], t.nodes[list[j]]
		if a.kind != b.kind {
			return a.kind == Folder
		}
		return less(a.name, b.name)
	})
}

// Snapshot renders the tree as nested api.FileNode values.
func (t *Tree) Snapshot() []api.FileNode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshot(t.roots)
}

func (t *Tree) snapshot(ids []NodeID) []api.FileNode {
	out := make([]api.FileNode, 0, len(ids))
	for _, id := range ids {
		n := t.nodes[id]
		fn := api.FileNode{ID: uint32(id), Name: n.name, Type: n.kind.String()}
		if n.kind == Folder {
			fn.Children = t.snapshot(n.children)
		} else {
			fn.Language = string(n.lang)
			if n.loaded {
				c := n.content
				fn.Content = &c
			}
		}
		out = append(out, fn)
	}
	return out
}
