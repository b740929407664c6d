// Package tree holds the in-memory project file tree.
//
// Nodes live in an arena addressed by NodeID. Each folder keeps an ordered
// list of child ids in which folders always precede files. Mutations happen
// in place; observers detect change through Generation and the dirty set.
package tree

import (
	"strings"
	"sync"

	"github.com/RoaringBitmap/roaring"

	"github.com/agentic-research/pocket/internal/lang"
)

// NodeID identifies a node for the lifetime of a Tree. IDs are never reused.
type NodeID uint32

// Root is the sentinel parent of top-level nodes.
const Root NodeID = 0

// Kind distinguishes files from folders.
type Kind uint8

const (
	File Kind = iota
	Folder
)

func (k Kind) String() string {
	if k == Folder {
		return "folder"
	}
	return "file"
}

// Node is a detached copy of a tree node. Mutating it does not affect the tree.
type Node struct {
	ID       NodeID
	Kind     Kind
	Name     string
	Language lang.Tag // files only
	Content  string   // files only
	Loaded   bool     // false until content has been read or written
	Parent   NodeID
	Children []NodeID // folders only
}

// IsFolder reports whether n is a folder.
func (n Node) IsFolder() bool { return n.Kind == Folder }

// NewFile returns a detached file node with loaded content.
// The language is resolved from the name on insert.
func NewFile(name, content string) Node {
	return Node{Kind: File, Name: name, Content: content, Loaded: true}
}

// NewFolder returns a detached, empty folder node.
func NewFolder(name string) Node {
	return Node{Kind: Folder, Name: name}
}

type node struct {
	kind     Kind
	name     string
	lang     lang.Tag
	content  string
	loaded   bool
	parent   NodeID
	children []NodeID
}

// Tree is an arena-backed forest of files and folders.
type Tree struct {
	mu    sync.RWMutex
	nodes map[NodeID]*node
	roots []NodeID
	next  NodeID // last allocated id
	gen   uint64

	// Files whose content changed since the last MarkClean.
	dirty *roaring.Bitmap

	langs *lang.Resolver
}

// New returns an empty tree resolving languages from the built-in table.
func New() *Tree {
	return NewWithLanguages(nil)
}

// NewWithLanguages returns an empty tree that resolves file languages
// through r.
func NewWithLanguages(r *lang.Resolver) *Tree {
	return &Tree{
		nodes: make(map[NodeID]*node),
		dirty: roaring.New(),
		langs: r,
	}
}

// Insert adds n under parent and returns the id allocated for it.
// Any ID or Children carried by n are ignored. Files without a language get
// one resolved from their name. Returns false, leaving the tree unchanged,
// when parent is neither Root nor an existing folder.
func (t *Tree) Insert(parent NodeID, n Node) (NodeID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	list, ok := t.childList(parent)
	if !ok {
		return 0, false
	}

	t.next++
	id := t.next
	nn := &node{
		kind:   n.Kind,
		name:   n.Name,
		parent: parent,
	}
	if n.Kind == File {
		nn.lang = n.Language
		if nn.lang == lang.None {
			nn.lang = t.langs.Resolve(n.Name)
		}
		nn.content = n.Content
		nn.loaded = n.Loaded || n.Content != ""
	} else {
		nn.children = []NodeID{}
	}
	t.nodes[id] = nn
	*list = t.placeOrdered(*list, id)
	t.gen++
	return id, true
}

// Delete removes a node and its entire subtree.
func (t *Tree) Delete(id NodeID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.nodes[id]
	if !ok {
		return false
	}
	if list, ok := t.childList(n.parent); ok {
		*list = without(*list, id)
	}
	t.drop(id)
	t.gen++
	return true
}

func (t *Tree) drop(id NodeID) {
	n := t.nodes[id]
	for _, c := range n.children {
		t.drop(c)
	}
	delete(t.nodes, id)
	t.dirty.Remove(uint32(id))
}

// Rename changes a node's name. Files re-resolve their language from the
// new name; folders never carry one. Sibling collisions are not checked.
func (t *Tree) Rename(id NodeID, name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.nodes[id]
	if !ok {
		return false
	}
	n.name = name
	if n.kind == File {
		n.lang = t.langs.Resolve(name)
	}
	t.gen++
	return true
}

// Move reparents a node, keeping folders first in the destination.
// Moving a folder into itself or one of its descendants is rejected.
func (t *Tree) Move(id, parent NodeID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.nodes[id]
	if !ok {
		return false
	}
	if n.parent == parent {
		return true
	}
	for p := parent; p != Root; {
		if p == id {
			return false
		}
		pn, ok := t.nodes[p]
		if !ok {
			return false
		}
		p = pn.parent
	}
	dst, ok := t.childList(parent)
	if !ok {
		return false
	}
	if src, ok := t.childList(n.parent); ok {
		*src = without(*src, id)
	}
	n.parent = parent
	*dst = t.placeOrdered(*dst, id)
	t.gen++
	return true
}

// UpdateContent replaces a file's content verbatim and marks it dirty.
// Writing identical content to a loaded file changes nothing.
func (t *Tree) UpdateContent(id NodeID, content string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.nodes[id]
	if !ok || n.kind != File {
		return false
	}
	if n.loaded && n.content == content {
		return true
	}
	n.content = content
	n.loaded = true
	t.dirty.Add(uint32(id))
	t.gen++
	return true
}

// Find returns a copy of the node with the given id.
func (t *Tree) Find(id NodeID) (Node, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n, ok := t.nodes[id]
	if !ok {
		return Node{}, false
	}
	return t.export(id, n), true
}

func (t *Tree) export(id NodeID, n *node) Node {
	out := Node{
		ID:       id,
		Kind:     n.kind,
		Name:     n.name,
		Language: n.lang,
		Content:  n.content,
		Loaded:   n.loaded,
		Parent:   n.parent,
	}
	if n.kind == Folder {
		out.Children = append([]NodeID{}, n.children...)
	}
	return out
}

// Roots returns the ids of the top-level nodes in order.
func (t *Tree) Roots() []NodeID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]NodeID{}, t.roots...)
}

// Children returns the ordered child ids of a folder, or of the top level
// for Root.
func (t *Tree) Children(id NodeID) ([]NodeID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	list, ok := t.childList(id)
	if !ok {
		return nil, false
	}
	return append([]NodeID{}, (*list)...), true
}

// Path returns the slash-joined path of a node from the top level.
func (t *Tree) Path(id NodeID) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.path(id)
}

func (t *Tree) path(id NodeID) (string, bool) {
	var parts []string
	for cur := id; cur != Root; {
		n, ok := t.nodes[cur]
		if !ok {
			return "", false
		}
		parts = append(parts, n.name)
		cur = n.parent
	}
	if len(parts) == 0 {
		return "", false
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/"), true
}

// Lookup resolves a slash-separated path to the first matching node.
func (t *Tree) Lookup(p string) (NodeID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cur := Root
	for _, part := range strings.Split(strings.Trim(p, "/"), "/") {
		if part == "" {
			return 0, false
		}
		list, ok := t.childList(cur)
		if !ok {
			return 0, false
		}
		next := Root
		for _, c := range *list {
			if t.nodes[c].name == part {
				next = c
				break
			}
		}
		if next == Root {
			return 0, false
		}
		cur = next
	}
	return cur, cur != Root
}

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.nodes)
}

// Generation is bumped by every mutation that changes the tree.
func (t *Tree) Generation() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.gen
}

// Dirty returns the files edited since they were last marked clean.
func (t *Tree) Dirty() []NodeID {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]NodeID, 0, t.dirty.GetCardinality())
	it := t.dirty.Iterator()
	for it.HasNext() {
		ids = append(ids, NodeID(it.Next()))
	}
	return ids
}

// IsDirty reports whether a file has unsaved edits.
func (t *Tree) IsDirty(id NodeID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.dirty.Contains(uint32(id))
}

// MarkClean clears the dirty flag of the given files, or of every file when
// called with no ids.
func (t *Tree) MarkClean(ids ...NodeID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(ids) == 0 {
		t.dirty.Clear()
		return
	}
	for _, id := range ids {
		t.dirty.Remove(uint32(id))
	}
}

// childList returns the child slice of a folder, or the root list.
// Caller holds the lock.
func (t *Tree) childList(id NodeID) (*[]NodeID, bool) {
	if id == Root {
		return &t.roots, true
	}
	n, ok := t.nodes[id]
	if !ok || n.kind != Folder {
		return nil, false
	}
	return &n.children, true
}

// placeOrdered inserts id at its kind's boundary: folders after the last
// folder, files at the end.
func (t *Tree) placeOrdered(list []NodeID, id NodeID) []NodeID {
	if t.nodes[id].kind == File {
		return append(list, id)
	}
	at := len(list)
	for i, c := range list {
		if t.nodes[c].kind == File {
			at = i
			break
		}
	}
	list = append(list, 0)
	copy(list[at+1:], list[at:])
	list[at] = id
	return list
}

func without(list []NodeID, id NodeID) []NodeID {
	for i, c := range list {
		if c == id {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
