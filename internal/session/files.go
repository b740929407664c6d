package session

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/agentic-research/pocket/internal/tree"
)

// abs maps a project-relative path to a storage path.
func (m *Manager) abs(rel string) (string, error) {
	if m.current == nil {
		return "", ErrNoProject
	}
	clean := strings.Trim(path.Clean("/"+rel), "/")
	if clean == "" {
		return "", fmt.Errorf("%q: %w", rel, ErrInvalidName)
	}
	return path.Join(m.current.Project.Path, clean), nil
}

// SaveFile writes content to a project-relative path.
func (m *Manager) SaveFile(rel, content string) error {
	p, err := m.abs(rel)
	if err != nil {
		return m.fail("save file", err)
	}
	if err := m.store.WriteFile(p, content); err != nil {
		return m.fail("save file", err)
	}
	return nil
}

// CreateFile writes a new file at a project-relative path.
func (m *Manager) CreateFile(rel, content string) error {
	p, err := m.abs(rel)
	if err != nil {
		return m.fail("create file", err)
	}
	if err := m.store.WriteFile(p, content); err != nil {
		return m.fail("create file", err)
	}
	return nil
}

// CreateFolder creates a directory, and any missing parents, at a
// project-relative path.
func (m *Manager) CreateFolder(rel string) error {
	p, err := m.abs(rel)
	if err != nil {
		return m.fail("create folder", err)
	}
	if err := m.store.Mkdir(p, true); err != nil {
		return m.fail("create folder", err)
	}
	return nil
}

// DeleteItem removes a file, or a directory with everything under it.
func (m *Manager) DeleteItem(rel string) error {
	p, err := m.abs(rel)
	if err != nil {
		return m.fail("delete", err)
	}
	if err := m.store.DeleteFile(p); err != nil {
		m.log.Debug("delete as file failed, trying directory", zap.String("path", p), zap.Error(err))
		if err := m.store.Rmdir(p, true); err != nil {
			return m.fail("delete", err)
		}
	}
	return nil
}

// nodePath returns the project-relative path of id, or of the project
// root for tree.Root. The node must be a folder when folderOnly is set.
func (m *Manager) nodePath(id tree.NodeID, folderOnly bool) (string, error) {
	if m.current == nil {
		return "", ErrNoProject
	}
	if id == tree.Root {
		return "", nil
	}
	n, ok := m.current.Tree.Find(id)
	if !ok || (folderOnly && !n.IsFolder()) {
		return "", fmt.Errorf("node %d: %w", id, ErrNoNode)
	}
	p, _ := m.current.Tree.Path(id)
	return p, nil
}

func checkSegment(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	return nil
}

// AddFile creates a file in storage and, once that succeeds, in the tree.
func (m *Manager) AddFile(parent tree.NodeID, name, content string) (tree.NodeID, error) {
	dir, err := m.nodePath(parent, true)
	if err == nil {
		err = checkSegment(name)
	}
	if err != nil {
		return 0, m.fail("create file", err)
	}
	if err := m.CreateFile(path.Join(dir, name), content); err != nil {
		return 0, err
	}
	id, _ := m.current.Tree.Insert(parent, tree.NewFile(name, content))
	m.opts.Metrics.SetTreeNodes(m.current.Tree.Len())
	return id, nil
}

// AddFolder creates a folder in storage and, once that succeeds, in the tree.
func (m *Manager) AddFolder(parent tree.NodeID, name string) (tree.NodeID, error) {
	dir, err := m.nodePath(parent, true)
	if err == nil {
		err = checkSegment(name)
	}
	if err != nil {
		return 0, m.fail("create folder", err)
	}
	if err := m.CreateFolder(path.Join(dir, name)); err != nil {
		return 0, err
	}
	id, _ := m.current.Tree.Insert(parent, tree.NewFolder(name))
	m.opts.Metrics.SetTreeNodes(m.current.Tree.Len())
	return id, nil
}

// Remove deletes a node and its subtree from storage, then from the tree.
// Confirmation is the caller's job.
func (m *Manager) Remove(id tree.NodeID) error {
	if id == tree.Root {
		return m.fail("delete", fmt.Errorf("node %d: %w", id, ErrNoNode))
	}
	p, err := m.nodePath(id, false)
	if err != nil {
		return m.fail("delete", err)
	}
	if err := m.DeleteItem(p); err != nil {
		return err
	}
	m.current.Tree.Delete(id)
	m.opts.Metrics.SetTreeNodes(m.current.Tree.Len())
	return nil
}

// RenameNode renames a node in storage, then in the tree.
func (m *Manager) RenameNode(id tree.NodeID, name string) error {
	if id == tree.Root {
		return m.fail("rename", fmt.Errorf("node %d: %w", id, ErrNoNode))
	}
	from, err := m.nodePath(id, false)
	if err == nil {
		err = checkSegment(name)
	}
	if err != nil {
		return m.fail("rename", err)
	}
	to := path.Join(path.Dir(from), name)
	if to == from {
		return nil
	}
	if err := m.rename(from, to); err != nil {
		return m.fail("rename", err)
	}
	m.current.Tree.Rename(id, name)
	return nil
}

// MoveNode moves a node under another folder, in storage then in the tree.
func (m *Manager) MoveNode(id, parent tree.NodeID) error {
	if id == tree.Root {
		return m.fail("move", fmt.Errorf("node %d: %w", id, ErrNoNode))
	}
	from, err := m.nodePath(id, false)
	if err != nil {
		return m.fail("move", err)
	}
	dir, err := m.nodePath(parent, true)
	if err != nil {
		return m.fail("move", err)
	}
	if dir == from || strings.HasPrefix(dir, from+"/") {
		return m.fail("move", fmt.Errorf("cannot move %s into itself", from))
	}
	to := path.Join(dir, path.Base(from))
	if to == from {
		return nil
	}
	if err := m.rename(from, to); err != nil {
		return m.fail("move", err)
	}
	m.current.Tree.Move(id, parent)
	return nil
}

func (m *Manager) rename(fromRel, toRel string) error {
	from, err := m.abs(fromRel)
	if err != nil {
		return err
	}
	to, err := m.abs(toRel)
	if err != nil {
		return err
	}
	return m.store.Rename(from, to)
}

// Save persists one file's tree content and marks it clean.
func (m *Manager) Save(id tree.NodeID) error {
	if m.current == nil {
		return m.fail("save file", ErrNoProject)
	}
	n, ok := m.current.Tree.Find(id)
	if !ok || n.IsFolder() {
		return m.fail("save file", fmt.Errorf("node %d: %w", id, ErrNoNode))
	}
	p, _ := m.current.Tree.Path(id)
	if !n.Loaded {
		return m.fail("save file", fmt.Errorf("%s: %w", p, ErrNotLoaded))
	}
	if err := m.SaveFile(p, n.Content); err != nil {
		return err
	}
	m.current.Tree.MarkClean(id)
	m.log.Debug("file saved", zap.String("path", p))
	return nil
}

// SaveAll flushes the buffer and persists every dirty file. All files are
// attempted; failures are joined.
func (m *Manager) SaveAll() error {
	if m.current == nil {
		return m.fail("save", ErrNoProject)
	}
	if b, ok := m.current.Buffer.Active(); ok {
		m.current.Tree.UpdateContent(b.FileID, b.Draft)
	}
	var errs []error
	for _, id := range m.current.Tree.Dirty() {
		if err := m.Save(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Select opens a file in the buffer.
func (m *Manager) Select(id tree.NodeID) error {
	if m.current == nil {
		return ErrNoProject
	}
	if !m.current.Buffer.Select(id) {
		return fmt.Errorf("node %d: %w", id, ErrNoNode)
	}
	return nil
}

// Edit replaces the open buffer's content.
func (m *Manager) Edit(content string) error {
	if m.current == nil {
		return ErrNoProject
	}
	if !m.current.Buffer.Edit(content) {
		return fmt.Errorf("no file open: %w", ErrNoNode)
	}
	return nil
}
