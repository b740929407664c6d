// Package session manages the open project: its tree, the active buffer,
// persistence through a storage.Provider and the recent-projects registry.
//
// A Manager is single-writer. Callers serving concurrent requests must
// serialize access.
package session

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/agentic-research/pocket/internal/buffer"
	"github.com/agentic-research/pocket/internal/lang"
	"github.com/agentic-research/pocket/internal/metrics"
	"github.com/agentic-research/pocket/internal/registry"
	"github.com/agentic-research/pocket/internal/storage"
	"github.com/agentic-research/pocket/internal/tree"
)

var (
	// ErrNoProject is returned by file operations when no project is open.
	ErrNoProject = errors.New("no project open")
	// ErrInvalidName is returned for empty or unusable names.
	ErrInvalidName = errors.New("invalid name")
	// ErrNoNode is returned when a node id does not resolve.
	ErrNoNode = errors.New("no such node")
	// ErrNotLoaded is returned when saving a file whose content was never
	// read, such as a binary or unreadable file.
	ErrNotLoaded = errors.New("file content not loaded")
)

// Save policies.
const (
	SaveManual   = "manual"
	SaveOnSwitch = "on_switch"
)

// Recents is the recent-projects registry.
type Recents interface {
	Touch(ctx context.Context, path, name string, setName bool) (registry.Project, error)
	List(ctx context.Context) ([]registry.Project, error)
	Rename(ctx context.Context, path, name string) error
	Remove(ctx context.Context, path string) error
}

// Options configures a Manager.
type Options struct {
	Namespace  string // directory prefix for new projects
	SavePolicy string // SaveManual or SaveOnSwitch
	Templates  *Catalog
	Languages  *lang.Resolver // nil resolves through the built-in table
	Notifier   Notifier
	Metrics    *metrics.Collector
	Log        *zap.Logger
}

// Session is the open project.
type Session struct {
	Project registry.Project
	Tree    *tree.Tree
	Buffer  *buffer.Synchronizer
}

// Manager owns the project lifecycle.
type Manager struct {
	store   storage.Provider
	recents Recents
	opts    Options
	log     *zap.Logger
	current *Session
}

// NewManager returns a manager with no project open.
func NewManager(store storage.Provider, recents Recents, opts Options) *Manager {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Notifier == nil {
		opts.Notifier = LogNotifier{Log: opts.Log}
	}
	if opts.Namespace == "" {
		opts.Namespace = "PocketCodeStudio"
	}
	if opts.SavePolicy == "" {
		opts.SavePolicy = SaveOnSwitch
	}
	return &Manager{store: store, recents: recents, opts: opts, log: opts.Log}
}

// Current returns the open session.
func (m *Manager) Current() (*Session, bool) {
	return m.current, m.current != nil
}

// Templates returns the template catalog.
func (m *Manager) Templates() *Catalog { return m.opts.Templates }

var unsafeName = strings.NewReplacer(
	"/", "-", "\\", "-", ":", "-", "*", "-", "?", "-",
	"\"", "-", "<", "-", ">", "-", "|", "-",
)

// SanitizeName turns a display name into a single path segment.
func SanitizeName(name string) (string, error) {
	s := unsafeName.Replace(strings.TrimSpace(name))
	s = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return '-'
		}
		return r
	}, s)
	if s == "" || s == "." || s == ".." {
		return "", fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	return s, nil
}

// ProjectPath returns the storage path a project named name would use.
func (m *Manager) ProjectPath(name string) (string, error) {
	s, err := SanitizeName(name)
	if err != nil {
		return "", err
	}
	return path.Join(m.opts.Namespace, s), nil
}

// CreateProject creates an empty project directory, registers it and opens
// it with an empty tree.
func (m *Manager) CreateProject(ctx context.Context, name string) (registry.Project, error) {
	dir, err := m.ProjectPath(name)
	if err != nil {
		return registry.Project{}, m.fail("create project", err)
	}
	if err := m.store.Mkdir(dir, true); err != nil {
		return registry.Project{}, m.fail("create project", err)
	}
	proj, err := m.recents.Touch(ctx, dir, strings.TrimSpace(name), true)
	if err != nil {
		return registry.Project{}, m.fail("register project", err)
	}
	m.open(proj, tree.NewWithLanguages(m.opts.Languages))
	m.notify(Info, fmt.Sprintf("Project %q created", proj.Name), nil)
	return proj, nil
}

// CreateFromTemplate creates a project and writes the named template's files
// into it.
func (m *Manager) CreateFromTemplate(ctx context.Context, name, template string) (registry.Project, error) {
	tpl, err := m.opts.Templates.Get(template)
	if err != nil {
		return registry.Project{}, m.fail("create project", err)
	}
	dir, err := m.ProjectPath(name)
	if err != nil {
		return registry.Project{}, m.fail("create project", err)
	}
	if err := m.store.Mkdir(dir, true); err != nil {
		return registry.Project{}, m.fail("create project", err)
	}

	t := tree.NewWithLanguages(m.opts.Languages)
	Expand(t, tpl)
	for _, e := range t.Flatten() {
		full := path.Join(dir, e.Path)
		if err := m.store.Mkdir(path.Dir(full), true); err != nil {
			return registry.Project{}, m.fail("write template", err)
		}
		if err := m.store.WriteFile(full, e.Node.Content); err != nil {
			return registry.Project{}, m.fail("write template", err)
		}
	}
	t.MarkClean()

	proj, err := m.recents.Touch(ctx, dir, strings.TrimSpace(name), true)
	if err != nil {
		return registry.Project{}, m.fail("register project", err)
	}
	m.open(proj, t)
	m.notify(Info, fmt.Sprintf("Project %q created from %s", proj.Name, tpl.Name), nil)
	return proj, nil
}

// OpenProject reads the directory at dir into a fresh tree and makes it the
// current project. Unreadable or binary files become empty files that are
// not loaded and cannot be saved;
// unreadable subdirectories become empty folders.
func (m *Manager) OpenProject(ctx context.Context, dir string) (registry.Project, error) {
	dir = strings.Trim(path.Clean("/"+dir), "/")
	if dir == "" {
		return registry.Project{}, m.fail("open project", fmt.Errorf("%q: %w", dir, ErrInvalidName))
	}

	t := tree.NewWithLanguages(m.opts.Languages)
	if err := m.load(t, tree.Root, dir, true); err != nil {
		return registry.Project{}, m.fail("open project", err)
	}
	col := collate.New(language.Und)
	t.SortAlpha(func(a, b string) bool { return col.CompareString(a, b) < 0 })
	t.MarkClean()

	proj, err := m.recents.Touch(ctx, dir, path.Base(dir), false)
	if err != nil {
		return registry.Project{}, m.fail("register project", err)
	}
	m.open(proj, t)
	return proj, nil
}

func (m *Manager) load(t *tree.Tree, parent tree.NodeID, dir string, top bool) error {
	entries, err := m.store.ReadDir(dir)
	if err != nil {
		if top {
			return err
		}
		m.log.Warn("skipping unreadable directory", zap.String("path", dir), zap.Error(err))
		return nil
	}
	for _, e := range entries {
		full := path.Join(dir, e.Name)
		if e.Dir {
			id, _ := t.Insert(parent, tree.NewFolder(e.Name))
			if err := m.load(t, id, full, false); err != nil {
				return err
			}
			continue
		}
		text, binary, err := m.store.ReadFile(full)
		switch {
		case err != nil:
			m.log.Warn("unreadable file shown empty", zap.String("path", full), zap.Error(err))
			t.Insert(parent, tree.Node{Kind: tree.File, Name: e.Name})
		case binary:
			m.log.Debug("binary file shown empty", zap.String("path", full))
			t.Insert(parent, tree.Node{Kind: tree.File, Name: e.Name})
		default:
			t.Insert(parent, tree.NewFile(e.Name, text))
		}
	}
	return nil
}

func (m *Manager) open(proj registry.Project, t *tree.Tree) {
	m.CloseProject()
	buf := buffer.New(t, m.log)
	if m.opts.SavePolicy == SaveOnSwitch {
		buf.OnLeave(m.saveOnLeave)
	}
	m.current = &Session{Project: proj, Tree: t, Buffer: buf}
	m.opts.Metrics.SetTreeNodes(t.Len())
	m.log.Info("project opened", zap.String("path", proj.Path), zap.Int("nodes", t.Len()))
}

func (m *Manager) saveOnLeave(prev tree.NodeID) {
	if m.current == nil || !m.current.Tree.IsDirty(prev) {
		return
	}
	// Failures are already notified.
	_ = m.Save(prev)
}

// CloseProject flushes the buffer and discards the tree. Files are never
// deleted. Under the on_switch policy the open file is persisted first.
func (m *Manager) CloseProject() {
	if m.current == nil {
		return
	}
	m.current.Buffer.Close()
	m.log.Info("project closed", zap.String("path", m.current.Project.Path))
	m.current = nil
	m.opts.Metrics.SetTreeNodes(0)
}

// RecentProjects lists the registry, most recent first.
func (m *Manager) RecentProjects(ctx context.Context) ([]registry.Project, error) {
	ps, err := m.recents.List(ctx)
	if err != nil {
		return nil, m.fail("list projects", err)
	}
	return ps, nil
}

// RenameProjectEntry changes a registry entry's display name. Storage is
// not touched.
func (m *Manager) RenameProjectEntry(ctx context.Context, dir, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return m.fail("rename project", fmt.Errorf("%q: %w", name, ErrInvalidName))
	}
	if err := m.recents.Rename(ctx, dir, name); err != nil {
		return m.fail("rename project", err)
	}
	if m.current != nil && m.current.Project.Path == dir {
		m.current.Project.Name = name
	}
	return nil
}

// DeleteProjectEntry removes a project from the registry. Its files stay
// on disk.
func (m *Manager) DeleteProjectEntry(ctx context.Context, dir string) error {
	if err := m.recents.Remove(ctx, dir); err != nil {
		return m.fail("remove project", err)
	}
	m.notify(Info, "Project removed from the recent list. Files were not deleted.", nil)
	return nil
}

func (m *Manager) notify(level Level, msg string, err error) {
	m.opts.Notifier.Notify(Notification{Level: level, Message: msg, Err: err})
}

// fail notifies the user and returns err wrapped with op.
func (m *Manager) fail(op string, err error) error {
	var se *storage.Error
	if errors.As(err, &se) {
		m.opts.Metrics.RecordStorageError(se.Op)
	}
	m.notify(Error, fmt.Sprintf("Failed to %s: %v", op, err), err)
	return fmt.Errorf("%s: %w", op, err)
}
