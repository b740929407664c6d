// Package buffer keeps the single open editor buffer in step with the tree.
package buffer

import (
	"go.uber.org/zap"

	"github.com/agentic-research/pocket/internal/lang"
	"github.com/agentic-research/pocket/internal/tree"
)

// State of the synchronizer.
type State int

const (
	Idle State = iota
	Editing
)

func (s State) String() string {
	if s == Editing {
		return "editing"
	}
	return "idle"
}

// Buffer is the open file's editable text.
type Buffer struct {
	FileID   tree.NodeID
	Language lang.Tag
	Draft    string
}

// Synchronizer owns the active buffer. Every edit is written through to the
// tree, and the draft is flushed again before the buffer moves to another
// file or closes.
type Synchronizer struct {
	tree   *tree.Tree
	state  State
	active Buffer
	leave  func(prev tree.NodeID)
	log    *zap.Logger

	// modified is set once the draft has been edited since Select.
	modified bool
}

// New returns an idle synchronizer over t.
func New(t *tree.Tree, log *zap.Logger) *Synchronizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Synchronizer{tree: t, log: log}
}

// OnLeave registers fn to run after the buffer has flushed a file it is
// leaving, on switch or close.
func (s *Synchronizer) OnLeave(fn func(prev tree.NodeID)) {
	s.leave = fn
}

// State returns the current state.
func (s *Synchronizer) State() State { return s.state }

// Active returns the open buffer. The language is refreshed from the tree
// so renames are picked up. If the file has been deleted the synchronizer
// drops to Idle.
func (s *Synchronizer) Active() (Buffer, bool) {
	if s.state != Editing {
		return Buffer{}, false
	}
	n, ok := s.tree.Find(s.active.FileID)
	if !ok {
		s.reset()
		return Buffer{}, false
	}
	s.active.Language = n.Language
	return s.active, true
}

// Select opens a file. The current draft is flushed into the tree before
// the new file's content is loaded. Folders and unknown ids are rejected
// without touching the current buffer.
func (s *Synchronizer) Select(id tree.NodeID) bool {
	target, ok := s.tree.Find(id)
	if !ok || target.IsFolder() {
		return false
	}
	if s.state == Editing && s.active.FileID == id {
		return true
	}

	prev, had := s.active.FileID, s.state == Editing
	if had {
		s.flush()
	}

	// Re-read after the flush so the loaded draft is current.
	target, ok = s.tree.Find(id)
	if !ok {
		return false
	}
	s.state = Editing
	s.active = Buffer{FileID: id, Language: target.Language, Draft: target.Content}
	s.modified = false
	s.log.Debug("buffer switched", zap.Uint32("from", uint32(prev)), zap.Uint32("to", uint32(id)))

	if had && s.leave != nil {
		s.leave(prev)
	}
	return true
}

// Edit replaces the draft and writes it through to the tree.
func (s *Synchronizer) Edit(content string) bool {
	if s.state != Editing {
		return false
	}
	if !s.tree.UpdateContent(s.active.FileID, content) {
		s.log.Debug("active file vanished", zap.Uint32("id", uint32(s.active.FileID)))
		s.reset()
		return false
	}
	s.active.Draft = content
	s.modified = true
	return true
}

// Insert places text at a rune offset in the draft. Offsets are clamped.
func (s *Synchronizer) Insert(offset int, text string) bool {
	return s.Replace(offset, offset, text)
}

// Replace substitutes the rune range [start, end) of the draft with text.
// Offsets are clamped and swapped if reversed.
func (s *Synchronizer) Replace(start, end int, text string) bool {
	if s.state != Editing {
		return false
	}
	r := []rune(s.active.Draft)
	start, end = clamp(start, len(r)), clamp(end, len(r))
	if start > end {
		start, end = end, start
	}
	return s.Edit(string(r[:start]) + text + string(r[end:]))
}

// Close flushes the draft and returns to Idle.
func (s *Synchronizer) Close() {
	if s.state != Editing {
		return
	}
	prev := s.active.FileID
	s.flush()
	s.reset()
	if s.leave != nil {
		s.leave(prev)
	}
}

// flush writes an edited draft back. An untouched draft is skipped so a
// file shown empty because it could not be read is never marked dirty.
func (s *Synchronizer) flush() {
	if !s.modified {
		return
	}
	if !s.tree.UpdateContent(s.active.FileID, s.active.Draft) {
		s.log.Debug("flush skipped, file gone", zap.Uint32("id", uint32(s.active.FileID)))
	}
}

func (s *Synchronizer) reset() {
	s.state = Idle
	s.active = Buffer{}
	s.modified = false
}

func clamp(v, n int) int {
	if v < 0 {
		return 0
	}
	if v > n {
		return n
	}
	return v
}
