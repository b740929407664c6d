package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/pocket/internal/lang"
	"github.com/agentic-research/pocket/internal/tree"
)

func setup(t *testing.T) (*tree.Tree, *Synchronizer, tree.NodeID, tree.NodeID) {
	t.Helper()
	tr := tree.New()
	a, ok := tr.Insert(tree.Root, tree.NewFile("a.js", "let a = 1"))
	require.True(t, ok)
	b, ok := tr.Insert(tree.Root, tree.NewFile("b.py", "b = 2"))
	require.True(t, ok)
	return tr, New(tr, nil), a, b
}

func TestSelect_LoadsContent(t *testing.T) {
	_, s, a, _ := setup(t)
	assert.Equal(t, Idle, s.State())

	require.True(t, s.Select(a))
	assert.Equal(t, Editing, s.State())
	buf, ok := s.Active()
	require.True(t, ok)
	assert.Equal(t, a, buf.FileID)
	assert.Equal(t, lang.JavaScript, buf.Language)
	assert.Equal(t, "let a = 1", buf.Draft)
}

func TestSelect_FlushesBeforeSwitch(t *testing.T) {
	tr, s, a, b := setup(t)
	require.True(t, s.Select(a))
	require.True(t, s.Edit("draft D"))

	// Something else rewrote the tree copy behind the buffer's back.
	tr.UpdateContent(a, "stale")

	var seen string
	s.OnLeave(func(prev tree.NodeID) {
		n, _ := tr.Find(prev)
		seen = n.Content
	})
	require.True(t, s.Select(b))

	assert.Equal(t, "draft D", seen)
	n, _ := tr.Find(a)
	assert.Equal(t, "draft D", n.Content)

	buf, _ := s.Active()
	assert.Equal(t, b, buf.FileID)
	assert.Equal(t, "b = 2", buf.Draft)
}

func TestSelect_RejectsFolderAndUnknown(t *testing.T) {
	tr, s, a, _ := setup(t)
	dir, _ := tr.Insert(tree.Root, tree.NewFolder("src"))
	require.True(t, s.Select(a))

	assert.False(t, s.Select(dir))
	assert.False(t, s.Select(tree.NodeID(404)))

	buf, ok := s.Active()
	require.True(t, ok)
	assert.Equal(t, a, buf.FileID)
}

func TestSelect_SameFileKeepsDraft(t *testing.T) {
	_, s, a, _ := setup(t)
	calls := 0
	s.OnLeave(func(tree.NodeID) { calls++ })

	require.True(t, s.Select(a))
	require.True(t, s.Edit("x"))
	require.True(t, s.Select(a))

	buf, _ := s.Active()
	assert.Equal(t, "x", buf.Draft)
	assert.Zero(t, calls)
}

func TestEdit_WritesThrough(t *testing.T) {
	tr, s, a, _ := setup(t)
	assert.False(t, s.Edit("nothing open"))

	require.True(t, s.Select(a))
	require.True(t, s.Edit("let a = 2"))

	n, _ := tr.Find(a)
	assert.Equal(t, "let a = 2", n.Content)
	assert.True(t, tr.IsDirty(a))
}

func TestEdit_DeletedFileDropsToIdle(t *testing.T) {
	tr, s, a, _ := setup(t)
	require.True(t, s.Select(a))
	require.True(t, tr.Delete(a))

	assert.False(t, s.Edit("lost"))
	assert.Equal(t, Idle, s.State())
}

func TestActive_PicksUpRenameAndDelete(t *testing.T) {
	tr, s, a, _ := setup(t)
	require.True(t, s.Select(a))
	require.True(t, tr.Rename(a, "a.rs"))

	buf, ok := s.Active()
	require.True(t, ok)
	assert.Equal(t, lang.Rust, buf.Language)

	require.True(t, tr.Delete(a))
	_, ok = s.Active()
	assert.False(t, ok)
	assert.Equal(t, Idle, s.State())
}

func TestInsertAndReplace(t *testing.T) {
	tr, s, a, _ := setup(t)
	require.True(t, s.Select(a))
	require.True(t, s.Edit("héllo"))

	require.True(t, s.Insert(5, " world"))
	buf, _ := s.Active()
	assert.Equal(t, "héllo world", buf.Draft)

	require.True(t, s.Replace(0, 5, "bye"))
	buf, _ = s.Active()
	assert.Equal(t, "bye world", buf.Draft)

	// Reversed and out-of-range offsets are clamped.
	require.True(t, s.Replace(100, 3, "!"))
	buf, _ = s.Active()
	assert.Equal(t, "bye!", buf.Draft)

	require.True(t, s.Insert(-4, ">"))
	n, _ := tr.Find(a)
	assert.Equal(t, ">bye!", n.Content)
}

func TestClose_FlushesAndIdles(t *testing.T) {
	tr, s, a, _ := setup(t)
	var left tree.NodeID
	s.OnLeave(func(prev tree.NodeID) { left = prev })

	require.True(t, s.Select(a))
	require.True(t, s.Edit("final"))
	tr.UpdateContent(a, "stale")
	s.Close()

	assert.Equal(t, Idle, s.State())
	assert.Equal(t, a, left)
	n, _ := tr.Find(a)
	assert.Equal(t, "final", n.Content)

	// Closing twice is harmless.
	s.Close()
}

func TestSelect_UntouchedUnloadedFileStaysClean(t *testing.T) {
	tr, s, a, _ := setup(t)
	img, ok := tr.Insert(tree.Root, tree.Node{Kind: tree.File, Name: "logo.png"})
	require.True(t, ok)

	require.True(t, s.Select(img))
	require.True(t, s.Select(a))
	s.Close()

	n, _ := tr.Find(img)
	assert.False(t, n.Loaded)
	assert.False(t, tr.IsDirty(img))
}
