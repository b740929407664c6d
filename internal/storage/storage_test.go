package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBillyProvider_WriteReadList(t *testing.T) {
	p := NewMemoryProvider()

	require.NoError(t, p.Mkdir("proj/src", true))
	require.NoError(t, p.WriteFile("proj/src/main.js", "console.log(1)\n"))
	require.NoError(t, p.WriteFile("proj/README.md", "# proj"))

	text, binary, err := p.ReadFile("proj/src/main.js")
	require.NoError(t, err)
	assert.False(t, binary)
	assert.Equal(t, "console.log(1)\n", text)

	entries, err := p.ReadDir("proj")
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Name: "README.md"}, {Name: "src", Dir: true}}, entries)
}

func TestBillyProvider_BinaryMarker(t *testing.T) {
	p := NewMemoryProvider()
	require.NoError(t, p.WriteFile("img.png", "\x89PNG\x00\x01\x02"))

	text, binary, err := p.ReadFile("img.png")
	require.NoError(t, err)
	assert.True(t, binary)
	assert.Empty(t, text)
}

func TestBillyProvider_MkdirNonRecursiveNeedsParent(t *testing.T) {
	p := NewMemoryProvider()
	err := p.Mkdir("a/b", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorage)

	require.NoError(t, p.Mkdir("a", false))
	require.NoError(t, p.Mkdir("a/b", false))
}

func TestBillyProvider_DeleteFileRejectsDirectory(t *testing.T) {
	p := NewMemoryProvider()
	require.NoError(t, p.Mkdir("dir", true))

	err := p.DeleteFile("dir")
	require.Error(t, err)
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "delete", se.Op)
	assert.Equal(t, "dir", se.Path)
}

func TestBillyProvider_Rmdir(t *testing.T) {
	p := NewMemoryProvider()
	require.NoError(t, p.WriteFile("dir/sub/a.txt", "a"))

	assert.ErrorIs(t, p.Rmdir("dir", false), ErrStorage)
	require.NoError(t, p.Rmdir("dir", true))

	_, _, err := p.ReadFile("dir/sub/a.txt")
	assert.ErrorIs(t, err, ErrStorage)

	assert.Error(t, p.Rmdir("/", true))
}

func TestBillyProvider_Rename(t *testing.T) {
	p := NewMemoryProvider()
	require.NoError(t, p.WriteFile("a.js", "1"))
	require.NoError(t, p.WriteFile("b.js", "2"))

	err := p.Rename("a.js", "b.js")
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrExist))

	require.NoError(t, p.Rename("a.js", "c.js"))
	text, _, err := p.ReadFile("c.js")
	require.NoError(t, err)
	assert.Equal(t, "1", text)
}

func TestOSProvider_RootedAtDirectory(t *testing.T) {
	root := t.TempDir()
	p := NewOSProvider(root)

	require.NoError(t, p.Mkdir("PocketCodeStudio/demo", true))
	require.NoError(t, p.WriteFile("PocketCodeStudio/demo/index.php", "<?php echo 1;"))

	data, err := os.ReadFile(filepath.Join(root, "PocketCodeStudio", "demo", "index.php"))
	require.NoError(t, err)
	assert.Equal(t, "<?php echo 1;", string(data))

	_, err = p.ReadDir("missing")
	assert.ErrorIs(t, err, ErrStorage)
}

func TestClean(t *testing.T) {
	assert.Equal(t, "a/b", clean("/a//b/"))
	assert.Equal(t, "b", clean("../../b"))
	assert.Equal(t, ".", clean(""))
}
