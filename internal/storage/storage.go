// Package storage is the persistence boundary for project files.
//
// Paths are slash-separated and relative to a fixed document root.
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"unicode/utf8"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

// ErrStorage matches every error returned by a Provider.
var ErrStorage = errors.New("storage failure")

// Error records the failing operation and path.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrStorage) match any *Error.
func (e *Error) Is(target error) bool { return target == ErrStorage }

// Entry is one directory listing item.
type Entry struct {
	Name string
	Dir  bool
}

// Provider is the filesystem surface the session manager persists through.
type Provider interface {
	Mkdir(p string, recursive bool) error
	ReadDir(p string) ([]Entry, error)
	// ReadFile returns the file as text. binary is true, with empty text,
	// when the content is not UTF-8 text.
	ReadFile(p string) (text string, binary bool, err error)
	WriteFile(p, text string) error
	DeleteFile(p string) error
	Rmdir(p string, recursive bool) error
	Rename(from, to string) error
}

// binarySniffLen bounds how much of a file is inspected for NUL bytes.
const binarySniffLen = 8000

// BillyProvider implements Provider on a billy.Filesystem.
type BillyProvider struct {
	fs billy.Filesystem
}

// NewBillyProvider wraps fs.
func NewBillyProvider(fs billy.Filesystem) *BillyProvider {
	return &BillyProvider{fs: fs}
}

// NewOSProvider roots a provider at a host directory.
func NewOSProvider(root string) *BillyProvider {
	return NewBillyProvider(osfs.New(root))
}

// NewMemoryProvider returns a provider backed by an in-memory filesystem.
func NewMemoryProvider() *BillyProvider {
	return NewBillyProvider(memfs.New())
}

func clean(p string) string {
	p = path.Clean("/" + p)
	if p == "/" {
		return "."
	}
	return p[1:]
}

func (b *BillyProvider) Mkdir(p string, recursive bool) error {
	p = clean(p)
	if !recursive {
		parent := path.Dir(p)
		if parent != "." {
			fi, err := b.fs.Stat(parent)
			if err != nil {
				return &Error{Op: "mkdir", Path: p, Err: err}
			}
			if !fi.IsDir() {
				return &Error{Op: "mkdir", Path: p, Err: fmt.Errorf("parent %s is not a directory", parent)}
			}
		}
	}
	if err := b.fs.MkdirAll(p, 0o755); err != nil {
		return &Error{Op: "mkdir", Path: p, Err: err}
	}
	return nil
}

func (b *BillyProvider) ReadDir(p string) ([]Entry, error) {
	p = clean(p)
	if p != "." {
		fi, err := b.fs.Stat(p)
		if err != nil {
			return nil, &Error{Op: "readdir", Path: p, Err: err}
		}
		if !fi.IsDir() {
			return nil, &Error{Op: "readdir", Path: p, Err: fmt.Errorf("not a directory")}
		}
	}
	infos, err := b.fs.ReadDir(p)
	if err != nil {
		return nil, &Error{Op: "readdir", Path: p, Err: err}
	}
	entries := make([]Entry, 0, len(infos))
	for _, fi := range infos {
		entries = append(entries, Entry{Name: fi.Name(), Dir: fi.IsDir()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (b *BillyProvider) ReadFile(p string) (string, bool, error) {
	p = clean(p)
	f, err := b.fs.Open(p)
	if err != nil {
		return "", false, &Error{Op: "read", Path: p, Err: err}
	}
	defer func() { _ = f.Close() }() // best-effort

	data, err := io.ReadAll(f)
	if err != nil {
		return "", false, &Error{Op: "read", Path: p, Err: err}
	}
	if isBinary(data) {
		return "", true, nil
	}
	return string(data), false, nil
}

func isBinary(data []byte) bool {
	sniff := data
	if len(sniff) > binarySniffLen {
		sniff = sniff[:binarySniffLen]
	}
	return bytes.IndexByte(sniff, 0) >= 0 || !utf8.Valid(data)
}

func (b *BillyProvider) WriteFile(p, text string) error {
	p = clean(p)
	if err := util.WriteFile(b.fs, p, []byte(text), 0o644); err != nil {
		return &Error{Op: "write", Path: p, Err: err}
	}
	return nil
}

// DeleteFile removes a regular file. Directories are rejected so callers
// can fall back to Rmdir.
func (b *BillyProvider) DeleteFile(p string) error {
	p = clean(p)
	fi, err := b.fs.Lstat(p)
	if err != nil {
		return &Error{Op: "delete", Path: p, Err: err}
	}
	if fi.IsDir() {
		return &Error{Op: "delete", Path: p, Err: fmt.Errorf("is a directory")}
	}
	if err := b.fs.Remove(p); err != nil {
		return &Error{Op: "delete", Path: p, Err: err}
	}
	return nil
}

func (b *BillyProvider) Rmdir(p string, recursive bool) error {
	p = clean(p)
	if p == "." {
		return &Error{Op: "rmdir", Path: p, Err: fmt.Errorf("refusing to remove the document root")}
	}
	fi, err := b.fs.Lstat(p)
	if err != nil {
		return &Error{Op: "rmdir", Path: p, Err: err}
	}
	if !fi.IsDir() {
		return &Error{Op: "rmdir", Path: p, Err: fmt.Errorf("not a directory")}
	}
	if recursive {
		err = util.RemoveAll(b.fs, p)
	} else {
		var infos []os.FileInfo
		infos, err = b.fs.ReadDir(p)
		if err == nil && len(infos) > 0 {
			err = fmt.Errorf("directory not empty")
		}
		if err == nil {
			err = b.fs.Remove(p)
		}
	}
	if err != nil {
		return &Error{Op: "rmdir", Path: p, Err: err}
	}
	return nil
}

func (b *BillyProvider) Rename(from, to string) error {
	from, to = clean(from), clean(to)
	if _, err := b.fs.Lstat(to); err == nil {
		return &Error{Op: "rename", Path: to, Err: os.ErrExist}
	}
	if err := b.fs.Rename(from, to); err != nil {
		return &Error{Op: "rename", Path: from, Err: err}
	}
	return nil
}
