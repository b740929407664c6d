// Package lang maps file names to the language tags used for syntax modes,
// diagnostics and execution routing.
package lang

import (
	"sort"
	"strings"
	"sync"
)

// Tag identifies a language. The zero value means plain text.
type Tag string

const (
	None       Tag = ""
	JavaScript Tag = "javascript"
	TypeScript Tag = "typescript"
	Python     Tag = "python"
	HTML       Tag = "html"
	CSS        Tag = "css"
	JSON       Tag = "json"
	Markdown   Tag = "markdown"
	SQL        Tag = "sql"
	XML        Tag = "xml"
	Java       Tag = "java"
	CPP        Tag = "cpp"
	Rust       Tag = "rust"
	PHP        Tag = "php"
	Go         Tag = "go"
	HCL        Tag = "hcl"
)

var extensions = map[string]Tag{
	"js":   JavaScript,
	"jsx":  JavaScript,
	"mjs":  JavaScript,
	"cjs":  JavaScript,
	"ts":   TypeScript,
	"tsx":  TypeScript,
	"py":   Python,
	"html": HTML,
	"htm":  HTML,
	"css":  CSS,
	"json": JSON,
	"md":   Markdown,
	"sql":  SQL,
	"xml":  XML,
	"java": Java,
	"cpp":  CPP,
	"cc":   CPP,
	"cxx":  CPP,
	"hpp":  CPP,
	"h":    CPP,
	"c":    CPP,
	"rs":   Rust,
	"php":  PHP,
	"go":   Go,
	"hcl":  HCL,
	"tf":   HCL,
}

// Resolver maps file names to tags using the built-in extension table plus
// custom mappings. A nil *Resolver resolves through the built-in table only.
// Resolvers are safe for concurrent use.
type Resolver struct {
	mu     sync.RWMutex
	custom map[string]Tag
}

// NewResolver returns a resolver with no custom mappings.
func NewResolver() *Resolver {
	return &Resolver{custom: map[string]Tag{}}
}

var builtin = NewResolver()

// Resolve returns the built-in tag for fileName.
func Resolve(fileName string) Tag { return builtin.Resolve(fileName) }

// Known lists the built-in tags, sorted.
func Known() []Tag { return builtin.Known() }

// Resolve returns the tag for fileName, keyed on the lowercase text after
// the last dot. Names without an extension resolve to None.
func (r *Resolver) Resolve(fileName string) Tag {
	i := strings.LastIndexByte(fileName, '.')
	if i < 0 || i == len(fileName)-1 {
		return None
	}
	ext := strings.ToLower(fileName[i+1:])

	if r != nil {
		r.mu.RLock()
		tag, ok := r.custom[ext]
		r.mu.RUnlock()
		if ok {
			return tag
		}
	}
	return extensions[ext]
}

// Register maps an extension (with or without the leading dot) to a tag.
// Registered extensions take precedence over the built-in table.
func (r *Resolver) Register(ext string, tag Tag) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" {
		return
	}
	r.mu.Lock()
	r.custom[ext] = tag
	r.mu.Unlock()
}

// Unregister removes a custom extension mapping.
func (r *Resolver) Unregister(ext string) {
	r.mu.Lock()
	delete(r.custom, strings.ToLower(strings.TrimPrefix(ext, ".")))
	r.mu.Unlock()
}

// Known lists every tag reachable through Resolve, sorted.
func (r *Resolver) Known() []Tag {
	seen := map[Tag]bool{}
	for _, t := range extensions {
		seen[t] = true
	}
	if r != nil {
		r.mu.RLock()
		for _, t := range r.custom {
			seen[t] = true
		}
		r.mu.RUnlock()
	}

	tags := make([]Tag, 0, len(seen))
	for t := range seen {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

func (t Tag) String() string {
	if t == None {
		return "plaintext"
	}
	return string(t)
}
