package api

// FileNode is the serialized view of a project tree node.
// Folders carry Children (never nil); files carry Language and Content.
type FileNode struct {
	// ID is the node's session-stable identifier.
	ID uint32 `json:"id"`
	// Name of the file or folder.
	Name string `json:"name"`
	// Type is "file" or "folder".
	Type string `json:"type"`
	// Language tag of a file, empty for plain text and for folders.
	Language string `json:"language,omitempty"`
	// Content of a file. Nil until the content has been loaded.
	Content *string `json:"content,omitempty"`
	// Children of a folder.
	Children []FileNode `json:"children,omitempty"`
}

// Template describes a project scaffold loaded from a catalog file.
//
//	name        = "web"
//	description = "HTML page with a script"
//	file "index.html" { content = "<html></html>" }
//	file "js/app.js"  { content = "console.log('hi')" }
type Template struct {
	// Name is the catalog key.
	Name string `hcl:"name" json:"name"`
	// Description is shown in listings.
	Description string `hcl:"description,optional" json:"description,omitempty"`
	// Files to expand, keyed by slash-separated path.
	Files []TemplateFile `hcl:"file,block" json:"files"`
}

// TemplateFile is one scaffold file.
type TemplateFile struct {
	Path    string `hcl:"path,label" json:"path"`
	Content string `hcl:"content,optional" json:"content"`
}

// ExecuteRequest is the body posted to a Piston-compatible execution service.
type ExecuteRequest struct {
	Language string        `json:"language"`
	Version  string        `json:"version"`
	Files    []ExecuteFile `json:"files"`
}

// ExecuteFile is one source file of an ExecuteRequest.
type ExecuteFile struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}
