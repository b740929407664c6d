package mcptools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/agentic-research/pocket/internal/tree"
)

// RegisterFileTools adds tools that read and edit files of the open project.
func RegisterFileTools(s *server.MCPServer, svc *Service) {
	s.AddTool(readFileTool(), readFileHandler(svc))
	s.AddTool(writeFileTool(), writeFileHandler(svc))
	s.AddTool(createFileTool(), createFileHandler(svc))
	s.AddTool(createFolderTool(), createFolderHandler(svc))
	s.AddTool(deleteItemTool(), deleteItemHandler(svc))
	s.AddTool(renameItemTool(), renameItemHandler(svc))
	s.AddTool(moveItemTool(), moveItemHandler(svc))
	s.AddTool(saveAllTool(), saveAllHandler(svc))
}

func pathParam() mcp.ToolOption {
	return mcp.WithString("path",
		mcp.Description("Path relative to the project root, e.g. src/app.js"),
		mcp.Required(),
	)
}

// --- read_file ---

func readFileTool() mcp.Tool {
	return mcp.NewTool("read_file",
		mcp.WithDescription("Read a file of the open project, including unsaved edits. Binary and unreadable files are refused."),
		pathParam(),
	)
}

func readFileHandler(svc *Service) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return svc.locked(func() (*mcp.CallToolResult, error) {
			p, err := requireString(req, "path")
			if err != nil {
				return toolError(err)
			}
			code, _, err := svc.source(p)
			if err != nil {
				return toolError(err)
			}
			return mcp.NewToolResultText(code), nil
		})
	}
}

// --- write_file ---

func writeFileTool() mcp.Tool {
	return mcp.NewTool("write_file",
		mcp.WithDescription("Replace a file's content and save it. Creates the file if it does not exist; the parent folder must exist."),
		pathParam(),
		mcp.WithString("content",
			mcp.Description("New file content"),
			mcp.Required(),
		),
	)
}

func writeFileHandler(svc *Service) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return svc.locked(func() (*mcp.CallToolResult, error) {
			p, err := requireString(req, "path")
			if err != nil {
				return toolError(err)
			}
			content := req.GetString("content", "")
			s, err := svc.current()
			if err != nil {
				return toolError(err)
			}
			id, ok := s.Tree.Lookup(p)
			if !ok {
				parent, name, err := svc.parentOf(p)
				if err != nil {
					return toolError(err)
				}
				if _, err := svc.m.AddFile(parent, name, content); err != nil {
					return toolError(err)
				}
				return mcp.NewToolResultText(fmt.Sprintf("Created %s (%d bytes)", p, len(content))), nil
			}
			if err := svc.m.Select(id); err != nil {
				return toolError(err)
			}
			if err := svc.m.Edit(content); err != nil {
				return toolError(err)
			}
			if err := svc.m.Save(id); err != nil {
				return toolError(err)
			}
			return mcp.NewToolResultText(fmt.Sprintf("Saved %s (%d bytes)", p, len(content))), nil
		})
	}
}

// --- create_file ---

func createFileTool() mcp.Tool {
	return mcp.NewTool("create_file",
		mcp.WithDescription("Create a new file. Fails if the parent folder is missing."),
		pathParam(),
		mcp.WithString("content", mcp.Description("Initial content, empty by default")),
	)
}

func createFileHandler(svc *Service) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return svc.locked(func() (*mcp.CallToolResult, error) {
			p, err := requireString(req, "path")
			if err != nil {
				return toolError(err)
			}
			s, err := svc.current()
			if err != nil {
				return toolError(err)
			}
			if _, ok := s.Tree.Lookup(p); ok {
				return toolError(fmt.Errorf("%s already exists", p))
			}
			parent, name, err := svc.parentOf(p)
			if err != nil {
				return toolError(err)
			}
			id, err := svc.m.AddFile(parent, name, req.GetString("content", ""))
			if err != nil {
				return toolError(err)
			}
			n, _ := s.Tree.Find(id)
			return mcp.NewToolResultText(fmt.Sprintf("Created %s (%s)", p, n.Language)), nil
		})
	}
}

// --- create_folder ---

func createFolderTool() mcp.Tool {
	return mcp.NewTool("create_folder",
		mcp.WithDescription("Create a new folder."),
		pathParam(),
	)
}

func createFolderHandler(svc *Service) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return svc.locked(func() (*mcp.CallToolResult, error) {
			p, err := requireString(req, "path")
			if err != nil {
				return toolError(err)
			}
			parent, name, err := svc.parentOf(p)
			if err != nil {
				return toolError(err)
			}
			if _, err := svc.m.AddFolder(parent, name); err != nil {
				return toolError(err)
			}
			return mcp.NewToolResultText("Created folder " + p), nil
		})
	}
}

// --- delete_item ---

func deleteItemTool() mcp.Tool {
	return mcp.NewTool("delete_item",
		mcp.WithDescription("Delete a file, or a folder with everything in it."),
		pathParam(),
	)
}

func deleteItemHandler(svc *Service) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return svc.locked(func() (*mcp.CallToolResult, error) {
			p, err := requireString(req, "path")
			if err != nil {
				return toolError(err)
			}
			_, id, err := svc.lookup(p)
			if err != nil {
				return toolError(err)
			}
			if err := svc.m.Remove(id); err != nil {
				return toolError(err)
			}
			return mcp.NewToolResultText("Deleted " + p), nil
		})
	}
}

// --- rename_item ---

func renameItemTool() mcp.Tool {
	return mcp.NewTool("rename_item",
		mcp.WithDescription("Rename a file or folder in place. Use move_item to change folders."),
		pathParam(),
		mcp.WithString("name",
			mcp.Description("New name, a single path segment"),
			mcp.Required(),
		),
	)
}

func renameItemHandler(svc *Service) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return svc.locked(func() (*mcp.CallToolResult, error) {
			p, err := requireString(req, "path")
			if err != nil {
				return toolError(err)
			}
			s, id, err := svc.lookup(p)
			if err != nil {
				return toolError(err)
			}
			if err := svc.m.RenameNode(id, req.GetString("name", "")); err != nil {
				return toolError(err)
			}
			np, _ := s.Tree.Path(id)
			return mcp.NewToolResultText(fmt.Sprintf("Renamed %s to %s", p, np)), nil
		})
	}
}

// --- save_all ---

func saveAllTool() mcp.Tool {
	return mcp.NewTool("save_all",
		mcp.WithDescription("Save every file with unsaved changes."),
	)
}

func saveAllHandler(svc *Service) server.ToolHandlerFunc {
	return func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return svc.locked(func() (*mcp.CallToolResult, error) {
			s, err := svc.current()
			if err != nil {
				return toolError(err)
			}
			n := len(s.Tree.Dirty())
			if err := svc.m.SaveAll(); err != nil {
				return toolError(err)
			}
			return mcp.NewToolResultText(fmt.Sprintf("Saved %d file(s)", n)), nil
		})
	}
}

// --- move_item ---

func moveItemTool() mcp.Tool {
	return mcp.NewTool("move_item",
		mcp.WithDescription("Move a file or folder into another folder."),
		pathParam(),
		mcp.WithString("folder",
			mcp.Description("Destination folder relative to the project root. Empty for the root."),
		),
	)
}

func moveItemHandler(svc *Service) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return svc.locked(func() (*mcp.CallToolResult, error) {
			p, err := requireString(req, "path")
			if err != nil {
				return toolError(err)
			}
			s, id, err := svc.lookup(p)
			if err != nil {
				return toolError(err)
			}
			dest := tree.Root
			if folder := req.GetString("folder", ""); folder != "" {
				if _, dest, err = svc.lookup(folder); err != nil {
					return toolError(err)
				}
			}
			if err := svc.m.MoveNode(id, dest); err != nil {
				return toolError(err)
			}
			np, _ := s.Tree.Path(id)
			return mcp.NewToolResultText(fmt.Sprintf("Moved %s to %s", p, np)), nil
		})
	}
}
