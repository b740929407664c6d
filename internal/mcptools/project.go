package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RegisterProjectTools adds project lifecycle and registry tools.
func RegisterProjectTools(s *server.MCPServer, svc *Service) {
	s.AddTool(pingTool(), pingHandler)
	s.AddTool(openProjectTool(), openProjectHandler(svc))
	s.AddTool(createProjectTool(), createProjectHandler(svc))
	s.AddTool(recentProjectsTool(), recentProjectsHandler(svc))
	s.AddTool(renameProjectTool(), renameProjectHandler(svc))
	s.AddTool(forgetProjectTool(), forgetProjectHandler(svc))
	s.AddTool(projectTreeTool(), projectTreeHandler(svc))
	s.AddTool(searchFilesTool(), searchFilesHandler(svc))
}

// --- open_project ---

func openProjectTool() mcp.Tool {
	return mcp.NewTool("open_project",
		mcp.WithDescription("Open a project directory and make it current. Lists the project tree."),
		mcp.WithString("path",
			mcp.Description("Storage path of the project, e.g. PocketCodeStudio/demo"),
			mcp.Required(),
		),
	)
}

func openProjectHandler(svc *Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return svc.locked(func() (*mcp.CallToolResult, error) {
			p, err := requireString(req, "path")
			if err != nil {
				return toolError(err)
			}
			proj, err := svc.m.OpenProject(ctx, p)
			if err != nil {
				return toolError(err)
			}
			s, _ := svc.m.Current()
			var sb strings.Builder
			fmt.Fprintf(&sb, "Opened %s (%s)\n", proj.Name, proj.Path)
			renderTree(&sb, s.Tree.Snapshot(), 0)
			return mcp.NewToolResultText(sb.String()), nil
		})
	}
}

// --- create_project ---

func createProjectTool() mcp.Tool {
	return mcp.NewTool("create_project",
		mcp.WithDescription("Create a new project and open it. Optionally scaffold it from a template."),
		mcp.WithString("name",
			mcp.Description("Project name"),
			mcp.Required(),
		),
		mcp.WithString("template",
			mcp.Description("Template name from the catalog. Omit for an empty project."),
		),
	)
}

func createProjectHandler(svc *Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return svc.locked(func() (*mcp.CallToolResult, error) {
			name, err := requireString(req, "name")
			if err != nil {
				return toolError(err)
			}
			tpl := req.GetString("template", "")
			if tpl == "" {
				proj, err := svc.m.CreateProject(ctx, name)
				if err != nil {
					return toolError(err)
				}
				return mcp.NewToolResultText(fmt.Sprintf("Created %s at %s", proj.Name, proj.Path)), nil
			}
			proj, err := svc.m.CreateFromTemplate(ctx, name, tpl)
			if err != nil {
				return toolError(err)
			}
			return mcp.NewToolResultText(fmt.Sprintf("Created %s at %s from template %s", proj.Name, proj.Path, tpl)), nil
		})
	}
}

// --- recent_projects ---

func recentProjectsTool() mcp.Tool {
	return mcp.NewTool("recent_projects",
		mcp.WithDescription("List recently opened projects, most recent first."),
	)
}

func recentProjectsHandler(svc *Service) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return svc.locked(func() (*mcp.CallToolResult, error) {
			list, err := svc.m.RecentProjects(ctx)
			if err != nil {
				return toolError(err)
			}
			if len(list) == 0 {
				return mcp.NewToolResultText("No recent projects."), nil
			}
			var sb strings.Builder
			for _, p := range list {
				fmt.Fprintf(&sb, "%s\t%s\t%s\n", p.Name, p.Path, p.LastOpened.Format("2006-01-02 15:04"))
			}
			return mcp.NewToolResultText(sb.String()), nil
		})
	}
}

// --- rename_project ---

func renameProjectTool() mcp.Tool {
	return mcp.NewTool("rename_project",
		mcp.WithDescription("Rename a recent-projects entry. Files on disk are not renamed."),
		mcp.WithString("path", mcp.Description("Storage path of the project"), mcp.Required()),
		mcp.WithString("name", mcp.Description("New display name"), mcp.Required()),
	)
}

func renameProjectHandler(svc *Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return svc.locked(func() (*mcp.CallToolResult, error) {
			p, err := requireString(req, "path")
			if err != nil {
				return toolError(err)
			}
			if err := svc.m.RenameProjectEntry(ctx, p, req.GetString("name", "")); err != nil {
				return toolError(err)
			}
			return mcp.NewToolResultText("Renamed."), nil
		})
	}
}

// --- forget_project ---

func forgetProjectTool() mcp.Tool {
	return mcp.NewTool("forget_project",
		mcp.WithDescription("Remove a project from the recent list. Files on disk are kept."),
		mcp.WithString("path", mcp.Description("Storage path of the project"), mcp.Required()),
	)
}

func forgetProjectHandler(svc *Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return svc.locked(func() (*mcp.CallToolResult, error) {
			p, err := requireString(req, "path")
			if err != nil {
				return toolError(err)
			}
			if err := svc.m.DeleteProjectEntry(ctx, p); err != nil {
				return toolError(err)
			}
			return mcp.NewToolResultText("Removed from recent projects. Files were not deleted."), nil
		})
	}
}

// --- project_tree ---

func projectTreeTool() mcp.Tool {
	return mcp.NewTool("project_tree",
		mcp.WithDescription("Show the current project's file tree. Dirty files are marked with *."),
	)
}

func projectTreeHandler(svc *Service) server.ToolHandlerFunc {
	return func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return svc.locked(func() (*mcp.CallToolResult, error) {
			s, err := svc.current()
			if err != nil {
				return toolError(err)
			}
			var sb strings.Builder
			fmt.Fprintf(&sb, "%s (%s)\n", s.Project.Name, s.Project.Path)
			renderTree(&sb, s.Tree.Snapshot(), 1)
			for _, id := range s.Tree.Dirty() {
				if p, ok := s.Tree.Path(id); ok {
					fmt.Fprintf(&sb, "* %s\n", p)
				}
			}
			return mcp.NewToolResultText(sb.String()), nil
		})
	}
}

// --- search_files ---

func searchFilesTool() mcp.Tool {
	return mcp.NewTool("search_files",
		mcp.WithDescription("Find files of the open project whose name or path contains the query, ignoring case."),
		mcp.WithString("query",
			mcp.Description("Text to look for, e.g. util or src/lib"),
			mcp.Required(),
		),
	)
}

func searchFilesHandler(svc *Service) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return svc.locked(func() (*mcp.CallToolResult, error) {
			q, err := requireString(req, "query")
			if err != nil {
				return toolError(err)
			}
			s, err := svc.current()
			if err != nil {
				return toolError(err)
			}
			hits := s.Tree.Search(q)
			if len(hits) == 0 {
				return mcp.NewToolResultText("No files match."), nil
			}
			var sb strings.Builder
			for _, e := range hits {
				sb.WriteString(e.Path)
				sb.WriteByte('\n')
			}
			return mcp.NewToolResultText(sb.String()), nil
		})
	}
}
