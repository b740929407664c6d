package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/agentic-research/pocket/internal/console"
	"github.com/agentic-research/pocket/internal/lang"
	"github.com/agentic-research/pocket/internal/linter"
	"github.com/agentic-research/pocket/internal/session"
	"github.com/agentic-research/pocket/internal/writeback"
)

// RegisterRunTools adds execution, diagnostics and formatting tools.
func RegisterRunTools(s *server.MCPServer, svc *Service) {
	s.AddTool(runFileTool(), runFileHandler(svc))
	s.AddTool(runCodeTool(), runCodeHandler(svc))
	s.AddTool(consoleTool(), consoleHandler(svc))
	s.AddTool(checkFileTool(), checkFileHandler(svc))
	s.AddTool(formatFileTool(), formatFileHandler(svc))
}

// source returns the current text and language of a file. Buffer edits are
// written through, so the tree copy is always current.
func (svc *Service) source(p string) (string, lang.Tag, error) {
	s, id, err := svc.lookup(p)
	if err != nil {
		return "", lang.None, err
	}
	n, _ := s.Tree.Find(id)
	switch {
	case n.IsFolder():
		return "", lang.None, fmt.Errorf("%s is a folder", p)
	case !n.Loaded:
		return "", lang.None, fmt.Errorf("%s: %w", p, session.ErrNotLoaded)
	}
	return n.Content, n.Language, nil
}

// execute runs code and renders the entries it produced.
func (svc *Service) execute(ctx context.Context, code string, tag lang.Tag) *mcp.CallToolResult {
	var sb strings.Builder
	res := svc.run.Run(ctx, code, tag, func(e console.Entry) {
		svc.console.Append(e)
		fmt.Fprintf(&sb, "[%s] %s\n", e.Kind, e.Text)
	})
	if !res.Success {
		return mcp.NewToolResultError(sb.String())
	}
	if sb.Len() == 0 {
		sb.WriteString("(no output)\n")
	}
	return mcp.NewToolResultText(sb.String())
}

// --- run_file ---

func runFileTool() mcp.Tool {
	return mcp.NewTool("run_file",
		mcp.WithDescription("Run a JavaScript or PHP file of the open project and return its console output."),
		pathParam(),
	)
}

func runFileHandler(svc *Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return svc.locked(func() (*mcp.CallToolResult, error) {
			p, err := requireString(req, "path")
			if err != nil {
				return toolError(err)
			}
			code, tag, err := svc.source(p)
			if err != nil {
				return toolError(err)
			}
			return svc.execute(ctx, code, tag), nil
		})
	}
}

// --- run_code ---

func runCodeTool() mcp.Tool {
	return mcp.NewTool("run_code",
		mcp.WithDescription("Run a snippet without a project. Supported languages: javascript, php."),
		mcp.WithString("code", mcp.Description("Source code"), mcp.Required()),
		mcp.WithString("language",
			mcp.Description("Language tag"),
			mcp.Enum(string(lang.JavaScript), string(lang.PHP)),
			mcp.Required(),
		),
	)
}

func runCodeHandler(svc *Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return svc.locked(func() (*mcp.CallToolResult, error) {
			code, err := requireString(req, "code")
			if err != nil {
				return toolError(err)
			}
			return svc.execute(ctx, code, lang.Tag(req.GetString("language", ""))), nil
		})
	}
}

// --- console ---

func consoleTool() mcp.Tool {
	return mcp.NewTool("console",
		mcp.WithDescription("Show the console history of previous runs."),
		mcp.WithBoolean("clear", mcp.Description("Clear the console after reading it")),
	)
}

func consoleHandler(svc *Service) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return svc.locked(func() (*mcp.CallToolResult, error) {
			var sb strings.Builder
			for _, e := range svc.console.Entries() {
				fmt.Fprintf(&sb, "%s [%s] %s\n", e.Timestamp.Format("15:04:05"), e.Kind, e.Text)
			}
			if req.GetBool("clear", false) {
				svc.console.Clear()
			}
			if sb.Len() == 0 {
				return mcp.NewToolResultText("Console is empty."), nil
			}
			return mcp.NewToolResultText(sb.String()), nil
		})
	}
}

// --- check_file ---

func checkFileTool() mcp.Tool {
	return mcp.NewTool("check_file",
		mcp.WithDescription("Report syntax errors in a file, then lint warnings if it parses. Files in languages without a parser report none."),
		pathParam(),
	)
}

func checkFileHandler(svc *Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return svc.locked(func() (*mcp.CallToolResult, error) {
			p, err := requireString(req, "path")
			if err != nil {
				return toolError(err)
			}
			code, tag, err := svc.source(p)
			if err != nil {
				return toolError(err)
			}
			if !writeback.Checkable(tag) {
				return mcp.NewToolResultText(fmt.Sprintf("No checker for %s.", tag)), nil
			}
			errs := writeback.Check([]byte(code), tag, p)
			if len(errs) == 0 {
				if !linter.Lintable(tag) {
					return mcp.NewToolResultText(fmt.Sprintf("No syntax errors. No lint rules for %s.", tag)), nil
				}
				diags, err := linter.Lint(ctx, []byte(code), tag)
				if err != nil {
					return toolError(err)
				}
				if len(diags) == 0 {
					return mcp.NewToolResultText("No syntax errors."), nil
				}
				var sb strings.Builder
				sb.WriteString("No syntax errors. Lint warnings:\n")
				for _, d := range diags {
					fmt.Fprintf(&sb, "%s: %s\n", p, d)
				}
				return mcp.NewToolResultText(sb.String()), nil
			}
			var sb strings.Builder
			for _, e := range errs {
				sb.WriteString(e.Error())
				sb.WriteByte('\n')
			}
			return mcp.NewToolResultError(sb.String()), nil
		})
	}
}

// --- format_file ---

func formatFileTool() mcp.Tool {
	return mcp.NewTool("format_file",
		mcp.WithDescription("Reformat a Go, HCL or JSON file and save it."),
		pathParam(),
	)
}

func formatFileHandler(svc *Service) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return svc.locked(func() (*mcp.CallToolResult, error) {
			p, err := requireString(req, "path")
			if err != nil {
				return toolError(err)
			}
			code, tag, err := svc.source(p)
			if err != nil {
				return toolError(err)
			}
			if !writeback.Formattable(tag) {
				return toolError(fmt.Errorf("no formatter for %s", tag))
			}
			out, ok := writeback.Format([]byte(code), tag)
			if !ok {
				return toolError(fmt.Errorf("%s does not parse", p))
			}
			if string(out) == code {
				return mcp.NewToolResultText("Already formatted."), nil
			}
			_, id, _ := svc.lookup(p)
			if err := svc.m.Select(id); err != nil {
				return toolError(err)
			}
			if err := svc.m.Edit(string(out)); err != nil {
				return toolError(err)
			}
			if err := svc.m.Save(id); err != nil {
				return toolError(err)
			}
			return mcp.NewToolResultText("Formatted " + p), nil
		})
	}
}
