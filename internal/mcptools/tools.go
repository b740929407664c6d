// Package mcptools exposes the editor core as MCP tools.
package mcptools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/agentic-research/pocket/api"
	"github.com/agentic-research/pocket/internal/console"
	"github.com/agentic-research/pocket/internal/run"
	"github.com/agentic-research/pocket/internal/session"
	"github.com/agentic-research/pocket/internal/tree"
)

// Service serializes tool calls onto one session manager.
type Service struct {
	mu      sync.Mutex
	m       *session.Manager
	run     *run.Dispatcher
	console *console.Console
}

// NewService wraps a manager and dispatcher. Run output accumulates in a
// console owned by the service.
func NewService(m *session.Manager, d *run.Dispatcher) *Service {
	return &Service{m: m, run: d, console: &console.Console{}}
}

// NewServer builds an MCP server with every tool registered.
func NewServer(svc *Service, version string) *server.MCPServer {
	s := server.NewMCPServer("pocket", version, server.WithToolCapabilities(true))
	RegisterProjectTools(s, svc)
	RegisterFileTools(s, svc)
	RegisterRunTools(s, svc)
	return s
}

// locked runs fn with the service lock held.
func (svc *Service) locked(fn func() (*mcp.CallToolResult, error)) (*mcp.CallToolResult, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return fn()
}

func (svc *Service) current() (*session.Session, error) {
	s, ok := svc.m.Current()
	if !ok {
		return nil, session.ErrNoProject
	}
	return s, nil
}

// lookup resolves a project-relative path to a node.
func (svc *Service) lookup(p string) (*session.Session, tree.NodeID, error) {
	s, err := svc.current()
	if err != nil {
		return nil, 0, err
	}
	id, ok := s.Tree.Lookup(p)
	if !ok {
		return nil, 0, fmt.Errorf("%s: %w", p, session.ErrNoNode)
	}
	return s, id, nil
}

// parentOf resolves the folder that would contain p, creating nothing.
func (svc *Service) parentOf(p string) (tree.NodeID, string, error) {
	s, err := svc.current()
	if err != nil {
		return 0, "", err
	}
	p = strings.Trim(p, "/")
	dir, name := "", p
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		dir, name = p[:i], p[i+1:]
	}
	if dir == "" {
		return tree.Root, name, nil
	}
	id, ok := s.Tree.Lookup(dir)
	if !ok {
		return 0, "", fmt.Errorf("folder %s: %w", dir, session.ErrNoNode)
	}
	return id, name, nil
}

func toolError(err error) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(err.Error()), nil
}

func requireString(req mcp.CallToolRequest, key string) (string, error) {
	v := req.GetString(key, "")
	if v == "" {
		return "", errors.New(key + " is required")
	}
	return v, nil
}

// renderTree prints a snapshot as an indented listing.
func renderTree(sb *strings.Builder, nodes []api.FileNode, depth int) {
	for _, n := range nodes {
		indent := strings.Repeat("  ", depth)
		if n.Type == "folder" {
			fmt.Fprintf(sb, "%s%s/\n", indent, n.Name)
			renderTree(sb, n.Children, depth+1)
			continue
		}
		if n.Language != "" {
			fmt.Fprintf(sb, "%s%s (%s)\n", indent, n.Name, n.Language)
		} else {
			fmt.Fprintf(sb, "%s%s\n", indent, n.Name)
		}
	}
}

// --- ping ---

func pingTool() mcp.Tool {
	return mcp.NewTool("ping", mcp.WithDescription("Health check, returns pong"))
}

func pingHandler(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText("pong"), nil
}
