// Package tools exposes the dev server registry as Model Context Protocol
// tools. Handlers only translate arguments and results; every outcome,
// including "not running" and timeouts, is a normal JSON result.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/justinpbarnett/devwatch/internal/process"
	"github.com/justinpbarnett/devwatch/internal/server"
)

const (
	StartToolName = "devserver_start"
	StopToolName  = "devserver_stop"
	WaitToolName  = "devserver_wait_for_build"
	ListToolName  = "devserver_list"
)

// Registry is the subset of *server.Registry the tools drive.
type Registry interface {
	Start(ctx context.Context, project string) server.StartResult
	Stop(project string) server.StopResult
	WaitForBuild(ctx context.Context, project string, timeout time.Duration) server.WaitResult
	List() []process.Snapshot
}

// New builds an MCP server with every dev server tool registered.
func New(reg Registry, version string) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer(
		"devwatch",
		version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithRecovery(),
		mcpserver.WithInstructions(instructions),
	)
	Register(s, reg)
	return s
}

// Register adds the dev server tools to s.
func Register(s *mcpserver.MCPServer, reg Registry) {
	start := NewStartTool(reg)
	s.AddTool(start.Definition(), start.Handle)

	stop := NewStopTool(reg)
	s.AddTool(stop.Definition(), stop.Handle)

	wait := NewWaitTool(reg)
	s.AddTool(wait.Definition(), wait.Handle)

	list := NewListTool(reg)
	s.AddTool(list.Definition(), list.Handle)
}

const instructions = `Supervises Angular dev servers running in watch mode.
Call devserver_start once per project, then devserver_wait_for_build after each
edit to get the status and logs of the rebuild it triggered. Call
devserver_stop when done.`

const projectDescription = "Project name from angular.json. Omit to use the workspace default project."

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
