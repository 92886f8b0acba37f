package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

type StartTool struct {
	reg Registry
}

func NewStartTool(reg Registry) *StartTool {
	return &StartTool{reg: reg}
}

func (t *StartTool) Definition() mcp.Tool {
	return mcp.NewTool(StartToolName,
		mcp.WithDescription("Start a watch-mode development server for a project. "+
			"Returns immediately with the server address; it does not wait for the first build. "+
			"Calling it again for a running project reports that it is already running."),
		mcp.WithString("project", mcp.Description(projectDescription)),
	)
}

func (t *StartTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(t.reg.Start(ctx, req.GetString("project", "")))
}
