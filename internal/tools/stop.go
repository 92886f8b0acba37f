package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

type StopTool struct {
	reg Registry
}

func NewStopTool(reg Registry) *StopTool {
	return &StopTool{reg: reg}
}

func (t *StopTool) Definition() mcp.Tool {
	return mcp.NewTool(StopToolName,
		mcp.WithDescription("Stop a project's development server and return all of its logs. "+
			"Termination is requested but not awaited."),
		mcp.WithString("project", mcp.Description(projectDescription)),
	)
}

func (t *StopTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(t.reg.Stop(req.GetString("project", "")))
}
