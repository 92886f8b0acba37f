package tools

import (
	"context"
	"math"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

type WaitTool struct {
	reg Registry
}

func NewWaitTool(reg Registry) *WaitTool {
	return &WaitTool{reg: reg}
}

func (t *WaitTool) Definition() mcp.Tool {
	return mcp.NewTool(WaitToolName,
		mcp.WithDescription("Wait until the project's current build finishes and return its status "+
			"(success, failure, unknown, timeout or no_devserver_found) with the logs of that build."),
		mcp.WithString("project", mcp.Description(projectDescription)),
		mcp.WithNumber("timeout",
			mcp.Description("Maximum time to wait in milliseconds. Defaults to the configured wait timeout (180000)."),
			mcp.Min(0),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)
}

func (t *WaitTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ms := req.GetFloat("timeout", 0)
	if ms < 0 {
		return mcp.NewToolResultError("timeout must not be negative"), nil
	}
	return jsonResult(t.reg.WaitForBuild(ctx, req.GetString("project", ""), millis(ms)))
}

// maxTimeout is the largest whole-millisecond Duration.
const maxTimeout = math.MaxInt64 / time.Millisecond * time.Millisecond

// millis converts a non-negative millisecond count to a Duration, saturating
// at maxTimeout.
func millis(ms float64) time.Duration {
	if ms >= float64(maxTimeout/time.Millisecond) {
		return maxTimeout
	}
	return time.Duration(ms * float64(time.Millisecond))
}
