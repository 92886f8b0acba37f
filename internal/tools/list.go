package tools

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

type ListTool struct {
	reg Registry
}

func NewListTool(reg Registry) *ListTool {
	return &ListTool{reg: reg}
}

type devServerEntry struct {
	Project   string    `json:"project"`
	ID        string    `json:"id"`
	Address   string    `json:"address"`
	PID       int       `json:"pid"`
	Building  bool      `json:"building"`
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	LogLines  int       `json:"log_lines"`
}

type listResult struct {
	DevServers []devServerEntry `json:"devservers"`
}

func (t *ListTool) Definition() mcp.Tool {
	return mcp.NewTool(ListToolName,
		mcp.WithDescription("List running development servers with their address, build state and latest status."),
		mcp.WithReadOnlyHintAnnotation(true),
	)
}

func (t *ListTool) Handle(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snaps := t.reg.List()
	out := listResult{DevServers: make([]devServerEntry, 0, len(snaps))}
	for _, s := range snaps {
		out.DevServers = append(out.DevServers, devServerEntry{
			Project:   s.Key,
			ID:        s.ID,
			Address:   s.Address,
			PID:       s.PID,
			Building:  s.Building,
			Status:    string(s.Status),
			StartedAt: s.StartedAt,
			LogLines:  s.Lines,
		})
	}
	return jsonResult(out)
}
