package status

import (
	"context"
	"fmt"

	"github.com/agentic-research/livegraph/internal/updater"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type UpdaterArgs struct {
	ID string `json:"id" jsonschema:"required" jsonschema_description:"Updater id as listed by list_updaters"`
}

type UpdaterSummary struct {
	ID          string        `json:"id"`
	Description string        `json:"description"`
	Stage       updater.Stage `json:"stage"`
}

type ListResult struct {
	Updaters []UpdaterSummary `json:"updaters"`
}

type UpdatesResult struct {
	ID      string `json:"id"`
	Updates any    `json:"updates"`
}

// Tools returns the MCP tools over the same views as the HTTP routes.
func (s *Server) Tools() []server.ServerTool {
	id := mcp.WithString("id", mcp.Required(), mcp.Description("Updater id"))
	return []server.ServerTool{
		{
			Tool: mcp.NewTool(
				"list_updaters",
				mcp.WithDescription("List the configured live feed updaters."),
			),
			Handler: mcp.NewStructuredToolHandler(s.ListUpdaters),
		},
		{
			Tool: mcp.NewTool(
				"get_updater",
				mcp.WithDescription("Show the status of one updater: stage, last run, last error and counts."),
				id,
			),
			Handler: mcp.NewStructuredToolHandler(s.GetUpdater),
		},
		{
			Tool: mcp.NewTool(
				"get_updates",
				mcp.WithDescription("Dump the patches or notes an updater currently holds."),
				id,
			),
			Handler: mcp.NewStructuredToolHandler(s.GetUpdates),
		},
	}
}

// MCPServer wraps the tools in an MCP server.
func (s *Server) MCPServer(version string) *server.MCPServer {
	srv := server.NewMCPServer("livegraph", version, server.WithToolCapabilities(false))
	srv.AddTools(s.Tools()...)
	return srv
}

func (s *Server) ListUpdaters(_ context.Context, _ mcp.CallToolRequest, _ struct{}) (ListResult, error) {
	res := ListResult{Updaters: []UpdaterSummary{}}
	for _, u := range s.reg.Updaters() {
		res.Updaters = append(res.Updaters, UpdaterSummary{
			ID:          u.ID(),
			Description: u.Description(),
			Stage:       u.Status().Stage,
		})
	}
	return res, nil
}

func (s *Server) updater(id string) (updater.Updater, error) {
	u, ok := s.reg.Updater(id)
	if !ok {
		return nil, fmt.Errorf("no updater %q", id)
	}
	return u, nil
}

func (s *Server) GetUpdater(_ context.Context, _ mcp.CallToolRequest, args UpdaterArgs) (updater.Status, error) {
	u, err := s.updater(args.ID)
	if err != nil {
		return updater.Status{}, err
	}
	return u.Status(), nil
}

func (s *Server) GetUpdates(_ context.Context, _ mcp.CallToolRequest, args UpdaterArgs) (UpdatesResult, error) {
	u, err := s.updater(args.ID)
	if err != nil {
		return UpdatesResult{}, err
	}
	return UpdatesResult{ID: u.ID(), Updates: u.Updates()}, nil
}
