package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/contribconnect/contribconnect/internal/graph"
	"github.com/contribconnect/contribconnect/internal/repos"
)

// Server wraps the MCP server with its dependencies.
type Server struct {
	server   *mcp.Server
	store    *graph.Store
	registry *repos.Registry
}

// Config holds server dependencies.
type Config struct {
	Store    *graph.Store
	Registry *repos.Registry
}

// NewServer creates a configured MCP server with the graph tools registered.
func NewServer(cfg *Config) *Server {
	impl := &mcp.Implementation{
		Name:    "contribconnect-graph-server",
		Version: "v0.1.0",
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_top_contributors",
		Description: "Get the most active contributors for a repository, ranked by contribution count from ingested GitHub history.",
	}, makeTopContributorsHandler(cfg.Store))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "find_reviewers",
		Description: "Find expert reviewers for a set of issue labels based on who authored issues with those labels, falling back to top contributors when no label expertise exists.",
	}, makeFindReviewersHandler(cfg.Store))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "find_related_issues",
		Description: "Find issues related to a given issue by shared labels, scored by label overlap.",
	}, makeRelatedIssuesHandler(cfg.Store))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_ingest_status",
		Description: "Get the ingestion status of every configured repository, including checkpoints and last errors.",
	}, makeIngestStatusHandler(cfg.Registry))

	return &Server{
		server:   server,
		store:    cfg.Store,
		registry: cfg.Registry,
	}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
// Used by transport handlers that need to wrap the server.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
