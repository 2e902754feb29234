// ABOUTME: MCP server setup for synced ring data and the journal.
// ABOUTME: Wraps the MCP server with storage, an optional syncer, and optional narratives.
package mcp

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/ringhealth/internal/narrative"
	"github.com/harperreed/ringhealth/internal/storage"
	ringsync "github.com/harperreed/ringhealth/internal/sync"
)

// Server wraps the MCP server with storage access.
type Server struct {
	mcpServer *mcp.Server
	repo      storage.Repository
	syncer    ringsync.Runner
	narrative *narrative.Service
	daysBack  int
}

// Option configures a Server.
type Option func(*Server)

// WithSyncer enables the sync tools. daysBack is used when a call omits it.
func WithSyncer(s ringsync.Runner, daysBack int) Option {
	return func(srv *Server) {
		srv.syncer = s
		srv.daysBack = daysBack
	}
}

// WithNarrative enables the digest, ask, and goal analysis tools.
func WithNarrative(n *narrative.Service) Option {
	return func(srv *Server) { srv.narrative = n }
}

// NewServer creates a new MCP server with the given storage.
func NewServer(repo storage.Repository, opts ...Option) (*Server, error) {
	if repo == nil {
		return nil, errors.New("mcp: repository is required")
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "ringhealth",
			Version: "1.0.0",
		},
		nil,
	)

	s := &Server{
		mcpServer: mcpServer,
		repo:      repo,
		daysBack:  60,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Serve starts the MCP server using stdio transport.
func (s *Server) Serve(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}
