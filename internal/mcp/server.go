package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"sheets/internal/domain"
	"sheets/internal/editor"
	"sheets/internal/service"
)

const EventSheetChanged = "mcp:sheet-changed"

// Server exposes the sheet catalog and block editing to MCP clients.
type Server struct {
	mcp      *server.MCPServer
	emitter  service.EventEmitter
	catalog  *service.CatalogService
	repairer *service.IndexRepairer
	fetcher  Fetcher
	ids      *domain.IDSource
	log      zerolog.Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// Deps holds what the app layer hands to the MCP server.
type Deps struct {
	Emitter  service.EventEmitter
	Catalog  *service.CatalogService
	Repairer *service.IndexRepairer
	Fetcher  Fetcher
	IDs      *domain.IDSource
	Logger   zerolog.Logger
}

// Fetcher downloads sheet JSON such as a published template.
type Fetcher interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// New creates and configures the MCP server with all tools and resources.
func New(deps Deps) *Server {
	if deps.Emitter == nil {
		deps.Emitter = service.NoopEmitter{}
	}
	if deps.IDs == nil {
		deps.IDs = domain.DefaultIDs()
	}
	s := &Server{
		emitter:  deps.Emitter,
		catalog:  deps.Catalog,
		repairer: deps.Repairer,
		fetcher:  deps.Fetcher,
		ids:      deps.IDs,
		log:      deps.Logger,
		locks:    make(map[string]*sync.Mutex),
	}

	s.mcp = server.NewMCPServer(
		"sheets-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)

	s.registerSheetTools()
	s.registerBlockTools()
	s.registerResources()
	s.registerPrompts()

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	s.log.Info().Msg("starting MCP stdio server")
	return server.ServeStdio(s.mcp)
}

// ── Helpers ────────────────────────────────────────────────

func (s *Server) emitSheetChanged(ctx context.Context, sheetID string) {
	s.emitter.Emit(ctx, EventSheetChanged, map[string]string{"sheetId": sheetID})
}

// lockSheet serializes read-modify-write cycles on one sheet across the
// concurrent tool workers.
func (s *Server) lockSheet(sheetID string) func() {
	s.locksMu.Lock()
	mu, ok := s.locks[sheetID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[sheetID] = mu
	}
	s.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// mutate loads a sheet, applies m and saves the result.
func (s *Server) mutate(ctx context.Context, sheetID string, m editor.Mutation) (domain.Sheet, error) {
	defer s.lockSheet(sheetID)()

	sheet, err := s.catalog.Get(ctx, sheetID)
	if err != nil {
		return domain.Sheet{}, err
	}
	next := m(sheet.Clone())
	if _, err := s.catalog.Save(ctx, next); err != nil {
		return domain.Sheet{}, err
	}
	s.emitSheetChanged(ctx, sheetID)
	return next, nil
}

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

func boolPtr(v bool) *bool { return &v }
