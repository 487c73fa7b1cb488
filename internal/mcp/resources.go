package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	indexURI       = "sheets://index"
	sheetURIPrefix = "sheets://sheet/"
)

func (s *Server) registerResources() {
	// ── sheets://index ─────────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		indexURI,
		"All Sheets",
		mcp.WithResourceDescription("Catalog of saved sheets, most recently updated first"),
		mcp.WithMIMEType("application/json"),
	), s.handleIndexResource)

	// ── sheets://sheet/{sheetId} ───────────────────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			sheetURIPrefix+"{sheetId}",
			"Sheet JSON",
			mcp.WithTemplateMIMEType("application/json"),
		),
		s.handleSheetResource,
	)
}

func (s *Server) handleIndexResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(s.catalog.List(ctx), "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      indexURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleSheetResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	id := sheetIDFromURI(uri)
	if id == "" {
		return nil, fmt.Errorf("could not extract sheetId from URI: %s", uri)
	}
	data, err := s.catalog.Source(ctx, id)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// sheetIDFromURI extracts the id from "sheets://sheet/{id}".
func sheetIDFromURI(uri string) string {
	id, ok := strings.CutPrefix(uri, sheetURIPrefix)
	if !ok || strings.Contains(id, "/") {
		return ""
	}
	return id
}
