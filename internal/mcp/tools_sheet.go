package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"sheets/internal/editor"
)

func (s *Server) registerSheetTools() {
	// ── list_sheets ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_sheets",
		mcp.WithDescription("List all revision sheets, most recently updated first"),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleListSheets)

	// ── get_sheet ──────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("get_sheet",
		mcp.WithDescription("Get a sheet with all its blocks and their computed labels"),
		mcp.WithString("sheetId", mcp.Description("ID of the sheet"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleGetSheet)

	// ── create_sheet ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("create_sheet",
		mcp.WithDescription("Create an empty sheet"),
		mcp.WithString("title", mcp.Description("Sheet title (optional)")),
		mcp.WithString("subtitle", mcp.Description("Sheet subtitle (optional)")),
	), s.handleCreateSheet)

	// ── import_sheet ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("import_sheet",
		mcp.WithDescription("Store sheet JSON as a new sheet, or load it as a template into an existing sheet when sheetId is given. "+
			"Pass the JSON inline or an http(s) url to fetch it from. Missing fields are repaired; a new sheet gets a fresh id."),
		mcp.WithString("json", mcp.Description("Sheet JSON object (or use url)")),
		mcp.WithString("url", mcp.Description("http(s) URL of sheet JSON, e.g. a template (or use json)")),
		mcp.WithString("sheetId", mcp.Description("Load into this sheet instead of creating one (optional)")),
		mcp.WithString("mode",
			mcp.Description("With sheetId: replace the sheet's blocks or append to them (default replace)"),
			mcp.Enum(string(editor.ImportReplace), string(editor.ImportAppend)),
		),
	), s.handleImportSheet)

	// ── rename_sheet ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("rename_sheet",
		mcp.WithDescription("Change the title, and optionally the subtitle, of a sheet"),
		mcp.WithString("sheetId", mcp.Description("ID of the sheet"), mcp.Required()),
		mcp.WithString("title", mcp.Description("New title"), mcp.Required()),
		mcp.WithString("subtitle", mcp.Description("New subtitle (optional)")),
	), s.handleRenameSheet)

	// ── delete_sheet (destructive) ─────────────────────
	s.mcp.AddTool(mcp.NewTool("delete_sheet",
		mcp.WithDescription("🛑 DESTRUCTIVE: Delete a sheet permanently. Pass confirm=true once the user has agreed."),
		mcp.WithString("sheetId", mcp.Description("ID of the sheet"), mcp.Required()),
		mcp.WithBoolean("confirm", mcp.Description("Must be true to delete")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleDeleteSheet)

	// ── rebuild_index ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("rebuild_index",
		mcp.WithDescription("Regenerate the sheet list from the stored sheets, e.g. after a sheet went missing from list_sheets"),
	), s.handleRebuildIndex)
}

type sheetView struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Subtitle  string      `json:"subtitle"`
	UpdatedAt int64       `json:"updatedAt"`
	Blocks    []blockView `json:"blocks"`
}

type blockView struct {
	editor.LabeledBlock
	Content string `json:"content"`
	Zones   int    `json:"zones"`
	Images  int    `json:"images"`
}

func (s *Server) handleListSheets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.catalog.List(ctx))
}

func (s *Server) handleGetSheet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireString(req, "sheetId")
	if err != nil {
		return nil, err
	}
	sheet, err := s.catalog.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	labeled := editor.LabelBlocks(sheet.Blocks)
	view := sheetView{
		ID:        sheet.ID,
		Title:     sheet.Title,
		Subtitle:  sheet.Subtitle,
		UpdatedAt: sheet.UpdatedAt,
		Blocks:    make([]blockView, len(sheet.Blocks)),
	}
	for i, b := range sheet.Blocks {
		view.Blocks[i] = blockView{
			LabeledBlock: labeled[i],
			Content:      b.Content,
			Zones:        len(b.Zones),
			Images:       len(b.Images),
		}
	}
	return jsonResult(view)
}

func (s *Server) handleCreateSheet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sheet, err := s.catalog.Create(ctx, req.GetString("title", ""), req.GetString("subtitle", ""))
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	return jsonResult(sheet)
}

func (s *Server) handleImportSheet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := s.importText(ctx, req)
	if err != nil {
		return nil, err
	}

	sheetID := req.GetString("sheetId", "")
	if sheetID == "" {
		id, err := s.catalog.Import(ctx, text)
		if err != nil {
			return nil, err
		}
		return jsonResult(map[string]string{"id": id})
	}

	mode := editor.ImportMode(req.GetString("mode", string(editor.ImportReplace)))
	blocks, err := editor.ImportBlocks(text, mode, s.ids)
	if err != nil {
		return nil, err
	}
	if _, err := s.mutate(ctx, sheetID, mode.Apply(blocks)); err != nil {
		return nil, fmt.Errorf("import into %s: %w", sheetID, err)
	}
	return jsonResult(map[string]any{"id": sheetID, "imported": len(blocks)})
}

// importText takes the inline json argument, or downloads url.
func (s *Server) importText(ctx context.Context, req mcp.CallToolRequest) (string, error) {
	if text := req.GetString("json", ""); text != "" {
		return text, nil
	}
	u := req.GetString("url", "")
	if u == "" {
		return "", fmt.Errorf("json or url is required")
	}
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return "", fmt.Errorf("url must be http or https: %q", u)
	}
	if s.fetcher == nil {
		return "", fmt.Errorf("fetching urls is not available")
	}
	data, err := s.fetcher.Fetch(ctx, u)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", u, err)
	}
	return string(data), nil
}

func (s *Server) handleRenameSheet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireString(req, "sheetId")
	if err != nil {
		return nil, err
	}
	title, err := requireString(req, "title")
	if err != nil {
		return nil, err
	}
	unlock := s.lockSheet(id)
	defer unlock()
	if err := s.catalog.Rename(ctx, id, title); err != nil {
		return nil, err
	}
	if subtitle := req.GetString("subtitle", ""); subtitle != "" {
		if err := s.catalog.SetSubtitle(ctx, id, subtitle); err != nil {
			return nil, err
		}
	}
	s.emitSheetChanged(ctx, id)
	return textResult(fmt.Sprintf("Sheet %s renamed to %q", id, title)), nil
}

func (s *Server) handleDeleteSheet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireString(req, "sheetId")
	if err != nil {
		return nil, err
	}
	sheet, err := s.catalog.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !confirmed(req) {
		return nil, fmt.Errorf("deleting %q cannot be undone; ask the user, then call again with confirm=true", sheet.Title)
	}
	if err := s.catalog.Delete(ctx, id); err != nil {
		return nil, err
	}
	s.log.Info().Str("sheet", id).Msg("sheet deleted over MCP")
	return textResult(fmt.Sprintf("Sheet %q deleted", sheet.Title)), nil
}

func (s *Server) handleRebuildIndex(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.repairer == nil {
		metas, err := s.catalog.RebuildIndex(ctx)
		if err != nil {
			return nil, err
		}
		return jsonResult(metas)
	}
	metas, err := s.repairer.RunOnce(ctx)
	if err != nil {
		return nil, err
	}
	return jsonResult(metas)
}
