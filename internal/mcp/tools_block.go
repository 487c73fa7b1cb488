package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"sheets/internal/domain"
	"sheets/internal/editor"
)

func (s *Server) registerBlockTools() {
	types := make([]string, 0, len(domain.AllBlockTypes()))
	for _, t := range domain.AllBlockTypes() {
		types = append(types, string(t))
	}

	// ── add_block ──────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("add_block",
		mcp.WithDescription("Add a block to a sheet. Appended at the end unless index is given."),
		mcp.WithString("sheetId", mcp.Description("ID of the sheet"), mcp.Required()),
		mcp.WithString("type",
			mcp.Description("Block type: "+strings.Join(types, ", ")),
			mcp.Enum(types...),
			mcp.Required(),
		),
		mcp.WithString("title", mcp.Description("Block title (optional)")),
		mcp.WithString("content", mcp.Description("Block body in the sheet's light markup (optional)")),
		mcp.WithNumber("index", mcp.Description("Position to insert at, 0-based (optional)")),
		mcp.WithNumber("zones", mcp.Description("Number of answer zones to add (optional)")),
	), s.handleAddBlock)

	// ── move_block ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("move_block",
		mcp.WithDescription("Swap a block with its neighbour above or below"),
		mcp.WithString("sheetId", mcp.Description("ID of the sheet"), mcp.Required()),
		mcp.WithString("blockId", mcp.Description("Block ID"), mcp.Required()),
		mcp.WithString("direction", mcp.Description("up or down"), mcp.Enum("up", "down"), mcp.Required()),
	), s.handleMoveBlock)

	// ── duplicate_block ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("duplicate_block",
		mcp.WithDescription("Insert a copy of a block right after it"),
		mcp.WithString("sheetId", mcp.Description("ID of the sheet"), mcp.Required()),
		mcp.WithString("blockId", mcp.Description("Block ID"), mcp.Required()),
	), s.handleDuplicateBlock)

	// ── delete_block (destructive) ─────────────────────
	s.mcp.AddTool(mcp.NewTool("delete_block",
		mcp.WithDescription("🛑 DESTRUCTIVE: Delete a block. Pass confirm=true once the user has agreed."),
		mcp.WithString("sheetId", mcp.Description("ID of the sheet"), mcp.Required()),
		mcp.WithString("blockId", mcp.Description("Block ID to delete"), mcp.Required()),
		mcp.WithBoolean("confirm", mcp.Description("Must be true to delete")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleDeleteBlock)

	// ── get_labels ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("get_labels",
		mcp.WithDescription("Get the display label of every block (sections A, B, ...; numbered items restart after each section)"),
		mcp.WithString("sheetId", mcp.Description("ID of the sheet"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleGetLabels)
}

// ── Handlers ───────────────────────────────────────────────

func (s *Server) handleAddBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sheetID, err := requireString(req, "sheetId")
	if err != nil {
		return nil, err
	}
	typ, err := domain.ParseBlockType(req.GetString("type", ""))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, req.GetString("type", ""))
	}

	b := domain.NewBlock(typ, s.ids)
	b.Title = req.GetString("title", "")
	b.Content = req.GetString("content", "")
	for i := 0; i < intArg(req, "zones", 0); i++ {
		b.Zones = append(b.Zones, domain.NewZone(s.ids))
	}

	if _, err := s.mutate(ctx, sheetID, editor.InsertBlock(b, intArg(req, "index", -1))); err != nil {
		return nil, fmt.Errorf("add block: %w", err)
	}
	return jsonResult(map[string]string{"blockId": b.ID})
}

func (s *Server) handleMoveBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sheetID, blockID, err := sheetAndBlock(req)
	if err != nil {
		return nil, err
	}
	dir, ok := editor.ParseDirection(req.GetString("direction", ""))
	if !ok {
		return nil, fmt.Errorf("direction must be up or down")
	}

	sheet, err := s.existingBlock(ctx, sheetID, blockID)
	if err != nil {
		return nil, err
	}
	before := sheet.BlockIndex(blockID)
	if editor.MoveBlock(blockID, dir)(sheet.Clone()).BlockIndex(blockID) == before {
		return textResult("Block is already at that end of the sheet"), nil
	}
	next, err := s.mutate(ctx, sheetID, editor.MoveBlock(blockID, dir))
	if err != nil {
		return nil, fmt.Errorf("move block: %w", err)
	}
	return textResult(fmt.Sprintf("Block moved to position %d", next.BlockIndex(blockID))), nil
}

func (s *Server) handleDuplicateBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sheetID, blockID, err := sheetAndBlock(req)
	if err != nil {
		return nil, err
	}
	if _, err := s.existingBlock(ctx, sheetID, blockID); err != nil {
		return nil, err
	}
	next, err := s.mutate(ctx, sheetID, editor.DuplicateBlock(blockID, s.ids))
	if err != nil {
		return nil, fmt.Errorf("duplicate block: %w", err)
	}
	copyID := next.Blocks[next.BlockIndex(blockID)+1].ID
	return jsonResult(map[string]string{"blockId": copyID})
}

func (s *Server) handleDeleteBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sheetID, blockID, err := sheetAndBlock(req)
	if err != nil {
		return nil, err
	}
	sheet, err := s.existingBlock(ctx, sheetID, blockID)
	if err != nil {
		return nil, err
	}
	if !confirmed(req) {
		b := sheet.Blocks[sheet.BlockIndex(blockID)]
		return nil, fmt.Errorf("deleting %s block %q cannot be undone from here; ask the user, then call again with confirm=true",
			b.Type.DisplayName(), b.Title)
	}
	if _, err := s.mutate(ctx, sheetID, editor.RemoveBlock(blockID)); err != nil {
		return nil, fmt.Errorf("delete block: %w", err)
	}
	return textResult(fmt.Sprintf("Block %s deleted", blockID)), nil
}

func (s *Server) handleGetLabels(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sheetID, err := requireString(req, "sheetId")
	if err != nil {
		return nil, err
	}
	sheet, err := s.catalog.Get(ctx, sheetID)
	if err != nil {
		return nil, err
	}
	return jsonResult(editor.LabelBlocks(sheet.Blocks))
}

func sheetAndBlock(req mcp.CallToolRequest) (string, string, error) {
	sheetID, err := requireString(req, "sheetId")
	if err != nil {
		return "", "", err
	}
	blockID, err := requireString(req, "blockId")
	if err != nil {
		return "", "", err
	}
	return sheetID, blockID, nil
}

// existingBlock loads the sheet and checks that it holds blockID.
func (s *Server) existingBlock(ctx context.Context, sheetID, blockID string) (domain.Sheet, error) {
	sheet, err := s.catalog.Get(ctx, sheetID)
	if err != nil {
		return domain.Sheet{}, err
	}
	if sheet.BlockIndex(blockID) < 0 {
		return domain.Sheet{}, fmt.Errorf("%w: %s", domain.ErrBlockNotFound, blockID)
	}
	return sheet, nil
}
