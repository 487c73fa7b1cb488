package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("draft_sheet",
		mcp.WithPromptDescription("Draft a complete revision sheet on a topic"),
		mcp.WithArgument("topic",
			mcp.ArgumentDescription("Chapter or topic the sheet covers"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("level",
			mcp.ArgumentDescription("Class level, e.g. Terminale"),
		),
	), s.handleDraftSheetPrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("add_exercises",
		mcp.WithPromptDescription("Add application blocks with answer zones to an existing sheet"),
		mcp.WithArgument("sheetId",
			mcp.ArgumentDescription("ID of the sheet"),
			mcp.RequiredArgument(),
		),
	), s.handleAddExercisesPrompt)
}

func (s *Server) handleDraftSheetPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	topic := req.Params.Arguments["topic"]
	level := req.Params.Arguments["level"]
	if level == "" {
		level = "lycée"
	}
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Draft a revision sheet on: %s", topic),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Write a revision sheet about "%s" for %s students. Follow these steps:

1. Use create_sheet with the topic as title and the level as subtitle.
2. Split the chapter into parts: add a "section" block for each, in order.
3. Under each part add "definition", "theoreme" and "propriete" blocks with concise statements.
4. Follow each result with an "exemple" block and finish the part with an "application" block that has one answer zone.
5. Call get_labels and check the numbering: parts read A, B, C and each block type counts from 1 inside a part.

Use **bold** for key terms and $...$ for formulas in block content.`, topic, level),
				},
			},
		},
	}, nil
}

func (s *Server) handleAddExercisesPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	sheetID := req.Params.Arguments["sheetId"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Add exercises to sheet %s", sheetID),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Read the sheet with get_sheet (sheetId %s). For every part that has no "application" block yet,
add one with add_block at the end of that part (use the index parameter), a short exercise in content and zones=1.
Do not delete or reorder existing blocks.`, sheetID),
				},
			},
		},
	}, nil
}
