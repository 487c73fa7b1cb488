package app

// ─────────────────────────────────────────────────────────────
// Sheet Handlers: catalog delegates and short editor sessions
// ─────────────────────────────────────────────────────────────

import (
	"context"
	"fmt"
	"os"

	"sheets/internal/domain"
	"sheets/internal/editor"
	"sheets/internal/service"
)

// ── Catalog ────────────────────────────────────────────────

func (a *App) ListSheets(ctx context.Context) []domain.SheetMeta {
	return a.catalog.List(ctx)
}

func (a *App) GetSheet(ctx context.Context, id string) (domain.Sheet, error) {
	return a.catalog.Get(ctx, id)
}

func (a *App) Labels(ctx context.Context, id string) ([]editor.LabeledBlock, error) {
	sheet, err := a.catalog.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return editor.LabelBlocks(sheet.Blocks), nil
}

func (a *App) RenameSheet(ctx context.Context, id, title string) error {
	return a.catalog.Rename(ctx, id, title)
}

func (a *App) DeleteSheet(ctx context.Context, id string) error {
	if _, err := a.catalog.Get(ctx, id); err != nil {
		return err
	}
	return a.catalog.Delete(ctx, id)
}

// ImportFile stores the sheet JSON at location, a file path or an http(s)
// URL, as a new sheet.
func (a *App) ImportFile(ctx context.Context, location string) (string, error) {
	data, err := a.seeder.Fetch(ctx, location)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", location, err)
	}
	return a.catalog.Import(ctx, string(data))
}

// EditSourceFile replaces sheet id with the JSON in path.
func (a *App) EditSourceFile(ctx context.Context, id, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return a.catalog.EditSource(ctx, id, string(data))
}

func (a *App) RebuildIndex(ctx context.Context) ([]domain.SheetMeta, error) {
	return a.repairer.RunOnce(ctx)
}

// Seed applies a manifest. A positive autosave interval in it replaces the
// configured one for editors opened afterwards.
func (a *App) Seed(ctx context.Context, manifest string) (service.SeedReport, error) {
	report, err := a.seeder.Run(ctx, manifest)
	if err != nil {
		return report, err
	}
	if report.AutoSaveInterval > 0 {
		a.cfg.AutoSaveInterval = report.AutoSaveInterval
	}
	return report, nil
}

// ── Editor sessions ────────────────────────────────────────

// OpenEditor starts an editing session on an existing sheet. The caller must
// Close it so pending changes are flushed.
func (a *App) OpenEditor(ctx context.Context, id string, confirm editor.Confirmer) (*editor.Editor, error) {
	sheet, err := a.catalog.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return editor.New(ctx, sheet, a.store, a.editorOptions(confirm))
}

// withEditor runs fn in a session on sheet id and flushes on the way out.
func (a *App) withEditor(ctx context.Context, id string, confirm editor.Confirmer, fn func(*editor.Editor) error) error {
	ed, err := a.OpenEditor(ctx, id, confirm)
	if err != nil {
		return err
	}
	fnErr := fn(ed)
	if err := ed.Close(ctx); err != nil {
		return fmt.Errorf("save sheet: %w", err)
	}
	return fnErr
}

// NewSheet creates a sheet through an editor session, the way the dashboard does.
func (a *App) NewSheet(ctx context.Context, title, subtitle string) (domain.Sheet, error) {
	ed, err := editor.New(ctx, domain.NewSheet(), a.store, a.editorOptions(nil))
	if err != nil {
		return domain.Sheet{}, err
	}
	if title != "" {
		ed.SetTitle(title)
	}
	if subtitle != "" {
		ed.SetSubtitle(subtitle)
	}
	if err := ed.Close(ctx); err != nil {
		return domain.Sheet{}, fmt.Errorf("save sheet: %w", err)
	}
	return a.catalog.Get(ctx, ed.ID())
}

// BlockInput describes a block added from the command line.
type BlockInput struct {
	Type    string
	Title   string
	Content string
	At      int // insert position; negative appends
	Zones   int
}

func (a *App) AddBlock(ctx context.Context, sheetID string, in BlockInput) (string, error) {
	typ, err := domain.ParseBlockType(in.Type)
	if err != nil {
		return "", fmt.Errorf("%w: %q", err, in.Type)
	}
	var blockID string
	err = a.withEditor(ctx, sheetID, nil, func(ed *editor.Editor) error {
		id, err := ed.InsertBlock(typ, in.At)
		if err != nil {
			return err
		}
		blockID = id
		if err := ed.UpdateBlock(id, editor.BlockPatch{Title: &in.Title, Content: &in.Content}); err != nil {
			return err
		}
		for i := 0; i < in.Zones; i++ {
			if _, err := ed.AddZone(id); err != nil {
				return err
			}
		}
		return nil
	})
	return blockID, err
}

// MoveBlock reports false when the block is already at that end.
func (a *App) MoveBlock(ctx context.Context, sheetID, blockID string, dir editor.Direction) (bool, error) {
	var moved bool
	err := a.withEditor(ctx, sheetID, nil, func(ed *editor.Editor) error {
		var err error
		moved, err = ed.MoveBlock(blockID, dir)
		return err
	})
	return moved, err
}

func (a *App) DuplicateBlock(ctx context.Context, sheetID, blockID string) (string, error) {
	var copyID string
	err := a.withEditor(ctx, sheetID, nil, func(ed *editor.Editor) error {
		var err error
		copyID, err = ed.DuplicateBlock(blockID)
		return err
	})
	return copyID, err
}

// DeleteBlock asks confirm before removing the block. It reports false when
// the user declined.
func (a *App) DeleteBlock(ctx context.Context, sheetID, blockID string, confirm editor.Confirmer) (bool, error) {
	var deleted bool
	err := a.withEditor(ctx, sheetID, confirm, func(ed *editor.Editor) error {
		var err error
		deleted, err = ed.DeleteBlock(blockID)
		return err
	})
	return deleted, err
}

// ImportInto loads sheet JSON into an existing sheet, replacing or appending
// its blocks. location is a file path or an http(s) URL, so a published
// template can be loaded straight into a sheet.
func (a *App) ImportInto(ctx context.Context, sheetID, location string, mode editor.ImportMode) (int, error) {
	data, err := a.seeder.Fetch(ctx, location)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", location, err)
	}
	var n int
	err = a.withEditor(ctx, sheetID, nil, func(ed *editor.Editor) error {
		var err error
		n, err = ed.Import(string(data), mode)
		return err
	})
	return n, err
}

// Export returns the sheet as indented JSON plus a suggested file name.
func (a *App) Export(ctx context.Context, sheetID string) ([]byte, string, error) {
	var (
		data []byte
		name string
	)
	err := a.withEditor(ctx, sheetID, nil, func(ed *editor.Editor) error {
		var err error
		data, name, err = ed.Export()
		return err
	})
	return data, name, err
}
