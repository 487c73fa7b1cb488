package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"sheets/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// Catalog Service: the list of saved sheets and whole-sheet edits
// ─────────────────────────────────────────────────────────────

const EventCatalogChanged = "catalog:changed"

// CatalogChange is the payload of EventCatalogChanged.
type CatalogChange struct {
	ID     string `json:"id"`
	Action string `json:"action"` // saved | renamed | imported | deleted | rebuilt
}

// CatalogService lists, renames, imports and deletes sheets.
type CatalogService struct {
	store   domain.SheetStore
	emitter EventEmitter
	log     zerolog.Logger
}

// NewCatalogService creates a CatalogService.
func NewCatalogService(store domain.SheetStore, emitter EventEmitter, log zerolog.Logger) *CatalogService {
	if emitter == nil {
		emitter = NoopEmitter{}
	}
	return &CatalogService{store: store, emitter: emitter, log: log}
}

// List returns the catalog, most recently updated first.
func (s *CatalogService) List(ctx context.Context) []domain.SheetMeta {
	metas := append([]domain.SheetMeta{}, s.store.Index(ctx)...)
	domain.SortByRecency(metas)
	return metas
}

// Get loads a sheet; a missing sheet yields domain.ErrSheetNotFound.
func (s *CatalogService) Get(ctx context.Context, id string) (domain.Sheet, error) {
	sheet, ok := s.store.Load(ctx, id)
	if !ok {
		return domain.Sheet{}, fmt.Errorf("%w: %s", domain.ErrSheetNotFound, id)
	}
	return sheet, nil
}

// Create saves a new empty sheet. Empty title and subtitle use the defaults.
func (s *CatalogService) Create(ctx context.Context, title, subtitle string) (domain.Sheet, error) {
	sheet := domain.NewSheet()
	if title != "" {
		sheet.Title = title
	}
	if subtitle != "" {
		sheet.Subtitle = subtitle
	}
	id, err := s.Save(ctx, sheet)
	if err != nil {
		return domain.Sheet{}, err
	}
	return s.Get(ctx, id)
}

// Save writes a whole sheet, keeping its id or assigning one.
func (s *CatalogService) Save(ctx context.Context, sheet domain.Sheet) (string, error) {
	id, err := s.store.Save(ctx, sheet, sheet.ID)
	if err != nil {
		return "", fmt.Errorf("save sheet: %w", err)
	}
	s.changed(ctx, id, "saved")
	return id, nil
}

func (s *CatalogService) Rename(ctx context.Context, id, title string) error {
	return s.update(ctx, id, func(sheet *domain.Sheet) { sheet.Title = title })
}

func (s *CatalogService) SetSubtitle(ctx context.Context, id, subtitle string) error {
	return s.update(ctx, id, func(sheet *domain.Sheet) { sheet.Subtitle = subtitle })
}

func (s *CatalogService) update(ctx context.Context, id string, fn func(*domain.Sheet)) error {
	sheet, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	fn(&sheet)
	if _, err := s.store.Save(ctx, sheet, id); err != nil {
		return fmt.Errorf("update sheet: %w", err)
	}
	s.changed(ctx, id, "renamed")
	return nil
}

// Source returns the stored sheet as indented JSON.
func (s *CatalogService) Source(ctx context.Context, id string) ([]byte, error) {
	sheet, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(sheet, "", "  ")
}

// EditSource replaces a sheet with hand-edited JSON, keeping its id.
// Malformed text returns a *domain.ImportError and writes nothing.
func (s *CatalogService) EditSource(ctx context.Context, id, text string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	sheet, err := domain.SanitizeJSON([]byte(text), domain.SanitizeOptions{ForceID: id})
	if err != nil {
		return &domain.ImportError{Err: err}
	}
	if _, err := s.store.Save(ctx, sheet, id); err != nil {
		return fmt.Errorf("save sheet source: %w", err)
	}
	s.changed(ctx, id, "saved")
	return nil
}

// Import stores sheet JSON as a new sheet and returns its id.
func (s *CatalogService) Import(ctx context.Context, text string) (string, error) {
	id, err := s.store.ImportFromJSON(ctx, text)
	if err != nil {
		var importErr *domain.ImportError
		if errors.As(err, &importErr) {
			return "", err
		}
		return "", fmt.Errorf("import sheet: %w", err)
	}
	s.log.Info().Str("sheet", id).Msg("sheet imported")
	s.changed(ctx, id, "imported")
	return id, nil
}

// Delete removes a sheet. Callers confirm with the user first.
func (s *CatalogService) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.changed(ctx, id, "deleted")
	return nil
}

// RebuildIndex regenerates the catalog from the stored sheets.
func (s *CatalogService) RebuildIndex(ctx context.Context) ([]domain.SheetMeta, error) {
	metas, err := s.store.RebuildIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("rebuild index: %w", err)
	}
	s.changed(ctx, "", "rebuilt")
	return metas, nil
}

func (s *CatalogService) changed(ctx context.Context, id, action string) {
	s.emitter.Emit(ctx, EventCatalogChanged, CatalogChange{ID: id, Action: action})
}
