package domain

import (
	"context"
	"sort"
	"time"
)

const (
	DefaultSheetTitle    = "Nouvelle Fiche"
	DefaultSheetSubtitle = "Sous-titre"
	ImportedSheetTitle   = "Untitled Imported Sheet"
)

// Sheet is a revision sheet: a titled, ordered list of blocks.
// UpdatedAt is Unix milliseconds so exported files stay portable.
type Sheet struct {
	ID        string  `json:"id,omitempty"`
	Title     string  `json:"title"`
	Subtitle  string  `json:"subtitle"`
	Blocks    []Block `json:"blocks"`
	UpdatedAt int64   `json:"updatedAt,omitempty"`
}

// NewSheet returns the empty sheet shown when the user creates one. It has no
// id yet; the first save assigns it.
func NewSheet() Sheet {
	return Sheet{
		Title:    DefaultSheetTitle,
		Subtitle: DefaultSheetSubtitle,
		Blocks:   []Block{},
	}
}

func (s Sheet) Clone() Sheet {
	out := s
	out.Blocks = make([]Block, len(s.Blocks))
	for i, b := range s.Blocks {
		out.Blocks[i] = b.Clone()
	}
	return out
}

func (s Sheet) Updated() time.Time {
	if s.UpdatedAt == 0 {
		return time.Time{}
	}
	return time.UnixMilli(s.UpdatedAt)
}

// BlockIndex returns the position of the block with the given id, or -1.
func (s Sheet) BlockIndex(id string) int {
	for i, b := range s.Blocks {
		if b.ID == id {
			return i
		}
	}
	return -1
}

// SheetMeta is one entry of the catalog index.
type SheetMeta struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Subtitle   string `json:"subtitle"`
	UpdatedAt  int64  `json:"updatedAt,omitempty"`
	BlockCount int    `json:"blockCount"`
}

func NewSheetMeta(s Sheet) SheetMeta {
	title := s.Title
	if title == "" {
		title = ImportedSheetTitle
	}
	return SheetMeta{
		ID:         s.ID,
		Title:      title,
		Subtitle:   s.Subtitle,
		UpdatedAt:  s.UpdatedAt,
		BlockCount: CountContentBlocks(s.Blocks),
	}
}

// CountContentBlocks counts blocks that are not section headers.
func CountContentBlocks(blocks []Block) int {
	n := 0
	for _, b := range blocks {
		if b.Type != BlockTypeSection {
			n++
		}
	}
	return n
}

// SortByRecency orders metas most recently updated first. Entries without a
// timestamp sort as oldest; ties keep their relative order.
func SortByRecency(metas []SheetMeta) {
	sort.SliceStable(metas, func(i, j int) bool {
		return metas[i].UpdatedAt > metas[j].UpdatedAt
	})
}

// SheetStore persists sheets and keeps the catalog index.
type SheetStore interface {
	Index(ctx context.Context) []SheetMeta
	Save(ctx context.Context, sheet Sheet, id string) (string, error)
	Load(ctx context.Context, id string) (Sheet, bool)
	Delete(ctx context.Context, id string) error
	ImportFromJSON(ctx context.Context, text string) (string, error)
	RebuildIndex(ctx context.Context) ([]SheetMeta, error)
}
