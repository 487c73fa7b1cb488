package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"sheets/internal/domain"
	"sheets/internal/metrics"
)

const DefaultKeyPrefix = "fb_pro_"

// SheetStoreConfig configures a SheetStore. Zero values are usable.
type SheetStoreConfig struct {
	Prefix  string
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time
	IDs     *domain.IDSource
}

// SheetStore persists sheets in a KVStore under two kinds of keys:
//
//	<prefix>index       JSON array of domain.SheetMeta
//	<prefix>sheet_<id>  one sanitized sheet
//
// The index is a projection of the sheet records and can be rebuilt from them.
// Reads never fail: missing or corrupt data reads as absent. Writes of a sheet
// record return their error; index write failures are logged and dropped.
//
// Save, Delete and RebuildIndex are serialized so that concurrent writers in
// one process never lose index entries. Separate processes sharing a backend
// still race on the index; RebuildIndex repairs it.
type SheetStore struct {
	mu      sync.Mutex
	kv      domain.KVStore
	prefix  string
	log     zerolog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	ids     *domain.IDSource
}

func NewSheetStore(kv domain.KVStore, cfg SheetStoreConfig) *SheetStore {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultKeyPrefix
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &SheetStore{
		kv:      kv,
		prefix:  cfg.Prefix,
		log:     cfg.Logger,
		metrics: cfg.Metrics,
		now:     cfg.Now,
		ids:     cfg.IDs,
	}
}

func (s *SheetStore) IndexKey() string { return s.prefix + "index" }

func (s *SheetStore) SheetKey(id string) string { return s.prefix + "sheet_" + id }

// Index returns the catalog entries as stored.
func (s *SheetStore) Index(ctx context.Context) []domain.SheetMeta {
	start := time.Now()
	raw, ok, err := s.kv.Get(ctx, s.IndexKey())
	s.metrics.RecordStoreOperation("index", start, err)
	if err != nil {
		s.log.Warn().Err(err).Msg("read index")
		return []domain.SheetMeta{}
	}
	if !ok {
		return []domain.SheetMeta{}
	}

	var metas []domain.SheetMeta
	if err := json.Unmarshal([]byte(raw), &metas); err != nil {
		s.log.Warn().Err(err).Msg("index is corrupt, treating as empty")
		return []domain.SheetMeta{}
	}
	out := metas[:0]
	for _, m := range metas {
		if m.ID != "" {
			out = append(out, m)
		}
	}
	if out == nil {
		return []domain.SheetMeta{}
	}
	return out
}

// Save sanitizes sheet and writes it under id, falling back to the sheet's own
// id and then to a fresh one. It returns the id used.
func (s *SheetStore) Save(ctx context.Context, sheet domain.Sheet, id string) (string, error) {
	start := time.Now()
	if id == "" {
		id = sheet.ID
	}
	if id == "" {
		id = domain.NewSheetID()
	}

	clean := domain.SanitizeSheet(sheet, domain.SanitizeOptions{ForceID: id, Now: s.now, IDs: s.ids})
	data, err := json.Marshal(clean)
	if err != nil {
		s.metrics.RecordStoreOperation("save", start, err)
		return "", fmt.Errorf("encode sheet %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Set(ctx, s.SheetKey(id), string(data)); err != nil {
		s.metrics.RecordStoreOperation("save", start, err)
		return "", fmt.Errorf("write sheet %s: %w", id, err)
	}
	s.metrics.RecordStoreOperation("save", start, nil)

	s.upsertIndex(ctx, domain.NewSheetMeta(clean))
	return id, nil
}

func (s *SheetStore) upsertIndex(ctx context.Context, meta domain.SheetMeta) {
	metas := s.Index(ctx)
	replaced := false
	for i := range metas {
		if metas[i].ID == meta.ID {
			metas[i] = meta
			replaced = true
			break
		}
	}
	if !replaced {
		metas = append([]domain.SheetMeta{meta}, metas...)
	}
	s.writeIndexLogged(ctx, metas)
}

func (s *SheetStore) writeIndex(ctx context.Context, metas []domain.SheetMeta) error {
	start := time.Now()
	data, err := json.Marshal(metas)
	if err == nil {
		err = s.kv.Set(ctx, s.IndexKey(), string(data))
	}
	s.metrics.RecordStoreOperation("write_index", start, err)
	if err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	s.metrics.SetIndexEntries(len(metas))
	return nil
}

func (s *SheetStore) writeIndexLogged(ctx context.Context, metas []domain.SheetMeta) {
	if err := s.writeIndex(ctx, metas); err != nil {
		s.log.Warn().Err(err).Msg("index not updated; run rebuild-index to repair")
	}
}

// Load reads and re-sanitizes a sheet. The stored updatedAt is kept.
func (s *SheetStore) Load(ctx context.Context, id string) (domain.Sheet, bool) {
	if id == "" {
		return domain.Sheet{}, false
	}
	start := time.Now()
	raw, ok, err := s.kv.Get(ctx, s.SheetKey(id))
	s.metrics.RecordStoreOperation("load", start, err)
	if err != nil {
		s.log.Warn().Err(err).Str("sheet", id).Msg("read sheet")
		return domain.Sheet{}, false
	}
	if !ok {
		return domain.Sheet{}, false
	}

	var stamp struct {
		UpdatedAt int64 `json:"updatedAt"`
	}
	_ = json.Unmarshal([]byte(raw), &stamp)
	now := s.now
	if stamp.UpdatedAt > 0 {
		now = func() time.Time { return time.UnixMilli(stamp.UpdatedAt) }
	}

	sheet, err := domain.SanitizeJSON([]byte(raw), domain.SanitizeOptions{ForceID: id, Now: now, IDs: s.ids})
	if err != nil {
		s.log.Warn().Err(err).Str("sheet", id).Msg("stored sheet is corrupt")
		return domain.Sheet{}, false
	}
	return sheet, true
}

// Delete removes the sheet record and its index entry. Deleting an unknown id
// is not an error.
func (s *SheetStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	err := s.kv.Delete(ctx, s.SheetKey(id))
	s.metrics.RecordStoreOperation("delete", start, err)
	if err != nil {
		return fmt.Errorf("delete sheet %s: %w", id, err)
	}

	metas := s.Index(ctx)
	kept := make([]domain.SheetMeta, 0, len(metas))
	for _, m := range metas {
		if m.ID != id {
			kept = append(kept, m)
		}
	}
	if len(kept) != len(metas) {
		s.writeIndexLogged(ctx, kept)
	}
	return nil
}

// ImportFromJSON stores text as a new sheet with a fresh id, whatever id the
// text carries.
func (s *SheetStore) ImportFromJSON(ctx context.Context, text string) (string, error) {
	sheet, err := domain.SanitizeJSON([]byte(text), domain.SanitizeOptions{Now: s.now, IDs: s.ids})
	if err != nil {
		return "", &domain.ImportError{Err: err}
	}
	return s.Save(ctx, sheet, domain.NewSheetID())
}

// RebuildIndex regenerates the index from the stored sheet records.
func (s *SheetStore) RebuildIndex(ctx context.Context) ([]domain.SheetMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keyPrefix := s.SheetKey("")
	keys, err := s.kv.Keys(ctx, keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list sheets: %w", err)
	}

	metas := make([]domain.SheetMeta, 0, len(keys))
	for _, k := range keys {
		id := strings.TrimPrefix(k, keyPrefix)
		sheet, ok := s.Load(ctx, id)
		if !ok {
			s.log.Warn().Str("key", k).Msg("skipping unreadable sheet during index rebuild")
			continue
		}
		metas = append(metas, domain.NewSheetMeta(sheet))
	}
	domain.SortByRecency(metas)

	if err := s.writeIndex(ctx, metas); err != nil {
		return nil, err
	}
	return metas, nil
}
