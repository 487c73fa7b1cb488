package storage_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheets/internal/domain"
	"sheets/internal/metrics"
	"sheets/internal/storage"
)

// flakyKV fails writes to keys containing failOn.
type flakyKV struct {
	*storage.MemoryKV
	failOn  string
	failGet bool
}

var errQuota = errors.New("quota exceeded")

func (f *flakyKV) Set(ctx context.Context, key, value string) error {
	if f.failOn != "" && strings.Contains(key, f.failOn) {
		return errQuota
	}
	return f.MemoryKV.Set(ctx, key, value)
}

func (f *flakyKV) Get(ctx context.Context, key string) (string, bool, error) {
	if f.failGet {
		return "", false, errQuota
	}
	return f.MemoryKV.Get(ctx, key)
}

type clock struct{ ms atomic.Int64 }

func (c *clock) now() time.Time {
	return time.UnixMilli(c.ms.Add(1000))
}

func newTestStore(kv domain.KVStore) *storage.SheetStore {
	c := &clock{}
	c.ms.Store(1_700_000_000_000)
	return storage.NewSheetStore(kv, storage.SheetStoreConfig{
		Logger:  zerolog.Nop(),
		Metrics: metrics.New(),
		Now:     c.now,
	})
}

func sampleSheet() domain.Sheet {
	return domain.Sheet{
		Title:    "Suites numériques",
		Subtitle: "Chapitre 3",
		Blocks: []domain.Block{
			{ID: "s1", Type: domain.BlockTypeSection, Title: "Définitions"},
			{ID: "d1", Type: domain.BlockTypeDefinition, Title: "Suite", Content: "u_n", Zones: []domain.AnswerZone{{ID: "z1", Height: 30, Style: domain.ZoneStyleGrid}}},
			{ID: "a1", Type: domain.BlockTypeApplication},
		},
	}
}

func TestSheetStore_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(storage.NewMemoryKV())

	in := sampleSheet()
	id, err := store.Save(ctx, in, "")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, ok := store.Load(ctx, id)
	require.True(t, ok)

	want := domain.SanitizeSheet(in, domain.SanitizeOptions{ForceID: id})
	want.UpdatedAt = got.UpdatedAt
	assert.Equal(t, want, got)
	assert.NotZero(t, got.UpdatedAt)
}

func TestSheetStore_SaveIDPrecedence(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(storage.NewMemoryKV())

	s := sampleSheet()
	s.ID = "own"
	id, err := store.Save(ctx, s, "")
	require.NoError(t, err)
	assert.Equal(t, "own", id)

	id, err = store.Save(ctx, s, "forced")
	require.NoError(t, err)
	assert.Equal(t, "forced", id)

	got, ok := store.Load(ctx, "forced")
	require.True(t, ok)
	assert.Equal(t, "forced", got.ID)
}

func TestSheetStore_IndexUpsert(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(storage.NewMemoryKV())

	assert.Empty(t, store.Index(ctx))

	first, err := store.Save(ctx, domain.Sheet{Title: "One"}, "")
	require.NoError(t, err)
	second, err := store.Save(ctx, sampleSheet(), "")
	require.NoError(t, err)

	idx := store.Index(ctx)
	require.Len(t, idx, 2)
	assert.Equal(t, second, idx[0].ID, "new sheets are prepended")
	assert.Equal(t, 2, idx[0].BlockCount, "sections are not counted")

	_, err = store.Save(ctx, domain.Sheet{Title: "One, renamed"}, first)
	require.NoError(t, err)

	idx = store.Index(ctx)
	require.Len(t, idx, 2)
	assert.Equal(t, first, idx[1].ID, "existing entry is replaced in place")
	assert.Equal(t, "One, renamed", idx[1].Title)
}

func TestSheetStore_LoadAbsent(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	store := newTestStore(kv)

	_, ok := store.Load(ctx, "nope")
	assert.False(t, ok)

	require.NoError(t, kv.Set(ctx, store.SheetKey("broken"), "{not json"))
	_, ok = store.Load(ctx, "broken")
	assert.False(t, ok)

	require.NoError(t, kv.Set(ctx, store.SheetKey("array"), "[1,2]"))
	_, ok = store.Load(ctx, "array")
	assert.False(t, ok)
}

func TestSheetStore_LoadKeepsStoredTimestamp(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	store := newTestStore(kv)

	require.NoError(t, kv.Set(ctx, store.SheetKey("old"), `{"title":"Old","updatedAt":1234,"blocks":[{"type":"EXEMPLE","body":"b"}]}`))
	got, ok := store.Load(ctx, "old")
	require.True(t, ok)
	assert.Equal(t, int64(1234), got.UpdatedAt)
	assert.Equal(t, "old", got.ID)
	assert.Equal(t, domain.BlockTypeExemple, got.Blocks[0].Type)
	assert.Equal(t, "b", got.Blocks[0].Content)
}

func TestSheetStore_CorruptIndexReadsEmpty(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	store := newTestStore(kv)

	require.NoError(t, kv.Set(ctx, store.IndexKey(), "garbage"))
	assert.Empty(t, store.Index(ctx))

	_, err := store.Save(ctx, domain.Sheet{Title: "x"}, "x")
	require.NoError(t, err)
	assert.Len(t, store.Index(ctx), 1)
}

func TestSheetStore_ReadErrorsDegrade(t *testing.T) {
	ctx := context.Background()
	kv := &flakyKV{MemoryKV: storage.NewMemoryKV(), failGet: true}
	store := newTestStore(kv)

	assert.Empty(t, store.Index(ctx))
	_, ok := store.Load(ctx, "a")
	assert.False(t, ok)
}

func TestSheetStore_SheetWriteErrorPropagates(t *testing.T) {
	ctx := context.Background()
	kv := &flakyKV{MemoryKV: storage.NewMemoryKV(), failOn: "sheet_"}
	store := newTestStore(kv)

	_, err := store.Save(ctx, sampleSheet(), "a")
	require.ErrorIs(t, err, errQuota)
	assert.Empty(t, store.Index(ctx), "index untouched when the record fails")
}

func TestSheetStore_IndexWriteErrorSwallowed(t *testing.T) {
	ctx := context.Background()
	kv := &flakyKV{MemoryKV: storage.NewMemoryKV(), failOn: "index"}
	store := newTestStore(kv)

	id, err := store.Save(ctx, sampleSheet(), "a")
	require.NoError(t, err)
	_, ok := store.Load(ctx, id)
	assert.True(t, ok)
	assert.Empty(t, store.Index(ctx))

	kv.failOn = ""
	metas, err := store.RebuildIndex(ctx)
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, "a", store.Index(ctx)[0].ID)
}

func TestSheetStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(storage.NewMemoryKV())

	keep, err := store.Save(ctx, domain.Sheet{Title: "keep"}, "")
	require.NoError(t, err)
	gone, err := store.Save(ctx, domain.Sheet{Title: "gone"}, "")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, gone))
	_, ok := store.Load(ctx, gone)
	assert.False(t, ok)
	for _, m := range store.Index(ctx) {
		assert.NotEqual(t, gone, m.ID)
	}
	_, ok = store.Load(ctx, keep)
	assert.True(t, ok)

	require.NoError(t, store.Delete(ctx, gone), "deleting twice is fine")
	require.NoError(t, store.Delete(ctx, "never-existed"))
}

func TestSheetStore_ImportFromJSON(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(storage.NewMemoryKV())

	id, err := store.ImportFromJSON(ctx, `{"id":"collides","title":"Imported","blocks":[{"type":"definition"}]}`)
	require.NoError(t, err)
	assert.NotEqual(t, "collides", id)

	got, ok := store.Load(ctx, id)
	require.True(t, ok)
	assert.Equal(t, "Imported", got.Title)
	assert.Len(t, got.Blocks, 1)

	_, err = store.ImportFromJSON(ctx, `{"title":`)
	var importErr *domain.ImportError
	assert.ErrorAs(t, err, &importErr)

	_, err = store.ImportFromJSON(ctx, `"just a string"`)
	assert.ErrorAs(t, err, &importErr)
	assert.ErrorIs(t, err, domain.ErrNotObject)

	assert.Len(t, store.Index(ctx), 1)
}

func TestSheetStore_RebuildIndexSortsByRecency(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	store := newTestStore(kv)

	older, err := store.Save(ctx, domain.Sheet{Title: "older"}, "")
	require.NoError(t, err)
	newer, err := store.Save(ctx, domain.Sheet{Title: "newer"}, "")
	require.NoError(t, err)
	require.NoError(t, kv.Set(ctx, store.SheetKey("junk"), "nope"))
	require.NoError(t, kv.Delete(ctx, store.IndexKey()))

	metas, err := store.RebuildIndex(ctx)
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.Equal(t, newer, metas[0].ID)
	assert.Equal(t, older, metas[1].ID)

	raw, ok, err := kv.Get(ctx, store.IndexKey())
	require.NoError(t, err)
	require.True(t, ok)
	var stored []domain.SheetMeta
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Equal(t, metas, stored)
}

func TestSheetStore_Prefix(t *testing.T) {
	store := storage.NewSheetStore(storage.NewMemoryKV(), storage.SheetStoreConfig{Prefix: "test_"})
	assert.Equal(t, "test_index", store.IndexKey())
	assert.Equal(t, "test_sheet_42", store.SheetKey("42"))

	def := storage.NewSheetStore(storage.NewMemoryKV(), storage.SheetStoreConfig{})
	assert.Equal(t, "fb_pro_index", def.IndexKey())
}

func TestSheetStore_ConcurrentSavesKeepEveryIndexEntry(t *testing.T) {
	db, err := storage.New(filepath.Join(t.TempDir(), "sheets.db"))
	require.NoError(t, err)
	kv := storage.NewSQLKV(db)
	defer kv.Close()

	store := newTestStore(kv)
	ctx := context.Background()

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Save(ctx, domain.NewSheet(), "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	keys, err := kv.Keys(ctx, store.SheetKey(""))
	require.NoError(t, err)
	assert.Len(t, keys, writers)
	assert.Len(t, store.Index(ctx), writers)
}

func TestSheetStore_ConcurrentSaveAndDelete(t *testing.T) {
	store := newTestStore(storage.NewMemoryKV())
	ctx := context.Background()

	doomed := make([]string, 20)
	for i := range doomed {
		id, err := store.Save(ctx, domain.NewSheet(), "")
		require.NoError(t, err)
		doomed[i] = id
	}

	var wg sync.WaitGroup
	for _, id := range doomed {
		wg.Add(2)
		go func(id string) {
			defer wg.Done()
			assert.NoError(t, store.Delete(ctx, id))
		}(id)
		go func() {
			defer wg.Done()
			_, err := store.Save(ctx, domain.NewSheet(), "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	index := store.Index(ctx)
	assert.Len(t, index, len(doomed))
	for _, m := range index {
		assert.NotContains(t, doomed, m.ID)
	}
}
