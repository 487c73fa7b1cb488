package service_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheets/internal/domain"
	"sheets/internal/metrics"
	"sheets/internal/service"
	"sheets/internal/storage"
)

const seedManifest = `{
  "resources": {
    "initialSheets": [
      {"id": "fiche_limites", "url": "/fiches/limites.json"},
      {"id": "fiche_broken", "url": "/fiches/broken.json"},
      {"id": "fiche_missing", "url": "/fiches/missing.json"},
      {"id": "fiche_derivees", "url": "/fiches/derivees.json"}
    ]
  },
  "config": {"autoSaveInterval": 2500}
}`

func newSeedServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/manifest.json", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(seedManifest))
	})
	mux.HandleFunc("/fiches/limites.json", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":"ignored","title":"Limites","blocks":[{"type":"section","title":"Intro"}]}`))
	})
	mux.HandleFunc("/fiches/broken.json", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"title": `))
	})
	mux.HandleFunc("/fiches/derivees.json", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"title":"Dérivées","blocks":[]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestSeed_InstallsAndContinuesPastFailures(t *testing.T) {
	srv := newSeedServer(t)
	store := storage.NewSheetStore(storage.NewMemoryKV(), storage.SheetStoreConfig{Logger: zerolog.Nop()})
	seeder := service.NewSeedService(store, zerolog.Nop(), metrics.New())
	ctx := context.Background()

	report, err := seeder.Run(ctx, srv.URL+"/manifest.json")
	require.NoError(t, err)

	assert.Equal(t, []string{"fiche_limites", "fiche_derivees"}, report.Seeded)
	assert.Empty(t, report.Skipped)
	assert.Contains(t, report.Failed, "fiche_broken")
	assert.Contains(t, report.Failed, "fiche_missing")
	assert.Equal(t, 2500*time.Millisecond, report.AutoSaveInterval)

	sheet, ok := store.Load(ctx, "fiche_limites")
	require.True(t, ok)
	assert.Equal(t, "fiche_limites", sheet.ID, "the manifest id wins over the file's")
	assert.Equal(t, "Limites", sheet.Title)
	require.Len(t, sheet.Blocks, 1)

	_, ok = store.Load(ctx, "fiche_broken")
	assert.False(t, ok)
	assert.Len(t, store.Index(ctx), 2)
}

func TestSeed_SkipsExistingSheets(t *testing.T) {
	srv := newSeedServer(t)
	store := storage.NewSheetStore(storage.NewMemoryKV(), storage.SheetStoreConfig{Logger: zerolog.Nop()})
	seeder := service.NewSeedService(store, zerolog.Nop(), nil)
	ctx := context.Background()

	existing := domain.NewSheet()
	existing.Title = "Mine"
	_, err := store.Save(ctx, existing, "fiche_limites")
	require.NoError(t, err)

	report, err := seeder.Run(ctx, srv.URL+"/manifest.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"fiche_limites"}, report.Skipped)
	assert.Equal(t, []string{"fiche_derivees"}, report.Seeded)

	sheet, ok := store.Load(ctx, "fiche_limites")
	require.True(t, ok)
	assert.Equal(t, "Mine", sheet.Title, "an existing sheet is never overwritten")

	again, err := seeder.Run(ctx, srv.URL+"/manifest.json")
	require.NoError(t, err)
	assert.Empty(t, again.Seeded)
	assert.ElementsMatch(t, []string{"fiche_limites", "fiche_derivees"}, again.Skipped)
}

func TestSeed_FileManifestResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "fiches"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fiches", "suites.json"),
		[]byte(`{"title":"Suites","blocks":[]}`), 0o644))
	manifest := `{"resources":{"initialSheets":[{"id":"fiche_suites","url":"fiches/suites.json"}]}}`
	manifestPath := filepath.Join(dir, "manifest.json")
	require.NoError(t, os.WriteFile(manifestPath, []byte(manifest), 0o644))

	store := storage.NewSheetStore(storage.NewMemoryKV(), storage.SheetStoreConfig{Logger: zerolog.Nop()})
	report, err := service.NewSeedService(store, zerolog.Nop(), nil).Run(context.Background(), manifestPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"fiche_suites"}, report.Seeded)
	assert.Zero(t, report.AutoSaveInterval)

	sheet, ok := store.Load(context.Background(), "fiche_suites")
	require.True(t, ok)
	assert.Equal(t, "Suites", sheet.Title)
}

func TestSeed_UnreadableManifest(t *testing.T) {
	store := storage.NewSheetStore(storage.NewMemoryKV(), storage.SheetStoreConfig{Logger: zerolog.Nop()})
	seeder := service.NewSeedService(store, zerolog.Nop(), nil)

	_, err := seeder.Run(context.Background(), filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err = seeder.Run(context.Background(), path)
	assert.ErrorContains(t, err, "parse manifest")
}

func TestSeed_OverlappingRunIsRefused(t *testing.T) {
	release := make(chan struct{})
	requested := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requested <- struct{}{}
		<-release
		_, _ = w.Write([]byte(`{"resources":{"initialSheets":[]}}`))
	}))
	t.Cleanup(srv.Close)

	store := storage.NewSheetStore(storage.NewMemoryKV(), storage.SheetStoreConfig{Logger: zerolog.Nop()})
	seeder := service.NewSeedService(store, zerolog.Nop(), nil)
	ctx := context.Background()

	first := make(chan error, 1)
	go func() {
		_, err := seeder.Run(ctx, srv.URL)
		first <- err
	}()
	<-requested

	_, err := seeder.Run(ctx, srv.URL)
	assert.ErrorIs(t, err, service.ErrSeedRunning)

	close(release)
	require.NoError(t, <-first)
}

func TestSeed_FetchReadsURLsAndFiles(t *testing.T) {
	srv := newSeedServer(t)
	seeder := service.NewSeedService(nil, zerolog.Nop(), nil)
	ctx := context.Background()

	data, err := seeder.Fetch(ctx, srv.URL+"/fiches/derivees.json")
	require.NoError(t, err)
	assert.Contains(t, string(data), "Dérivées")

	_, err = seeder.Fetch(ctx, srv.URL+"/fiches/missing.json")
	assert.ErrorContains(t, err, "http 404")

	path := filepath.Join(t.TempDir(), "local.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"blocks":[]}`), 0o644))
	data, err = seeder.Fetch(ctx, path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"blocks":[]}`, string(data))
}
