package storage_test

import (
	"context"
	"path/filepath"
	"sort"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheets/internal/domain"
	"sheets/internal/storage"
)

// exerciseKV runs the behaviour every backend must share.
func exerciseKV(t *testing.T, kv domain.KVStore) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := kv.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Set(ctx, "fb_pro_index", "[]"))
	require.NoError(t, kv.Set(ctx, "fb_pro_sheet_a", `{"id":"a"}`))
	require.NoError(t, kv.Set(ctx, "fb_pro_sheet_b", `{"id":"b"}`))
	require.NoError(t, kv.Set(ctx, "fbXproXsheet_c", `{}`))
	require.NoError(t, kv.Set(ctx, "other", "x"))

	v, ok, err := kv.Get(ctx, "fb_pro_sheet_a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"id":"a"}`, v)

	require.NoError(t, kv.Set(ctx, "fb_pro_sheet_a", `{"id":"a","v":2}`))
	v, _, _ = kv.Get(ctx, "fb_pro_sheet_a")
	assert.Equal(t, `{"id":"a","v":2}`, v)

	keys, err := kv.Keys(ctx, "fb_pro_sheet_")
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"fb_pro_sheet_a", "fb_pro_sheet_b"}, keys)

	require.NoError(t, kv.Delete(ctx, "fb_pro_sheet_a"))
	require.NoError(t, kv.Delete(ctx, "fb_pro_sheet_a"))
	_, ok, err = kv.Get(ctx, "fb_pro_sheet_a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryKV(t *testing.T) {
	exerciseKV(t, storage.NewMemoryKV())
}

func TestSQLiteKV(t *testing.T) {
	db, err := storage.New(filepath.Join(t.TempDir(), "nested", "sheets.db"))
	require.NoError(t, err)
	kv := storage.NewSQLKV(db)
	defer kv.Close()

	exerciseKV(t, kv)
}

func TestSQLiteKV_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sheets.db")
	ctx := context.Background()

	db, err := storage.New(path)
	require.NoError(t, err)
	require.NoError(t, storage.NewSQLKV(db).Set(ctx, "k", "v"))
	require.NoError(t, db.Close())

	db, err = storage.New(path)
	require.NoError(t, err)
	kv := storage.NewSQLKV(db)
	defer kv.Close()

	v, ok, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return client, func() {
		client.Close()
		mr.Close()
	}
}

func TestRedisKV(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	exerciseKV(t, storage.NewRedisKVWithClient(client))
}

func TestNewRedisKV_URL(t *testing.T) {
	mr := miniredis.RunT(t)
	kv, err := storage.NewRedisKV(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	defer kv.Close()

	require.NoError(t, kv.Set(context.Background(), "a", "b"))
	got, err := mr.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "b", got)
}

func TestOpenKV(t *testing.T) {
	ctx := context.Background()

	kv, err := storage.OpenKV(ctx, storage.Options{Backend: storage.BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &storage.MemoryKV{}, kv)

	kv, err = storage.OpenKV(ctx, storage.Options{Backend: storage.BackendSQLite, DataDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &storage.SQLKV{}, kv)
	require.NoError(t, kv.Close())

	_, err = storage.OpenKV(ctx, storage.Options{Backend: "etcd"})
	assert.Error(t, err)
}

func TestBuildDSN(t *testing.T) {
	dsn, err := storage.BuildDSN(storage.DialectPostgres, storage.ConnParams{Host: "db", User: "u", Password: "p", Database: "sheets"})
	require.NoError(t, err)
	assert.Equal(t, "host='db' port='5432' user='u' password='p' dbname='sheets' sslmode='disable'", dsn)

	dsn, err = storage.BuildDSN(storage.DialectMySQL, storage.ConnParams{Host: "db", Port: 3307, User: "u", Password: "p", Database: "sheets", SSLMode: "require"})
	require.NoError(t, err)
	cfg, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "db:3307", cfg.Addr)
	assert.Equal(t, "sheets", cfg.DBName)
	assert.Equal(t, "true", cfg.TLSConfig)
	assert.Contains(t, dsn, "charset=utf8mb4")

	_, err = storage.BuildDSN(storage.DialectSQLite, storage.ConnParams{})
	assert.Error(t, err)
}

func TestBuildDSN_PasswordsWithSpecialCharacters(t *testing.T) {
	password := `it's a p@ss:w\rd`

	dsn, err := storage.BuildDSN(storage.DialectPostgres, storage.ConnParams{Host: "db", User: "u", Password: password, Database: "sheets"})
	require.NoError(t, err)
	assert.Contains(t, dsn, `password='it\'s a p@ss:w\\rd'`)
	_, err = pq.NewConnector(dsn)
	assert.NoError(t, err)

	dsn, err = storage.BuildDSN(storage.DialectMySQL, storage.ConnParams{Host: "db", User: "u", Password: password, Database: "sheets"})
	require.NoError(t, err)
	cfg, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, password, cfg.Passwd)
	assert.Equal(t, "u", cfg.User)
}
