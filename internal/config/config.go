package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cast"

	"sheets/internal/storage"
)

type Config struct {
	DataDir   string
	Backend   storage.Backend
	DSN       string
	DB        storage.ConnParams
	RedisURL  string
	MongoURI  string
	MongoDB   string
	KeyPrefix string

	AutoSaveInterval time.Duration
	SavedDelay       time.Duration
	HistoryDepth     int

	// Manifest is the seed manifest URL or path; empty disables seeding.
	Manifest       string
	ImportDir      string
	RepairSchedule string

	LogLevel    string
	LogPretty   bool
	MetricsAddr string
}

func Load() Config {
	dataDir := getenv("SHEETS_DATA_DIR", defaultDataDir())
	return Config{
		DataDir: dataDir,
		Backend: storage.Backend(getenv("SHEETS_BACKEND", string(storage.BackendSQLite))),
		DSN:     getenv("SHEETS_DSN", ""),
		DB: storage.ConnParams{
			Host:     getenv("SHEETS_DB_HOST", "localhost"),
			Port:     getenvInt("SHEETS_DB_PORT", 0),
			User:     getenv("SHEETS_DB_USER", ""),
			Password: getenv("SHEETS_DB_PASSWORD", ""),
			Database: getenv("SHEETS_DB_NAME", "sheets"),
			SSLMode:  getenv("SHEETS_DB_SSLMODE", ""),
		},
		RedisURL:  getenv("SHEETS_REDIS_URL", "redis://localhost:6379/0"),
		MongoURI:  getenv("SHEETS_MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:   getenv("SHEETS_MONGO_DB", "sheets"),
		KeyPrefix: getenv("SHEETS_KEY_PREFIX", storage.DefaultKeyPrefix),

		AutoSaveInterval: time.Duration(getenvInt("SHEETS_AUTOSAVE_MS", 1000)) * time.Millisecond,
		SavedDelay:       time.Duration(getenvInt("SHEETS_SAVED_DELAY_MS", 500)) * time.Millisecond,
		HistoryDepth:     getenvInt("SHEETS_HISTORY_DEPTH", 10),

		Manifest:       getenv("SHEETS_MANIFEST", ""),
		ImportDir:      getenv("SHEETS_IMPORT_DIR", filepath.Join(dataDir, "inbox")),
		RepairSchedule: getenv("SHEETS_REPAIR_SCHEDULE", ""),

		LogLevel:    getenv("SHEETS_LOG_LEVEL", "info"),
		LogPretty:   getenvBool("SHEETS_LOG_PRETTY", false),
		MetricsAddr: getenv("SHEETS_METRICS_ADDR", ""),
	}
}

// StorageOptions maps the config onto storage.OpenKV's options.
func (c Config) StorageOptions() storage.Options {
	return storage.Options{
		Backend:  c.Backend,
		DataDir:  c.DataDir,
		DSN:      c.DSN,
		Conn:     c.DB,
		RedisURL: c.RedisURL,
		MongoURI: c.MongoURI,
		MongoDB:  c.MongoDB,
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".sheets")
	}
	return filepath.Join(home, ".local", "share", "sheets")
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := cast.ToIntE(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := cast.ToBoolE(value)
	if err != nil {
		return fallback
	}
	return parsed
}
