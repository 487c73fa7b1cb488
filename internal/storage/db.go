package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect names a database/sql driver the key-value table can live in.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
)

// DB wraps a SQL database connection holding the kv_entries table.
type DB struct {
	conn    *sql.DB
	dialect Dialect
}

// New opens (or creates) the SQLite file at dbPath.
func New(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite only supports one writer
	conn.SetMaxOpenConns(1)

	return newDB(conn, DialectSQLite)
}

// Open connects to a postgres or mysql server using dsn.
func Open(dialect Dialect, dsn string) (*DB, error) {
	if dialect == DialectSQLite {
		return New(dsn)
	}
	if dialect != DialectPostgres && dialect != DialectMySQL {
		return nil, fmt.Errorf("unsupported sql dialect: %s", dialect)
	}
	conn, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}
	return newDB(conn, dialect)
}

func newDB(conn *sql.DB, dialect Dialect) (*DB, error) {
	db := &DB{conn: conn, dialect: dialect}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

func (db *DB) Dialect() Dialect {
	return db.dialect
}

// rebind rewrites ? placeholders to $1, $2... for postgres.
func (db *DB) rebind(query string) string {
	if db.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (db *DB) migrate() error {
	var migrations []string
	switch db.dialect {
	case DialectMySQL:
		migrations = []string{
			`CREATE TABLE IF NOT EXISTS kv_entries (
				entry_key VARCHAR(191) NOT NULL PRIMARY KEY,
				entry_value LONGTEXT NOT NULL,
				updated_at BIGINT NOT NULL DEFAULT 0
			) CHARACTER SET utf8mb4`,
		}
	case DialectPostgres:
		migrations = []string{
			`CREATE TABLE IF NOT EXISTS kv_entries (
				entry_key TEXT PRIMARY KEY,
				entry_value TEXT NOT NULL,
				updated_at BIGINT NOT NULL DEFAULT 0
			)`,
		}
	default:
		migrations = []string{
			`CREATE TABLE IF NOT EXISTS kv_entries (
				entry_key TEXT PRIMARY KEY,
				entry_value TEXT NOT NULL,
				updated_at INTEGER NOT NULL DEFAULT 0
			)`,
		}
	}

	for _, m := range migrations {
		if _, err := db.conn.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %s: %w", strings.TrimSpace(m)[:40], err)
		}
	}
	return nil
}
