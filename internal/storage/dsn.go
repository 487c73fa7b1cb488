package storage

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ConnParams describes a SQL server when no DSN is given directly.
type ConnParams struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// BuildDSN assembles a driver-specific connection string.
func BuildDSN(dialect Dialect, p ConnParams) (string, error) {
	switch dialect {
	case DialectPostgres:
		return buildPostgresDSN(p), nil
	case DialectMySQL:
		return buildMySQLDSN(p), nil
	default:
		return "", fmt.Errorf("no dsn builder for dialect %q", dialect)
	}
}

func buildPostgresDSN(p ConnParams) string {
	port := p.Port
	if port == 0 {
		port = 5432
	}
	sslMode := p.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	pairs := []struct{ key, value string }{
		{"host", p.Host},
		{"port", strconv.Itoa(port)},
		{"user", p.User},
		{"password", p.Password},
		{"dbname", p.Database},
		{"sslmode", sslMode},
	}
	parts := make([]string, 0, len(pairs))
	for _, kv := range pairs {
		parts = append(parts, kv.key+"="+quotePostgresValue(kv.value))
	}
	return strings.Join(parts, " ")
}

// quotePostgresValue single-quotes a keyword/value connection string value,
// escaping backslashes and quotes.
func quotePostgresValue(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

func buildMySQLDSN(p ConnParams) string {
	port := p.Port
	if port == 0 {
		port = 3306
	}
	cfg := mysql.NewConfig()
	cfg.User = p.User
	cfg.Passwd = p.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(p.Host, strconv.Itoa(port))
	cfg.DBName = p.Database
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	if p.SSLMode == "require" {
		cfg.TLSConfig = "true"
	}
	return cfg.FormatDSN()
}
