package sqlstore

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect selects the SQL flavour and database/sql driver.
type Dialect string

const (
	// DialectPostgres uses the pgx stdlib driver.
	DialectPostgres Dialect = "postgres"

	// DialectSQLite uses mattn/go-sqlite3.
	DialectSQLite Dialect = "sqlite3"
)

// ParseDialect converts a name into a Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql", "pgx":
		return DialectPostgres, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDialect, name)
	}
}

// IsValid reports whether the dialect is supported.
func (d Dialect) IsValid() bool {
	return d == DialectPostgres || d == DialectSQLite
}

// DriverName returns the database/sql driver name.
func (d Dialect) DriverName() string {
	if d == DialectPostgres {
		return "pgx"
	}
	return "sqlite3"
}

// lockClause is appended to the fetch sub-select.
func (d Dialect) lockClause() string {
	if d == DialectPostgres {
		return " FOR UPDATE SKIP LOCKED"
	}
	return ""
}

// rebind rewrites ? placeholders into $n for PostgreSQL. Queries must not
// contain literal question marks.
func (d Dialect) rebind(query string) string {
	if d != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
