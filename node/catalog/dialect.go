package catalog

import (
	_ "embed"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed sqls/create_tables_postgres.sql
var createTablesPostgresSQL string

//go:embed sqls/create_tables_sqlite.sql
var createTablesSqliteSQL string

// Implementation type of supported catalog databases
type Implementation int

const (
	// Unknown is an unsupported database
	Unknown Implementation = iota
	// Postgres is a postgres database reached through lib/pq
	Postgres
	// Sqlite is a sqlite3 database file
	Sqlite
)

func ImplementationForDriver(s string) Implementation {
	switch s {
	case "postgres", "postgresql":
		return Postgres
	case "sqlite3", "sqlite":
		return Sqlite
	default:
		return Unknown
	}
}

func (impl Implementation) String() string {
	switch impl {
	case Postgres:
		return "postgres"
	case Sqlite:
		return "sqlite3"
	default:
		return "unknown"
	}
}

// Driver is the database/sql driver name.
func (impl Implementation) Driver() string {
	return impl.String()
}

func (impl Implementation) schema() string {
	if impl == Postgres {
		return createTablesPostgresSQL
	}
	return createTablesSqliteSQL
}

func (impl Implementation) clearStatements() []string {
	if impl == Postgres {
		return []string{"TRUNCATE dataset, content RESTART IDENTITY"}
	}
	return []string{
		"DELETE FROM dataset",
		"DELETE FROM content",
		"DELETE FROM sqlite_sequence WHERE name = 'dataset'",
	}
}

// Rebind rewrites ? placeholders into the numbered form postgres expects.
// Statements must not contain a literal question mark.
func (impl Implementation) Rebind(query string) string {
	if impl != Postgres {
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

// sqliteDSN turns a plain path into a sqlite3 URI with the pragmas the
// catalog relies on; a full file: URI is used untouched.
func sqliteDSN(conn string) string {
	if strings.HasPrefix(conn, "file:") {
		return conn
	}
	return "file:" + conn + "?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL"
}
