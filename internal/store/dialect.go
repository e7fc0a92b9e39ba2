package store

import (
	"fmt"
	"strings"
)

// Dialect covers the schema differences between the SQL backends.
type Dialect interface {
	Name() string
	JSONType() string
	TimestampType() string
	BoolType() string
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string          { return "sqlite" }
func (sqliteDialect) JSONType() string      { return "TEXT" }
func (sqliteDialect) TimestampType() string { return "TEXT" }
func (sqliteDialect) BoolType() string      { return "INTEGER" }

type postgresDialect struct{}

func (postgresDialect) Name() string          { return "postgres" }
func (postgresDialect) JSONType() string      { return "JSONB" }
func (postgresDialect) TimestampType() string { return "TIMESTAMPTZ" }
func (postgresDialect) BoolType() string      { return "BOOLEAN" }

// Rebind rewrites ? placeholders to $1, $2, ... for PostgreSQL.
func Rebind(query string) string {
	n := 0
	var b strings.Builder
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
		} else {
			b.WriteByte(query[i])
		}
	}
	return b.String()
}
