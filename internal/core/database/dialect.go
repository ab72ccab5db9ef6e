package db

import (
	"strconv"
	"strings"
)

type dialect struct {
	name            string
	metaExistsQuery string
	bootstrapScript string
	// numbered placeholders ($1, $2) instead of ?
	numbered bool
}

var postgresDialect = dialect{
	name: "postgres",
	metaExistsQuery: `
		SELECT EXISTS (
		  SELECT 1 FROM information_schema.tables
		  WHERE table_name = 'digesta_meta'
		)`,
	bootstrapScript: "scripts/initdb.sql",
	numbered:        true,
}

var sqliteDialect = dialect{
	name: "sqlite",
	metaExistsQuery: `
		SELECT EXISTS (
		  SELECT 1 FROM sqlite_master
		  WHERE type = 'table' AND name = 'digesta_meta'
		)`,
	bootstrapScript: "scripts/initdb_sqlite.sql",
}

// rebind rewrites ? placeholders for drivers that want numbered ones.
func (d dialect) rebind(q string) string {
	if !d.numbered {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
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
