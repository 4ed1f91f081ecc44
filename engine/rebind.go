package engine

import (
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/talangzhe005/objsql/datasource"
)

// Rebind rewrites ? placeholders into the bind style of the target dialect.
// Statements are accumulated dialect-neutral with ?; postgres needs $N.
// Placeholders inside single-quoted literals are left alone.
func Rebind(dialect, sqlText string) string {
	if dialect != datasource.Postgres {
		return sqlText
	}

	var sb strings.Builder
	sb.Grow(len(sqlText) + 8)
	n := 0
	inLiteral := false
	for i := 0; i < len(sqlText); i++ {
		c := sqlText[i]
		switch {
		case c == '\'':
			inLiteral = !inLiteral
			sb.WriteByte(c)
		case c == '?' && !inLiteral:
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// QuoteIdentifier quotes a table or column name for the target dialect
func QuoteIdentifier(dialect, name string) string {
	switch dialect {
	case datasource.MySQL:
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	default:
		// postgres and sqlite share double-quote identifier quoting
		return pq.QuoteIdentifier(name)
	}
}
