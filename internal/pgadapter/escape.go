package pgadapter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/Limetric/kitchensync/internal/schema"
)

// escapeString mirrors PQescapeStringConn: doubles single quotes and
// escapes backslashes.
func escapeString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\'':
			b.WriteString("''")
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// escapeBytea produces a Postgres bytea hex-escape literal, e.g. '\xdeadbeef'.
func escapeBytea(b []byte) string {
	var sb strings.Builder
	sb.WriteString(`'\x`)
	for _, c := range b {
		fmt.Fprintf(&sb, "%02x", c)
	}
	sb.WriteByte('\'')
	return sb.String()
}

// escapeSpatial takes the canonical WKB-with-4-byte-SRID-prefix
// representation, strips the prefix, and produces
// ST_GeomFromWKB(bytea, srid).
func escapeSpatial(wkbWithSRID []byte) string {
	if len(wkbWithSRID) < 4 {
		return "NULL"
	}
	srid := int(wkbWithSRID[0])<<24 | int(wkbWithSRID[1])<<16 | int(wkbWithSRID[2])<<8 | int(wkbWithSRID[3])
	wkb := wkbWithSRID[4:]
	return fmt.Sprintf("ST_GeomFromWKB(%s, %d)", escapeBytea(wkb), srid)
}

// escapeColumnValue dispatches on ColumnKind to produce a SQL-embeddable
// literal for raw (already-unescaped) cell text.
func escapeColumnValue(col schema.Column, raw string) string {
	switch col.Kind {
	case schema.KindBlob:
		return escapeBytea([]byte(raw))
	case schema.KindSpatial:
		return escapeSpatial([]byte(raw))
	case schema.KindBool:
		if raw == "1" || strings.EqualFold(raw, "true") || strings.EqualFold(raw, "t") {
			return "TRUE"
		}
		return "FALSE"
	case schema.KindSignedInt, schema.KindUnsignedInt:
		if _, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return raw
		}
		return "'" + escapeString(raw) + "'"
	case schema.KindReal, schema.KindDecimal:
		return raw
	case schema.KindUUID:
		// Canonicalize so peers that stored the same UUID with different
		// casing or braces produce identical literals.
		if u, err := uuid.Parse(raw); err == nil {
			return "'" + u.String() + "'"
		}
		return "'" + escapeString(raw) + "'"
	default:
		return "'" + escapeString(raw) + "'"
	}
}

var pgReservedWords = map[string]bool{
	"all": true, "analyse": true, "analyze": true, "and": true, "any": true,
	"array": true, "as": true, "asc": true, "authorization": true, "between": true,
	"binary": true, "both": true, "case": true, "cast": true, "check": true,
	"collate": true, "column": true, "constraint": true, "create": true, "cross": true,
	"current_date": true, "current_role": true, "current_time": true,
	"current_timestamp": true, "current_user": true, "default": true, "deferrable": true,
	"desc": true, "distinct": true, "do": true, "else": true, "end": true, "except": true,
	"false": true, "fetch": true, "for": true, "foreign": true, "freeze": true,
	"from": true, "full": true, "grant": true, "group": true, "having": true,
	"ilike": true, "in": true, "initially": true, "inner": true, "intersect": true,
	"into": true, "is": true, "isnull": true, "join": true, "lateral": true,
	"leading": true, "left": true, "like": true, "limit": true, "localtime": true,
	"localtimestamp": true, "natural": true, "not": true, "notnull": true, "null": true,
	"offset": true, "on": true, "only": true, "or": true, "order": true, "outer": true,
	"overlaps": true, "placing": true, "primary": true, "references": true,
	"returning": true, "right": true, "select": true, "session_user": true,
	"similar": true, "some": true, "symmetric": true, "table": true, "then": true,
	"to": true, "trailing": true, "true": true, "union": true, "unique": true,
	"user": true, "using": true, "variadic": true, "verbose": true, "when": true,
	"where": true, "window": true, "with": true,
}

func needsQuoting(name string) bool {
	for i, r := range name {
		if r >= 'a' && r <= 'z' || r == '_' {
			continue
		}
		if i > 0 && (r >= '0' && r <= '9' || r == '$') {
			continue
		}
		return true
	}
	return name == ""
}

// quoteIdentifier quotes reserved words and names that contain characters
// invalid in unquoted Postgres identifiers.
func quoteIdentifier(name string) string {
	if pgReservedWords[name] || needsQuoting(name) {
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
	return name
}
