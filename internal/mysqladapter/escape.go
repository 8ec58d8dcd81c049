package mysqladapter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/Limetric/kitchensync/internal/schema"
)

// escapeString escapes per mysql_real_escape_string: backslash doubles,
// quotes backslash-escape, and the control characters MySQL treats
// specially in literals get their escape sequences.
func escapeString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\'':
			b.WriteString(`\'`)
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case 0:
			b.WriteString(`\0`)
		case 0x1a:
			b.WriteString(`\Z`)
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// escapeBytea produces a hex literal, e.g. x'deadbeef'.
func escapeBytea(b []byte) string {
	var sb strings.Builder
	sb.WriteString("x'")
	for _, c := range b {
		fmt.Fprintf(&sb, "%02x", c)
	}
	sb.WriteByte('\'')
	return sb.String()
}

// escapeSpatial takes the canonical WKB-with-4-byte-SRID-prefix
// representation and produces ST_GeomFromWKB(hex, srid).
func escapeSpatial(wkbWithSRID []byte) string {
	if len(wkbWithSRID) < 4 {
		return "NULL"
	}
	srid := int(wkbWithSRID[0])<<24 | int(wkbWithSRID[1])<<16 | int(wkbWithSRID[2])<<8 | int(wkbWithSRID[3])
	return fmt.Sprintf("ST_GeomFromWKB(%s, %d)", escapeBytea(wkbWithSRID[4:]), srid)
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
			return "1"
		}
		return "0"
	case schema.KindSignedInt, schema.KindUnsignedInt:
		if _, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return raw
		}
		if _, err := strconv.ParseUint(raw, 10, 64); err == nil {
			return raw
		}
		return "'" + escapeString(raw) + "'"
	case schema.KindReal, schema.KindDecimal:
		return raw
	case schema.KindUUID:
		if u, err := uuid.Parse(raw); err == nil {
			return "'" + u.String() + "'"
		}
		return "'" + escapeString(raw) + "'"
	default:
		return "'" + escapeString(raw) + "'"
	}
}

// quoteIdentifier backtick-quotes, doubling embedded backticks.
func quoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
