package pgadapter

import (
	"fmt"
	"strings"

	"github.com/Limetric/kitchensync/internal/schema"
)

// ColumnDefinition renders one column of a CREATE TABLE statement.
func (c *Client) ColumnDefinition(table schema.Table, col schema.Column) string {
	var b strings.Builder
	b.WriteString(quoteIdentifier(col.Name))
	b.WriteByte(' ')
	b.WriteString(columnType(col))

	if !col.Nullable {
		b.WriteString(" NOT NULL")
	}

	switch col.DefaultKind {
	case schema.Sequence:
		if col.Flags.Has(schema.FlagIdentityGeneratedAlways) {
			b.WriteString(" GENERATED ALWAYS AS IDENTITY")
		} else {
			b.WriteString(" GENERATED BY DEFAULT AS IDENTITY")
		}
	case schema.DefaultLiteral:
		b.WriteString(" DEFAULT '" + escapeString(col.DefaultValue) + "'")
	case schema.DefaultExpression:
		b.WriteString(" DEFAULT " + col.DefaultValue)
	}
	return b.String()
}

// columnType maps the canonical taxonomy back to a Postgres type name.
// UnsignedInt never reaches here: ConvertUnsupportedSchema rewrites it
// before any DDL is generated.
func columnType(col schema.Column) string {
	switch col.Kind {
	case schema.KindBool:
		return "boolean"
	case schema.KindSignedInt, schema.KindUnsignedInt:
		switch col.Size {
		case 2:
			return "smallint"
		case 8:
			return "bigint"
		default:
			return "integer"
		}
	case schema.KindReal:
		if col.Size == 4 {
			return "real"
		}
		return "double precision"
	case schema.KindDecimal:
		if col.Size > 0 {
			return fmt.Sprintf("numeric(%d,%d)", col.Size, col.Scale)
		}
		return "numeric"
	case schema.KindVarChar:
		if col.Size > 0 {
			return fmt.Sprintf("character varying(%d)", col.Size)
		}
		return "character varying"
	case schema.KindFixedChar:
		return fmt.Sprintf("character(%d)", col.Size)
	case schema.KindText:
		return "text"
	case schema.KindBlob:
		return "bytea"
	case schema.KindJSON:
		return "json"
	case schema.KindUUID:
		return "uuid"
	case schema.KindDate:
		return "date"
	case schema.KindTime:
		if col.Flags.Has(schema.FlagTimeZone) {
			return "time with time zone"
		}
		return "time without time zone"
	case schema.KindDateTime:
		if col.Flags.Has(schema.FlagTimeZone) {
			return "timestamp with time zone"
		}
		return "timestamp without time zone"
	case schema.KindSpatial:
		if col.TypeRestriction != "" && col.ReferenceSystem != "" {
			return fmt.Sprintf("geometry(%s,%s)", col.TypeRestriction, col.ReferenceSystem)
		}
		if col.TypeRestriction != "" {
			return fmt.Sprintf("geometry(%s)", col.TypeRestriction)
		}
		return "geometry"
	case schema.KindEnum:
		// Postgres enums need a CREATE TYPE the apply layer owns; the
		// column itself is declared as text.
		return "text"
	default:
		return col.DBTypeDef
	}
}
