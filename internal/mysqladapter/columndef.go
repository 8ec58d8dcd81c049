package mysqladapter

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
		b.WriteString(" AUTO_INCREMENT")
	case schema.DefaultLiteral:
		b.WriteString(" DEFAULT '" + escapeString(col.DefaultValue) + "'")
	case schema.DefaultExpression:
		b.WriteString(" DEFAULT " + col.DefaultValue)
	}
	if col.Flags.Has(schema.FlagMySQLOnUpdateTimestamp) {
		b.WriteString(" ON UPDATE CURRENT_TIMESTAMP")
	}
	return b.String()
}

func columnType(col schema.Column) string {
	intName := func() string {
		switch col.Size {
		case 1:
			return "tinyint"
		case 2:
			return "smallint"
		case 3:
			return "mediumint"
		case 8:
			return "bigint"
		default:
			return "int"
		}
	}

	switch col.Kind {
	case schema.KindBool:
		return "tinyint(1)"
	case schema.KindSignedInt:
		return intName()
	case schema.KindUnsignedInt:
		return intName() + " unsigned"
	case schema.KindReal:
		if col.Size == 4 {
			return "float"
		}
		return "double"
	case schema.KindDecimal:
		if col.Size > 0 {
			return fmt.Sprintf("decimal(%d,%d)", col.Size, col.Scale)
		}
		return "decimal"
	case schema.KindVarChar:
		return fmt.Sprintf("varchar(%d)", col.Size)
	case schema.KindFixedChar:
		return fmt.Sprintf("char(%d)", col.Size)
	case schema.KindText:
		return bucketName(col.Size, "text")
	case schema.KindBlob:
		return bucketName(col.Size, "blob")
	case schema.KindJSON:
		return "json"
	case schema.KindUUID:
		// No native uuid type; ConvertUnsupportedSchema rewrites this
		// before DDL generation, so the fallback only guards direct calls.
		return "char(36)"
	case schema.KindDate:
		return "date"
	case schema.KindTime:
		return "time"
	case schema.KindDateTime:
		if col.Flags.Has(schema.FlagMySQLTimestamp) {
			return "timestamp"
		}
		return "datetime"
	case schema.KindSpatial:
		if col.TypeRestriction != "" {
			return col.TypeRestriction
		}
		return "geometry"
	case schema.KindEnum:
		values := make([]string, len(col.EnumerationValues))
		for i, v := range col.EnumerationValues {
			values[i] = "'" + escapeString(v) + "'"
		}
		return "enum(" + strings.Join(values, ",") + ")"
	default:
		return col.DBTypeDef
	}
}

// bucketName maps a TEXT/BLOB size bucket back to the type name.
func bucketName(size int64, base string) string {
	switch size {
	case bucketTiny:
		return "tiny" + base
	case bucketMedium:
		return "medium" + base
	case bucketLong:
		return "long" + base
	default:
		return base
	}
}
