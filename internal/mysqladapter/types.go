package mysqladapter

import (
	"strconv"
	"strings"

	"github.com/Limetric/kitchensync/internal/schema"
)

// TEXT/BLOB size buckets. The bucket, not a byte count, is stored in
// Column.Size so a MySQL-to-MySQL round trip is lossless; a Postgres peer
// collapses them to 0 in its own ConvertUnsupportedSchema.
const (
	bucketTiny   = 1
	bucketPlain  = 2
	bucketMedium = 3
	bucketLong   = 4
)

// mapColumnType maps INFORMATION_SCHEMA's DATA_TYPE/COLUMN_TYPE pair onto
// the canonical taxonomy. columnType is the full lowercased definition
// (e.g. "int(10) unsigned", "enum('a','b')"); dataType is the bare
// lowercased type name.
func mapColumnType(dataType, columnType string, charMaxLen, precision, scale int64) schema.Column {
	unsigned := strings.Contains(columnType, "unsigned")

	intCol := func(size int64) schema.Column {
		if unsigned {
			return schema.Column{Kind: schema.KindUnsignedInt, Size: size}
		}
		return schema.Column{Kind: schema.KindSignedInt, Size: size}
	}

	switch dataType {
	case "tinyint":
		return intCol(1)
	case "smallint":
		return intCol(2)
	case "mediumint":
		return intCol(3)
	case "int", "integer":
		return intCol(4)
	case "bigint":
		return intCol(8)

	case "decimal", "numeric":
		return schema.Column{Kind: schema.KindDecimal, Size: precision, Scale: scale}
	case "float":
		return schema.Column{Kind: schema.KindReal, Size: 4}
	case "double":
		return schema.Column{Kind: schema.KindReal, Size: 8}

	case "varchar":
		return schema.Column{Kind: schema.KindVarChar, Size: charMaxLen}
	case "char":
		return schema.Column{Kind: schema.KindFixedChar, Size: charMaxLen}

	case "tinytext":
		return schema.Column{Kind: schema.KindText, Size: bucketTiny}
	case "text":
		return schema.Column{Kind: schema.KindText, Size: bucketPlain}
	case "mediumtext":
		return schema.Column{Kind: schema.KindText, Size: bucketMedium}
	case "longtext":
		return schema.Column{Kind: schema.KindText, Size: bucketLong}

	case "tinyblob":
		return schema.Column{Kind: schema.KindBlob, Size: bucketTiny}
	case "blob":
		return schema.Column{Kind: schema.KindBlob, Size: bucketPlain}
	case "mediumblob":
		return schema.Column{Kind: schema.KindBlob, Size: bucketMedium}
	case "longblob":
		return schema.Column{Kind: schema.KindBlob, Size: bucketLong}
	case "binary", "varbinary":
		return schema.Column{Kind: schema.KindBlob, Size: charMaxLen}

	case "json":
		return schema.Column{Kind: schema.KindJSON}

	case "enum":
		values, err := parseEnumValues(columnType)
		if err != nil {
			return schema.Column{Kind: schema.KindUnknown, DBTypeDef: columnType}
		}
		return schema.Column{Kind: schema.KindEnum, EnumerationValues: values}

	case "date":
		return schema.Column{Kind: schema.KindDate}
	case "time":
		return schema.Column{Kind: schema.KindTime}
	case "datetime":
		return schema.Column{Kind: schema.KindDateTime}
	case "timestamp":
		c := schema.Column{Kind: schema.KindDateTime}
		c.Flags = schema.NewColumnFlags().Set(schema.FlagMySQLTimestamp)
		return c

	case "geometry":
		return spatialColumn("")
	case "point", "linestring", "polygon", "multipoint", "multilinestring",
		"multipolygon", "geometrycollection":
		return spatialColumn(dataType)

	default:
		return schema.Column{Kind: schema.KindUnknown, DBTypeDef: columnType}
	}
}

// spatialColumn carries the simple_geometry flag instead of a
// reference_system: MySQL spatial values have no portable SRID the way
// PostGIS columns do.
func spatialColumn(restriction string) schema.Column {
	return schema.Column{
		Kind:            schema.KindSpatial,
		TypeRestriction: restriction,
		Flags:           schema.NewColumnFlags().Set(schema.FlagSimpleGeometry),
	}
}

// parseEnumValues extracts the quoted value list from an
// "enum('a','b','c')" column definition.
func parseEnumValues(columnType string) ([]string, error) {
	open := strings.IndexByte(columnType, '(')
	close := strings.LastIndexByte(columnType, ')')
	if open < 0 || close <= open {
		return nil, strconv.ErrSyntax
	}

	inside := columnType[open+1 : close]
	var values []string
	i := 0
	for i < len(inside) {
		for i < len(inside) && (inside[i] == ' ' || inside[i] == ',') {
			i++
		}
		if i >= len(inside) {
			break
		}
		if inside[i] != '\'' {
			return nil, strconv.ErrSyntax
		}
		i++

		var b strings.Builder
		for i < len(inside) {
			c := inside[i]
			if c == '\\' {
				if i+1 >= len(inside) {
					return nil, strconv.ErrSyntax
				}
				b.WriteByte(inside[i+1])
				i += 2
				continue
			}
			if c == '\'' {
				if i+1 < len(inside) && inside[i+1] == '\'' {
					b.WriteByte('\'')
					i += 2
					continue
				}
				i++
				break
			}
			b.WriteByte(c)
			i++
		}
		values = append(values, b.String())
	}
	return values, nil
}
