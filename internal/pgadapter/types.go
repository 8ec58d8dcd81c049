package pgadapter

import (
	"strconv"
	"strings"

	"github.com/Limetric/kitchensync/internal/schema"
)

// parseFormatType maps the output of Postgres's format_type(atttypid,
// atttypmod) onto the canonical taxonomy. Geometry is recognized by type
// name here; the OID set collected at connect time only matters for row
// results, where format_type isn't available.
func parseFormatType(formatType string) schema.Column {
	t := strings.TrimSpace(formatType)
	lower := strings.ToLower(t)

	switch {
	case lower == "boolean":
		return schema.Column{Kind: schema.KindBool}

	case lower == "smallint":
		return schema.Column{Kind: schema.KindSignedInt, Size: 2}
	case lower == "integer":
		return schema.Column{Kind: schema.KindSignedInt, Size: 4}
	case lower == "bigint":
		return schema.Column{Kind: schema.KindSignedInt, Size: 8}

	case lower == "real":
		return schema.Column{Kind: schema.KindReal, Size: 4}
	case lower == "double precision":
		return schema.Column{Kind: schema.KindReal, Size: 8}

	case strings.HasPrefix(lower, "numeric"):
		p, s := parsePrecisionScale(t)
		return schema.Column{Kind: schema.KindDecimal, Size: p, Scale: s}

	case strings.HasPrefix(lower, "character varying"):
		return schema.Column{Kind: schema.KindVarChar, Size: parseLength(t)}
	case strings.HasPrefix(lower, "character"):
		return schema.Column{Kind: schema.KindFixedChar, Size: parseLength(t)}

	case lower == "text":
		return schema.Column{Kind: schema.KindText}
	case lower == "bytea":
		return schema.Column{Kind: schema.KindBlob}
	case lower == "uuid":
		return schema.Column{Kind: schema.KindUUID}
	case lower == "date":
		return schema.Column{Kind: schema.KindDate}

	case strings.HasPrefix(lower, "timestamp"):
		c := schema.Column{Kind: schema.KindDateTime}
		if strings.HasSuffix(lower, "with time zone") {
			c.Flags = schema.NewColumnFlags().Set(schema.FlagTimeZone)
		}
		return c
	case strings.HasPrefix(lower, "time"):
		c := schema.Column{Kind: schema.KindTime}
		if strings.HasSuffix(lower, "with time zone") {
			c.Flags = schema.NewColumnFlags().Set(schema.FlagTimeZone)
		}
		return c

	case strings.HasPrefix(lower, "geometry"):
		restriction, srid := parseGeometryTypmod(t)
		return schema.Column{Kind: schema.KindSpatial, TypeRestriction: restriction, ReferenceSystem: srid}

	default:
		return schema.Column{Kind: schema.KindUnknown, DBTypeDef: t}
	}
}

// parsePrecisionScale parses "numeric(p,s)" / bare "numeric" (→ (0,0)).
func parsePrecisionScale(t string) (int64, int64) {
	open := strings.IndexByte(t, '(')
	if open < 0 {
		return 0, 0
	}
	closeIdx := strings.IndexByte(t, ')')
	if closeIdx < open {
		return 0, 0
	}
	parts := strings.Split(t[open+1:closeIdx], ",")
	p, _ := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	var s int64
	if len(parts) > 1 {
		s, _ = strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	}
	return p, s
}

// parseLength parses "character varying(n)" / "character(n)" → n.
func parseLength(t string) int64 {
	open := strings.IndexByte(t, '(')
	if open < 0 {
		return 0
	}
	closeIdx := strings.IndexByte(t, ')')
	if closeIdx < open {
		return 0
	}
	n, _ := strconv.ParseInt(strings.TrimSpace(t[open+1:closeIdx]), 10, 64)
	return n
}

// parseGeometryTypmod parses "geometry(Point,4326)" / bare "geometry" into
// a lowercase subtype restriction and a string SRID (empty if unspecified).
func parseGeometryTypmod(t string) (restriction, srid string) {
	open := strings.IndexByte(t, '(')
	if open < 0 {
		return "", ""
	}
	closeIdx := strings.IndexByte(t, ')')
	if closeIdx < open {
		return "", ""
	}
	inner := t[open+1 : closeIdx]
	parts := strings.SplitN(inner, ",", 2)
	restriction = strings.ToLower(strings.TrimSpace(parts[0]))
	if len(parts) > 1 {
		srid = strings.TrimSpace(parts[1])
	}
	return restriction, srid
}
