package mysqladapter

import (
	"database/sql"
	"fmt"
	"strconv"

	"github.com/golang-sql/civil"
	"github.com/shopspring/decimal"

	"github.com/Limetric/kitchensync/internal/packedvalue"
	"github.com/Limetric/kitchensync/internal/schema"
)

// cellConverter turns one raw cell into a packed value.
type cellConverter func(raw []byte) (packedvalue.Value, error)

// conversionTable builds the per-result converter vector from the result
// descriptor's database type names. Built lazily on the first row.
func conversionTable(types []*sql.ColumnType) []cellConverter {
	conv := make([]cellConverter, len(types))
	for i, ct := range types {
		switch ct.DatabaseTypeName() {
		case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "BIGINT",
			"UNSIGNED TINYINT", "UNSIGNED SMALLINT", "UNSIGNED MEDIUMINT",
			"UNSIGNED INT", "UNSIGNED BIGINT", "YEAR":
			conv[i] = convertInt
		case "DECIMAL":
			conv[i] = convertDecimal
		case "DATE":
			conv[i] = convertDate
		case "GEOMETRY":
			conv[i] = convertGeometry
		default:
			conv[i] = convertRaw
		}
	}
	return conv
}

func convertRow(conv []cellConverter, raw []sql.RawBytes) ([]packedvalue.Value, error) {
	cells := make([]packedvalue.Value, len(raw))
	for i, r := range raw {
		if r == nil {
			cells[i] = packedvalue.Nil()
			continue
		}
		v, err := conv[i]([]byte(r))
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i, err)
		}
		cells[i] = v
	}
	return cells, nil
}

func convertRaw(raw []byte) (packedvalue.Value, error) {
	out := make([]byte, len(raw))
	copy(out, raw)
	return packedvalue.Bytes(out), nil
}

func convertInt(raw []byte) (packedvalue.Value, error) {
	if n, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
		return packedvalue.Int(n), nil
	}
	u, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return packedvalue.Value{}, fmt.Errorf("integer %q: %w", raw, err)
	}
	return packedvalue.Uint(u), nil
}

// convertDecimal canonicalizes the decimal text form so both peers hash
// identical bytes for equal values.
func convertDecimal(raw []byte) (packedvalue.Value, error) {
	d, err := decimal.NewFromString(string(raw))
	if err != nil {
		return packedvalue.Value{}, fmt.Errorf("decimal %q: %w", raw, err)
	}
	return packedvalue.Bytes([]byte(d.String())), nil
}

func convertDate(raw []byte) (packedvalue.Value, error) {
	d, err := civil.ParseDate(string(raw))
	if err != nil {
		return packedvalue.Value{}, fmt.Errorf("date %q: %w", raw, err)
	}
	return packedvalue.Bytes([]byte(d.String())), nil
}

// convertGeometry rewrites MySQL's internal geometry format (4 bytes of
// little-endian SRID, then WKB) into the canonical big-endian-SRID-prefix
// form both adapters agree on.
func convertGeometry(raw []byte) (packedvalue.Value, error) {
	if len(raw) < 4 {
		return packedvalue.Value{}, fmt.Errorf("geometry value shorter than SRID header")
	}
	out := make([]byte, len(raw))
	out[0], out[1], out[2], out[3] = raw[3], raw[2], raw[1], raw[0]
	copy(out[4:], raw[4:])
	return packedvalue.Bytes(out), nil
}

// maxKeyNameLen is MySQL's identifier length limit.
const maxKeyNameLen = 64

// ConvertUnsupportedSchema normalizes a peer's schema to what MySQL can
// represent, ahead of comparison: UUID columns become fixed 36-char text
// (MySQL has no uuid type), PostGIS SRID metadata drops to the SRID-less
// simple_geometry form, unsized text/blob land in the LONG buckets, and
// key names truncate to the identifier limit.
func (c *Client) ConvertUnsupportedSchema(db *schema.Database) {
	for ti := range db.Tables {
		t := &db.Tables[ti]
		for ci := range t.Columns {
			col := &t.Columns[ci]
			switch col.Kind {
			case schema.KindUUID:
				col.Kind = schema.KindFixedChar
				col.Size = 36
			case schema.KindSpatial:
				col.ReferenceSystem = ""
				col.Flags = col.Flags.Set(schema.FlagSimpleGeometry)
			case schema.KindText, schema.KindBlob:
				if col.Size == 0 {
					col.Size = bucketLong
				}
			}
		}
		for ki := range t.Keys {
			if len(t.Keys[ki].Name) > maxKeyNameLen {
				t.Keys[ki].Name = t.Keys[ki].Name[:maxKeyNameLen]
			}
		}
	}
}
