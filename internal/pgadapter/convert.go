package pgadapter

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/golang-sql/civil"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/Limetric/kitchensync/internal/packedvalue"
	"github.com/Limetric/kitchensync/internal/schema"
)

// cellConverter turns one text-format cell into a packed value.
type cellConverter func(raw []byte) (packedvalue.Value, error)

// conversionTable builds the per-result column converter vector from the
// result descriptor. Built lazily on the first row of each result.
func (c *Client) conversionTable(fields []pgconn.FieldDescription) []cellConverter {
	conv := make([]cellConverter, len(fields))
	for i, f := range fields {
		switch {
		case f.DataTypeOID == pgtype.BoolOID:
			conv[i] = convertBool
		case f.DataTypeOID == pgtype.Int2OID, f.DataTypeOID == pgtype.Int4OID, f.DataTypeOID == pgtype.Int8OID:
			conv[i] = convertInt
		case f.DataTypeOID == pgtype.ByteaOID:
			conv[i] = convertBytea
		case f.DataTypeOID == pgtype.NumericOID:
			conv[i] = convertNumeric
		case f.DataTypeOID == pgtype.DateOID:
			conv[i] = convertDate
		case c.geometryOIDs[f.DataTypeOID]:
			conv[i] = convertGeometry
		default:
			conv[i] = convertRaw
		}
	}
	return conv
}

func convertRow(conv []cellConverter, raw [][]byte) ([]packedvalue.Value, error) {
	cells := make([]packedvalue.Value, len(raw))
	for i, r := range raw {
		if r == nil {
			cells[i] = packedvalue.Nil()
			continue
		}
		v, err := conv[i](r)
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

func convertBool(raw []byte) (packedvalue.Value, error) {
	switch string(raw) {
	case "t":
		return packedvalue.Bool(true), nil
	case "f":
		return packedvalue.Bool(false), nil
	}
	return packedvalue.Value{}, fmt.Errorf("unexpected boolean text %q", raw)
}

func convertInt(raw []byte) (packedvalue.Value, error) {
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return packedvalue.Value{}, fmt.Errorf("integer %q: %w", raw, err)
	}
	return packedvalue.Int(n), nil
}

// convertBytea decodes the hex output format ('\x...') back to raw bytes.
func convertBytea(raw []byte) (packedvalue.Value, error) {
	if len(raw) < 2 || raw[0] != '\\' || raw[1] != 'x' {
		return packedvalue.Value{}, fmt.Errorf("unexpected bytea text %q", raw)
	}
	out := make([]byte, hex.DecodedLen(len(raw)-2))
	if _, err := hex.Decode(out, raw[2:]); err != nil {
		return packedvalue.Value{}, fmt.Errorf("bytea hex: %w", err)
	}
	return packedvalue.Bytes(out), nil
}

// convertNumeric canonicalizes the numeric text form so both peers hash
// the same bytes for the same value regardless of trailing-zero or
// exponent presentation.
func convertNumeric(raw []byte) (packedvalue.Value, error) {
	d, err := decimal.NewFromString(string(raw))
	if err != nil {
		return packedvalue.Value{}, fmt.Errorf("numeric %q: %w", raw, err)
	}
	return packedvalue.Bytes([]byte(d.String())), nil
}

// convertDate parses through a civil date rather than time.Time so a bare
// date can never shift by a day through timezone conversion.
func convertDate(raw []byte) (packedvalue.Value, error) {
	d, err := civil.ParseDate(string(raw))
	if err != nil {
		return packedvalue.Value{}, fmt.Errorf("date %q: %w", raw, err)
	}
	return packedvalue.Bytes([]byte(d.String())), nil
}

// convertGeometry decodes the hex EWKB text output and re-encodes it as
// the canonical 4-byte big-endian SRID prefix followed by plain WKB.
func convertGeometry(raw []byte) (packedvalue.Value, error) {
	ewkb := make([]byte, hex.DecodedLen(len(raw)))
	if _, err := hex.Decode(ewkb, raw); err != nil {
		return packedvalue.Value{}, fmt.Errorf("geometry hex: %w", err)
	}
	canonical, err := ewkbToCanonical(ewkb)
	if err != nil {
		return packedvalue.Value{}, err
	}
	return packedvalue.Bytes(canonical), nil
}

// EWKB type-word flag bits.
const (
	ewkbSRIDFlag = 0x20000000
	ewkbZFlag    = 0x80000000
	ewkbMFlag    = 0x40000000
)

// ewkbToCanonical converts PostGIS EWKB into the canonical WKB-with-SRID
// representation: 4 bytes of big-endian SRID (0 when the EWKB carried
// none), then WKB with the SRID flag stripped from the type word.
func ewkbToCanonical(ewkb []byte) ([]byte, error) {
	if len(ewkb) < 5 {
		return nil, fmt.Errorf("geometry: EWKB shorter than header")
	}
	var order binary.ByteOrder
	switch ewkb[0] {
	case 0:
		order = binary.BigEndian
	case 1:
		order = binary.LittleEndian
	default:
		return nil, fmt.Errorf("geometry: unknown byte order %d", ewkb[0])
	}
	typeWord := order.Uint32(ewkb[1:5])

	srid := uint32(0)
	body := ewkb[5:]
	if typeWord&ewkbSRIDFlag != 0 {
		if len(body) < 4 {
			return nil, fmt.Errorf("geometry: EWKB truncated before SRID")
		}
		srid = order.Uint32(body[:4])
		body = body[4:]
	}

	out := make([]byte, 0, 4+5+len(body))
	var sridPrefix [4]byte
	binary.BigEndian.PutUint32(sridPrefix[:], srid)
	out = append(out, sridPrefix[:]...)
	out = append(out, ewkb[0])
	var stripped [4]byte
	order.PutUint32(stripped[:], typeWord&^uint32(ewkbSRIDFlag))
	out = append(out, stripped[:]...)
	out = append(out, body...)
	return out, nil
}

// maxKeyNameLen is Postgres's identifier length limit.
const maxKeyNameLen = 63

// ConvertUnsupportedSchema normalizes a peer's schema to what Postgres can
// represent, ahead of comparison: unsigned integers become signed, 1- and
// 3-byte integers widen to the nearest Postgres width, TEXT/BLOB size
// buckets collapse (Postgres has one unsized text and one unsized bytea),
// and key names truncate to the identifier limit.
func (c *Client) ConvertUnsupportedSchema(db *schema.Database) {
	for ti := range db.Tables {
		t := &db.Tables[ti]
		for ci := range t.Columns {
			col := &t.Columns[ci]
			if col.Kind == schema.KindUnsignedInt {
				col.Kind = schema.KindSignedInt
			}
			if col.Kind == schema.KindSignedInt {
				switch col.Size {
				case 1:
					col.Size = 2
				case 3:
					col.Size = 4
				}
			}
			if col.Kind == schema.KindText || col.Kind == schema.KindBlob {
				col.Size = 0
			}
		}
		for ki := range t.Keys {
			if len(t.Keys[ki].Name) > maxKeyNameLen {
				t.Keys[ki].Name = t.Keys[ki].Name[:maxKeyNameLen]
			}
		}
	}
}
