package pgadapter

import (
	"bytes"
	"testing"

	"github.com/Limetric/kitchensync/internal/schema"
)

func TestEwkbToCanonical(t *testing.T) {
	coords := []byte{
		0, 0, 0, 0, 0, 0, 0xf0, 0x3f, // x = 1.0, little-endian
		0, 0, 0, 0, 0, 0, 0, 0x40, // y = 2.0
	}

	// Little-endian EWKB point with SRID 4326.
	ewkb := append([]byte{
		0x01,                   // little-endian
		0x01, 0x00, 0x00, 0x20, // point | SRID flag
		0xe6, 0x10, 0x00, 0x00, // srid 4326
	}, coords...)

	got, err := ewkbToCanonical(ewkb)
	if err != nil {
		t.Fatalf("ewkbToCanonical: %v", err)
	}
	want := append([]byte{
		0x00, 0x00, 0x10, 0xe6, // big-endian SRID prefix
		0x01,                   // original byte order
		0x01, 0x00, 0x00, 0x00, // type word with SRID flag stripped
	}, coords...)
	if !bytes.Equal(got, want) {
		t.Errorf("ewkbToCanonical = %x, want %x", got, want)
	}
}

func TestEwkbToCanonicalNoSRID(t *testing.T) {
	ewkb := []byte{0x01, 0x01, 0x00, 0x00, 0x00, 0xaa}
	got, err := ewkbToCanonical(ewkb)
	if err != nil {
		t.Fatalf("ewkbToCanonical: %v", err)
	}
	want := []byte{0x00, 0x00, 0x00, 0x00, 0x01, 0x01, 0x00, 0x00, 0x00, 0xaa}
	if !bytes.Equal(got, want) {
		t.Errorf("ewkbToCanonical = %x, want %x", got, want)
	}
}

func TestEwkbToCanonicalTruncated(t *testing.T) {
	for _, in := range [][]byte{nil, {0x01}, {0x01, 0x01, 0x00, 0x00, 0x20}} {
		if _, err := ewkbToCanonical(in); err == nil {
			t.Errorf("ewkbToCanonical(%x) succeeded, want error", in)
		}
	}
}

func TestConvertCellText(t *testing.T) {
	if v, err := convertBool([]byte("t")); err != nil {
		t.Fatalf("convertBool: %v", err)
	} else if b, _ := v.AsBool(); !b {
		t.Errorf("convertBool(t) = %v, want true", b)
	}

	if v, err := convertInt([]byte("-42")); err != nil {
		t.Fatalf("convertInt: %v", err)
	} else if n, _ := v.AsInt(); n != -42 {
		t.Errorf("convertInt(-42) = %d", n)
	}

	if v, err := convertBytea([]byte(`\xdeadbeef`)); err != nil {
		t.Fatalf("convertBytea: %v", err)
	} else if b, _ := v.AsBytes(); !bytes.Equal(b, []byte{0xde, 0xad, 0xbe, 0xef}) {
		t.Errorf("convertBytea = %x", b)
	}

	// Trailing zeros and presentation differences collapse.
	if v, err := convertNumeric([]byte("12.500")); err != nil {
		t.Fatalf("convertNumeric: %v", err)
	} else if s, _ := v.AsString(); s != "12.5" {
		t.Errorf("convertNumeric(12.500) = %q, want 12.5", s)
	}

	if v, err := convertDate([]byte("2024-02-29")); err != nil {
		t.Fatalf("convertDate: %v", err)
	} else if s, _ := v.AsString(); s != "2024-02-29" {
		t.Errorf("convertDate = %q", s)
	}
	if _, err := convertDate([]byte("not a date")); err == nil {
		t.Error("convertDate accepted garbage")
	}
}

func TestConvertUnsupportedSchema(t *testing.T) {
	c := &Client{}
	db := schema.Database{Tables: []schema.Table{{
		Name: "t",
		Columns: []schema.Column{
			{Name: "a", Kind: schema.KindUnsignedInt, Size: 4},
			{Name: "b", Kind: schema.KindSignedInt, Size: 1},
			{Name: "c", Kind: schema.KindSignedInt, Size: 3},
			{Name: "d", Kind: schema.KindText, Size: 2},
			{Name: "e", Kind: schema.KindBlob, Size: 4},
		},
		Keys: []schema.Key{{
			Name: "a_very_long_key_name_that_exceeds_the_postgresql_identifier_length_limit",
			Kind: schema.KeyStandard,
		}},
	}}}

	c.ConvertUnsupportedSchema(&db)

	cols := db.Tables[0].Columns
	if cols[0].Kind != schema.KindSignedInt || cols[0].Size != 4 {
		t.Errorf("unsigned int: got %s size %d", cols[0].Kind, cols[0].Size)
	}
	if cols[1].Size != 2 {
		t.Errorf("1-byte int widened to %d, want 2", cols[1].Size)
	}
	if cols[2].Size != 4 {
		t.Errorf("3-byte int widened to %d, want 4", cols[2].Size)
	}
	if cols[3].Size != 0 || cols[4].Size != 0 {
		t.Errorf("text/blob sizes = %d/%d, want 0/0", cols[3].Size, cols[4].Size)
	}
	if got := db.Tables[0].Keys[0].Name; len(got) != 63 {
		t.Errorf("key name length = %d, want 63", len(got))
	}
}
