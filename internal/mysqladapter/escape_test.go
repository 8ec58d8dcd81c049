package mysqladapter

import (
	"testing"

	"github.com/Limetric/kitchensync/internal/schema"
)

func TestEscapeString(t *testing.T) {
	tests := []struct{ in, want string }{
		{"plain", "plain"},
		{"it's", `it\'s`},
		{`back\slash`, `back\\slash`},
		{"line\nbreak", `line\nbreak`},
		{"nul\x00byte", `nul\0byte`},
	}
	for _, tt := range tests {
		if got := escapeString(tt.in); got != tt.want {
			t.Errorf("escapeString(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEscapeBytea(t *testing.T) {
	if got := escapeBytea([]byte{0xde, 0xad}); got != "x'dead'" {
		t.Errorf("escapeBytea = %q, want x'dead'", got)
	}
}

func TestEscapeSpatial(t *testing.T) {
	canonical := []byte{0x00, 0x00, 0x00, 0x00, 0x01, 0x02}
	got := escapeSpatial(canonical)
	want := "ST_GeomFromWKB(x'0102', 0)"
	if got != want {
		t.Errorf("escapeSpatial = %q, want %q", got, want)
	}
}

func TestEscapeColumnValue(t *testing.T) {
	tests := []struct {
		kind schema.ColumnKind
		raw  string
		want string
	}{
		{schema.KindText, "it's", `'it\'s'`},
		{schema.KindBool, "1", "1"},
		{schema.KindBool, "0", "0"},
		{schema.KindSignedInt, "-7", "-7"},
		{schema.KindUnsignedInt, "18446744073709551615", "18446744073709551615"},
		{schema.KindDecimal, "12.50", "12.50"},
	}
	for _, tt := range tests {
		got := escapeColumnValue(schema.Column{Kind: tt.kind}, tt.raw)
		if got != tt.want {
			t.Errorf("escapeColumnValue(%s, %q) = %q, want %q", tt.kind, tt.raw, got, tt.want)
		}
	}
}

func TestQuoteIdentifier(t *testing.T) {
	if got := quoteIdentifier("users"); got != "`users`" {
		t.Errorf("quoteIdentifier = %q", got)
	}
	if got := quoteIdentifier("odd`name"); got != "`odd``name`" {
		t.Errorf("quoteIdentifier with backtick = %q", got)
	}
}

func TestConvertUnsupportedSchema(t *testing.T) {
	c := &Client{}
	db := schema.Database{Tables: []schema.Table{{
		Name: "t",
		Columns: []schema.Column{
			{Name: "id", Kind: schema.KindUUID},
			{Name: "geom", Kind: schema.KindSpatial, ReferenceSystem: "4326"},
			{Name: "body", Kind: schema.KindText},
		},
	}}}

	c.ConvertUnsupportedSchema(&db)

	cols := db.Tables[0].Columns
	if cols[0].Kind != schema.KindFixedChar || cols[0].Size != 36 {
		t.Errorf("uuid converted to %s(%d), want fixed_char(36)", cols[0].Kind, cols[0].Size)
	}
	if cols[1].ReferenceSystem != "" || !cols[1].Flags.Has(schema.FlagSimpleGeometry) {
		t.Errorf("spatial conversion = %+v", cols[1])
	}
	if cols[2].Size != bucketLong {
		t.Errorf("unsized text bucket = %d, want %d", cols[2].Size, bucketLong)
	}
}
