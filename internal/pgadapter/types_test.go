package pgadapter

import (
	"testing"

	"github.com/Limetric/kitchensync/internal/schema"
)

func TestParseFormatType(t *testing.T) {
	tests := []struct {
		formatType string
		want       schema.Column
	}{
		{"boolean", schema.Column{Kind: schema.KindBool}},
		{"smallint", schema.Column{Kind: schema.KindSignedInt, Size: 2}},
		{"integer", schema.Column{Kind: schema.KindSignedInt, Size: 4}},
		{"bigint", schema.Column{Kind: schema.KindSignedInt, Size: 8}},
		{"real", schema.Column{Kind: schema.KindReal, Size: 4}},
		{"double precision", schema.Column{Kind: schema.KindReal, Size: 8}},
		{"numeric(20,4)", schema.Column{Kind: schema.KindDecimal, Size: 20, Scale: 4}},
		{"numeric", schema.Column{Kind: schema.KindDecimal}},
		{"character varying(100)", schema.Column{Kind: schema.KindVarChar, Size: 100}},
		{"character(8)", schema.Column{Kind: schema.KindFixedChar, Size: 8}},
		{"text", schema.Column{Kind: schema.KindText}},
		{"bytea", schema.Column{Kind: schema.KindBlob}},
		{"uuid", schema.Column{Kind: schema.KindUUID}},
		{"date", schema.Column{Kind: schema.KindDate}},
		{"time without time zone", schema.Column{Kind: schema.KindTime}},
		{"timestamp without time zone", schema.Column{Kind: schema.KindDateTime}},
		{"geometry", schema.Column{Kind: schema.KindSpatial}},
		{"geometry(Point,4326)", schema.Column{Kind: schema.KindSpatial, TypeRestriction: "point", ReferenceSystem: "4326"}},
		{"geometry(Polygon)", schema.Column{Kind: schema.KindSpatial, TypeRestriction: "polygon"}},
		{"tsvector", schema.Column{Kind: schema.KindUnknown, DBTypeDef: "tsvector"}},
	}
	for _, tt := range tests {
		got := parseFormatType(tt.formatType)
		if !got.Equal(tt.want) {
			t.Errorf("parseFormatType(%q) = %+v, want %+v", tt.formatType, got, tt.want)
		}
	}
}

func TestParseFormatTypeTimeZoneFlag(t *testing.T) {
	for _, formatType := range []string{"timestamp with time zone", "time with time zone"} {
		got := parseFormatType(formatType)
		if !got.Flags.Has(schema.FlagTimeZone) {
			t.Errorf("parseFormatType(%q) did not set the time_zone flag", formatType)
		}
	}
}
