package pgadapter

import (
	"testing"

	"github.com/Limetric/kitchensync/internal/schema"
)

func TestParseDefault(t *testing.T) {
	tests := []struct {
		expr      string
		wantKind  schema.DefaultKind
		wantValue string
	}{
		{"", schema.NoDefault, ""},
		{"nextval('users_id_seq'::regclass)", schema.Sequence, "users_id_seq"},
		{"NULL::character varying", schema.DefaultExpression, "NULL"},
		{"now()", schema.DefaultExpression, "CURRENT_TIMESTAMP"},
		{"('now'::text)::date", schema.DefaultExpression, "CURRENT_DATE"},
		{`"current_user"()`, schema.DefaultExpression, "current_user"},
		{`"current_schema"()`, schema.DefaultExpression, "current_schema"},
		{`"session_user"()`, schema.DefaultExpression, "session_user"},
		{"'hello'::text", schema.DefaultLiteral, "hello"},
		{"'hello'", schema.DefaultLiteral, "hello"},
		{`'it\'s'::text`, schema.DefaultLiteral, "it's"},
		{`'a\\b'`, schema.DefaultLiteral, `a\b`},
		{"'42'::integer", schema.DefaultLiteral, "42"},
		{"(random() * 100)", schema.DefaultExpression, "(random() * 100)"},
	}
	for _, tt := range tests {
		kind, value := parseDefault(tt.expr)
		if kind != tt.wantKind || value != tt.wantValue {
			t.Errorf("parseDefault(%q) = (%s, %q), want (%s, %q)",
				tt.expr, kind, value, tt.wantKind, tt.wantValue)
		}
	}
}
