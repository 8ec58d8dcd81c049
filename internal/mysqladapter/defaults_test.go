package mysqladapter

import (
	"testing"

	"github.com/Limetric/kitchensync/internal/schema"
)

func TestParseDefault(t *testing.T) {
	tests := []struct {
		name       string
		rawDefault string
		hasDefault bool
		extra      string
		wantKind   schema.DefaultKind
		wantValue  string
	}{
		{"no default", "", false, "", schema.NoDefault, ""},
		{"auto increment", "", false, "auto_increment", schema.Sequence, ""},
		{"explicit null", "NULL", true, "", schema.NoDefault, ""},
		{"current timestamp", "CURRENT_TIMESTAMP", true, "", schema.DefaultExpression, "CURRENT_TIMESTAMP"},
		{"current timestamp precision", "CURRENT_TIMESTAMP(6)", true, "DEFAULT_GENERATED", schema.DefaultExpression, "CURRENT_TIMESTAMP"},
		{"now", "now()", true, "", schema.DefaultExpression, "CURRENT_TIMESTAMP"},
		{"bare literal 5.7", "pending", true, "", schema.DefaultLiteral, "pending"},
		{"quoted literal 8.0", "'pending'", true, "", schema.DefaultLiteral, "pending"},
		{"quoted with quote", "'it''s'", true, "", schema.DefaultLiteral, "it's"},
		{"expression 8.0", "(uuid())", true, "DEFAULT_GENERATED", schema.DefaultExpression, "(uuid())"},
	}
	for _, tt := range tests {
		kind, value := parseDefault(tt.rawDefault, tt.hasDefault, tt.extra)
		if kind != tt.wantKind || value != tt.wantValue {
			t.Errorf("%s: parseDefault(%q, %v, %q) = (%s, %q), want (%s, %q)",
				tt.name, tt.rawDefault, tt.hasDefault, tt.extra, kind, value, tt.wantKind, tt.wantValue)
		}
	}
}

func TestOnUpdateTimestamp(t *testing.T) {
	if !onUpdateTimestamp("on update CURRENT_TIMESTAMP") {
		t.Error("lowercase extra not recognized")
	}
	if !onUpdateTimestamp("DEFAULT_GENERATED on update CURRENT_TIMESTAMP(3)") {
		t.Error("8.0-style extra not recognized")
	}
	if onUpdateTimestamp("auto_increment") {
		t.Error("auto_increment misread as on-update marker")
	}
}
