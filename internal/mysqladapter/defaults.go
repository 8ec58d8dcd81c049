package mysqladapter

import (
	"strings"

	"github.com/Limetric/kitchensync/internal/schema"
)

// parseDefault canonicalizes a COLUMN_DEFAULT/EXTRA pair. hasDefault is
// false when COLUMN_DEFAULT was SQL NULL, which MySQL uses both for "no
// default" and for an explicit DEFAULT NULL on a nullable column; the two
// are indistinguishable in INFORMATION_SCHEMA and both map to NoDefault.
func parseDefault(rawDefault string, hasDefault bool, extra string) (schema.DefaultKind, string) {
	extraLower := strings.ToLower(extra)
	if strings.Contains(extraLower, "auto_increment") {
		return schema.Sequence, ""
	}
	if !hasDefault {
		return schema.NoDefault, ""
	}

	raw := strings.TrimSpace(rawDefault)
	lower := strings.ToLower(raw)
	switch lower {
	case "null":
		return schema.NoDefault, ""
	case "current_timestamp", "current_timestamp()", "now()", "localtimestamp", "localtimestamp()":
		return schema.DefaultExpression, "CURRENT_TIMESTAMP"
	}
	if strings.HasPrefix(lower, "current_timestamp(") && strings.HasSuffix(lower, ")") {
		return schema.DefaultExpression, "CURRENT_TIMESTAMP"
	}

	// MySQL 8 marks expression defaults in EXTRA; 5.7 has no expression
	// defaults, so anything else is a literal (quoted on 8.0, bare on 5.7).
	if strings.Contains(extraLower, "default_generated") && !isQuoted(raw) {
		return schema.DefaultExpression, raw
	}
	return schema.DefaultLiteral, defaultUnquote(raw)
}

func isQuoted(v string) bool {
	return len(v) >= 2 && v[0] == '\'' && v[len(v)-1] == '\''
}

// defaultUnquote strips the surrounding quotes MySQL 8 adds to literal
// defaults in INFORMATION_SCHEMA, undoubling embedded quotes. 5.7-style
// bare literals pass through unchanged.
func defaultUnquote(v string) string {
	if isQuoted(v) {
		return strings.ReplaceAll(v[1:len(v)-1], "''", "'")
	}
	return v
}

// onUpdateTimestamp reports whether EXTRA carries the ON UPDATE
// CURRENT_TIMESTAMP marker.
func onUpdateTimestamp(extra string) bool {
	return strings.Contains(strings.ToLower(extra), "on update current_timestamp")
}
