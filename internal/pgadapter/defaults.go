package pgadapter

import (
	"regexp"
	"strings"

	"github.com/Limetric/kitchensync/internal/schema"
)

var (
	nextvalRE   = regexp.MustCompile(`^nextval\('([^']+)'::regclass\)$`)
	nullCastRE  = regexp.MustCompile(`^NULL::[A-Za-z0-9_ ]+$`)
	literalRE   = regexp.MustCompile(`^'((?:[^'\\]|\\.)*)'(?:::[A-Za-z0-9_ ]+(?:\([0-9, ]+\))?)?$`)
	nowCallRE   = regexp.MustCompile(`^now\(\)$`)
	nowDateRE   = regexp.MustCompile(`^\('now'::text\)::date$`)
	identityFnRE = regexp.MustCompile(`^"(current_schema|current_user|session_user)"\(\)$`)
)

// parseDefault canonicalizes pg_get_expr output into a DefaultKind and
// its value.
func parseDefault(expr string) (schema.DefaultKind, string) {
	e := strings.TrimSpace(expr)
	if e == "" {
		return schema.NoDefault, ""
	}

	if m := nextvalRE.FindStringSubmatch(e); m != nil {
		return schema.Sequence, m[1]
	}
	if nullCastRE.MatchString(e) {
		return schema.DefaultExpression, "NULL"
	}
	if nowCallRE.MatchString(e) {
		return schema.DefaultExpression, "CURRENT_TIMESTAMP"
	}
	if nowDateRE.MatchString(e) {
		return schema.DefaultExpression, "CURRENT_DATE"
	}
	if m := identityFnRE.FindStringSubmatch(e); m != nil {
		return schema.DefaultExpression, m[1]
	}
	if m := literalRE.FindStringSubmatch(e); m != nil {
		return schema.DefaultLiteral, unescapeLiteral(m[1])
	}
	return schema.DefaultExpression, e
}

// unescapeLiteral reverses SQL-literal backslash-escaping of only \\ and
// \'; no other escape sequences are recognized.
func unescapeLiteral(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && (s[i+1] == '\\' || s[i+1] == '\'') {
			b.WriteByte(s[i+1])
			i++
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
