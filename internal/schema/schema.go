// Package schema implements the canonical, engine-agnostic description of
// a relational schema (Database, Table, Column, Key) and the small set of
// operations defined over it: construction, equality, and the two sort
// orders that make schema-matching and wire serialization order-stable.
package schema

import "sort"

// ColumnKind is the closed value-shape taxonomy every engine adapter maps
// its native types onto.
type ColumnKind string

const (
	KindBlob        ColumnKind = "blob"
	KindText        ColumnKind = "text"
	KindVarChar     ColumnKind = "var_char"
	KindFixedChar   ColumnKind = "fixed_char"
	KindJSON        ColumnKind = "json"
	KindUUID        ColumnKind = "uuid"
	KindBool        ColumnKind = "bool"
	KindSignedInt   ColumnKind = "signed_int"
	KindUnsignedInt ColumnKind = "unsigned_int"
	KindReal        ColumnKind = "real"
	KindDecimal     ColumnKind = "decimal"
	KindDate        ColumnKind = "date"
	KindTime        ColumnKind = "time"
	KindDateTime    ColumnKind = "date_time"
	KindSpatial     ColumnKind = "spatial"
	KindEnum        ColumnKind = "enum"
	KindUnknown     ColumnKind = "unknown"
)

// DefaultKind classifies how Column.DefaultValue should be interpreted.
type DefaultKind string

const (
	NoDefault       DefaultKind = "no_default"
	Sequence        DefaultKind = "sequence"
	DefaultLiteral  DefaultKind = "literal"
	DefaultExpression DefaultKind = "expression"
)

// Flag is one named bit of ColumnFlags. Flags are serialized by name, not
// numeric value, so the bit assignment below can be freely renumbered
// without changing wire output for already-deployed clients.
type Flag string

const (
	FlagMySQLTimestamp          Flag = "mysql_timestamp"
	FlagMySQLOnUpdateTimestamp  Flag = "mysql_on_update_timestamp"
	FlagTimeZone                Flag = "time_zone"
	FlagSimpleGeometry           Flag = "simple_geometry"
	FlagIdentityGeneratedAlways Flag = "identity_generated_always"
)

// allFlags is the closed set of flag names this version of the codec
// knows about. Reading an unrecognized name is a warning, not a hard
// error (see decodeColumn in wire.go).
var allFlags = []Flag{
	FlagMySQLTimestamp,
	FlagMySQLOnUpdateTimestamp,
	FlagTimeZone,
	FlagSimpleGeometry,
	FlagIdentityGeneratedAlways,
}

// ColumnFlags is a bitset addressed by Flag name rather than bit position.
type ColumnFlags map[Flag]bool

func NewColumnFlags() ColumnFlags { return ColumnFlags{} }

func (f ColumnFlags) Has(flag Flag) bool { return f[flag] }

func (f ColumnFlags) Set(flag Flag) ColumnFlags {
	if f == nil {
		f = ColumnFlags{}
	}
	f[flag] = true
	return f
}

// Names returns the set flags, sorted, for stable serialization.
func (f ColumnFlags) Names() []string {
	names := make([]string, 0, len(f))
	for flag, set := range f {
		if set {
			names = append(names, string(flag))
		}
	}
	sort.Strings(names)
	return names
}

// KeyKind classifies a Key.
type KeyKind string

const (
	KeyUnique   KeyKind = "unique"
	KeyStandard KeyKind = "standard"
	KeySpatial  KeyKind = "spatial"
)

// PrimaryKeyKind describes how a Table's primary key, if any, was derived.
type PrimaryKeyKind string

const (
	NoAvailableKey      PrimaryKeyKind = "no_available_key"
	ExplicitPrimaryKey  PrimaryKeyKind = "explicit_primary_key"
	SuitableUniqueKey   PrimaryKeyKind = "suitable_unique_key"
)

// ColumnIndex is a position into the owning Table's Columns slice.
type ColumnIndex int

// Column is one engine-agnostic column description.
type Column struct {
	Name              string
	Nullable          bool
	Kind              ColumnKind
	Size              int64
	Scale             int64
	DefaultKind       DefaultKind
	DefaultValue      string
	Flags             ColumnFlags
	TypeRestriction   string
	ReferenceSystem   string
	EnumerationValues []string
	DBTypeDef         string
}

// Equal compares two columns field-wise.
func (c Column) Equal(o Column) bool {
	if c.Name != o.Name || c.Nullable != o.Nullable || c.Kind != o.Kind ||
		c.Size != o.Size || c.Scale != o.Scale || c.DefaultKind != o.DefaultKind ||
		c.DefaultValue != o.DefaultValue || c.TypeRestriction != o.TypeRestriction ||
		c.ReferenceSystem != o.ReferenceSystem || c.DBTypeDef != o.DBTypeDef {
		return false
	}
	if len(c.EnumerationValues) != len(o.EnumerationValues) {
		return false
	}
	for i := range c.EnumerationValues {
		if c.EnumerationValues[i] != o.EnumerationValues[i] {
			return false
		}
	}
	return flagsEqual(c.Flags, o.Flags)
}

// flagsEqual compares by set flag names, not map length, since both nil
// and an empty-but-allocated map mean "no flags set".
func flagsEqual(a, b ColumnFlags) bool {
	an, bn := a.Names(), b.Names()
	if len(an) != len(bn) {
		return false
	}
	for i := range an {
		if an[i] != bn[i] {
			return false
		}
	}
	return true
}

// Key is a named, ordered set of column positions.
type Key struct {
	Name    string
	Kind    KeyKind
	Columns []ColumnIndex
}

func (k Key) Equal(o Key) bool {
	if k.Name != o.Name || k.Kind != o.Kind || len(k.Columns) != len(o.Columns) {
		return false
	}
	for i := range k.Columns {
		if k.Columns[i] != o.Columns[i] {
			return false
		}
	}
	return true
}

// Table is an ordered collection of columns plus key metadata. Column order
// is semantic: it is compared positionally by the schema-match engine.
type Table struct {
	Name               string
	Columns            []Column
	PrimaryKeyColumns  []ColumnIndex
	PrimaryKeyKind     PrimaryKeyKind
	Keys               []Key
}

// IndexOfColumn returns the position of the named column, if present.
func (t Table) IndexOfColumn(name string) (ColumnIndex, bool) {
	for i, c := range t.Columns {
		if c.Name == name {
			return ColumnIndex(i), true
		}
	}
	return 0, false
}

// Equal compares two tables structurally, including column order.
func (t Table) Equal(o Table) bool {
	if t.Name != o.Name || t.PrimaryKeyKind != o.PrimaryKeyKind {
		return false
	}
	if len(t.Columns) != len(o.Columns) {
		return false
	}
	for i := range t.Columns {
		if !t.Columns[i].Equal(o.Columns[i]) {
			return false
		}
	}
	if len(t.PrimaryKeyColumns) != len(o.PrimaryKeyColumns) {
		return false
	}
	for i := range t.PrimaryKeyColumns {
		if t.PrimaryKeyColumns[i] != o.PrimaryKeyColumns[i] {
			return false
		}
	}
	sk, ok := sortedKeys(t.Keys), sortedKeys(o.Keys)
	if len(sk) != len(ok) {
		return false
	}
	for i := range sk {
		if !sk[i].Equal(ok[i]) {
			return false
		}
	}
	return true
}

// SortedKeys returns the table's keys ordered by (kind, name), the
// tie-break rule the schema-match engine relies on.
func SortedKeys(t Table) []Key { return sortedKeys(t.Keys) }

func sortedKeys(keys []Key) []Key {
	out := make([]Key, len(keys))
	copy(out, keys)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Database owns an unordered collection of tables.
type Database struct {
	Tables []Table
}

// SortedTables returns the database's tables ordered by name.
func SortedTables(d Database) []Table {
	out := make([]Table, len(d.Tables))
	copy(out, d.Tables)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Equal compares two databases up to table order.
func (d Database) Equal(o Database) bool {
	a, b := SortedTables(d), SortedTables(o)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
