package schema

import (
	"fmt"
	"log"

	"github.com/Limetric/kitchensync/internal/packedvalue"
)

// Encode turns a Database into the packed-map payload shape used from
// protocol version 8 on:
// {"tables": [ {"name", "columns": [...], "primary_key_columns",
// "primary_key_type", "keys": [...] }, ... ]}.
func Encode(db Database) packedvalue.Value {
	tables := make([]packedvalue.Value, len(db.Tables))
	for i, t := range db.Tables {
		tables[i] = encodeTable(t)
	}
	return packedvalue.Map([]packedvalue.Entry{
		{Key: packedvalue.String("tables"), Value: packedvalue.Array(tables)},
	})
}

func encodeTable(t Table) packedvalue.Value {
	cols := make([]packedvalue.Value, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = encodeColumn(c)
	}
	pk := make([]packedvalue.Value, len(t.PrimaryKeyColumns))
	for i, idx := range t.PrimaryKeyColumns {
		pk[i] = packedvalue.Int(int64(idx))
	}
	keys := make([]packedvalue.Value, len(t.Keys))
	for i, k := range t.Keys {
		keys[i] = encodeKey(k)
	}
	return packedvalue.Map([]packedvalue.Entry{
		{Key: packedvalue.String("name"), Value: packedvalue.String(t.Name)},
		{Key: packedvalue.String("columns"), Value: packedvalue.Array(cols)},
		{Key: packedvalue.String("primary_key_columns"), Value: packedvalue.Array(pk)},
		{Key: packedvalue.String("primary_key_type"), Value: packedvalue.String(string(t.PrimaryKeyKind))},
		{Key: packedvalue.String("keys"), Value: packedvalue.Array(keys)},
	})
}

func encodeColumn(c Column) packedvalue.Value {
	enumVals := make([]packedvalue.Value, len(c.EnumerationValues))
	for i, v := range c.EnumerationValues {
		enumVals[i] = packedvalue.String(v)
	}
	flagNames := c.Flags.Names()
	flags := make([]packedvalue.Value, len(flagNames))
	for i, n := range flagNames {
		flags[i] = packedvalue.String(n)
	}
	return packedvalue.Map([]packedvalue.Entry{
		{Key: packedvalue.String("name"), Value: packedvalue.String(c.Name)},
		{Key: packedvalue.String("nullable"), Value: packedvalue.Bool(c.Nullable)},
		{Key: packedvalue.String("column_type"), Value: packedvalue.String(string(c.Kind))},
		{Key: packedvalue.String("size"), Value: packedvalue.Int(c.Size)},
		{Key: packedvalue.String("scale"), Value: packedvalue.Int(c.Scale)},
		{Key: packedvalue.String("default_type"), Value: packedvalue.String(string(c.DefaultKind))},
		{Key: packedvalue.String("default_value"), Value: packedvalue.String(c.DefaultValue)},
		{Key: packedvalue.String("flags"), Value: packedvalue.Array(flags)},
		{Key: packedvalue.String("type_restriction"), Value: packedvalue.String(c.TypeRestriction)},
		{Key: packedvalue.String("reference_system"), Value: packedvalue.String(c.ReferenceSystem)},
		{Key: packedvalue.String("enumeration_values"), Value: packedvalue.Array(enumVals)},
		{Key: packedvalue.String("db_type_def"), Value: packedvalue.String(c.DBTypeDef)},
	})
}

func encodeKey(k Key) packedvalue.Value {
	cols := make([]packedvalue.Value, len(k.Columns))
	for i, idx := range k.Columns {
		cols[i] = packedvalue.Int(int64(idx))
	}
	return packedvalue.Map([]packedvalue.Entry{
		{Key: packedvalue.String("name"), Value: packedvalue.String(k.Name)},
		{Key: packedvalue.String("key_type"), Value: packedvalue.String(string(k.Kind))},
		{Key: packedvalue.String("columns"), Value: packedvalue.Array(cols)},
	})
}

// Decode is the inverse of Encode. Unknown map keys are ignored so newer
// peers can add fields without breaking older readers.
func Decode(v packedvalue.Value) (Database, error) {
	entries, ok := v.AsMap()
	if !ok {
		return Database{}, fmt.Errorf("schema: expected map, got kind %d", v.Kind())
	}
	tablesVal, ok := lookup(entries, "tables")
	if !ok {
		return Database{}, fmt.Errorf("schema: missing %q key", "tables")
	}
	tableVals, ok := tablesVal.AsArray()
	if !ok {
		return Database{}, fmt.Errorf("schema: %q is not an array", "tables")
	}
	tables := make([]Table, len(tableVals))
	for i, tv := range tableVals {
		t, err := decodeTable(tv)
		if err != nil {
			return Database{}, err
		}
		tables[i] = t
	}
	return Database{Tables: tables}, nil
}

func decodeTable(v packedvalue.Value) (Table, error) {
	entries, ok := v.AsMap()
	if !ok {
		return Table{}, fmt.Errorf("schema: table is not a map")
	}
	name, _ := stringField(entries, "name")
	colsVal, _ := lookup(entries, "columns")
	colVals, _ := colsVal.AsArray()
	cols := make([]Column, len(colVals))
	for i, cv := range colVals {
		c, err := decodeColumn(cv)
		if err != nil {
			return Table{}, fmt.Errorf("schema: table %q: %w", name, err)
		}
		cols[i] = c
	}
	pkVal, _ := lookup(entries, "primary_key_columns")
	pkVals, _ := pkVal.AsArray()
	pk := make([]ColumnIndex, len(pkVals))
	for i, pv := range pkVals {
		n, _ := pv.AsInt()
		pk[i] = ColumnIndex(n)
	}
	pkKind, _ := stringField(entries, "primary_key_type")
	keysVal, _ := lookup(entries, "keys")
	keyVals, _ := keysVal.AsArray()
	keys := make([]Key, len(keyVals))
	for i, kv := range keyVals {
		k, err := decodeKey(kv)
		if err != nil {
			return Table{}, fmt.Errorf("schema: table %q: %w", name, err)
		}
		keys[i] = k
	}
	return Table{
		Name:              name,
		Columns:           cols,
		PrimaryKeyColumns: pk,
		PrimaryKeyKind:    PrimaryKeyKind(pkKind),
		Keys:              keys,
	}, nil
}

func decodeColumn(v packedvalue.Value) (Column, error) {
	entries, ok := v.AsMap()
	if !ok {
		return Column{}, fmt.Errorf("column is not a map")
	}
	name, _ := stringField(entries, "name")
	nullable, _ := boolField(entries, "nullable")
	kind, _ := stringField(entries, "column_type")
	size, _ := intField(entries, "size")
	scale, _ := intField(entries, "scale")
	defKind, _ := stringField(entries, "default_type")
	defVal, _ := stringField(entries, "default_value")
	typeRestriction, _ := stringField(entries, "type_restriction")
	refSystem, _ := stringField(entries, "reference_system")
	dbTypeDef, _ := stringField(entries, "db_type_def")

	flags := NewColumnFlags()
	if fv, ok := lookup(entries, "flags"); ok {
		if arr, ok := fv.AsArray(); ok {
			for _, fe := range arr {
				if s, ok := fe.AsString(); ok {
					if isKnownFlag(Flag(s)) {
						flags = flags.Set(Flag(s))
					} else {
						// Unknown flag names are dropped with a logged
						// warning, not rejected, so the flag set can grow
						// without breaking old readers.
						log.Printf("warning: ignoring unknown column flag %q", s)
					}
				}
			}
		}
	}

	var enumVals []string
	if ev, ok := lookup(entries, "enumeration_values"); ok {
		if arr, ok := ev.AsArray(); ok {
			for _, e := range arr {
				if s, ok := e.AsString(); ok {
					enumVals = append(enumVals, s)
				}
			}
		}
	}

	return Column{
		Name:              name,
		Nullable:          nullable,
		Kind:              ColumnKind(kind),
		Size:              size,
		Scale:             scale,
		DefaultKind:       DefaultKind(defKind),
		DefaultValue:      defVal,
		Flags:             flags,
		TypeRestriction:   typeRestriction,
		ReferenceSystem:   refSystem,
		EnumerationValues: enumVals,
		DBTypeDef:         dbTypeDef,
	}, nil
}

func decodeKey(v packedvalue.Value) (Key, error) {
	entries, ok := v.AsMap()
	if !ok {
		return Key{}, fmt.Errorf("key is not a map")
	}
	name, _ := stringField(entries, "name")
	kind, _ := stringField(entries, "key_type")
	colsVal, _ := lookup(entries, "columns")
	colVals, _ := colsVal.AsArray()
	cols := make([]ColumnIndex, len(colVals))
	for i, cv := range colVals {
		n, _ := cv.AsInt()
		cols[i] = ColumnIndex(n)
	}
	return Key{Name: name, Kind: KeyKind(kind), Columns: cols}, nil
}

func isKnownFlag(f Flag) bool {
	for _, k := range allFlags {
		if k == f {
			return true
		}
	}
	return false
}

func lookup(entries []packedvalue.Entry, key string) (packedvalue.Value, bool) {
	for _, e := range entries {
		if s, ok := e.Key.AsString(); ok && s == key {
			return e.Value, true
		}
	}
	return packedvalue.Value{}, false
}

func stringField(entries []packedvalue.Entry, key string) (string, bool) {
	v, ok := lookup(entries, key)
	if !ok {
		return "", false
	}
	return v.AsString()
}

func boolField(entries []packedvalue.Entry, key string) (bool, bool) {
	v, ok := lookup(entries, key)
	if !ok {
		return false, false
	}
	return v.AsBool()
}

func intField(entries []packedvalue.Entry, key string) (int64, bool) {
	v, ok := lookup(entries, key)
	if !ok {
		return 0, false
	}
	return v.AsInt()
}
