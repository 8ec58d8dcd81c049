package schemamatch

import (
	"testing"

	"github.com/Limetric/kitchensync/internal/schema"
)

func col(name string) schema.Column { return schema.Column{Name: name, Kind: schema.KindText} }

func table(name string, colNames ...string) schema.Table {
	cols := make([]schema.Column, len(colNames))
	for i, n := range colNames {
		cols[i] = col(n)
	}
	return schema.Table{Name: name, Columns: cols}
}

func TestCheckEmptyDatabasesMatch(t *testing.T) {
	if err := Check(schema.Database{}, schema.Database{}, Options{}); err != nil {
		t.Fatalf("Check() = %v, want nil", err)
	}
}

func TestCheckReflexive(t *testing.T) {
	db := schema.Database{Tables: []schema.Table{table("a", "x", "y"), table("b", "z")}}
	if err := Check(db, db, Options{}); err != nil {
		t.Fatalf("Check(db, db) = %v, want nil", err)
	}
}

func TestCheckTableOrderingIndependent(t *testing.T) {
	from := schema.Database{Tables: []schema.Table{table("a", "x"), table("b", "y")}}
	to := schema.Database{Tables: []schema.Table{table("b", "y"), table("a", "x")}}
	if err := Check(from, to, Options{}); err != nil {
		t.Fatalf("Check() = %v, want nil", err)
	}
}

func TestMissingTable(t *testing.T) {
	from := schema.Database{Tables: []schema.Table{table("a"), table("b")}}
	to := schema.Database{Tables: []schema.Table{table("a")}}
	err := Check(from, to, Options{})
	want := "Missing table b"
	if err == nil || err.Error() != want {
		t.Fatalf("Check() = %v, want %q", err, want)
	}
}

func TestExtraTable(t *testing.T) {
	from := schema.Database{Tables: []schema.Table{table("a")}}
	to := schema.Database{Tables: []schema.Table{table("a"), table("b")}}
	err := Check(from, to, Options{})
	want := "Extra table b"
	if err == nil || err.Error() != want {
		t.Fatalf("Check() = %v, want %q", err, want)
	}
}

func TestMisorderedColumn(t *testing.T) {
	from := schema.Database{Tables: []schema.Table{table("t", "x", "y")}}
	to := schema.Database{Tables: []schema.Table{table("t", "y", "x")}}
	err := Check(from, to, Options{})
	want := "Misordered column x on table t, should have y first"
	if err == nil || err.Error() != want {
		t.Fatalf("Check() = %v, want %q", err, want)
	}
}

func TestMissingColumn(t *testing.T) {
	from := schema.Database{Tables: []schema.Table{table("t", "x", "y")}}
	to := schema.Database{Tables: []schema.Table{table("t", "y")}}
	err := Check(from, to, Options{})
	want := "Missing column x on table t"
	if err == nil || err.Error() != want {
		t.Fatalf("Check() = %v, want %q", err, want)
	}
}

func TestExtraColumn(t *testing.T) {
	from := schema.Database{Tables: []schema.Table{table("t", "x")}}
	to := schema.Database{Tables: []schema.Table{table("t", "x", "y")}}
	err := Check(from, to, Options{})
	want := "Extra column y on table t"
	if err == nil || err.Error() != want {
		t.Fatalf("Check() = %v, want %q", err, want)
	}
}

func TestPrimaryKeyMismatch(t *testing.T) {
	from := table("t", "id", "name")
	from.PrimaryKeyColumns = []schema.ColumnIndex{0}
	from.PrimaryKeyKind = schema.ExplicitPrimaryKey
	to := table("t", "id", "name")
	to.PrimaryKeyColumns = []schema.ColumnIndex{1}
	to.PrimaryKeyKind = schema.ExplicitPrimaryKey

	err := Check(
		schema.Database{Tables: []schema.Table{from}},
		schema.Database{Tables: []schema.Table{to}},
		Options{},
	)
	if err == nil {
		t.Fatalf("Check() = nil, want primary key mismatch")
	}
}

func TestKeyColumnsMismatch(t *testing.T) {
	from := table("t", "id", "email")
	from.Keys = []schema.Key{{Name: "email_idx", Kind: schema.KeyUnique, Columns: []schema.ColumnIndex{1}}}
	to := table("t", "id", "email")
	to.Keys = []schema.Key{{Name: "email_idx", Kind: schema.KeyUnique, Columns: []schema.ColumnIndex{0}}}

	err := Check(
		schema.Database{Tables: []schema.Table{from}},
		schema.Database{Tables: []schema.Table{to}},
		Options{},
	)
	if err == nil {
		t.Fatalf("Check() = nil, want key mismatch")
	}
}

func TestIgnoreTables(t *testing.T) {
	from := schema.Database{Tables: []schema.Table{table("a"), table("secret")}}
	to := schema.Database{Tables: []schema.Table{table("a")}}
	err := Check(from, to, Options{IgnoreTables: []string{"secret"}})
	if err != nil {
		t.Fatalf("Check() = %v, want nil (secret ignored)", err)
	}
}

func TestOnlyTables(t *testing.T) {
	from := schema.Database{Tables: []schema.Table{table("a"), table("b")}}
	to := schema.Database{Tables: []schema.Table{table("a")}}
	err := Check(from, to, Options{OnlyTables: []string{"a"}})
	if err != nil {
		t.Fatalf("Check() = %v, want nil (only a compared)", err)
	}
}
