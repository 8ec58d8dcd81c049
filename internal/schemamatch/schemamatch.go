// Package schemamatch implements the pure comparison algorithm that
// verifies a "from" and a "to" Database agree structurally before any row
// data is touched.
package schemamatch

import (
	"fmt"
	"sort"

	"github.com/Limetric/kitchensync/internal/protocol"
	"github.com/Limetric/kitchensync/internal/schema"
)

// Mismatch is the error returned when two schemas disagree. Its wording is
// part of the public contract: users read it directly.
type Mismatch struct {
	Reason string
}

func (m *Mismatch) Error() string            { return m.Reason }
func (m *Mismatch) Kind() protocol.ErrorKind { return protocol.KindSchemaMismatch }

func mismatchf(format string, args ...any) *Mismatch {
	return &Mismatch{Reason: fmt.Sprintf(format, args...)}
}

// Options filters which tables participate in the comparison.
type Options struct {
	IgnoreTables []string
	OnlyTables   []string
}

// Included reports whether the named table participates in comparison and
// synchronization under these filters.
func (o Options) Included(name string) bool {
	if len(o.OnlyTables) > 0 {
		found := false
		for _, n := range o.OnlyTables {
			if n == name {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, n := range o.IgnoreTables {
		if n == name {
			return false
		}
	}
	return true
}

// Check compares from against to, returning a *Mismatch on disagreement
// (nil on success). It never mutates either Database.
func Check(from, to schema.Database, opts Options) error {
	fromTables := filterTables(schema.SortedTables(from), opts)
	toTables := filterTables(schema.SortedTables(to), opts)

	i, j := 0, 0
	for i < len(fromTables) {
		ft := fromTables[i]
		if j >= len(toTables) {
			return mismatchf("Missing table %s", ft.Name)
		}
		tt := toTables[j]
		switch {
		case tt.Name > ft.Name:
			return mismatchf("Missing table %s", ft.Name)
		case tt.Name < ft.Name:
			return mismatchf("Extra table %s", tt.Name)
		default:
			if err := checkTableMatch(ft, tt); err != nil {
				return err
			}
			i++
			j++
		}
	}
	if j < len(toTables) {
		return mismatchf("Extra table %s", toTables[j].Name)
	}
	return nil
}

func filterTables(tables []schema.Table, opts Options) []schema.Table {
	out := make([]schema.Table, 0, len(tables))
	for _, t := range tables {
		if opts.Included(t.Name) {
			out = append(out, t)
		}
	}
	return out
}

// checkTableMatch compares columns (order-sensitive), primary key, and keys
// of two same-named tables.
func checkTableMatch(from, to schema.Table) error {
	if err := checkColumnsMatch(from, to); err != nil {
		return err
	}
	if err := checkPrimaryKeyMatch(from, to); err != nil {
		return err
	}
	if err := checkKeysMatch(from, to); err != nil {
		return err
	}
	return nil
}

// checkColumnsMatch walks both column lists with the from-cursor always
// advancing, taking a four-way decision at each step.
func checkColumnsMatch(from, to schema.Table) error {
	fi, ti := 0, 0
	for fi < len(from.Columns) {
		fc := from.Columns[fi]
		if ti < len(to.Columns) && to.Columns[ti].Name == fc.Name {
			if err := checkColumnMatch(from.Name, fc, to.Columns[ti]); err != nil {
				return err
			}
			fi++
			ti++
			continue
		}
		if !nameAppearsAfter(to.Columns, ti, fc.Name) {
			return mismatchf("Missing column %s on table %s", fc.Name, from.Name)
		}
		if ti < len(to.Columns) && !nameAppearsAfter(from.Columns, fi, to.Columns[ti].Name) {
			return mismatchf("Extra column %s on table %s", to.Columns[ti].Name, from.Name)
		}
		// Neither name is absent downstream: it's a reordering.
		return mismatchf("Misordered column %s on table %s, should have %s first", fc.Name, from.Name, to.Columns[ti].Name)
	}
	if ti < len(to.Columns) {
		return mismatchf("Extra column %s on table %s", to.Columns[ti].Name, from.Name)
	}
	return nil
}

func nameAppearsAfter(cols []schema.Column, from int, name string) bool {
	for i := from; i < len(cols); i++ {
		if cols[i].Name == name {
			return true
		}
	}
	return false
}

// checkColumnMatch currently verifies name equality only: the
// enclosing Table.Equal compares more, but the
// mismatch engine does not yet emit a dedicated message for type,
// nullability, or default differences. This preserves the source tool's
// documented lenient behavior rather than guessing at intent.
func checkColumnMatch(tableName string, from, to schema.Column) error {
	if from.Name != to.Name {
		return mismatchf("Misordered column %s on table %s, should have %s first", from.Name, tableName, to.Name)
	}
	return nil
}

func checkPrimaryKeyMatch(from, to schema.Table) error {
	if len(from.PrimaryKeyColumns) != len(to.PrimaryKeyColumns) {
		return mismatchf("Primary key mismatch on table %s: %v vs %v", from.Name, columnNames(from, from.PrimaryKeyColumns), columnNames(to, to.PrimaryKeyColumns))
	}
	for i := range from.PrimaryKeyColumns {
		if from.PrimaryKeyColumns[i] != to.PrimaryKeyColumns[i] {
			return mismatchf("Primary key mismatch on table %s: %v vs %v", from.Name, columnNames(from, from.PrimaryKeyColumns), columnNames(to, to.PrimaryKeyColumns))
		}
	}
	return nil
}

func columnNames(t schema.Table, idx []schema.ColumnIndex) []string {
	names := make([]string, len(idx))
	for i, ci := range idx {
		if int(ci) < len(t.Columns) {
			names[i] = t.Columns[ci].Name
		}
	}
	return names
}

// checkKeysMatch sorts both key sets by (kind, name) and walks them
// lockstep, keyed on name within each kind.
func checkKeysMatch(from, to schema.Table) error {
	fk := schema.SortedKeys(from)
	tk := schema.SortedKeys(to)

	sort.SliceStable(fk, func(i, j int) bool {
		if fk[i].Kind != fk[j].Kind {
			return fk[i].Kind < fk[j].Kind
		}
		return fk[i].Name < fk[j].Name
	})

	i, j := 0, 0
	for i < len(fk) {
		f := fk[i]
		if j >= len(tk) {
			return mismatchf("Missing key %s on table %s", f.Name, from.Name)
		}
		t := tk[j]
		switch {
		case t.Kind != f.Kind:
			if t.Kind > f.Kind {
				return mismatchf("Missing key %s on table %s", f.Name, from.Name)
			}
			return mismatchf("Extra key %s on table %s", t.Name, from.Name)
		case t.Name > f.Name:
			return mismatchf("Missing key %s on table %s", f.Name, from.Name)
		case t.Name < f.Name:
			return mismatchf("Extra key %s on table %s", t.Name, from.Name)
		default:
			if !f.Equal(t) {
				return mismatchf("Key %s on table %s does not match: %v vs %v", f.Name, from.Name, f.Columns, t.Columns)
			}
			i++
			j++
		}
	}
	if j < len(tk) {
		return mismatchf("Extra key %s on table %s", tk[j].Name, from.Name)
	}
	return nil
}
