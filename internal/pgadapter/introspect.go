package pgadapter

import (
	"context"
	"fmt"

	"github.com/Limetric/kitchensync/internal/protocol"
	"github.com/Limetric/kitchensync/internal/schema"
)

// DatabaseSchema introspects every ordinary table in the current search
// path. Tables come back largest first so the synchronization algorithm
// can start on the heavy ones early.
func (c *Client) DatabaseSchema(ctx context.Context) (schema.Database, error) {
	names, err := c.tableNames(ctx)
	if err != nil {
		return schema.Database{}, err
	}

	db := schema.Database{Tables: make([]schema.Table, 0, len(names))}
	for _, name := range names {
		t, err := c.introspectTable(ctx, name)
		if err != nil {
			return schema.Database{}, fmt.Errorf("table %s: %w", name, err)
		}
		db.Tables = append(db.Tables, t)
	}
	return db, nil
}

func (c *Client) tableNames(ctx context.Context) ([]string, error) {
	const sql = `
		SELECT c.relname
		  FROM pg_class c
		  JOIN pg_namespace n ON n.oid = c.relnamespace
		 WHERE c.relkind = 'r'
		   AND n.nspname = ANY (current_schemas(false))
		 ORDER BY pg_relation_size(c.oid) DESC, c.relname ASC`
	rows, err := c.conn.Query(ctx, sql)
	if err != nil {
		return nil, protocol.NewDatabaseError(err, sql)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, protocol.NewDatabaseError(err, sql)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (c *Client) introspectTable(ctx context.Context, name string) (schema.Table, error) {
	t := schema.Table{Name: name}

	cols, err := c.introspectColumns(ctx, name)
	if err != nil {
		return schema.Table{}, err
	}
	t.Columns = cols

	pk, err := c.introspectPrimaryKey(ctx, name)
	if err != nil {
		return schema.Table{}, err
	}

	keys, err := c.introspectKeys(ctx, name, t)
	if err != nil {
		return schema.Table{}, err
	}
	t.Keys = keys

	switch {
	case len(pk) > 0:
		t.PrimaryKeyKind = schema.ExplicitPrimaryKey
		for _, colName := range pk {
			idx, ok := t.IndexOfColumn(colName)
			if !ok {
				return schema.Table{}, fmt.Errorf("primary key names unknown column %s", colName)
			}
			t.PrimaryKeyColumns = append(t.PrimaryKeyColumns, idx)
		}
	default:
		// No explicit primary key: fall back to the first unique key
		// covering only non-nullable columns, in (kind, name) order.
		if key, ok := suitableUniqueKey(t); ok {
			t.PrimaryKeyKind = schema.SuitableUniqueKey
			t.PrimaryKeyColumns = append(t.PrimaryKeyColumns, key.Columns...)
		} else {
			t.PrimaryKeyKind = schema.NoAvailableKey
		}
	}
	return t, nil
}

// suitableUniqueKey picks the first unique key whose columns are all
// NOT NULL, walking keys in the stable (kind, name) order.
func suitableUniqueKey(t schema.Table) (schema.Key, bool) {
	for _, k := range schema.SortedKeys(t) {
		if k.Kind != schema.KeyUnique {
			continue
		}
		allNotNull := true
		for _, ci := range k.Columns {
			if t.Columns[ci].Nullable {
				allNotNull = false
				break
			}
		}
		if allNotNull {
			return k, true
		}
	}
	return schema.Key{}, false
}

func (c *Client) introspectColumns(ctx context.Context, table string) ([]schema.Column, error) {
	const sql = `
		SELECT a.attname,
		       format_type(a.atttypid, a.atttypmod),
		       a.attnotnull,
		       a.atthasdef,
		       COALESCE(pg_get_expr(d.adbin, d.adrelid), ''),
		       a.attidentity
		  FROM pg_attribute a
		  JOIN pg_class c ON c.oid = a.attrelid
		  JOIN pg_namespace n ON n.oid = c.relnamespace
		  LEFT JOIN pg_attrdef d ON d.adrelid = a.attrelid AND d.adnum = a.attnum
		 WHERE c.relname = $1
		   AND n.nspname = ANY (current_schemas(false))
		   AND a.attnum > 0
		   AND NOT a.attisdropped
		 ORDER BY a.attnum`
	rows, err := c.conn.Query(ctx, sql, table)
	if err != nil {
		return nil, protocol.NewDatabaseError(err, sql)
	}
	defer rows.Close()

	var cols []schema.Column
	for rows.Next() {
		var (
			name, formatType, defaultExpr, identity string
			notNull, hasDefault                     bool
		)
		if err := rows.Scan(&name, &formatType, &notNull, &hasDefault, &defaultExpr, &identity); err != nil {
			return nil, protocol.NewDatabaseError(err, sql)
		}

		col := parseFormatType(formatType)
		col.Name = name
		col.Nullable = !notNull

		switch identity {
		case "a":
			col.DefaultKind = schema.Sequence
			col.Flags = col.Flags.Set(schema.FlagIdentityGeneratedAlways)
		case "d":
			col.DefaultKind = schema.Sequence
		default:
			if hasDefault {
				col.DefaultKind, col.DefaultValue = parseDefault(defaultExpr)
			} else {
				col.DefaultKind = schema.NoDefault
			}
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

func (c *Client) introspectPrimaryKey(ctx context.Context, table string) ([]string, error) {
	const sql = `
		SELECT kcu.column_name
		  FROM information_schema.table_constraints tc
		  JOIN information_schema.key_column_usage kcu
		    ON kcu.constraint_name = tc.constraint_name
		   AND kcu.table_schema = tc.table_schema
		   AND kcu.table_name = tc.table_name
		 WHERE tc.constraint_type = 'PRIMARY KEY'
		   AND tc.table_name = $1
		   AND tc.table_schema = ANY (current_schemas(false))
		 ORDER BY kcu.ordinal_position`
	rows, err := c.conn.Query(ctx, sql, table)
	if err != nil {
		return nil, protocol.NewDatabaseError(err, sql)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, protocol.NewDatabaseError(err, sql)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// introspectKeys collects every non-primary index, one row per indexed
// column in index-column order. GiST indexes are classified spatial.
func (c *Client) introspectKeys(ctx context.Context, table string, t schema.Table) ([]schema.Key, error) {
	const sql = `
		SELECT i.relname,
		       x.indisunique,
		       am.amname,
		       a.attname
		  FROM pg_index x
		  JOIN pg_class i ON i.oid = x.indexrelid
		  JOIN pg_class c ON c.oid = x.indrelid
		  JOIN pg_namespace n ON n.oid = c.relnamespace
		  JOIN pg_am am ON am.oid = i.relam
		  JOIN unnest(x.indkey) WITH ORDINALITY AS k(attnum, ord) ON true
		  JOIN pg_attribute a ON a.attrelid = c.oid AND a.attnum = k.attnum
		 WHERE c.relname = $1
		   AND n.nspname = ANY (current_schemas(false))
		   AND NOT x.indisprimary
		 ORDER BY i.relname, k.ord`
	rows, err := c.conn.Query(ctx, sql, table)
	if err != nil {
		return nil, protocol.NewDatabaseError(err, sql)
	}
	defer rows.Close()

	var keys []schema.Key
	byName := map[string]int{}
	for rows.Next() {
		var (
			name, amName, colName string
			unique                bool
		)
		if err := rows.Scan(&name, &unique, &amName, &colName); err != nil {
			return nil, protocol.NewDatabaseError(err, sql)
		}
		idx, ok := t.IndexOfColumn(colName)
		if !ok {
			// Not one of the table's columns: only this row is skipped,
			// and the key keeps its other columns.
			continue
		}
		pos, seen := byName[name]
		if !seen {
			kind := schema.KeyStandard
			if unique {
				kind = schema.KeyUnique
			}
			if amName == "gist" {
				kind = schema.KeySpatial
			}
			keys = append(keys, schema.Key{Name: name, Kind: kind})
			pos = len(keys) - 1
			byName[name] = pos
		}
		keys[pos].Columns = append(keys[pos].Columns, idx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sortKeysStable(keys), nil
}

// sortKeysStable orders keys (kind, name), the cross-engine stable order
// the schema-match engine requires.
func sortKeysStable(keys []schema.Key) []schema.Key {
	return schema.SortedKeys(schema.Table{Keys: keys})
}
