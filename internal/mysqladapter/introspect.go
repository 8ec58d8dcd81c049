package mysqladapter

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Limetric/kitchensync/internal/protocol"
	"github.com/Limetric/kitchensync/internal/schema"
)

// DatabaseSchema introspects every base table in the connected database,
// largest first, mirroring the Postgres side's ordering so both peers walk
// tables in the same heavy-tables-early sequence.
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
	const sqlText = `
		SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
		 WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE'
		 ORDER BY COALESCE(DATA_LENGTH, 0) + COALESCE(INDEX_LENGTH, 0) DESC, TABLE_NAME ASC`
	rows, err := c.conn.QueryContext(ctx, sqlText, c.database)
	if err != nil {
		return nil, protocol.NewDatabaseError(err, sqlText)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, protocol.NewDatabaseError(err, sqlText)
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

	pk, keys, err := c.introspectIndexes(ctx, name, t)
	if err != nil {
		return schema.Table{}, err
	}
	t.Keys = keys

	switch {
	case len(pk) > 0:
		t.PrimaryKeyKind = schema.ExplicitPrimaryKey
		t.PrimaryKeyColumns = pk
	default:
		if key, ok := suitableUniqueKey(t); ok {
			t.PrimaryKeyKind = schema.SuitableUniqueKey
			t.PrimaryKeyColumns = append(t.PrimaryKeyColumns, key.Columns...)
		} else {
			t.PrimaryKeyKind = schema.NoAvailableKey
		}
	}
	return t, nil
}

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
	const sqlText = `
		SELECT COLUMN_NAME, DATA_TYPE, COLUMN_TYPE,
		       COALESCE(CHARACTER_MAXIMUM_LENGTH, 0),
		       COALESCE(NUMERIC_PRECISION, 0),
		       COALESCE(NUMERIC_SCALE, 0),
		       IS_NULLABLE, COLUMN_DEFAULT, EXTRA
		  FROM INFORMATION_SCHEMA.COLUMNS
		 WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		 ORDER BY ORDINAL_POSITION`
	rows, err := c.conn.QueryContext(ctx, sqlText, c.database, table)
	if err != nil {
		return nil, protocol.NewDatabaseError(err, sqlText)
	}
	defer rows.Close()

	var cols []schema.Column
	for rows.Next() {
		var (
			name, dataType, columnType, nullable, extra string
			charMaxLen, precision, scale                int64
			dflt                                        sql.NullString
		)
		if err := rows.Scan(&name, &dataType, &columnType, &charMaxLen, &precision, &scale, &nullable, &dflt, &extra); err != nil {
			return nil, protocol.NewDatabaseError(err, sqlText)
		}

		col := mapColumnType(strings.ToLower(dataType), strings.ToLower(columnType), charMaxLen, precision, scale)
		col.Name = name
		col.Nullable = nullable == "YES"
		col.DefaultKind, col.DefaultValue = parseDefault(dflt.String, dflt.Valid, extra)
		if onUpdateTimestamp(extra) {
			col.Flags = col.Flags.Set(schema.FlagMySQLOnUpdateTimestamp)
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

// introspectIndexes reads STATISTICS once per table and splits the result
// into the primary key's column positions and the remaining keys in the
// stable (kind, name) order.
func (c *Client) introspectIndexes(ctx context.Context, table string, t schema.Table) ([]schema.ColumnIndex, []schema.Key, error) {
	const sqlText = `
		SELECT INDEX_NAME, COLUMN_NAME, NON_UNIQUE, INDEX_TYPE
		  FROM INFORMATION_SCHEMA.STATISTICS
		 WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		 ORDER BY INDEX_NAME, SEQ_IN_INDEX`
	rows, err := c.conn.QueryContext(ctx, sqlText, c.database, table)
	if err != nil {
		return nil, nil, protocol.NewDatabaseError(err, sqlText)
	}
	defer rows.Close()

	var pk []schema.ColumnIndex
	var keys []schema.Key
	byName := map[string]int{}
	for rows.Next() {
		var (
			idxName, colName, indexType string
			nonUnique                   int
		)
		if err := rows.Scan(&idxName, &colName, &nonUnique, &indexType); err != nil {
			return nil, nil, protocol.NewDatabaseError(err, sqlText)
		}
		idx, ok := t.IndexOfColumn(colName)
		if !ok {
			continue
		}
		if idxName == "PRIMARY" {
			pk = append(pk, idx)
			continue
		}
		pos, seen := byName[idxName]
		if !seen {
			kind := schema.KeyStandard
			if nonUnique == 0 {
				kind = schema.KeyUnique
			}
			if strings.EqualFold(indexType, "SPATIAL") {
				kind = schema.KeySpatial
			}
			keys = append(keys, schema.Key{Name: idxName, Kind: kind})
			pos = len(keys) - 1
			byName[idxName] = pos
		}
		keys[pos].Columns = append(keys[pos].Columns, idx)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return pk, schema.SortedKeys(schema.Table{Keys: keys}), nil
}
