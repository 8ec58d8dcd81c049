// Package pgadapter implements the backend adapter contract for
// PostgreSQL on top of pgx. One Client owns one serial connection; it is
// never shared across goroutines.
package pgadapter

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/Limetric/kitchensync/internal/adapter"
	"github.com/Limetric/kitchensync/internal/protocol"
	"github.com/Limetric/kitchensync/internal/schema"
)

// ConnParams holds everything needed to open one connection.
type ConnParams struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string

	// SessionVariables are SET after connecting, before any other work.
	SessionVariables map[string]string
}

// Client is the PostgreSQL adapter. It satisfies adapter.Adapter.
type Client struct {
	conn *pgx.Conn

	// geometryOIDs is the set of type OIDs that resolve to PostGIS
	// geometry on this server; collected once at connect time because the
	// OID is assigned at extension install and is not a constant.
	geometryOIDs map[uint32]bool
}

var _ adapter.Adapter = (*Client)(nil)

// Connect opens a connection and applies the session variables.
func Connect(ctx context.Context, p ConnParams) (*Client, error) {
	port := p.Port
	if port == 0 {
		port = 5432
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.Username, p.Password),
		Host:   p.Host + ":" + strconv.Itoa(port),
		Path:   "/" + p.Database,
	}
	conn, err := pgx.Connect(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("connect postgresql: %w", err)
	}

	c := &Client{conn: conn}
	for name, value := range p.SessionVariables {
		sql := fmt.Sprintf("SET %s TO '%s'", quoteIdentifier(name), escapeString(value))
		if _, err := conn.Exec(ctx, sql); err != nil {
			conn.Close(ctx)
			return nil, protocol.NewDatabaseError(err, sql)
		}
	}
	if err := c.loadGeometryOIDs(ctx); err != nil {
		conn.Close(ctx)
		return nil, err
	}
	return c, nil
}

// loadGeometryOIDs collects the PostGIS geometry type OIDs, if the
// extension is installed. An empty set just means no spatial columns will
// be recognized in row results.
func (c *Client) loadGeometryOIDs(ctx context.Context) error {
	const sql = `SELECT oid FROM pg_type WHERE typname = 'geometry'`
	rows, err := c.conn.Query(ctx, sql)
	if err != nil {
		return protocol.NewDatabaseError(err, sql)
	}
	defer rows.Close()

	c.geometryOIDs = map[uint32]bool{}
	for rows.Next() {
		var oid uint32
		if err := rows.Scan(&oid); err != nil {
			return protocol.NewDatabaseError(err, sql)
		}
		c.geometryOIDs[oid] = true
	}
	return rows.Err()
}

func (c *Client) exec(ctx context.Context, sql string) error {
	if _, err := c.conn.Exec(ctx, sql); err != nil {
		return protocol.NewDatabaseError(err, sql)
	}
	return nil
}

func (c *Client) StartReadTransaction(ctx context.Context) error {
	return c.exec(ctx, "START TRANSACTION READ ONLY ISOLATION LEVEL REPEATABLE READ")
}

func (c *Client) StartWriteTransaction(ctx context.Context) error {
	return c.exec(ctx, "START TRANSACTION ISOLATION LEVEL READ COMMITTED")
}

func (c *Client) CommitTransaction(ctx context.Context) error {
	return c.exec(ctx, "COMMIT")
}

func (c *Client) RollbackTransaction(ctx context.Context) error {
	return c.exec(ctx, "ROLLBACK")
}

// ExportSnapshot begins the read transaction and returns the token another
// connection to the same server can import for the same consistent view.
func (c *Client) ExportSnapshot(ctx context.Context) (string, error) {
	if err := c.StartReadTransaction(ctx); err != nil {
		return "", err
	}
	const sql = "SELECT pg_export_snapshot()"
	var token string
	if err := c.conn.QueryRow(ctx, sql).Scan(&token); err != nil {
		return "", protocol.NewDatabaseError(err, sql)
	}
	return token, nil
}

func (c *Client) ImportSnapshot(ctx context.Context, token string) error {
	if err := c.StartReadTransaction(ctx); err != nil {
		return err
	}
	return c.exec(ctx, fmt.Sprintf("SET TRANSACTION SNAPSHOT '%s'", escapeString(token)))
}

// UnholdSnapshot is a no-op: Postgres snapshots persist for the exporting
// transaction's lifetime without any extra lock.
func (c *Client) UnholdSnapshot(ctx context.Context) error { return nil }

func (c *Client) DisableReferentialIntegrity(ctx context.Context) error {
	return c.exec(ctx, "SET CONSTRAINTS ALL DEFERRED")
}

// EnableReferentialIntegrity is a no-op: deferred constraints are checked
// at commit regardless.
func (c *Client) EnableReferentialIntegrity(ctx context.Context) error { return nil }

func (c *Client) Execute(ctx context.Context, sql string) (int64, error) {
	tag, err := c.conn.Exec(ctx, sql)
	if err != nil {
		return 0, protocol.NewDatabaseError(err, sql)
	}
	return tag.RowsAffected(), nil
}

// Query runs sql through the simple protocol (so every cell arrives in
// text format, which is what the conversion table expects) and feeds each
// row to handler as a packed cell slice.
func (c *Client) Query(ctx context.Context, sql string, handler adapter.RowHandler) error {
	rows, err := c.conn.Query(ctx, sql, pgx.QueryExecModeSimpleProtocol)
	if err != nil {
		return protocol.NewDatabaseError(err, sql)
	}
	defer rows.Close()

	var conv []cellConverter
	for rows.Next() {
		if conv == nil {
			conv = c.conversionTable(rows.FieldDescriptions())
		}
		raw := rows.RawValues()
		cells, err := convertRow(conv, raw)
		if err != nil {
			return protocol.NewDatabaseError(err, sql)
		}
		if err := handler(cells); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return protocol.NewDatabaseError(err, sql)
	}
	return nil
}

func (c *Client) EscapeString(s string) string { return escapeString(s) }

func (c *Client) EscapeBytea(b []byte) string { return escapeBytea(b) }

func (c *Client) EscapeSpatial(ewkb []byte, srid int) string {
	return fmt.Sprintf("ST_GeomFromWKB(%s, %d)", escapeBytea(ewkb), srid)
}

func (c *Client) EscapeColumnValue(col schema.Column, raw string) string {
	return escapeColumnValue(col, raw)
}

func (c *Client) QuoteIdentifier(name string) string { return quoteIdentifier(name) }

// SupportedFlags reports the flag bits Postgres can faithfully persist:
// time zone awareness and always-generated identity columns. The MySQL
// timestamp flags and the SRID-less simple_geometry flag have no Postgres
// representation.
func (c *Client) SupportedFlags() schema.ColumnFlags {
	return schema.NewColumnFlags().
		Set(schema.FlagTimeZone).
		Set(schema.FlagIdentityGeneratedAlways)
}

func (c *Client) Close(ctx context.Context) error { return c.conn.Close(ctx) }
