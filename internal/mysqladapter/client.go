// Package mysqladapter implements the backend adapter contract for MySQL
// on top of go-sql-driver/mysql. All work is pinned to a single pooled
// connection: session variables, the consistent-snapshot read lock, and
// transaction state are all per-connection in MySQL, so handing statements
// to whatever connection the pool picks would silently lose them.
package mysqladapter

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

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

	SessionVariables map[string]string
}

// Client is the MySQL adapter. It satisfies adapter.Adapter.
type Client struct {
	db   *sql.DB
	conn *sql.Conn

	database string

	// snapshotLockHeld tracks whether FLUSH TABLES WITH READ LOCK is
	// outstanding, so UnholdSnapshot and Close know to release it.
	snapshotLockHeld bool
}

var _ adapter.Adapter = (*Client)(nil)

// Connect opens a connection, pins it, and applies the session variables.
func Connect(ctx context.Context, p ConnParams) (*Client, error) {
	port := p.Port
	if port == 0 {
		port = 3306
	}
	cfg := mysql.NewConfig()
	cfg.User = p.Username
	cfg.Passwd = p.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", p.Host, port)
	cfg.DBName = p.Database
	cfg.InterpolateParams = true
	cfg.Loc = time.UTC

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect mysql: %w", err)
	}

	c := &Client{db: db, conn: conn, database: p.Database}
	for name, value := range p.SessionVariables {
		sqlText := fmt.Sprintf("SET SESSION %s = '%s'", quoteIdentifier(name), escapeString(value))
		if err := c.exec(ctx, sqlText); err != nil {
			c.Close(ctx)
			return nil, err
		}
	}
	return c, nil
}

func (c *Client) exec(ctx context.Context, sqlText string) error {
	if _, err := c.conn.ExecContext(ctx, sqlText); err != nil {
		return protocol.NewDatabaseError(err, sqlText)
	}
	return nil
}

func (c *Client) StartReadTransaction(ctx context.Context) error {
	if err := c.exec(ctx, "SET SESSION TRANSACTION ISOLATION LEVEL REPEATABLE READ"); err != nil {
		return err
	}
	return c.exec(ctx, "START TRANSACTION WITH CONSISTENT SNAPSHOT")
}

func (c *Client) StartWriteTransaction(ctx context.Context) error {
	if err := c.exec(ctx, "SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED"); err != nil {
		return err
	}
	return c.exec(ctx, "START TRANSACTION")
}

func (c *Client) CommitTransaction(ctx context.Context) error {
	return c.exec(ctx, "COMMIT")
}

func (c *Client) RollbackTransaction(ctx context.Context) error {
	return c.exec(ctx, "ROLLBACK")
}

// snapshotToken is the synthetic marker ExportSnapshot returns. MySQL has
// no transferable snapshot identifier; the token only proves to the peer
// that a consistent view exists on this connection.
const snapshotToken = "mysql-consistent-snapshot"

// ExportSnapshot takes the global read lock, starts a consistent-snapshot
// transaction under it, and returns the synthetic token. The lock stays
// held until UnholdSnapshot so a second same-host process could still be
// started against the identical binlog position.
func (c *Client) ExportSnapshot(ctx context.Context) (string, error) {
	if err := c.exec(ctx, "FLUSH TABLES WITH READ LOCK"); err != nil {
		return "", err
	}
	c.snapshotLockHeld = true
	if err := c.StartReadTransaction(ctx); err != nil {
		return "", err
	}
	return snapshotToken, nil
}

// ImportSnapshot always fails: only the connection that holds the read
// lock can observe the exported view.
func (c *Client) ImportSnapshot(ctx context.Context, token string) error {
	return protocol.NewDatabaseError(
		fmt.Errorf("MySQL snapshots cannot be imported by a second connection"), "")
}

// UnholdSnapshot releases the read lock; the consistent-snapshot
// transaction started under it keeps its repeatable-read view.
func (c *Client) UnholdSnapshot(ctx context.Context) error {
	if !c.snapshotLockHeld {
		return nil
	}
	if err := c.exec(ctx, "UNLOCK TABLES"); err != nil {
		return err
	}
	c.snapshotLockHeld = false
	return nil
}

func (c *Client) DisableReferentialIntegrity(ctx context.Context) error {
	if err := c.exec(ctx, "SET SESSION FOREIGN_KEY_CHECKS = 0"); err != nil {
		return err
	}
	return c.exec(ctx, "SET SESSION UNIQUE_CHECKS = 0")
}

func (c *Client) EnableReferentialIntegrity(ctx context.Context) error {
	if err := c.exec(ctx, "SET SESSION FOREIGN_KEY_CHECKS = 1"); err != nil {
		return err
	}
	return c.exec(ctx, "SET SESSION UNIQUE_CHECKS = 1")
}

func (c *Client) Execute(ctx context.Context, sqlText string) (int64, error) {
	res, err := c.conn.ExecContext(ctx, sqlText)
	if err != nil {
		return 0, protocol.NewDatabaseError(err, sqlText)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, protocol.NewDatabaseError(err, sqlText)
	}
	return n, nil
}

// Query runs sqlText and feeds each row to handler as a packed cell slice,
// converting per the column type names of the result descriptor.
func (c *Client) Query(ctx context.Context, sqlText string, handler adapter.RowHandler) error {
	rows, err := c.conn.QueryContext(ctx, sqlText)
	if err != nil {
		return protocol.NewDatabaseError(err, sqlText)
	}
	defer rows.Close()

	var conv []cellConverter
	var raw []sql.RawBytes
	var dest []any
	for rows.Next() {
		if conv == nil {
			types, err := rows.ColumnTypes()
			if err != nil {
				return protocol.NewDatabaseError(err, sqlText)
			}
			conv = conversionTable(types)
			raw = make([]sql.RawBytes, len(types))
			dest = make([]any, len(types))
			for i := range raw {
				dest[i] = &raw[i]
			}
		}
		if err := rows.Scan(dest...); err != nil {
			return protocol.NewDatabaseError(err, sqlText)
		}
		cells, err := convertRow(conv, raw)
		if err != nil {
			return protocol.NewDatabaseError(err, sqlText)
		}
		if err := handler(cells); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return protocol.NewDatabaseError(err, sqlText)
	}
	return nil
}

func (c *Client) EscapeString(s string) string { return escapeString(s) }

func (c *Client) EscapeBytea(b []byte) string { return escapeBytea(b) }

func (c *Client) EscapeSpatial(wkb []byte, srid int) string {
	return fmt.Sprintf("ST_GeomFromWKB(%s, %d)", escapeBytea(wkb), srid)
}

func (c *Client) EscapeColumnValue(col schema.Column, raw string) string {
	return escapeColumnValue(col, raw)
}

func (c *Client) QuoteIdentifier(name string) string { return quoteIdentifier(name) }

// SupportedFlags reports the flag bits MySQL can faithfully persist. The
// time_zone and identity_generated_always flags are Postgres-only; SRID-less
// geometry is exactly what MySQL's spatial types are.
func (c *Client) SupportedFlags() schema.ColumnFlags {
	return schema.NewColumnFlags().
		Set(schema.FlagMySQLTimestamp).
		Set(schema.FlagMySQLOnUpdateTimestamp).
		Set(schema.FlagSimpleGeometry)
}

func (c *Client) Close(ctx context.Context) error {
	if c.snapshotLockHeld {
		c.exec(ctx, "UNLOCK TABLES")
		c.snapshotLockHeld = false
	}
	err := c.conn.Close()
	if cerr := c.db.Close(); err == nil {
		err = cerr
	}
	return err
}
