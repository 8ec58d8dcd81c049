// Package adapter defines the uniform capability contract each database
// engine adapter (PostgreSQL, MySQL, ...) must implement. No engine code
// lives here — only the interfaces and the row-pack/row-handler types the
// endpoint driver and schema-match engine are written against.
package adapter

import (
	"context"

	"github.com/Limetric/kitchensync/internal/packedvalue"
	"github.com/Limetric/kitchensync/internal/schema"
)

// RowHandler is invoked once per row produced by Query. cells correspond
// 1:1 with the columns of the query, encoded per the adapter's own
// column-conversion table.
type RowHandler func(cells []packedvalue.Value) error

// Adapter is the full backend capability set. Each adapter value owns one
// live connection and is never shared across goroutines.
type Adapter interface {
	// DatabaseSchema introspects the connected database.
	DatabaseSchema(ctx context.Context) (schema.Database, error)

	// ConvertUnsupportedSchema applies engine-specific lossy normalization
	// to a peer's schema before comparison.
	ConvertUnsupportedSchema(db *schema.Database)

	StartReadTransaction(ctx context.Context) error
	StartWriteTransaction(ctx context.Context) error
	CommitTransaction(ctx context.Context) error
	RollbackTransaction(ctx context.Context) error

	ExportSnapshot(ctx context.Context) (string, error)
	ImportSnapshot(ctx context.Context, token string) error
	UnholdSnapshot(ctx context.Context) error

	DisableReferentialIntegrity(ctx context.Context) error
	EnableReferentialIntegrity(ctx context.Context) error

	Execute(ctx context.Context, sql string) (int64, error)
	Query(ctx context.Context, sql string, handler RowHandler) error

	EscapeString(s string) string
	EscapeBytea(b []byte) string
	EscapeSpatial(ewkb []byte, srid int) string
	EscapeColumnValue(col schema.Column, raw string) string

	QuoteIdentifier(name string) string

	SupportedFlags() schema.ColumnFlags

	ColumnDefinition(table schema.Table, col schema.Column) string

	// Close releases the underlying connection.
	Close(ctx context.Context) error
}
