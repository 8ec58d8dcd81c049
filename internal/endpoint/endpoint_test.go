package endpoint

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/Limetric/kitchensync/internal/adapter"
	"github.com/Limetric/kitchensync/internal/packedvalue"
	"github.com/Limetric/kitchensync/internal/protocol"
	"github.com/Limetric/kitchensync/internal/schema"
)

// fakeAdapter implements adapter.Adapter over a fixed schema, recording
// the lifecycle calls the driver loop makes.
type fakeAdapter struct {
	db schema.Database

	readTxns  int
	rollbacks int
	commits   int
	snapshots int
	imported  []string
	unheld    int
}

func (f *fakeAdapter) DatabaseSchema(ctx context.Context) (schema.Database, error) {
	return f.db, nil
}
func (f *fakeAdapter) ConvertUnsupportedSchema(db *schema.Database) {}
func (f *fakeAdapter) StartReadTransaction(ctx context.Context) error {
	f.readTxns++
	return nil
}
func (f *fakeAdapter) StartWriteTransaction(ctx context.Context) error { return nil }
func (f *fakeAdapter) CommitTransaction(ctx context.Context) error {
	f.commits++
	return nil
}
func (f *fakeAdapter) RollbackTransaction(ctx context.Context) error {
	f.rollbacks++
	return nil
}
func (f *fakeAdapter) ExportSnapshot(ctx context.Context) (string, error) {
	f.snapshots++
	return "snapshot-token", nil
}
func (f *fakeAdapter) ImportSnapshot(ctx context.Context, token string) error {
	f.imported = append(f.imported, token)
	return nil
}
func (f *fakeAdapter) UnholdSnapshot(ctx context.Context) error {
	f.unheld++
	return nil
}
func (f *fakeAdapter) DisableReferentialIntegrity(ctx context.Context) error { return nil }
func (f *fakeAdapter) EnableReferentialIntegrity(ctx context.Context) error  { return nil }
func (f *fakeAdapter) Execute(ctx context.Context, sql string) (int64, error) {
	return 0, nil
}
func (f *fakeAdapter) Query(ctx context.Context, sql string, handler adapter.RowHandler) error {
	return nil
}
func (f *fakeAdapter) EscapeString(s string) string                            { return s }
func (f *fakeAdapter) EscapeBytea(b []byte) string                             { return "" }
func (f *fakeAdapter) EscapeSpatial(wkb []byte, srid int) string               { return "" }
func (f *fakeAdapter) EscapeColumnValue(col schema.Column, raw string) string  { return raw }
func (f *fakeAdapter) QuoteIdentifier(name string) string                      { return name }
func (f *fakeAdapter) SupportedFlags() schema.ColumnFlags                      { return nil }
func (f *fakeAdapter) ColumnDefinition(t schema.Table, c schema.Column) string { return "" }
func (f *fakeAdapter) Close(ctx context.Context) error                         { return nil }

// pipePair builds two connected streams, one per peer.
func pipePair() (driver, server *protocol.Stream, cleanup func()) {
	toServerR, toServerW := io.Pipe()
	toDriverR, toDriverW := io.Pipe()
	driver = protocol.New(toDriverR, toServerW)
	server = protocol.New(toServerR, toDriverW)
	cleanup = func() {
		toServerW.Close()
		toDriverW.Close()
	}
	return driver, server, cleanup
}

func runFromAsync(t *testing.T, server *protocol.Stream, ad adapter.Adapter) chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		done <- RunFrom(context.Background(), server, ad, FromOptions{})
	}()
	return done
}

func testTable(name string, colNames ...string) schema.Table {
	cols := make([]schema.Column, len(colNames))
	for i, n := range colNames {
		cols[i] = schema.Column{Name: n, Kind: schema.KindText}
	}
	return schema.Table{Name: name, Columns: cols}
}

func TestRunFromProtocolNegotiation(t *testing.T) {
	driver, server, cleanup := pipePair()
	defer cleanup()

	ad := &fakeAdapter{}
	done := runFromAsync(t, server, ad)

	if err := driver.WriteCommand(protocol.CmdProtocol, packedvalue.Int(9)); err != nil {
		t.Fatalf("write protocol: %v", err)
	}
	reply, err := driver.ReadReply()
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if len(reply) != 1 {
		t.Fatalf("reply has %d elements, want 1", len(reply))
	}
	if v, _ := reply[0].AsInt(); v != 9 {
		t.Errorf("negotiated %d, want 9", v)
	}

	if err := driver.WriteCommand(protocol.CmdQuit); err != nil {
		t.Fatalf("write quit: %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("RunFrom = %v, want nil", err)
	}
}

func TestRunFromNewerPeerNegotiatesDown(t *testing.T) {
	driver, server, cleanup := pipePair()
	defer cleanup()

	done := runFromAsync(t, server, &fakeAdapter{})

	driver.WriteCommand(protocol.CmdProtocol, packedvalue.Int(12))
	reply, err := driver.ReadReply()
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if v, _ := reply[0].AsInt(); v != protocol.LatestSupported {
		t.Errorf("negotiated %d, want %d", v, protocol.LatestSupported)
	}
	driver.WriteCommand(protocol.CmdQuit)
	<-done
}

func TestRunFromRejectsAncientPeer(t *testing.T) {
	driver, server, cleanup := pipePair()
	defer cleanup()

	done := runFromAsync(t, server, &fakeAdapter{})

	driver.WriteCommand(protocol.CmdProtocol, packedvalue.Int(6))
	err := <-done
	var pv *protocol.ProtocolVersionError
	if !errors.As(err, &pv) {
		t.Fatalf("RunFrom = %v, want ProtocolVersionError", err)
	}
}

func TestRunFromSchemaExchange(t *testing.T) {
	driver, server, cleanup := pipePair()
	defer cleanup()

	want := schema.Database{Tables: []schema.Table{testTable("users", "id", "name")}}
	done := runFromAsync(t, server, &fakeAdapter{db: want})

	driver.WriteCommand(protocol.CmdProtocol, packedvalue.Int(9))
	driver.ReadReply()

	driver.WriteCommand(protocol.CmdSchema)
	reply, err := driver.ReadReply()
	if err != nil {
		t.Fatalf("read schema reply: %v", err)
	}
	got, err := schema.Decode(reply[0])
	if err != nil {
		t.Fatalf("decode schema: %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("schema round trip mismatch: got %+v", got)
	}

	driver.WriteCommand(protocol.CmdQuit)
	<-done
}

func TestRunFromSnapshotLifecycle(t *testing.T) {
	driver, server, cleanup := pipePair()
	defer cleanup()

	ad := &fakeAdapter{}
	done := runFromAsync(t, server, ad)

	driver.WriteCommand(protocol.CmdProtocol, packedvalue.Int(9))
	driver.ReadReply()

	driver.WriteCommand(protocol.CmdExportSnapshot)
	reply, err := driver.ReadReply()
	if err != nil {
		t.Fatalf("export_snapshot: %v", err)
	}
	if token, _ := reply[0].AsString(); token != "snapshot-token" {
		t.Errorf("token = %q", token)
	}

	driver.WriteCommand(protocol.CmdUnholdSnapshot)
	if _, err := driver.ReadReply(); err != nil {
		t.Fatalf("unhold_snapshot: %v", err)
	}

	driver.WriteCommand(protocol.CmdQuit)
	if err := <-done; err != nil {
		t.Fatalf("RunFrom = %v", err)
	}
	if ad.snapshots != 1 || ad.unheld != 1 {
		t.Errorf("snapshots = %d, unheld = %d, want 1/1", ad.snapshots, ad.unheld)
	}
	if ad.rollbacks != 1 {
		t.Errorf("rollbacks = %d, want 1 (open transaction rolled back on exit)", ad.rollbacks)
	}
}

func TestRunFromRejectsCommandsBeforeNegotiation(t *testing.T) {
	driver, server, cleanup := pipePair()
	defer cleanup()

	done := runFromAsync(t, server, &fakeAdapter{})

	driver.WriteCommand(protocol.CmdSchema)
	err := <-done
	var unsupported *protocol.UnsupportedError
	if !errors.As(err, &unsupported) {
		t.Fatalf("RunFrom = %v, want UnsupportedError", err)
	}
}

func TestRunFromConnectionLost(t *testing.T) {
	_, server, cleanup := pipePair()

	done := runFromAsync(t, server, &fakeAdapter{})
	cleanup()

	err := <-done
	if !errors.Is(err, protocol.ErrConnectionLost) {
		t.Fatalf("RunFrom = %v, want ConnectionLost", err)
	}
}

func TestRunToAgainstRunFrom(t *testing.T) {
	driver, server, cleanup := pipePair()
	defer cleanup()

	db := schema.Database{Tables: []schema.Table{testTable("users", "id", "name")}}
	fromAd := &fakeAdapter{db: db}
	toAd := &fakeAdapter{db: db}

	fromDone := runFromAsync(t, server, fromAd)

	if err := RunTo(context.Background(), driver, toAd, ToOptions{}); err != nil {
		t.Fatalf("RunTo = %v", err)
	}
	if err := <-fromDone; err != nil {
		t.Fatalf("RunFrom = %v", err)
	}
	if fromAd.readTxns != 1 {
		t.Errorf("from-side read transactions = %d, want 1", fromAd.readTxns)
	}
	if toAd.readTxns != 1 {
		t.Errorf("to-side read transactions = %d, want 1", toAd.readTxns)
	}
}

func TestRunToSchemaMismatchIsFatal(t *testing.T) {
	driver, server, cleanup := pipePair()
	defer cleanup()

	fromAd := &fakeAdapter{db: schema.Database{Tables: []schema.Table{testTable("a"), testTable("b")}}}
	toAd := &fakeAdapter{db: schema.Database{Tables: []schema.Table{testTable("a")}}}

	fromDone := runFromAsync(t, server, fromAd)
	defer func() { cleanup(); <-fromDone }()

	err := RunTo(context.Background(), driver, toAd, ToOptions{})
	if err == nil || err.Error() != "Missing table b" {
		t.Fatalf("RunTo = %v, want Missing table b", err)
	}
}

func TestRunToSnapshotShare(t *testing.T) {
	driver, server, cleanup := pipePair()
	defer cleanup()

	db := schema.Database{Tables: []schema.Table{testTable("t", "x")}}
	fromAd := &fakeAdapter{db: db}

	fromDone := runFromAsync(t, server, fromAd)

	if err := RunTo(context.Background(), driver, &fakeAdapter{db: db}, ToOptions{ShareSnapshot: true}); err != nil {
		t.Fatalf("RunTo = %v", err)
	}
	<-fromDone
	if fromAd.snapshots != 1 {
		t.Errorf("peer snapshots = %d, want 1", fromAd.snapshots)
	}
	if fromAd.unheld != 1 {
		t.Errorf("peer unholds = %d, want 1", fromAd.unheld)
	}
}

// recordingSyncer records the tables handed to it.
type recordingSyncer struct{ tables []string }

func (r *recordingSyncer) Sync(ctx context.Context, peer *protocol.Stream, table schema.Table) error {
	r.tables = append(r.tables, table.Name)
	return nil
}

func TestRunToDispatchesTablesInPeerOrder(t *testing.T) {
	driver, server, cleanup := pipePair()
	defer cleanup()

	// Largest-first order from the peer is preserved, not sorted.
	db := schema.Database{Tables: []schema.Table{
		testTable("zebra", "id"),
		testTable("alpha", "id"),
	}}
	fromDone := runFromAsync(t, server, &fakeAdapter{db: db})

	syncer := &recordingSyncer{}
	if err := RunTo(context.Background(), driver, &fakeAdapter{db: db}, ToOptions{Syncer: syncer}); err != nil {
		t.Fatalf("RunTo = %v", err)
	}
	<-fromDone

	if len(syncer.tables) != 2 || syncer.tables[0] != "zebra" || syncer.tables[1] != "alpha" {
		t.Errorf("sync order = %v, want [zebra alpha]", syncer.tables)
	}
}

func TestRunToIgnoreTablesSkipsSync(t *testing.T) {
	driver, server, cleanup := pipePair()
	defer cleanup()

	db := schema.Database{Tables: []schema.Table{
		testTable("keep", "id"),
		testTable("skip", "id"),
	}}
	fromDone := runFromAsync(t, server, &fakeAdapter{db: db})

	syncer := &recordingSyncer{}
	opts := ToOptions{IgnoreTables: []string{"skip"}, Syncer: syncer}
	if err := RunTo(context.Background(), driver, &fakeAdapter{db: db}, opts); err != nil {
		t.Fatalf("RunTo = %v", err)
	}
	<-fromDone

	if len(syncer.tables) != 1 || syncer.tables[0] != "keep" {
		t.Errorf("synced tables = %v, want [keep]", syncer.tables)
	}
}
