package endpoint

import (
	"context"

	"github.com/Limetric/kitchensync/internal/adapter"
	"github.com/Limetric/kitchensync/internal/protocol"
	"github.com/Limetric/kitchensync/internal/schema"
)

// RangeSyncer is the "to" side's hook into the row-content hash/diff
// engine, which is maintained outside this repository. One Sync call is
// made per table, in the order the "from" side's schema lists them; the
// implementation issues whatever range/hash/rows/idle traffic it needs
// against the peer and applies the resulting rows through the adapter.
type RangeSyncer interface {
	Sync(ctx context.Context, peer *protocol.Stream, table schema.Table) error
}

// NoopRangeSyncer performs no data transfer. It is the zero value used by
// tests and by builds not linked against a range-hashing engine.
type NoopRangeSyncer struct{}

func (NoopRangeSyncer) Sync(ctx context.Context, peer *protocol.Stream, table schema.Table) error {
	return nil
}

// RangeServer is the "from" side's counterpart: it answers one range-sync
// command (range, hash, rows) using the adapter's snapshot transaction.
type RangeServer interface {
	Serve(ctx context.Context, ad adapter.Adapter, cmd protocol.Command, stream *protocol.Stream) error
}

// NoopRangeServer acknowledges every range-sync command with an empty
// reply, so a peer driving the protocol against an engine-less build gets
// well-formed frames instead of a stall.
type NoopRangeServer struct{}

func (NoopRangeServer) Serve(ctx context.Context, ad adapter.Adapter, cmd protocol.Command, stream *protocol.Stream) error {
	return stream.WriteReply()
}
