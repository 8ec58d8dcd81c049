package endpoint

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Limetric/kitchensync/internal/adapter"
	"github.com/Limetric/kitchensync/internal/packedvalue"
	"github.com/Limetric/kitchensync/internal/protocol"
	"github.com/Limetric/kitchensync/internal/schema"
	"github.com/Limetric/kitchensync/internal/schemamatch"
)

// ToOptions configures RunTo. A nil Syncer gets NoopRangeSyncer, which
// stops after a successful schema match without transferring data.
type ToOptions struct {
	IgnoreTables []string
	OnlyTables   []string

	// ShareSnapshot asks the peer for a snapshot token instead of a plain
	// read transaction. The token is only usable by a second process on
	// the peer's engine; RunTo just relays the choice.
	ShareSnapshot bool

	// IdleInterval, when nonzero and the negotiated version supports it,
	// sends an idle keepalive between table syncs whenever the stream has
	// been quiet at least this long.
	IdleInterval time.Duration

	Syncer RangeSyncer
}

// RunTo drives the destination side: negotiate, exchange schemas, verify
// the match, then hand each table to the range syncer in the peer's
// (largest-first) order.
func RunTo(ctx context.Context, stream *protocol.Stream, ad adapter.Adapter, opts ToOptions) error {
	syncer := opts.Syncer
	if syncer == nil {
		syncer = NoopRangeSyncer{}
	}

	version, err := negotiate(stream)
	if err != nil {
		return err
	}
	log.Printf("negotiated protocol version %d", version)

	if err := beginPeerTransaction(stream, opts.ShareSnapshot); err != nil {
		return err
	}

	fromDB, err := fetchSchema(stream)
	if err != nil {
		return err
	}

	// With a shared snapshot the peer may be holding a lock purely to
	// keep the snapshot importable; release it now that the consistent
	// read transaction exists on their side.
	if opts.ShareSnapshot {
		if err := stream.WriteCommand(protocol.CmdUnholdSnapshot); err != nil {
			return err
		}
		if _, err := stream.ReadReply(); err != nil {
			return err
		}
	}

	if err := ad.StartReadTransaction(ctx); err != nil {
		return err
	}
	defer ad.RollbackTransaction(ctx)

	toDB, err := ad.DatabaseSchema(ctx)
	if err != nil {
		return err
	}

	// Normalize the source schema to what this engine can represent
	// before comparing.
	ad.ConvertUnsupportedSchema(&fromDB)

	matchOpts := schemamatch.Options{IgnoreTables: opts.IgnoreTables, OnlyTables: opts.OnlyTables}
	if err := schemamatch.Check(fromDB, toDB, matchOpts); err != nil {
		log.Printf("schema mismatch: %v", err)
		return err
	}

	total := int64(len(fromDB.Tables))
	lastTraffic := time.Now()
	for i, t := range fromDB.Tables {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !matchOpts.Included(t.Name) {
			continue
		}
		if opts.IdleInterval > 0 && version >= protocol.VersionIdleIntroduced &&
			time.Since(lastTraffic) >= opts.IdleInterval {
			if err := stream.WriteCommand(protocol.CmdIdle); err != nil {
				return err
			}
			if _, err := stream.ReadReply(); err != nil {
				return err
			}
		}
		log.Printf("syncing table %s (%s of %s)", t.Name, humanize.Comma(int64(i+1)), humanize.Comma(total))
		if err := syncer.Sync(ctx, stream, t); err != nil {
			return fmt.Errorf("sync table %s: %w", t.Name, err)
		}
		lastTraffic = time.Now()
	}

	if _, ok := syncer.(NoopRangeSyncer); ok {
		log.Printf("schema match succeeded; no range-sync engine is linked, data was not transferred")
	}

	if err := stream.WriteCommand(protocol.CmdQuit); err != nil {
		return err
	}
	return nil
}

func negotiate(stream *protocol.Stream) (int, error) {
	if err := stream.WriteCommand(protocol.CmdProtocol, packedvalue.Int(protocol.LatestSupported)); err != nil {
		return 0, err
	}
	reply, err := stream.ReadReply()
	if err != nil {
		return 0, err
	}
	if len(reply) != 1 {
		return 0, &protocol.CodecError{Err: fmt.Errorf("%w: protocol reply has %d elements", packedvalue.ErrTypeMismatch, len(reply))}
	}
	answered, ok := reply[0].AsInt()
	if !ok {
		return 0, &protocol.CodecError{Err: packedvalue.ErrTypeMismatch}
	}
	if answered < protocol.EarliestSupported || answered > protocol.LatestSupported {
		return 0, &protocol.ProtocolVersionError{Offered: int(answered)}
	}
	return int(answered), nil
}

func beginPeerTransaction(stream *protocol.Stream, shareSnapshot bool) error {
	if shareSnapshot {
		if err := stream.WriteCommand(protocol.CmdExportSnapshot); err != nil {
			return err
		}
		reply, err := stream.ReadReply()
		if err != nil {
			return err
		}
		if len(reply) != 1 {
			return &protocol.CodecError{Err: fmt.Errorf("%w: export_snapshot reply has %d elements", packedvalue.ErrTypeMismatch, len(reply))}
		}
		token, ok := reply[0].AsString()
		if !ok {
			return &protocol.CodecError{Err: packedvalue.ErrTypeMismatch}
		}
		log.Printf("peer exported snapshot %q", token)
		return nil
	}

	if err := stream.WriteCommand(protocol.CmdWithoutSnapshot); err != nil {
		return err
	}
	_, err := stream.ReadReply()
	return err
}

func fetchSchema(stream *protocol.Stream) (schema.Database, error) {
	if err := stream.WriteCommand(protocol.CmdSchema); err != nil {
		return schema.Database{}, err
	}
	reply, err := stream.ReadReply()
	if err != nil {
		return schema.Database{}, err
	}
	if len(reply) != 1 {
		return schema.Database{}, &protocol.CodecError{Err: fmt.Errorf("%w: schema reply has %d elements", packedvalue.ErrTypeMismatch, len(reply))}
	}
	db, err := schema.Decode(reply[0])
	if err != nil {
		return schema.Database{}, &protocol.CodecError{Err: err}
	}
	return db, nil
}
