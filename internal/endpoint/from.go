// Package endpoint implements the two orchestration loops of a peer pair:
// RunFrom serves a source database to a driving peer, RunTo drives a
// destination database against one.
package endpoint

import (
	"context"
	"log"

	"github.com/Limetric/kitchensync/internal/adapter"
	"github.com/Limetric/kitchensync/internal/packedvalue"
	"github.com/Limetric/kitchensync/internal/protocol"
	"github.com/Limetric/kitchensync/internal/schema"
)

// Targets are the peer-requested block-size tuning knobs, recorded for the
// range-sync layer.
type Targets struct {
	BlockSize        int64
	MinimumBlockSize int64
}

// FromOptions configures RunFrom. A nil RangeServer gets the no-op server.
type FromOptions struct {
	RangeServer RangeServer
}

// RunFrom executes the "from" driver loop: read one command, dispatch,
// write one reply, until quit or EOF. The database transaction, if one was
// opened by a snapshot or without_snapshot command, is rolled back on any
// exit path that didn't commit.
func RunFrom(ctx context.Context, stream *protocol.Stream, ad adapter.Adapter, opts FromOptions) error {
	srv := opts.RangeServer
	if srv == nil {
		srv = NoopRangeServer{}
	}

	version := 0
	inTransaction := false
	defer func() {
		if inTransaction {
			ad.RollbackTransaction(ctx)
		}
	}()

	var targets Targets
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		cmd, err := stream.ReadCommand()
		if err != nil {
			return err
		}

		// Only negotiation (or quit) may precede negotiation.
		if version == 0 && cmd.Name != protocol.CmdProtocol && cmd.Name != protocol.CmdQuit {
			return &protocol.UnsupportedError{Command: cmd.Name, Version: version}
		}

		switch cmd.Name {
		case protocol.CmdProtocol:
			offered, ok := intArg(cmd.Args, 0)
			if !ok {
				return &protocol.CodecError{Err: packedvalue.ErrTypeMismatch}
			}
			version, err = protocol.Negotiate(int(offered))
			if err != nil {
				return err
			}
			log.Printf("negotiated protocol version %d", version)
			if err := stream.WriteReply(packedvalue.Int(int64(version))); err != nil {
				return err
			}

		case protocol.CmdSchema:
			db, err := ad.DatabaseSchema(ctx)
			if err != nil {
				return err
			}
			if err := stream.WriteReply(schema.Encode(db)); err != nil {
				return err
			}

		case protocol.CmdExportSnapshot:
			token, err := ad.ExportSnapshot(ctx)
			if err != nil {
				return err
			}
			inTransaction = true
			if err := stream.WriteReply(packedvalue.String(token)); err != nil {
				return err
			}

		case protocol.CmdImportSnapshot:
			token, ok := stringArg(cmd.Args, 0)
			if !ok {
				return &protocol.CodecError{Err: packedvalue.ErrTypeMismatch}
			}
			if err := ad.ImportSnapshot(ctx, token); err != nil {
				return err
			}
			inTransaction = true
			if err := stream.WriteReply(); err != nil {
				return err
			}

		case protocol.CmdUnholdSnapshot:
			if err := ad.UnholdSnapshot(ctx); err != nil {
				return err
			}
			if err := stream.WriteReply(); err != nil {
				return err
			}

		case protocol.CmdWithoutSnapshot:
			if err := ad.StartReadTransaction(ctx); err != nil {
				return err
			}
			inTransaction = true
			if err := stream.WriteReply(); err != nil {
				return err
			}

		case protocol.CmdTargetBlockSize:
			n, ok := intArg(cmd.Args, 0)
			if !ok {
				return &protocol.CodecError{Err: packedvalue.ErrTypeMismatch}
			}
			targets.BlockSize = n
			if err := stream.WriteReply(packedvalue.Int(n)); err != nil {
				return err
			}

		case protocol.CmdTargetMinimumBlockSize:
			n, ok := intArg(cmd.Args, 0)
			if !ok {
				return &protocol.CodecError{Err: packedvalue.ErrTypeMismatch}
			}
			targets.MinimumBlockSize = n
			if err := stream.WriteReply(packedvalue.Int(n)); err != nil {
				return err
			}

		case protocol.CmdRange, protocol.CmdHash, protocol.CmdRows:
			if err := srv.Serve(ctx, ad, cmd, stream); err != nil {
				return err
			}

		case protocol.CmdIdle:
			if version < protocol.VersionIdleIntroduced {
				return &protocol.UnsupportedError{Command: cmd.Name, Version: version}
			}
			if err := stream.WriteReply(); err != nil {
				return err
			}

		case protocol.CmdQuit:
			return nil

		default:
			return &protocol.UnsupportedError{Command: cmd.Name, Version: version}
		}
	}
}

func intArg(args []packedvalue.Value, i int) (int64, bool) {
	if i >= len(args) {
		return 0, false
	}
	if n, ok := args[i].AsInt(); ok {
		return n, true
	}
	if u, ok := args[i].AsUint(); ok {
		return int64(u), true
	}
	return 0, false
}

func stringArg(args []packedvalue.Value, i int) (string, bool) {
	if i >= len(args) {
		return "", false
	}
	return args[i].AsString()
}
