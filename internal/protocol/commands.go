package protocol

// Command name constants. These are the stable wire strings, grouped by
// concern.
const (
	CmdProtocol       = "protocol"
	CmdSchema         = "schema"
	CmdQuit           = "quit"
	CmdExportSnapshot = "export_snapshot"
	CmdImportSnapshot = "import_snapshot"
	CmdUnholdSnapshot = "unhold_snapshot"
	CmdWithoutSnapshot = "without_snapshot"

	CmdRange = "range"
	CmdHash  = "hash"
	CmdRows  = "rows"
	CmdIdle  = "idle"

	CmdTargetBlockSize        = "target_block_size"
	CmdTargetMinimumBlockSize = "target_minimum_block_size"
)
