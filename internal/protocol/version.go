package protocol

// Version constants. Each is load-bearing for some version-conditional
// shape elsewhere in the driver:
//
//   - v7 is the last version that sent filters after snapshot export, and
//     the last to use the legacy schema serialization format.
//   - v8 introduces the "idle" keepalive command.
//   - v9 switches row hashing from xxHash64 to BLAKE3 (decided by the
//     range-sync layer, out of scope here, but the negotiated version is
//     still threaded through so that layer can branch on it).
const (
	EarliestSupported = 7
	LatestSupported    = 9

	VersionIdleIntroduced       = 8
	VersionLegacySchemaFormat   = 7
	VersionBlake3Hashing        = 9
)

// Negotiate returns the version to use given what the peer offered: the
// lesser of the peer's offer and our own latest, or an error if the peer's
// offer is below EarliestSupported. Offers above LatestSupported are not an
// error; they negotiate down to LatestSupported.
func Negotiate(offered int) (int, error) {
	if offered < EarliestSupported {
		return 0, &ProtocolVersionError{Offered: offered}
	}
	if offered > LatestSupported {
		return LatestSupported, nil
	}
	return offered, nil
}
