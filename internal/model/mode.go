package model

//SyncMode selects the policy of one reconciliation pass.
type SyncMode int

const (
	// ModeCheck is the prune pass: entries of the authoritative tree (the replica)
	// which have no counterpart in the target tree (the source) are removed.
	ModeCheck SyncMode = iota
	// ModeCopy is the materialize pass: entries of the authoritative tree (the source)
	// which are missing or stale in the target tree (the replica) are created or copied.
	ModeCopy
)

func (m SyncMode) String() string {
	switch m {
	case ModeCheck:
		return "check"
	case ModeCopy:
		return "copy"
	default:
		return "unknown"
	}
}
