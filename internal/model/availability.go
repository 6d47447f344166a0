package model

// Snapshot is the derived, non-persisted availability view of a
// session.  Remaining is Limits - Sold and is never clamped: a negative
// value means the session was oversold and is reported as such.
type Snapshot struct {
	SessionID uint64 `json:"session_id"`
	Limits    Counts `json:"limits"`
	Sold      Counts `json:"sold"`
	Remaining Counts `json:"remaining"`
	// Unknown is set when the session id does not exist; limits are zero.
	Unknown bool `json:"unknown,omitempty"`
	// Oversold is set when any remaining count is negative.
	Oversold bool `json:"oversold,omitempty"`
}
