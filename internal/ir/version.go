package ir

// Version constants for the record schema.
const (
	// RecordVersion is the record identity derivation version. It is part of
	// the hash domain, so changing it changes every derived identifier.
	RecordVersion = "1"

	// StoreVersion is the compliance store release.
	StoreVersion = "0.1.0"
)
