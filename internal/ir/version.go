package ir

// Version constants for the journal schema and the library.
const (
	// IRVersion is the wire/journal record schema version.
	IRVersion = "1"

	// EngineVersion is the microact version.
	EngineVersion = "0.1.0"
)
