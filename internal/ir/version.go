package ir

// Version constants for the scene IR and the runtime.
const (
	// IRVersion is the scene IR schema version.
	IRVersion = "1"

	// EngineVersion is the scenesync runtime version.
	EngineVersion = "0.1.0"
)
