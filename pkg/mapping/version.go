package mapping

// Version information for the mapping module.
const (
	// Version is the current version of the mapping module.
	Version = "1.0.0"

	// MinCompatibleVersion is the minimum version that is compatible with this version.
	MinCompatibleVersion = "1.0.0"
)
