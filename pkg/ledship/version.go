package ledship

import (
	"fmt"

	"github.com/bft-labs/ledship/pkg/log"
	"github.com/bft-labs/ledship/pkg/mapping"
	"github.com/bft-labs/ledship/pkg/protocol"
)

// Version information for the ledship module.
const (
	Version              = "1.0.0"
	MinCompatibleVersion = "1.0.0"
)

type moduleVersion struct {
	version    string
	minVersion string
}

func modules() map[string]moduleVersion {
	return map[string]moduleVersion{
		"mapping":  {mapping.Version, mapping.MinCompatibleVersion},
		"protocol": {protocol.Version, protocol.MinCompatibleVersion},
		"log":      {log.Version, log.MinCompatibleVersion},
	}
}

// ModuleVersions returns the version of every sub-module.
func ModuleVersions() map[string]string {
	out := map[string]string{"ledship": Version}
	for name, m := range modules() {
		out[name] = m.version
	}
	return out
}

// validateModuleVersions checks that all module versions are compatible.
// Returns an error if any module version is below its minimum compatible version.
func validateModuleVersions() error {
	for name, m := range modules() {
		if !isVersionCompatible(m.version, m.minVersion) {
			return fmt.Errorf("module %s version %s is below minimum compatible version %s",
				name, m.version, m.minVersion)
		}
	}
	return nil
}

// isVersionCompatible checks if version >= minVersion.
// Versions are "major.minor.patch".
func isVersionCompatible(version, minVersion string) bool {
	var vMajor, vMinor, vPatch int
	var mMajor, mMinor, mPatch int

	_, _ = fmt.Sscanf(version, "%d.%d.%d", &vMajor, &vMinor, &vPatch)
	_, _ = fmt.Sscanf(minVersion, "%d.%d.%d", &mMajor, &mMinor, &mPatch)

	if vMajor != mMajor {
		return vMajor > mMajor
	}
	if vMinor != mMinor {
		return vMinor > mMinor
	}
	return vPatch >= mPatch
}
