package platform

import (
	"path/filepath"

	"github.com/eebbk/s6build/src/common/errors"
	"github.com/eebbk/s6build/src/common/paths"
)

// Submodule describes one source repository the platform expects to
// find checked out under the workspace root.
type Submodule struct {
	// Path is the submodule directory relative to the workspace root.
	Path string

	// Optional marks submodules whose absence does not fail setup.
	Optional bool

	// Recursive selects whether nested submodules are fetched too.
	Recursive bool
}

// RequiredSubmodules returns the source repositories the s6 platform
// builds from. The Binaries checkout carries prebuilt blobs and is the
// only one fetched non-recursively.
func RequiredSubmodules() []Submodule {
	return []Submodule{
		{Path: "Binaries", Optional: true, Recursive: false},
		{Path: "Common/Mu", Optional: true, Recursive: true},
		{Path: "Common/Mu_OEM_Sample", Optional: true, Recursive: true},
		{Path: "Common/Mu_Tiano_Plus", Optional: true, Recursive: true},
		{Path: "Features/DFCI", Optional: true, Recursive: true},
		{Path: "Mu_Basecore", Optional: true, Recursive: true},
		{Path: "Silicon/Arm/Mu_Tiano", Optional: true, Recursive: true},
		{Path: "Silicium-ACPI", Optional: true, Recursive: true},
	}
}

// ValidateSubmodules checks every required submodule for presence and
// initialization under the workspace root. A submodule directory that
// exists but has no .git entry was cloned without being initialized.
// Findings are logged and returned; they never halt the run on their
// own.
func (s *Settings) ValidateSubmodules() []error {
	var findings []error
	for _, submodule := range RequiredSubmodules() {
		subPath := filepath.Join(s.desc.WorkspaceRoot(), submodule.Path)
		switch {
		case !paths.Exists(subPath):
			s.log.Error("Submodule path missing", "path", subPath)
			findings = append(findings,
				errors.ErrSubmodulePathMissing.WithMessagef("Submodule path missing: %s", subPath))
		case !paths.Exists(filepath.Join(subPath, ".git")):
			s.log.Error("Submodule not initialized", "path", subPath)
			findings = append(findings,
				errors.ErrSubmoduleNotInitialized.WithMessagef("Submodule not initialized: %s", subPath))
		}
	}
	return findings
}
