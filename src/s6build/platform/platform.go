// Package platform describes the EEBBK s6 firmware platform: the
// packages, architectures, targets, and repository scopes it builds
// with, plus the workspace checks the pipelines run before handing
// off to the firmware build engine.
package platform

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/eebbk/s6build/src/common/errors"
	"github.com/eebbk/s6build/src/common/logs"
	"github.com/eebbk/s6build/src/common/paths"
)

// Platform identity constants.
const (
	// Name is the product name of the platform.
	Name = "s6"

	// PackageName is the firmware package built for the platform.
	PackageName = "s6Pkg"

	// DscRelPath is the platform description file, relative to the
	// workspace root.
	DscRelPath = "s6Pkg/s6.dsc"

	// ToolChainTag selects the default compiler toolchain of the
	// platform.
	ToolChainTag = "CLANGPDB"

	// FeatureConfigVar names the build variable whose value is
	// prepended to the package search path when set.
	FeatureConfigVar = "FEATURE_CONFIG_PATH"
)

var (
	packagesSupported = []string{PackageName}
	archSupported     = []string{"AARCH64"}
	targetsSupported  = []string{"DEBUG", "RELEASE"}
	activeScopes      = []string{"s6", "gcc_aarch64_linux", "edk2-build"}

	packagesPath = []string{
		"Platforms/Lenovo",
		"Common/Mu",
		"Common/Mu_OEM_Sample",
		"Common/Mu_Tiano_Plus",
		"Features/DFCI",
		"Mu_Basecore",
		"Silicon/Arm/Mu_Tiano",
		"Silicon/Qualcomm",
		"Silicon/Silicium",
		"Silicium-ACPI/SoCs/Qualcomm",
	}
)

// Descriptor is the immutable platform record. It is created once per
// invocation with the resolved workspace root and read everywhere else.
type Descriptor struct {
	workspaceRoot string
}

// NewDescriptor creates a platform descriptor rooted at the given
// workspace directory.
func NewDescriptor(workspaceRoot string) *Descriptor {
	return &Descriptor{workspaceRoot: workspaceRoot}
}

// Name returns the product name.
func (d *Descriptor) Name() string {
	return Name
}

// PackageName returns the firmware package name.
func (d *Descriptor) PackageName() string {
	return PackageName
}

// WorkspaceRoot returns the absolute workspace root directory.
func (d *Descriptor) WorkspaceRoot() string {
	return d.workspaceRoot
}

// DscPath returns the platform description file relative to the
// workspace root.
func (d *Descriptor) DscPath() string {
	return DscRelPath
}

// DscAbsPath returns the absolute path of the platform description
// file.
func (d *Descriptor) DscAbsPath() string {
	return filepath.Join(d.workspaceRoot, DscRelPath)
}

// PackagesSupported returns the firmware packages this platform can
// build.
func (d *Descriptor) PackagesSupported() []string {
	return copyStrings(packagesSupported)
}

// ArchSupported returns the CPU architectures this platform can build.
func (d *Descriptor) ArchSupported() []string {
	return copyStrings(archSupported)
}

// TargetsSupported returns the build targets this platform can build.
func (d *Descriptor) TargetsSupported() []string {
	return copyStrings(targetsSupported)
}

// ActiveScopes returns the configuration scopes the external build
// framework applies for this platform.
func (d *Descriptor) ActiveScopes() []string {
	return copyStrings(activeScopes)
}

// PackagesPath returns the package search paths relative to the
// workspace root.
func (d *Descriptor) PackagesPath() []string {
	return copyStrings(packagesPath)
}

func copyStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// Settings exposes the platform record to the setup and update
// pipelines and records the architectures a run was asked to build.
type Settings struct {
	log  *logs.Logger
	desc *Descriptor

	architectures []string
}

// NewSettings creates a settings provider for the given platform.
func NewSettings(log *logs.Logger, desc *Descriptor) *Settings {
	return &Settings{
		log:  log,
		desc: desc,
	}
}

// Descriptor returns the platform record behind this provider.
func (s *Settings) Descriptor() *Descriptor {
	return s.desc
}

// SetArchitectures records the requested architectures after checking
// that every one of them is supported by the platform. Requests that
// are not a subset of the supported set are rejected.
func (s *Settings) SetArchitectures(requested []string) error {
	supported := make(map[string]bool, len(archSupported))
	for _, arch := range archSupported {
		supported[arch] = true
	}

	var unsupported []string
	for _, arch := range requested {
		if !supported[arch] {
			unsupported = append(unsupported, arch)
		}
	}
	if len(unsupported) > 0 {
		sort.Strings(unsupported)
		message := "Unsupported Architecture Requested: " + strings.Join(unsupported, " ")
		s.log.Error(message)
		return errors.ErrUnsupportedArch.WithMessage(message)
	}

	s.architectures = copyStrings(requested)
	return nil
}

// Architectures returns the architectures recorded by
// SetArchitectures, or the full supported set when none were recorded.
func (s *Settings) Architectures() []string {
	if len(s.architectures) == 0 {
		return copyStrings(archSupported)
	}
	return copyStrings(s.architectures)
}

// ValidateTarget checks that the given build target is supported by
// the platform. Comparison is done on the uppercased value.
func (s *Settings) ValidateTarget(target string) error {
	upper := strings.ToUpper(target)
	for _, t := range targetsSupported {
		if t == upper {
			return nil
		}
	}
	return errors.ErrUnsupportedTarget.WithMessagef(
		"Unsupported build target requested: %s (supported: %s)",
		target, strings.Join(targetsSupported, " "))
}

// DscAndConfig resolves the platform description file against the
// workspace root and returns its workspace relative path together
// with an empty per-platform configuration map. A missing file is
// fatal; directory contents are logged first to make the failure
// diagnosable from the build log alone.
func (s *Settings) DscAndConfig() (string, map[string]string, error) {
	dscPath := s.desc.DscAbsPath()
	if !paths.IsFile(dscPath) {
		s.log.Error("DSC file not found", "path", dscPath)
		if cwd, err := os.Getwd(); err == nil {
			s.log.Error("Current directory", "path", cwd)
		}
		if dir := filepath.Dir(dscPath); paths.Exists(dir) {
			s.log.Error("Directory contents", "path", dir, "entries", paths.ListNames(dir))
		}
		return "", nil, errors.ErrDscNotFound.WithMessagef("DSC file missing: %s", dscPath)
	}
	return s.desc.DscPath(), map[string]string{}, nil
}
