package build

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/eebbk/s6build/src/common/errors"
	"github.com/eebbk/s6build/src/common/logs"
	"github.com/eebbk/s6build/src/common/paths"
	"github.com/eebbk/s6build/src/s6build/platform"
	"github.com/eebbk/s6build/src/s6build/shellenv"
)

// PlatformBuilder supplies the platform facts the build pipeline
// hands to the firmware build engine and injects the build variable
// table once per invocation.
type PlatformBuilder struct {
	log  *logs.Logger
	desc *platform.Descriptor
	env  *shellenv.Store
}

// NewPlatformBuilder creates a builder for the given platform backed
// by the given build variable store.
func NewPlatformBuilder(log *logs.Logger, desc *platform.Descriptor, env *shellenv.Store) *PlatformBuilder {
	return &PlatformBuilder{
		log:  log,
		desc: desc,
		env:  env,
	}
}

// Name returns the firmware package the builder produces.
func (b *PlatformBuilder) Name() string {
	return b.desc.PackageName()
}

// Env returns the build variable store behind this builder.
func (b *PlatformBuilder) Env() *shellenv.Store {
	return b.env
}

// PackagesPath returns the package search paths for the engine, with
// the FEATURE_CONFIG_PATH build variable prepended. The entry stays
// empty when the variable is unset.
func (b *PlatformBuilder) PackagesPath() []string {
	result := []string{b.env.GetValueOrDefault(platform.FeatureConfigVar, "")}
	result = append(result, b.desc.PackagesPath()...)
	return result
}

// ValidateArch rejects any architecture other than AARCH64. The
// compare is case-insensitive so `-a aarch64` passes.
func ValidateArch(arch string) error {
	if strings.ToUpper(arch) != "AARCH64" {
		return errors.ErrUnsupportedArch.WithMessagef(
			"Invalid arch specified: %s. AARCH64 is used for PEI and DXE and is the only valid option for this platform", arch)
	}
	return nil
}

// SetPlatformEnv validates the platform description file and writes
// the platform's build variable table into the store. Values already
// present, such as command line defines or FD geometry, keep their
// first written value.
func (b *PlatformBuilder) SetPlatformEnv() error {
	b.log.Debug("PlatformBuilder SetPlatformEnv")

	workspace := b.desc.WorkspaceRoot()
	dscPath := b.desc.DscAbsPath()
	if !paths.IsFile(dscPath) {
		b.log.Error("DSC file not found", "path", dscPath)
		if cwd, err := os.Getwd(); err == nil {
			b.log.Error("Current directory", "path", cwd)
		}
		if paths.Exists(workspace) {
			b.log.Error("Workspace contents", "entries", paths.ListNames(workspace))
		}
		if pkgDir := filepath.Join(workspace, b.desc.PackageName()); paths.Exists(pkgDir) {
			b.log.Error("Package contents", "entries", paths.ListNames(pkgDir))
		}
		return errors.ErrDscNotFound.WithMessagef("Critical DSC file missing: %s", dscPath)
	}

	b.env.SetValue("PRODUCT_NAME", b.desc.Name(), "Platform Hardcoded")
	b.env.SetValue("ACTIVE_PLATFORM", b.desc.DscPath(), "Platform Hardcoded")
	b.env.SetValue("TARGET_ARCH", "AARCH64", "Platform Hardcoded")
	b.env.SetValue("TOOL_CHAIN_TAG", platform.ToolChainTag, "set default to clangpdb")
	b.env.SetValue("EMPTY_DRIVE", "FALSE", "Default to false")
	b.env.SetValue("RUN_TESTS", "FALSE", "Default to false")
	b.env.SetValue("SHUTDOWN_AFTER_RUN", "FALSE", "Default to false")
	b.env.SetValue("BLD_*_BUILDID_STRING", "Unknown", "Default")
	b.env.SetValue("BUILDREPORTING", "TRUE", "Enabling build report")
	b.env.SetValue("BUILDREPORT_TYPES", "PCD DEPEX FLASH BUILD_FLAGS LIBRARY FIXED_ADDRESS HASH", "Setting build report types")
	b.env.SetValue("BLD_*_MEMORY_PROTECTION", "TRUE", "Default")
	b.env.SetValue("BLD_*_SHIP_MODE", "FALSE", "Default")
	b.env.SetValue("BLD_*_FD_BASE", b.fdGeometry("FD_BASE"), "Default")
	b.env.SetValue("BLD_*_FD_SIZE", b.fdGeometry("FD_SIZE"), "Default")
	b.env.SetValue("BLD_*_FD_BLOCKS", b.fdGeometry("FD_BLOCKS"), "Default")

	return nil
}

// fdGeometry resolves a flash geometry pass-through: a command line
// define wins, then the process environment, else empty.
func (b *PlatformBuilder) fdGeometry(name string) string {
	return b.env.GetValueOrDefault(name, os.Getenv(name))
}

// PlatformPreBuild runs before the engine invocation. The s6 platform
// has no pre-build work.
func (b *PlatformBuilder) PlatformPreBuild() error {
	return nil
}

// PlatformPostBuild runs after a successful engine invocation. The s6
// platform has no post-build work.
func (b *PlatformBuilder) PlatformPostBuild() error {
	return nil
}

// FlashRomImage would flash the built image to a device. Flashing is
// handled outside this tool, so the hook only reports success.
func (b *PlatformBuilder) FlashRomImage() error {
	return nil
}
