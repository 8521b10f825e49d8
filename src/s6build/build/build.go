package build

import (
	"context"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/eebbk/s6build/src/common/logs"
	"github.com/eebbk/s6build/src/s6build/platform"
)

// BuildOptions configures the platform build pipeline.
type BuildOptions struct {
	// Arch is the requested architecture, AARCH64 being the only
	// accepted value.
	Arch string

	// Target is the build target, DEBUG or RELEASE.
	Target string

	// CPUs caps the engine's parallelism. Zero means all cores.
	CPUs int
}

// Build runs the platform build through the external firmware build
// engine.
type Build struct {
	log      *logs.Logger
	settings *platform.Settings
	builder  *PlatformBuilder
	runner   *Runner
	opts     BuildOptions
}

// NewBuild creates the platform build pipeline.
func NewBuild(log *logs.Logger, settings *platform.Settings, builder *PlatformBuilder, runner *Runner, opts BuildOptions) *Build {
	return &Build{
		log:      log,
		settings: settings,
		builder:  builder,
		runner:   runner,
		opts:     opts,
	}
}

// Run validates the request, injects the platform environment, and
// executes the engine with the composed invocation. The pre build,
// post build, and flash hooks run around the engine call.
func (b *Build) Run(ctx context.Context) error {
	if err := ValidateArch(b.opts.Arch); err != nil {
		return err
	}
	if err := b.settings.ValidateTarget(b.opts.Target); err != nil {
		return err
	}
	target := strings.ToUpper(b.opts.Target)

	dscPath, _, err := b.settings.DscAndConfig()
	if err != nil {
		return err
	}

	env := b.builder.Env()
	// Force the normalized spelling even when a positional define
	// already set TARGET in lowercase.
	env.SetValueForce("TARGET", target, "From CLI")
	if err := b.builder.SetPlatformEnv(); err != nil {
		return err
	}

	args := b.engineArgs(dscPath, target)
	b.log.Info("Starting platform build",
		"platform", dscPath, "target", target, "toolchain", env.GetValue("TOOL_CHAIN_TAG"))

	if err := b.builder.PlatformPreBuild(); err != nil {
		return err
	}
	if err := b.runner.Engine(ctx, env.Environ(), args...); err != nil {
		return err
	}
	if err := b.builder.PlatformPostBuild(); err != nil {
		return err
	}
	if err := b.builder.FlashRomImage(); err != nil {
		return err
	}

	b.log.Info("Platform build complete", "target", target)
	return nil
}

// engineArgs composes the engine command line for the resolved DSC
// and target: platform, architecture, toolchain, target, parallelism,
// the BLD defines for this target, and the build report request when
// reporting is on.
func (b *Build) engineArgs(dscPath, target string) []string {
	env := b.builder.Env()

	cpus := b.opts.CPUs
	if cpus <= 0 {
		cpus = runtime.NumCPU()
	}

	args := []string{
		"-p", dscPath,
		"-a", "AARCH64",
		"-t", env.GetValueOrDefault("TOOL_CHAIN_TAG", platform.ToolChainTag),
		"-b", target,
		"-n", strconv.Itoa(cpus),
	}

	for _, define := range env.Defines(target) {
		args = append(args, "-D", define)
	}

	if env.GetValue("BUILDREPORTING") == "TRUE" {
		args = append(args, "-y", filepath.Join("Build", "BUILD_REPORT.TXT"))
		for _, reportType := range strings.Fields(env.GetValue("BUILDREPORT_TYPES")) {
			args = append(args, "-Y", reportType)
		}
	}

	return args
}
