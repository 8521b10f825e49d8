// Package core provides the root command and pipeline dispatch for
// s6build.
package core

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/eebbk/s6build/src/common/cli"
	"github.com/eebbk/s6build/src/common/errors"
	"github.com/eebbk/s6build/src/common/logs"
	"github.com/eebbk/s6build/src/common/paths"
	"github.com/eebbk/s6build/src/common/version"
	"github.com/eebbk/s6build/src/s6build/build"
	"github.com/eebbk/s6build/src/s6build/platform"
	"github.com/eebbk/s6build/src/s6build/report"
	"github.com/eebbk/s6build/src/s6build/shellenv"
	"github.com/eebbk/s6build/src/s6build/storage"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	// VersionInfo holds version information - set at build time via ldflags
	VersionInfo = version.New()

	// Global logger instance
	log *logs.Logger

	// Configuration file path
	cfgFile string
)

// Linker variables - set via ldflags at build time
var (
	Version        = "dev"
	ReleaseName    = "Silicium"
	ReleaseVersion = "0.0.0"
	BuildDate      = "unknown"
	GitCommit      = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "s6build [NAME=VALUE ...]",
	Short: "EEBBK s6 firmware platform build orchestrator",
	Long: `s6build orchestrates firmware builds for the EEBBK s6 platform.

Without a mode flag it runs the platform build through the external
firmware build engine. --setup initializes the workspace submodule
tree, --update refreshes it. Positional NAME=VALUE arguments become
build variables with command line provenance.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          validateDefineArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Version output needs no configuration
		if cmd.Name() == "version" {
			return nil
		}
		return initConfig()
	},
	RunE: runDispatch,
}

// Execute runs the root command
func Execute() {
	// Populate VersionInfo from linker variables
	VersionInfo.Version = Version
	VersionInfo.ReleaseName = ReleaseName
	VersionInfo.ReleaseVersion = ReleaseVersion
	VersionInfo.BuildDate = BuildDate
	VersionInfo.GitCommit = GitCommit

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// normalizeModeFlags maps the uppercase mode flag spellings --SETUP
// and --UPDATE onto their lowercase flags.
func normalizeModeFlags(f *pflag.FlagSet, name string) pflag.NormalizedName {
	switch name {
	case "SETUP", "UPDATE":
		name = strings.ToLower(name)
	}
	return pflag.NormalizedName(name)
}

// validateDefineArgs rejects positional arguments that are not
// NAME=VALUE build variables before any pipeline logic runs.
func validateDefineArgs(cmd *cobra.Command, args []string) error {
	for _, arg := range args {
		name, _, found := strings.Cut(arg, "=")
		if !found || name == "" {
			return errors.ErrMalformedDefine.WithMessagef(
				"invalid argument %q, build variables use NAME=VALUE form", arg)
		}
	}
	return nil
}

func init() {
	// Configuration file flag
	cli.RegisterConfigFlag(rootCmd, &cfgFile, "/etc/s6build/s6build.yaml")

	// Logging flags (using common helper)
	cli.RegisterLogFlags(rootCmd)

	// Mode flags with their historical uppercase spellings
	rootCmd.Flags().SetNormalizeFunc(normalizeModeFlags)
	rootCmd.Flags().Bool("setup", false, "Fetch and initialize the platform submodule tree")
	rootCmd.Flags().Bool("update", false, "Refresh the platform submodule tree")
	rootCmd.MarkFlagsMutuallyExclusive("setup", "update")

	// Build request flags
	rootCmd.Flags().StringP("arch", "a", "AARCH64",
		"CSV of architecture to build. AARCH64 is used for PEI and DXE and is the only valid option for this platform")
	rootCmd.Flags().StringP("target", "t", "DEBUG", "Build target (DEBUG or RELEASE)")
	rootCmd.Flags().IntP("cpus", "n", 0, "Engine parallelism (0 uses all cores)")
	rootCmd.Flags().Bool("force", false, "Re-initialize submodules from scratch during setup")
	rootCmd.Flags().Bool("archive", false, "Archive built firmware images after a successful build")
	rootCmd.Flags().String("archive-glob", "", "Workspace-relative glob for firmware outputs (default: the engine layout)")
	rootCmd.Flags().Bool("no-report", false, "Skip recording this invocation in the build history")

	// Workspace and history flags
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "Workspace root containing the platform tree")
	rootCmd.PersistentFlags().String("report-path", report.DefaultPath, "Build history database path")

	// Storage flags
	rootCmd.Flags().String("storage-type", "local", "Archive backend type: 'local' or 's3'")
	rootCmd.Flags().String("storage-path", "~/.s6build/artifacts", "Local archive path (for local backend)")
	rootCmd.Flags().String("s3-endpoint", "", "S3-compatible storage endpoint URL")
	rootCmd.Flags().String("s3-region", "us-east-1", "S3 region")
	rootCmd.Flags().String("s3-bucket", "s6-firmware", "S3 bucket for archived firmware images")
	rootCmd.Flags().String("s3-access-key", "", "S3 access key ID")
	rootCmd.Flags().String("s3-secret-key", "", "S3 secret access key")
	rootCmd.Flags().Bool("s3-path-style", true, "Use path-style addressing for S3")

	// Bind flags to viper
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("report.path", rootCmd.PersistentFlags().Lookup("report-path"))
	_ = viper.BindPFlag("archive.enabled", rootCmd.Flags().Lookup("archive"))
	_ = viper.BindPFlag("archive.glob", rootCmd.Flags().Lookup("archive-glob"))
	_ = viper.BindPFlag("storage.type", rootCmd.Flags().Lookup("storage-type"))
	_ = viper.BindPFlag("storage.local.path", rootCmd.Flags().Lookup("storage-path"))
	_ = viper.BindPFlag("storage.s3.endpoint", rootCmd.Flags().Lookup("s3-endpoint"))
	_ = viper.BindPFlag("storage.s3.region", rootCmd.Flags().Lookup("s3-region"))
	_ = viper.BindPFlag("storage.s3.bucket", rootCmd.Flags().Lookup("s3-bucket"))
	_ = viper.BindPFlag("storage.s3.access_key", rootCmd.Flags().Lookup("s3-access-key"))
	_ = viper.BindPFlag("storage.s3.secret_key", rootCmd.Flags().Lookup("s3-secret-key"))
	_ = viper.BindPFlag("storage.s3.path_style", rootCmd.Flags().Lookup("s3-path-style"))

	// Set defaults
	viper.SetDefault("workspace", ".")
	viper.SetDefault("report.path", report.DefaultPath)
	viper.SetDefault("archive.enabled", false)
	viper.SetDefault("archive.glob", "")
	viper.SetDefault("storage.type", "local")
	viper.SetDefault("storage.local.path", "~/.s6build/artifacts")
	viper.SetDefault("storage.s3.region", "us-east-1")
	viper.SetDefault("storage.s3.bucket", "s6-firmware")
	viper.SetDefault("storage.s3.path_style", true)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(archivesCmd)
}

// initConfig reads in config file and ENV variables if set
func initConfig() error {
	opts := cli.ConfigOptions{
		ConfigName: "s6build",
		ConfigType: "yaml",
		EnvPrefix:  "S6BUILD",
		SearchPaths: []string{
			"/etc/s6build",
			"~/.s6build",
			".",
		},
	}
	opts.ConfigFile = cfgFile

	if err := cli.InitConfig(opts); err != nil {
		return err
	}

	// Initialize logger using common helper
	log = cli.InitLogger("s6build")

	return nil
}

// resolveWorkspace returns the absolute workspace root from flags,
// config, or environment.
func resolveWorkspace() (string, error) {
	workspace := cli.GetExpandedString("workspace")
	if workspace == "" {
		workspace = "."
	}
	abs, err := filepath.Abs(workspace)
	if err != nil {
		return "", errors.ErrWorkspaceInvalid.WithCause(err)
	}
	if !paths.IsDir(abs) {
		return "", errors.ErrWorkspaceInvalid.WithMessagef("workspace root is not a directory: %s", abs)
	}
	return abs, nil
}

// splitArchList turns the CSV architecture flag into the uppercased
// request list the settings provider validates.
func splitArchList(csv string) []string {
	var archs []string
	for _, arch := range strings.Split(csv, ",") {
		arch = strings.ToUpper(strings.TrimSpace(arch))
		if arch != "" {
			archs = append(archs, arch)
		}
	}
	return archs
}

// runDispatch picks the pipeline for the parsed mode flags, runs it
// under a signal-aware context, and records the invocation outcome.
func runDispatch(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	setup, _ := flags.GetBool("setup")
	update, _ := flags.GetBool("update")
	archFlag, _ := flags.GetString("arch")
	target, _ := flags.GetString("target")
	cpus, _ := flags.GetInt("cpus")
	force, _ := flags.GetBool("force")
	noReport, _ := flags.GetBool("no-report")
	archive := viper.GetBool("archive.enabled")

	workspaceRoot, err := resolveWorkspace()
	if err != nil {
		return err
	}

	desc := platform.NewDescriptor(workspaceRoot)
	settings := platform.NewSettings(log, desc)
	env := shellenv.NewStore(log)
	if err := env.LoadDefines(args); err != nil {
		return err
	}
	// A positional TARGET=... define wins over the flag.
	if v := env.GetValue("TARGET"); v != "" {
		target = v
	}
	runner := build.NewRunner(log, workspaceRoot)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	inv := &report.Invocation{
		ID:        uuid.New().String(),
		Product:   desc.Name(),
		Arch:      strings.ToUpper(archFlag),
		StartedAt: time.Now(),
	}

	var runErr error
	switch {
	case setup:
		inv.Mode = report.ModeSetup
		pipeline := build.NewSetup(log, settings, runner, build.SetupOptions{
			Architectures: splitArchList(archFlag),
			Force:         force,
		})
		if runErr = pipeline.Run(ctx); runErr != nil {
			log.Error("Setup failed", "error", runErr)
		}
	case update:
		inv.Mode = report.ModeUpdate
		pipeline := build.NewUpdate(log, settings, runner, build.UpdateOptions{
			Architectures: splitArchList(archFlag),
		})
		if runErr = pipeline.Run(ctx); runErr != nil {
			log.Error("Update failed", "error", runErr)
		}
	default:
		inv.Mode = report.ModeBuild
		inv.Target = strings.ToUpper(target)
		builder := build.NewPlatformBuilder(log, desc, env)
		pipeline := build.NewBuild(log, settings, builder, runner, build.BuildOptions{
			Arch:   archFlag,
			Target: target,
			CPUs:   cpus,
		})
		runErr = pipeline.Run(ctx)
		inv.Toolchain = env.GetValueOrDefault("TOOL_CHAIN_TAG", platform.ToolChainTag)
		if runErr == nil && archive {
			runErr = archiveOutputs(ctx, desc, inv)
		}
		if runErr != nil {
			log.Error("Build failed", "error", runErr)
		}
	}

	inv.CompletedAt = time.Now()
	inv.Success = runErr == nil
	inv.ExitCode = build.ExitCode(runErr)
	if runErr != nil {
		inv.Error = runErr.Error()
	}

	if !noReport {
		recordInvocation(inv)
	}

	return runErr
}

// archiveOutputs collects the firmware images the engine wrote and
// stores them in the configured archive backend under the invocation
// id.
func archiveOutputs(ctx context.Context, desc *platform.Descriptor, inv *report.Invocation) error {
	var outputs []string
	var err error
	if pattern := viper.GetString("archive.glob"); pattern != "" {
		outputs, err = build.OutputsFromGlob(desc.WorkspaceRoot(), pattern)
	} else {
		outputs, err = build.FirmwareOutputs(desc.WorkspaceRoot(), desc.PackageName(), inv.Target, inv.Toolchain)
	}
	if err != nil {
		return err
	}

	backend, err := storage.New(storageConfig())
	if err != nil {
		return err
	}

	archiver := build.NewArchiver(log, backend)
	_, err = archiver.ArchiveBuild(ctx, desc.Name(), inv.Target, inv.ID, outputs)
	return err
}

// storageConfig assembles the archive backend configuration from viper.
func storageConfig() storage.Config {
	return storage.Config{
		Type: viper.GetString("storage.type"),
		Local: storage.LocalConfig{
			BasePath: viper.GetString("storage.local.path"),
		},
		S3: storage.S3Config{
			Endpoint:        viper.GetString("storage.s3.endpoint"),
			Region:          viper.GetString("storage.s3.region"),
			Bucket:          viper.GetString("storage.s3.bucket"),
			AccessKeyID:     viper.GetString("storage.s3.access_key"),
			SecretAccessKey: viper.GetString("storage.s3.secret_key"),
			UsePathStyle:    viper.GetBool("storage.s3.path_style"),
		},
	}
}

// recordInvocation appends one row to the build history. History is
// advisory; failures are logged and never change the exit code.
func recordInvocation(inv *report.Invocation) {
	store, err := report.Open(log, cli.GetExpandedString("report.path"))
	if err != nil {
		log.Warn("Build history unavailable", "error", err)
		return
	}
	defer store.Close()

	if err := store.Record(inv); err != nil {
		log.Warn("Failed to record invocation", "error", err)
	}
}
