package core

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/eebbk/s6build/src/common/errors"
	"github.com/eebbk/s6build/src/common/logs"
	"github.com/eebbk/s6build/src/s6build/report"
	"github.com/eebbk/s6build/src/s6build/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// =============================================================================
// Test Helpers
// =============================================================================

// executeCommand runs a cobra command with the given args and returns stdout/stderr
func executeCommand(root *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

// resetFlags restores every root command flag to its default after a
// test that parsed arguments, so executions do not leak into each
// other.
func resetFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		restore := func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		}
		rootCmd.Flags().VisitAll(restore)
		rootCmd.PersistentFlags().VisitAll(restore)
	})
}

// setupTestLogger injects a quiet logger for tests that call run
// functions directly, bypassing the root command's config phase.
func setupTestLogger() {
	log = logs.New(logs.Config{Output: logs.OutputStdout, Level: "error", Prefix: "test"})
}

// newTestWorkspace creates a workspace holding the platform DSC so the
// build pipeline passes its pre-flight checks.
func newTestWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	pkgDir := filepath.Join(root, "s6Pkg")
	if err := os.MkdirAll(pkgDir, 0o755); err != nil {
		t.Fatalf("failed to create package dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(pkgDir, "s6.dsc"), []byte("[Defines]\n"), 0o644); err != nil {
		t.Fatalf("failed to write dsc: %v", err)
	}
	return root
}

// stubTool writes an executable that records its arguments and exits 0.
// Returns the path of the argument log.
func stubTool(t *testing.T, dir, name string) string {
	t.Helper()
	argLog := filepath.Join(dir, name+".log")
	script := "#!/bin/sh\necho \"$@\" >> \"" + argLog + "\"\nexit 0\n"
	if err := os.WriteFile(filepath.Join(dir, name), []byte(script), 0o755); err != nil {
		t.Fatalf("failed to write %s stub: %v", name, err)
	}
	return argLog
}

// =============================================================================
// Command Registration Tests
// =============================================================================

func TestRootCommand_HasSubcommands(t *testing.T) {
	expected := []string{"version", "history", "archives"}

	commands := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		commands[cmd.Name()] = true
	}

	for _, name := range expected {
		if !commands[name] {
			t.Errorf("expected subcommand %q not found on root", name)
		}
	}
}

// =============================================================================
// Flag Tests
// =============================================================================

func TestRootCmd_ModeFlags(t *testing.T) {
	for _, name := range []string{"setup", "update", "force", "archive", "no-report"} {
		flag := rootCmd.Flags().Lookup(name)
		if flag == nil {
			t.Fatalf("expected flag --%s on root", name)
		}
		if flag.DefValue != "false" {
			t.Errorf("expected --%s to default to false, got %q", name, flag.DefValue)
		}
	}
}

func TestRootCmd_ArchFlag(t *testing.T) {
	flag := rootCmd.Flags().Lookup("arch")
	if flag == nil {
		t.Fatal("expected --arch flag on root")
	}
	if flag.Shorthand != "a" {
		t.Errorf("expected shorthand 'a' for --arch, got %q", flag.Shorthand)
	}
	if flag.DefValue != "AARCH64" {
		t.Errorf("expected default arch AARCH64, got %q", flag.DefValue)
	}
}

func TestRootCmd_TargetFlag(t *testing.T) {
	flag := rootCmd.Flags().Lookup("target")
	if flag == nil {
		t.Fatal("expected --target flag on root")
	}
	if flag.Shorthand != "t" {
		t.Errorf("expected shorthand 't' for --target, got %q", flag.Shorthand)
	}
	if flag.DefValue != "DEBUG" {
		t.Errorf("expected default target DEBUG, got %q", flag.DefValue)
	}
}

func TestRootCmd_WorkspaceFlag(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("workspace")
	if flag == nil {
		t.Fatal("expected --workspace persistent flag on root")
	}
	if flag.Shorthand != "w" {
		t.Errorf("expected shorthand 'w' for --workspace, got %q", flag.Shorthand)
	}
	if flag.DefValue != "." {
		t.Errorf("expected default workspace '.', got %q", flag.DefValue)
	}
}

func TestRootCmd_StorageFlags(t *testing.T) {
	for _, name := range []string{
		"storage-type", "storage-path",
		"s3-endpoint", "s3-region", "s3-bucket",
		"s3-access-key", "s3-secret-key", "s3-path-style",
	} {
		if rootCmd.Flags().Lookup(name) == nil {
			t.Errorf("expected flag --%s on root", name)
		}
	}
}

func TestRootCmd_UppercaseModeSpellings(t *testing.T) {
	setup := rootCmd.Flags().Lookup("SETUP")
	if setup == nil || setup.Name != "setup" {
		t.Error("expected --SETUP to resolve to the setup flag")
	}
	update := rootCmd.Flags().Lookup("UPDATE")
	if update == nil || update.Name != "update" {
		t.Error("expected --UPDATE to resolve to the update flag")
	}
	if rootCmd.Flags().Lookup("ARCH") != nil {
		t.Error("uppercase aliasing should only cover the mode flags")
	}
}

// =============================================================================
// Arg Validation Tests
// =============================================================================

func TestValidateDefineArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{name: "no args", args: nil, wantErr: false},
		{name: "single define", args: []string{"BLD_*_SHIP_MODE=TRUE"}, wantErr: false},
		{name: "multiple defines", args: []string{"TARGET=RELEASE", "CUSTOM=1"}, wantErr: false},
		{name: "empty value", args: []string{"EMPTY="}, wantErr: false},
		{name: "missing equals", args: []string{"MALFORMED"}, wantErr: true},
		{name: "missing name", args: []string{"=VALUE"}, wantErr: true},
		{name: "valid then malformed", args: []string{"GOOD=1", "BAD"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateDefineArgs(rootCmd, tt.args)
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestRootCmd_RejectsMalformedPositional(t *testing.T) {
	resetFlags(t)

	_, err := executeCommand(rootCmd, "BADARG")
	if err == nil {
		t.Fatal("expected error for positional argument without NAME=VALUE form")
	}
	if !strings.Contains(err.Error(), "NAME=VALUE") {
		t.Errorf("expected NAME=VALUE hint in error, got %q", err.Error())
	}
}

func TestRootCmd_ModeFlagsMutuallyExclusive(t *testing.T) {
	resetFlags(t)

	_, err := executeCommand(rootCmd, "--setup", "--update")
	if err == nil {
		t.Fatal("expected error for --setup together with --update")
	}
}

// =============================================================================
// Dispatch Tests (with stub tools)
// =============================================================================

func TestRootCmd_BuildDispatch_StubEngine(t *testing.T) {
	resetFlags(t)

	workspace := newTestWorkspace(t)
	stubDir := t.TempDir()
	argLog := stubTool(t, stubDir, "build")
	t.Setenv("PATH", stubDir+string(os.PathListSeparator)+os.Getenv("PATH"))

	_, err := executeCommand(rootCmd,
		"--workspace", workspace, "--no-report", "BLD_*_CUSTOM=1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	recorded, err := os.ReadFile(argLog)
	if err != nil {
		t.Fatalf("engine stub was not invoked: %v", err)
	}
	invocation := string(recorded)
	for _, want := range []string{
		"-a AARCH64",
		"-t CLANGPDB",
		"-b DEBUG",
		"-D CUSTOM=1",
		"-D BUILDID_STRING=Unknown",
	} {
		if !strings.Contains(invocation, want) {
			t.Errorf("expected %q in engine invocation %q", want, invocation)
		}
	}
}

func TestRootCmd_BuildDispatch_PositionalTargetWins(t *testing.T) {
	resetFlags(t)

	workspace := newTestWorkspace(t)
	stubDir := t.TempDir()
	argLog := stubTool(t, stubDir, "build")
	t.Setenv("PATH", stubDir+string(os.PathListSeparator)+os.Getenv("PATH"))

	_, err := executeCommand(rootCmd,
		"--workspace", workspace, "--no-report", "TARGET=RELEASE")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	recorded, err := os.ReadFile(argLog)
	if err != nil {
		t.Fatalf("engine stub was not invoked: %v", err)
	}
	if !strings.Contains(string(recorded), "-b RELEASE") {
		t.Errorf("expected RELEASE build in engine invocation %q", string(recorded))
	}
}

func TestRootCmd_SetupDispatch_StubGit(t *testing.T) {
	resetFlags(t)

	workspace := newTestWorkspace(t)
	stubDir := t.TempDir()
	argLog := stubTool(t, stubDir, "git")
	t.Setenv("PATH", stubDir+string(os.PathListSeparator)+os.Getenv("PATH"))

	_, err := executeCommand(rootCmd, "--setup", "--workspace", workspace, "--no-report")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	recorded, err := os.ReadFile(argLog)
	if err != nil {
		t.Fatalf("git stub was not invoked: %v", err)
	}
	invocation := string(recorded)
	if !strings.Contains(invocation, "submodule sync") {
		t.Errorf("expected submodule sync in git invocations %q", invocation)
	}
	if !strings.Contains(invocation, "Mu_Basecore") {
		t.Errorf("expected Mu_Basecore submodule update in git invocations %q", invocation)
	}
}

func TestRootCmd_RejectsUnsupportedArch(t *testing.T) {
	resetFlags(t)

	workspace := newTestWorkspace(t)

	_, err := executeCommand(rootCmd, "--workspace", workspace, "--no-report", "-a", "X64")
	if !errors.Is(err, errors.ErrUnsupportedArch) {
		t.Fatalf("expected unsupported architecture error, got %v", err)
	}
}

// =============================================================================
// Helper Tests
// =============================================================================

func TestSplitArchList(t *testing.T) {
	tests := []struct {
		name string
		csv  string
		want []string
	}{
		{name: "single", csv: "AARCH64", want: []string{"AARCH64"}},
		{name: "lowercased", csv: "aarch64", want: []string{"AARCH64"}},
		{name: "csv", csv: "AARCH64,X64", want: []string{"AARCH64", "X64"}},
		{name: "spaces trimmed", csv: " aarch64 , x64 ", want: []string{"AARCH64", "X64"}},
		{name: "empty", csv: "", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitArchList(tt.csv)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("expected %v, got %v", tt.want, got)
					break
				}
			}
		})
	}
}

func TestResolveWorkspace(t *testing.T) {
	resetFlags(t)

	dir := t.TempDir()
	if err := rootCmd.PersistentFlags().Set("workspace", dir); err != nil {
		t.Fatalf("failed to set workspace flag: %v", err)
	}

	got, err := resolveWorkspace()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != dir {
		t.Errorf("expected workspace %q, got %q", dir, got)
	}

	if err := rootCmd.PersistentFlags().Set("workspace", filepath.Join(dir, "missing")); err != nil {
		t.Fatalf("failed to set workspace flag: %v", err)
	}
	if _, err := resolveWorkspace(); !errors.Is(err, errors.ErrWorkspaceInvalid) {
		t.Errorf("expected invalid workspace error, got %v", err)
	}
}

func TestStorageConfig_Defaults(t *testing.T) {
	cfg := storageConfig()
	if cfg.Type != "local" {
		t.Errorf("expected local backend by default, got %q", cfg.Type)
	}
	if cfg.S3.Region != "us-east-1" {
		t.Errorf("expected default region us-east-1, got %q", cfg.S3.Region)
	}
	if cfg.S3.Bucket != "s6-firmware" {
		t.Errorf("expected default bucket s6-firmware, got %q", cfg.S3.Bucket)
	}
	if !cfg.S3.UsePathStyle {
		t.Error("expected path-style addressing by default")
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("0a1b2c3d-4e5f-6071-8293-a4b5c6d7e8f9"); got != "0a1b2c3d" {
		t.Errorf("expected 0a1b2c3d, got %q", got)
	}
	if got := shortID("short"); got != "short" {
		t.Errorf("expected short ids to pass through, got %q", got)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name string
		ms   int64
		want string
	}{
		{name: "sub-second", ms: 250, want: "250ms"},
		{name: "seconds", ms: 4000, want: "4s"},
		{name: "minutes", ms: 90500, want: "1m30s"},
		{name: "zero", ms: 0, want: "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatDuration(tt.ms); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestInvocationResult(t *testing.T) {
	ok := report.Invocation{Success: true}
	if got := invocationResult(ok); got != "success" {
		t.Errorf("expected success, got %q", got)
	}
	failed := report.Invocation{Success: false, ExitCode: 2}
	if got := invocationResult(failed); got != "failed (2)" {
		t.Errorf("expected failed (2), got %q", got)
	}
}

// =============================================================================
// History Command Tests
// =============================================================================

func TestHistoryCmd_Flags(t *testing.T) {
	limit := historyCmd.Flags().Lookup("limit")
	if limit == nil {
		t.Fatal("expected --limit flag on history")
	}
	if limit.DefValue != "20" {
		t.Errorf("expected default limit 20, got %q", limit.DefValue)
	}
	format := historyCmd.Flags().Lookup("output")
	if format == nil {
		t.Fatal("expected --output flag on history")
	}
	if format.DefValue != "table" {
		t.Errorf("expected default output format 'table', got %q", format.DefValue)
	}
}

func TestRunHistory_EmptyStore(t *testing.T) {
	resetFlags(t)
	setupTestLogger()

	dbPath := filepath.Join(t.TempDir(), "history.db")
	if err := rootCmd.PersistentFlags().Set("report-path", dbPath); err != nil {
		t.Fatalf("failed to set report-path flag: %v", err)
	}

	var buf bytes.Buffer
	historyCmd.SetOut(&buf)
	t.Cleanup(func() { historyCmd.SetOut(nil) })

	if err := runHistory(historyCmd, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "No invocations recorded.") {
		t.Errorf("expected empty history notice, got %q", buf.String())
	}
}

func TestRunHistory_JSON(t *testing.T) {
	resetFlags(t)
	setupTestLogger()

	dbPath := filepath.Join(t.TempDir(), "history.db")
	store, err := report.Open(log, dbPath)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	inv := &report.Invocation{
		Mode:      report.ModeBuild,
		Product:   "s6",
		Target:    "DEBUG",
		Arch:      "AARCH64",
		StartedAt: time.Now().Add(-time.Minute),
		Success:   true,
	}
	if err := store.Record(inv); err != nil {
		t.Fatalf("failed to record invocation: %v", err)
	}
	store.Close()

	if err := rootCmd.PersistentFlags().Set("report-path", dbPath); err != nil {
		t.Fatalf("failed to set report-path flag: %v", err)
	}
	if err := historyCmd.Flags().Set("output", "json"); err != nil {
		t.Fatalf("failed to set output flag: %v", err)
	}
	t.Cleanup(func() {
		flag := historyCmd.Flags().Lookup("output")
		_ = flag.Value.Set("table")
		flag.Changed = false
	})

	var buf bytes.Buffer
	historyCmd.SetOut(&buf)
	t.Cleanup(func() { historyCmd.SetOut(nil) })

	if err := runHistory(historyCmd, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var listed []report.Invocation
	if err := json.Unmarshal(buf.Bytes(), &listed); err != nil {
		t.Fatalf("invalid JSON history output: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected 1 invocation, got %d", len(listed))
	}
	if listed[0].Target != "DEBUG" || listed[0].Mode != report.ModeBuild {
		t.Errorf("unexpected invocation listed: %+v", listed[0])
	}
}

// =============================================================================
// Archives Command Tests
// =============================================================================

func TestArchivesCmd_Flags(t *testing.T) {
	prefix := archivesCmd.Flags().Lookup("prefix")
	if prefix == nil {
		t.Fatal("expected --prefix flag on archives")
	}
	if prefix.DefValue != "" {
		t.Errorf("expected empty default prefix, got %q", prefix.DefValue)
	}
	format := archivesCmd.Flags().Lookup("output")
	if format == nil {
		t.Fatal("expected --output flag on archives")
	}
	if format.DefValue != "table" {
		t.Errorf("expected default output format 'table', got %q", format.DefValue)
	}
}

func TestRunArchives_EmptyBackend(t *testing.T) {
	resetFlags(t)

	if err := rootCmd.Flags().Set("storage-path", t.TempDir()); err != nil {
		t.Fatalf("failed to set storage-path flag: %v", err)
	}

	var buf bytes.Buffer
	archivesCmd.SetOut(&buf)
	t.Cleanup(func() { archivesCmd.SetOut(nil) })

	if err := runArchives(archivesCmd, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "No archived firmware images.") {
		t.Errorf("expected empty archive notice, got %q", buf.String())
	}
}

func TestRunArchives_ListsStoredImages(t *testing.T) {
	resetFlags(t)

	base := t.TempDir()
	backend, err := storage.NewLocal(storage.LocalConfig{BasePath: base})
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}
	ctx := context.Background()
	key := "s6/DEBUG/run-1/S6_EFI.fd.xz"
	if err := backend.Store(ctx, key, strings.NewReader("xz data"), 7); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	if err := rootCmd.Flags().Set("storage-path", base); err != nil {
		t.Fatalf("failed to set storage-path flag: %v", err)
	}

	var buf bytes.Buffer
	archivesCmd.SetOut(&buf)
	t.Cleanup(func() { archivesCmd.SetOut(nil) })

	if err := runArchives(archivesCmd, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), key) {
		t.Errorf("expected %q in archive listing, got %q", key, buf.String())
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		name string
		n    int64
		want string
	}{
		{name: "bytes", n: 512, want: "512 B"},
		{name: "kibibytes", n: 2048, want: "2.0 KiB"},
		{name: "mebibytes", n: 4 << 20, want: "4.0 MiB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatSize(tt.n); got != tt.want {
				t.Errorf("formatSize(%d) = %q, want %q", tt.n, got, tt.want)
			}
		})
	}
}

// =============================================================================
// Version Tests
// =============================================================================

func TestVersionInfo_Defaults(t *testing.T) {
	if Version != "dev" {
		t.Errorf("expected default Version 'dev', got %q", Version)
	}
	if ReleaseName != "Silicium" {
		t.Errorf("expected default ReleaseName 'Silicium', got %q", ReleaseName)
	}
	if BuildDate != "unknown" {
		t.Errorf("expected default BuildDate 'unknown', got %q", BuildDate)
	}
}

func TestRunVersion(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	t.Cleanup(func() { versionCmd.SetOut(nil) })

	if err := runVersion(versionCmd, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "Release:") {
		t.Errorf("expected version block, got %q", buf.String())
	}

	if err := versionCmd.Flags().Set("output", "json"); err != nil {
		t.Fatalf("failed to set output flag: %v", err)
	}
	t.Cleanup(func() {
		flag := versionCmd.Flags().Lookup("output")
		_ = flag.Value.Set("text")
		flag.Changed = false
	})

	buf.Reset()
	if err := runVersion(versionCmd, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var fields map[string]string
	if err := json.Unmarshal(buf.Bytes(), &fields); err != nil {
		t.Fatalf("invalid JSON version output: %v", err)
	}
	if fields["release_name"] != "Silicium" {
		t.Errorf("expected release_name Silicium, got %q", fields["release_name"])
	}
}
