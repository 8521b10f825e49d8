package platform

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eebbk/s6build/src/common/errors"
	"github.com/eebbk/s6build/src/common/logs"
)

func newTestSettings(workspaceRoot string) *Settings {
	return NewSettings(logs.NewDefault(), NewDescriptor(workspaceRoot))
}

func TestDescriptorStaticFacts(t *testing.T) {
	desc := NewDescriptor("/ws")

	if desc.Name() != "s6" {
		t.Errorf("Name() = %q, want s6", desc.Name())
	}
	if desc.PackageName() != "s6Pkg" {
		t.Errorf("PackageName() = %q, want s6Pkg", desc.PackageName())
	}
	if desc.DscPath() != "s6Pkg/s6.dsc" {
		t.Errorf("DscPath() = %q, want s6Pkg/s6.dsc", desc.DscPath())
	}
	if got := desc.DscAbsPath(); got != filepath.Join("/ws", "s6Pkg", "s6.dsc") {
		t.Errorf("DscAbsPath() = %q", got)
	}

	archs := desc.ArchSupported()
	if len(archs) != 1 || archs[0] != "AARCH64" {
		t.Errorf("ArchSupported() = %v, want [AARCH64]", archs)
	}

	targets := desc.TargetsSupported()
	if len(targets) != 2 || targets[0] != "DEBUG" || targets[1] != "RELEASE" {
		t.Errorf("TargetsSupported() = %v, want [DEBUG RELEASE]", targets)
	}

	scopes := desc.ActiveScopes()
	want := []string{"s6", "gcc_aarch64_linux", "edk2-build"}
	if len(scopes) != len(want) {
		t.Fatalf("ActiveScopes() = %v, want %v", scopes, want)
	}
	for i := range want {
		if scopes[i] != want[i] {
			t.Errorf("ActiveScopes()[%d] = %q, want %q", i, scopes[i], want[i])
		}
	}

	pkgPaths := desc.PackagesPath()
	if len(pkgPaths) != 10 {
		t.Fatalf("PackagesPath() returned %d entries, want 10", len(pkgPaths))
	}
	if pkgPaths[0] != "Platforms/Lenovo" || pkgPaths[9] != "Silicium-ACPI/SoCs/Qualcomm" {
		t.Errorf("PackagesPath() order changed: %v", pkgPaths)
	}
}

func TestDescriptorReturnsCopies(t *testing.T) {
	desc := NewDescriptor("/ws")

	scopes := desc.ActiveScopes()
	scopes[0] = "mutated"
	if desc.ActiveScopes()[0] != "s6" {
		t.Error("mutating a returned slice changed the platform record")
	}
}

func TestSetArchitectures(t *testing.T) {
	tests := []struct {
		name      string
		requested []string
		wantErr   bool
		wantIn    string
	}{
		{
			name:      "supported architecture accepted",
			requested: []string{"AARCH64"},
			wantErr:   false,
		},
		{
			name:      "unsupported architecture rejected",
			requested: []string{"X64"},
			wantErr:   true,
			wantIn:    "Unsupported Architecture Requested: X64",
		},
		{
			name:      "mixed set rejected",
			requested: []string{"AARCH64", "X64"},
			wantErr:   true,
			wantIn:    "X64",
		},
		{
			name:      "multiple unsupported listed",
			requested: []string{"IA32", "X64"},
			wantErr:   true,
			wantIn:    "IA32 X64",
		},
		{
			name:      "empty request accepted",
			requested: nil,
			wantErr:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := newTestSettings("/ws")
			err := settings.SetArchitectures(tt.requested)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SetArchitectures(%v) error = %v, wantErr %v", tt.requested, err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, errors.ErrUnsupportedArch) {
					t.Errorf("error = %v, want unsupported architecture", err)
				}
				if !strings.Contains(err.Error(), tt.wantIn) {
					t.Errorf("error %q does not mention %q", err.Error(), tt.wantIn)
				}
			}
		})
	}
}

func TestArchitecturesFallsBackToSupported(t *testing.T) {
	settings := newTestSettings("/ws")

	got := settings.Architectures()
	if len(got) != 1 || got[0] != "AARCH64" {
		t.Errorf("Architectures() = %v, want [AARCH64]", got)
	}

	if err := settings.SetArchitectures([]string{"AARCH64"}); err != nil {
		t.Fatalf("SetArchitectures() error = %v", err)
	}
	got = settings.Architectures()
	if len(got) != 1 || got[0] != "AARCH64" {
		t.Errorf("Architectures() after set = %v, want [AARCH64]", got)
	}
}

func TestValidateTarget(t *testing.T) {
	settings := newTestSettings("/ws")

	tests := []struct {
		name    string
		target  string
		wantErr bool
	}{
		{name: "debug accepted", target: "DEBUG", wantErr: false},
		{name: "release accepted", target: "RELEASE", wantErr: false},
		{name: "lowercase accepted", target: "debug", wantErr: false},
		{name: "noopt rejected", target: "NOOPT", wantErr: true},
		{name: "empty rejected", target: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := settings.ValidateTarget(tt.target)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateTarget(%q) error = %v, wantErr %v", tt.target, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errors.ErrUnsupportedTarget) {
				t.Errorf("error = %v, want unsupported target", err)
			}
		})
	}
}

func TestDscAndConfig(t *testing.T) {
	workspace := t.TempDir()
	settings := newTestSettings(workspace)

	// Missing DSC is fatal and reads like a missing file to callers.
	_, _, err := settings.DscAndConfig()
	if err == nil {
		t.Fatal("DscAndConfig() expected error for missing DSC")
	}
	if !errors.Is(err, errors.ErrDscNotFound) {
		t.Errorf("error = %v, want DSC not found", err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("error = %v, want fs.ErrNotExist in chain", err)
	}

	dscDir := filepath.Join(workspace, "s6Pkg")
	if err := os.MkdirAll(dscDir, 0755); err != nil {
		t.Fatalf("failed to create package directory: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dscDir, "s6.dsc"), []byte("[Defines]\n"), 0644); err != nil {
		t.Fatalf("failed to create DSC file: %v", err)
	}

	dscPath, config, err := settings.DscAndConfig()
	if err != nil {
		t.Fatalf("DscAndConfig() error = %v", err)
	}
	if dscPath != "s6Pkg/s6.dsc" {
		t.Errorf("DscAndConfig() path = %q, want s6Pkg/s6.dsc", dscPath)
	}
	if config == nil || len(config) != 0 {
		t.Errorf("DscAndConfig() config = %v, want empty map", config)
	}
}
