package build

import (
	"bufio"
	"context"
	"os"
	"strings"

	"github.com/eebbk/s6build/src/common/logs"
	"github.com/eebbk/s6build/src/s6build/platform"
	"golang.org/x/term"
)

// SetupOptions configures the setup pipeline.
type SetupOptions struct {
	// Architectures is the requested architecture set.
	Architectures []string

	// Force re-initializes every submodule, discarding local state.
	Force bool
}

// Setup fetches the platform's submodule tree into the workspace.
type Setup struct {
	log      *logs.Logger
	settings *platform.Settings
	runner   *Runner
	opts     SetupOptions
}

// NewSetup creates the setup pipeline.
func NewSetup(log *logs.Logger, settings *platform.Settings, runner *Runner, opts SetupOptions) *Setup {
	return &Setup{
		log:      log,
		settings: settings,
		runner:   runner,
		opts:     opts,
	}
}

// Run validates the requested architectures, reports the current
// submodule state, and initializes every required submodule through
// git. Optional submodules that fail to update are skipped with a
// warning.
func (s *Setup) Run(ctx context.Context) error {
	if err := s.settings.SetArchitectures(s.opts.Architectures); err != nil {
		return err
	}

	if findings := s.settings.ValidateSubmodules(); len(findings) > 0 {
		s.log.Info("Workspace submodule state", "findings", len(findings))
	}

	if s.opts.Force {
		if !s.confirmForce() {
			s.log.Info("Setup cancelled")
			return nil
		}
		s.deinitSubmodules(ctx)
	}

	if err := s.runner.Git(ctx, "submodule", "sync"); err != nil {
		return err
	}

	submodules := platform.RequiredSubmodules()
	for _, submodule := range submodules {
		args := []string{"submodule", "update", "--init"}
		if submodule.Recursive {
			args = append(args, "--recursive")
		}
		args = append(args, "--", submodule.Path)

		s.log.Info("Updating submodule", "path", submodule.Path, "recursive", submodule.Recursive)
		if err := s.runner.Git(ctx, args...); err != nil {
			if submodule.Optional {
				s.log.Warn("Optional submodule update failed, skipping", "path", submodule.Path, "error", err)
				continue
			}
			return err
		}
	}

	s.log.Info("Setup complete", "submodules", len(submodules))
	return nil
}

// confirmForce asks for confirmation before a forced re-init when
// stdin is a terminal. Non-interactive runs proceed without asking.
func (s *Setup) confirmForce() bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return true
	}

	os.Stdout.WriteString("Force setup re-initializes all submodules and discards local changes. Continue? [y/N] ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// deinitSubmodules unregisters every submodule so the following update
// starts from a clean slate. Failures are logged and ignored; a path
// that was never initialized cannot be deinitialized.
func (s *Setup) deinitSubmodules(ctx context.Context) {
	for _, submodule := range platform.RequiredSubmodules() {
		if err := s.runner.Git(ctx, "submodule", "deinit", "--force", "--", submodule.Path); err != nil {
			s.log.Debug("Submodule deinit skipped", "path", submodule.Path, "error", err)
		}
	}
}
