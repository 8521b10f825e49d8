package build

import (
	"context"

	"github.com/eebbk/s6build/src/common/logs"
	"github.com/eebbk/s6build/src/s6build/platform"
)

// UpdateOptions configures the update pipeline.
type UpdateOptions struct {
	// Architectures is the requested architecture set.
	Architectures []string
}

// Update refreshes the already initialized submodule tree.
type Update struct {
	log      *logs.Logger
	settings *platform.Settings
	runner   *Runner
	opts     UpdateOptions
}

// NewUpdate creates the update pipeline.
func NewUpdate(log *logs.Logger, settings *platform.Settings, runner *Runner, opts UpdateOptions) *Update {
	return &Update{
		log:      log,
		settings: settings,
		runner:   runner,
		opts:     opts,
	}
}

// Run validates the requested architectures and moves every required
// submodule to the revision pinned by the superproject. The failure
// policy matches setup: optional submodules are skipped with a
// warning.
func (u *Update) Run(ctx context.Context) error {
	if err := u.settings.SetArchitectures(u.opts.Architectures); err != nil {
		return err
	}

	if err := u.runner.Git(ctx, "submodule", "sync"); err != nil {
		return err
	}

	submodules := platform.RequiredSubmodules()
	for _, submodule := range submodules {
		args := []string{"submodule", "update", "--init"}
		if submodule.Recursive {
			args = append(args, "--recursive")
		}
		args = append(args, "--", submodule.Path)

		u.log.Info("Refreshing submodule", "path", submodule.Path)
		if err := u.runner.Git(ctx, args...); err != nil {
			if submodule.Optional {
				u.log.Warn("Optional submodule refresh failed, skipping", "path", submodule.Path, "error", err)
				continue
			}
			return err
		}
	}

	u.log.Info("Update complete", "submodules", len(submodules))
	return nil
}
