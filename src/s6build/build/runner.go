// Package build drives the s6 firmware pipelines: workspace setup,
// dependency update, and the platform build handed off to the external
// firmware build engine.
package build

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"

	charmlog "github.com/charmbracelet/log"
	"github.com/eebbk/s6build/src/common/errors"
	"github.com/eebbk/s6build/src/common/logs"
)

// EngineCommand is the firmware build engine binary invoked for the
// platform build. It comes from the basecore BaseTools and must be on
// PATH after the environment is activated.
const EngineCommand = "build"

// GitCommand is the binary used for submodule management.
const GitCommand = "git"

// Runner executes the external toolchain processes from the workspace
// root, streaming their output through the structured logger.
type Runner struct {
	log           *logs.Logger
	workspaceRoot string
}

// NewRunner creates a runner rooted at the given workspace directory.
func NewRunner(log *logs.Logger, workspaceRoot string) *Runner {
	return &Runner{
		log:           log,
		workspaceRoot: workspaceRoot,
	}
}

// GitAvailable reports whether git can be found on PATH.
func (r *Runner) GitAvailable() bool {
	_, err := exec.LookPath(GitCommand)
	return err == nil
}

// EngineAvailable reports whether the firmware build engine can be
// found on PATH.
func (r *Runner) EngineAvailable() bool {
	_, err := exec.LookPath(EngineCommand)
	return err == nil
}

// Git runs a git command in the workspace root. Output is streamed to
// the logger; failures carry the command line and trailing stderr.
func (r *Runner) Git(ctx context.Context, args ...string) error {
	if !r.GitAvailable() {
		return errors.ErrGitNotFound
	}
	if err := r.run(ctx, GitCommand, args, nil); err != nil {
		return errors.ErrGitFailed.WithMessagef("git %s failed", strings.Join(args, " ")).WithCause(err)
	}
	return nil
}

// Engine runs the firmware build engine in the workspace root with the
// given build variables appended to the process environment.
func (r *Runner) Engine(ctx context.Context, env []string, args ...string) error {
	if !r.EngineAvailable() {
		return errors.ErrEngineNotFound.WithMessagef(
			"firmware build engine %q not found in PATH, activate the basecore environment first", EngineCommand)
	}
	if err := r.run(ctx, EngineCommand, args, env); err != nil {
		return errors.ErrEngineFailed.WithMessagef("%s %s failed", EngineCommand, strings.Join(args, " ")).WithCause(err)
	}
	return nil
}

func (r *Runner) run(ctx context.Context, name string, args, env []string) error {
	r.log.Debug("Running external command", "command", name, "args", strings.Join(args, " "), "dir", r.workspaceRoot)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.workspaceRoot
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	// Keep the stderr tail for error reporting while still streaming
	// both pipes through the logger.
	var stderr bytes.Buffer
	cmd.Stdout = r.log.Writer(charmlog.InfoLevel)
	cmd.Stderr = io.MultiWriter(&stderr, r.log.Writer(charmlog.ErrorLevel))

	if err := cmd.Run(); err != nil {
		tail := strings.TrimSpace(stderr.String())
		if tail != "" {
			return &commandError{err: err, stderr: tail}
		}
		return err
	}
	return nil
}

// commandError pairs a process exit error with the stderr it produced.
type commandError struct {
	err    error
	stderr string
}

func (e *commandError) Error() string {
	return e.err.Error() + ", stderr: " + e.stderr
}

func (e *commandError) Unwrap() error {
	return e.err
}

// ExitCode extracts the process exit code from an error chain. It
// returns 0 for nil, the exit status when the chain holds an
// exec.ExitError, and -1 for every other failure.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
