// Where: internal/execenv/runner.go
// What: External command execution primitives.
// Why: Provide a minimal, testable interface for running environment commands.
package execenv

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
)

// Invocation describes one external command run.
type Invocation struct {
	Dir  string
	Env  []string
	Argv []string
	// Stdout and Stderr receive the command's output. Nil writers fall back
	// to the process streams.
	Stdout io.Writer
	Stderr io.Writer
}

// CommandRunner defines the interface for executing external commands.
type CommandRunner interface {
	Run(ctx context.Context, inv Invocation) error
	RunOutput(ctx context.Context, inv Invocation) ([]byte, error)
}

// ExecRunner is a concrete implementation of CommandRunner using os/exec.
type ExecRunner struct{}

// Run executes a command, streaming output to the invocation's writers.
func (ExecRunner) Run(ctx context.Context, inv Invocation) error {
	cmd := command(ctx, inv)
	cmd.Stdout = inv.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = inv.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	return cmd.Run()
}

// RunOutput executes a command and returns its combined output.
func (ExecRunner) RunOutput(ctx context.Context, inv Invocation) ([]byte, error) {
	return command(ctx, inv).CombinedOutput()
}

func command(ctx context.Context, inv Invocation) *exec.Cmd {
	cmd := exec.CommandContext(ctx, inv.Argv[0], inv.Argv[1:]...)
	cmd.Dir = inv.Dir
	cmd.Env = inv.Env
	return cmd
}

// ExitCode extracts the process exit status from a runner error. Errors that
// carry no status, such as a missing executable, report -1.
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
