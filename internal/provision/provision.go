// Where: internal/provision/provision.go
// What: Environment lifecycle: create, reuse, recreate, remove.
// Why: Bring an environment to a usable state before its commands run.
package provision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/crucible-dev/crucible/internal/config"
	"github.com/crucible-dev/crucible/internal/execenv"
	"github.com/crucible-dev/crucible/internal/meta"
	"github.com/crucible-dev/crucible/internal/ui"
)

// ErrMissingInterpreter marks a basepython that resolves to nothing. The run
// orchestrator converts it into a skip when skip_missing_interpreters is set.
var ErrMissingInterpreter = errors.New("interpreter not found")

// Status values describe an environment directory's relation to its config.
const (
	StatusAbsent = "absent"
	StatusOK     = "ok"
	StatusStale  = "stale"
)

// Options tune one Ensure call.
type Options struct {
	// Recreate tears the environment down even when the fingerprint matches.
	Recreate bool
}

// Provisioner creates and maintains environments.
type Provisioner struct {
	Runner  execenv.CommandRunner
	Console *ui.Console
	Global  config.GlobalConfig
	// Docker answers image queries for the container runner. When nil the
	// image is pulled unconditionally.
	Docker DockerClient
	// LookPath resolves interpreter names, exec.LookPath by default.
	LookPath func(name string) (string, error)
}

// New returns a Provisioner with the default runner and interpreter lookup.
func New(console *ui.Console, global config.GlobalConfig) *Provisioner {
	return &Provisioner{
		Runner:  execenv.ExecRunner{},
		Console: console,
		Global:  global,
	}
}

func (p *Provisioner) console() *ui.Console {
	if p.Console == nil {
		return ui.New(io.Discard)
	}
	return p.Console
}

func (p *Provisioner) lookPath(name string) (string, error) {
	if p.LookPath != nil {
		return p.LookPath(name)
	}
	return exec.LookPath(name)
}

// ResolveInterpreter maps a basepython name to an executable path. The
// interpreter map in the global config wins over PATH discovery.
func (p *Provisioner) ResolveInterpreter(basePython string) (string, error) {
	if path, ok := p.Global.Interpreters[basePython]; ok {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("%w: configured path for %s: %v", ErrMissingInterpreter, basePython, err)
		}
		return path, nil
	}
	path, err := p.lookPath(basePython)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMissingInterpreter, err)
	}
	return path, nil
}

// Ensure brings the environment to a usable state: reuse when the stored
// fingerprint matches, otherwise recreate from scratch.
func (p *Provisioner) Ensure(ctx context.Context, env *config.Env, opts Options) error {
	if env.Runner == config.RunnerContainer {
		return p.ensureContainer(ctx, env, opts)
	}

	interpreter, err := p.ResolveInterpreter(env.BasePython)
	if err != nil {
		return fmt.Errorf("%s: %w", env.Name, err)
	}

	want := Fingerprint(env, interpreter)
	if !opts.Recreate && storedFingerprint(env) == want {
		return nil
	}

	if _, err := os.Stat(env.EnvDir); err == nil {
		reason := "recreate requested"
		if !opts.Recreate {
			reason = "configuration changed"
		}
		p.console().Info(fmt.Sprintf("%s: recreating environment (%s)", env.Name, reason))
		if err := p.Remove(env); err != nil {
			return err
		}
	}

	p.console().Info(fmt.Sprintf("%s: creating environment with %s", env.Name, interpreter))
	if err := os.MkdirAll(filepath.Dir(env.EnvDir), 0o755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	if err := p.Runner.Run(ctx, execenv.Invocation{
		Dir:    filepath.Dir(env.EnvDir),
		Argv:   []string{interpreter, "-m", "venv", env.EnvDir},
		Stdout: p.console().Out,
		Stderr: p.console().Out,
	}); err != nil {
		return fmt.Errorf("%s: create venv: %w", env.Name, err)
	}

	if err := p.installDeps(ctx, env); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Join(env.EnvDir, meta.EnvStateDirName), 0o755); err != nil {
		return fmt.Errorf("create env state dir: %w", err)
	}
	if err := writeFingerprint(env, want); err != nil {
		return fmt.Errorf("%s: record fingerprint: %w", env.Name, err)
	}
	return nil
}

// installDeps runs the interpolated install command inside the environment.
func (p *Provisioner) installDeps(ctx context.Context, env *config.Env) error {
	if env.SkipInstall || len(env.Deps) == 0 {
		return nil
	}

	argv, err := env.InstallArgv(p.Global.InstallerOpts, env.Deps)
	if err != nil {
		return err
	}
	p.console().Info(fmt.Sprintf("%s: installing %d deps", env.Name, len(env.Deps)))
	if err := p.Runner.Run(ctx, execenv.Invocation{
		Dir:    env.ChangeDir,
		Env:    execenv.Environ(env, os.Environ()),
		Argv:   argv,
		Stdout: p.console().Out,
		Stderr: p.console().Out,
	}); err != nil {
		return fmt.Errorf("%s: install deps: %w", env.Name, err)
	}
	return nil
}

// ensureContainer checks the configured image is available, pulling it when
// the local image list does not carry it. The fingerprint covers the image
// reference so switching images recreates the environment state.
func (p *Provisioner) ensureContainer(ctx context.Context, env *config.Env, opts Options) error {
	want := Fingerprint(env, env.ContainerImage)
	fresh := opts.Recreate || storedFingerprint(env) != want

	present := false
	if p.Docker != nil {
		var err error
		present, err = HasImage(ctx, p.Docker, env.ContainerImage)
		if err != nil {
			return fmt.Errorf("%s: query images: %w", env.Name, err)
		}
	}
	if !present {
		p.console().Info(fmt.Sprintf("%s: pulling image %s", env.Name, env.ContainerImage))
		if err := p.Runner.Run(ctx, execenv.Invocation{
			Dir:    env.ChangeDir,
			Argv:   []string{"docker", "pull", env.ContainerImage},
			Stdout: p.console().Out,
			Stderr: p.console().Out,
		}); err != nil {
			return fmt.Errorf("%s: pull image: %w", env.Name, err)
		}
	}

	if fresh {
		if err := os.MkdirAll(filepath.Join(env.EnvDir, meta.EnvStateDirName), 0o755); err != nil {
			return fmt.Errorf("create env state dir: %w", err)
		}
		if err := writeFingerprint(env, want); err != nil {
			return fmt.Errorf("%s: record fingerprint: %w", env.Name, err)
		}
	}
	return nil
}

// Remove deletes the environment directory.
func (p *Provisioner) Remove(env *config.Env) error {
	if err := os.RemoveAll(env.EnvDir); err != nil {
		return fmt.Errorf("%s: remove env dir: %w", env.Name, err)
	}
	return nil
}

// Status classifies an environment directory against its configuration.
func (p *Provisioner) Status(env *config.Env) string {
	if _, err := os.Stat(env.EnvDir); err != nil {
		return StatusAbsent
	}

	reference := env.ContainerImage
	if env.Runner == config.RunnerVenv {
		interpreter, err := p.ResolveInterpreter(env.BasePython)
		if err != nil {
			return StatusStale
		}
		reference = interpreter
	}
	if storedFingerprint(env) == Fingerprint(env, reference) {
		return StatusOK
	}
	return StatusStale
}
