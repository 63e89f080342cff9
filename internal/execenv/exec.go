// Where: internal/execenv/exec.go
// What: Sequential command execution for one environment.
// Why: Run resolved commands with the right env, cwd, and failure semantics.
package execenv

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/crucible-dev/crucible/internal/config"
	"github.com/crucible-dev/crucible/internal/meta"
	"github.com/crucible-dev/crucible/internal/ui"
)

// CommandError reports the first failing command of an environment.
type CommandError struct {
	Env      string
	Line     string
	ExitCode int
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: command %q failed with exit code %d", e.Env, e.Line, e.ExitCode)
}

// Options tune one environment's execution.
type Options struct {
	Runner  CommandRunner
	Console *ui.Console
	// Quiet keeps passing command output in the log file only; failing
	// commands echo their captured output.
	Quiet bool
	// BaseEnv is the process environment before passenv filtering.
	// Defaults to os.Environ().
	BaseEnv []string
}

// Execute runs the environment's commands in order: commands_pre, commands,
// commands_post. The first non-ignored failure stops the remaining commands
// of its phase; commands_post still runs so teardown lines are not skipped.
func Execute(ctx context.Context, env *config.Env, opts Options) error {
	if opts.Runner == nil {
		opts.Runner = ExecRunner{}
	}
	if opts.Console == nil {
		opts.Console = ui.New(io.Discard)
	}
	if opts.BaseEnv == nil {
		opts.BaseEnv = os.Environ()
	}

	if len(env.Commands) == 0 && len(env.CommandsPre) == 0 && len(env.CommandsPost) == 0 {
		return fmt.Errorf("%s: no commands configured", env.Name)
	}
	if err := os.MkdirAll(env.EnvLogDir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}

	environ := Environ(env, opts.BaseEnv)
	seq := 0
	run := func(cmds []config.Command) error {
		var firstErr error
		for _, cmd := range cmds {
			seq++
			err := runCommand(ctx, env, cmd, seq, environ, opts)
			if err == nil {
				continue
			}
			if cmd.IgnoreFailure {
				opts.Console.Warn(fmt.Sprintf("%s: ignored failing command: %s", env.Name, cmd.Line))
				continue
			}
			if env.IgnoreErrors {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			return err
		}
		return firstErr
	}

	runErr := run(env.CommandsPre)
	if runErr == nil {
		runErr = run(env.Commands)
	}
	if postErr := run(env.CommandsPost); runErr == nil {
		runErr = postErr
	}
	return runErr
}

func runCommand(ctx context.Context, env *config.Env, cmd config.Command, seq int, environ []string, opts Options) error {
	if env.Runner == config.RunnerVenv {
		warnExternal(env, cmd, opts.Console)
	}

	logPath := filepath.Join(env.EnvLogDir, fmt.Sprintf("%d-%s.log", seq, filepath.Base(cmd.Argv[0])))
	logFile, err := os.Create(logPath)
	if err != nil {
		return fmt.Errorf("create command log: %w", err)
	}
	defer logFile.Close()

	var captured bytes.Buffer
	var sink io.Writer = io.MultiWriter(opts.Console.Out, logFile)
	if opts.Quiet {
		sink = io.MultiWriter(&captured, logFile)
	}

	inv := Invocation{
		Dir:    env.ChangeDir,
		Env:    environ,
		Argv:   cmd.Argv,
		Stdout: sink,
		Stderr: sink,
	}
	if env.Runner == config.RunnerContainer {
		inv.Argv = ContainerArgv(env, cmd)
	}

	runErr := opts.Runner.Run(ctx, inv)
	if runErr == nil {
		return nil
	}
	if opts.Quiet && captured.Len() > 0 {
		_, _ = opts.Console.Out.Write(captured.Bytes())
	}
	return &CommandError{Env: env.Name, Line: cmd.Line, ExitCode: ExitCode(runErr)}
}

// Environ assembles the process environment for an environment's commands:
// passenv-filtered base env, then setenv pairs, then the environment's bin
// dir prepended to PATH and VIRTUAL_ENV pointing at the env dir.
func Environ(env *config.Env, base []string) []string {
	var out []string
	basePath := ""
	for _, pair := range base {
		key, value, found := strings.Cut(pair, "=")
		if !found || !passes(key, env.PassEnv) {
			continue
		}
		if key == "PATH" {
			basePath = value
			continue
		}
		out = append(out, pair)
	}

	setenv := make(map[string]string, len(env.SetEnv))
	for key, value := range env.SetEnv {
		setenv[key] = value
	}
	if envPath, ok := setenv["PATH"]; ok {
		basePath = envPath
		delete(setenv, "PATH")
	}
	for _, key := range sortedKeys(setenv) {
		out = append(out, key+"="+setenv[key])
	}

	if env.Runner == config.RunnerVenv {
		pathValue := env.EnvBinDir
		if basePath != "" {
			pathValue += string(os.PathListSeparator) + basePath
		}
		out = append(out, "PATH="+pathValue)
		out = append(out, "VIRTUAL_ENV="+env.EnvDir)
	} else if basePath != "" {
		out = append(out, "PATH="+basePath)
	}
	return out
}

// passes reports whether the variable name matches any passenv pattern.
// A trailing '*' matches any suffix.
func passes(name string, patterns []string) bool {
	for _, pattern := range patterns {
		if pattern == name {
			return true
		}
		if prefix, ok := strings.CutSuffix(pattern, "*"); ok && strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// warnExternal flags commands whose executable lives outside the environment
// and is not covered by allowlist_externals. The command still runs.
func warnExternal(env *config.Env, cmd config.Command, console *ui.Console) {
	name := cmd.Argv[0]
	if strings.HasPrefix(name, env.EnvBinDir+string(os.PathSeparator)) {
		return
	}
	if !filepath.IsAbs(name) {
		if _, err := os.Stat(filepath.Join(env.EnvBinDir, name)); err == nil {
			return
		}
	}
	base := filepath.Base(name)
	for _, pattern := range env.AllowlistExternals {
		if matched, _ := path.Match(pattern, name); matched {
			return
		}
		if matched, _ := path.Match(pattern, base); matched {
			return
		}
	}
	console.Warn(fmt.Sprintf("%s: %q is outside the environment and not in allowlist_externals", env.Name, name))
}

// ContainerArgv wraps a command for the container runner: the project root is
// mounted at the workspace path, the working dir mapped into it, and setenv
// pairs passed through.
func ContainerArgv(env *config.Env, cmd config.Command) []string {
	argv := []string{"docker", "run", "--rm",
		"--label", meta.ContainerLabel + "=" + env.Name,
		"-v", env.ChangeDir + ":" + meta.ContainerWorkspace,
		"-w", meta.ContainerWorkspace,
	}
	for _, key := range sortedKeys(env.SetEnv) {
		argv = append(argv, "-e", key+"="+env.SetEnv[key])
	}
	argv = append(argv, env.ContainerImage)
	return append(argv, cmd.Argv...)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
