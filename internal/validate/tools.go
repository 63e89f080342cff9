// Where: internal/validate/tools.go
// What: Tool-resolution checks: commands, interpreters, install command.
// Why: These rules need the host (PATH, env dirs), unlike the static rules.
package validate

import (
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"

	"github.com/crucible-dev/crucible/internal/config"
)

// Options supply host lookups for the tool checks.
type Options struct {
	// LookPath resolves command names on PATH, exec.LookPath by default.
	LookPath func(name string) (string, error)
	// Interpreters maps basepython names to paths, consulted before PATH.
	Interpreters map[string]string
}

func (o Options) lookPath(name string) (string, error) {
	if o.LookPath != nil {
		return o.LookPath(name)
	}
	return exec.LookPath(name)
}

// venvCommands always exist inside a provisioned virtualenv.
var venvCommands = map[string]bool{"python": true, "pip": true}

// CheckTools appends findings for every selected environment: command
// executables must resolve, the interpreter must be discoverable, and the
// install command must carry its {packages} slot.
func CheckTools(report *Report, f *config.File, names []string, opts Options) {
	core, err := f.Core()
	if err != nil {
		// Check already reported this; nothing host-level left to verify.
		return
	}
	if len(names) == 0 {
		names = core.Envlist
	}

	for _, name := range names {
		env, err := f.Env(core, name, nil)
		if err != nil {
			continue
		}
		checkInstallCommand(report, env)
		checkInterpreter(report, env, core, opts)
		checkCommandTools(report, env, opts)
	}
}

func checkInstallCommand(report *Report, env *config.Env) {
	if !strings.Contains(env.InstallCommand, "{packages}") {
		report.add(SeverityError, env.Name, "install_command %q does not contain {packages}", env.InstallCommand)
	}
	if env.Runner == config.RunnerContainer && env.ContainerImage == "" {
		report.add(SeverityError, env.Name, "runner = container requires a container_image")
	}
}

func checkInterpreter(report *Report, env *config.Env, core *config.Core, opts Options) {
	if env.Runner == config.RunnerContainer {
		return
	}
	if path, ok := opts.Interpreters[env.BasePython]; ok {
		if _, err := os.Stat(path); err != nil {
			report.add(SeverityError, env.Name, "configured interpreter path for %s is unusable: %v", env.BasePython, err)
		}
		return
	}
	if _, err := opts.lookPath(env.BasePython); err != nil {
		if core.SkipMissingInterpreters {
			report.add(SeverityNote, env.Name, "interpreter %s not found; environment will be skipped", env.BasePython)
			return
		}
		report.add(SeverityError, env.Name, "interpreter %s not found", env.BasePython)
	}
}

func checkCommandTools(report *Report, env *config.Env, opts Options) {
	provisioned := false
	if _, err := os.Stat(env.EnvBinDir); err == nil {
		provisioned = true
	}

	phases := [][]config.Command{env.CommandsPre, env.Commands, env.CommandsPost}
	for _, cmds := range phases {
		for _, cmd := range cmds {
			checkCommandTool(report, env, cmd, provisioned, opts)
		}
	}
}

func checkCommandTool(report *Report, env *config.Env, cmd config.Command, provisioned bool, opts Options) {
	name := cmd.Argv[0]

	if strings.ContainsRune(name, os.PathSeparator) {
		full := name
		if !filepath.IsAbs(full) {
			full = filepath.Join(env.ChangeDir, full)
		}
		if _, err := os.Stat(full); err != nil {
			report.add(SeverityError, env.Name, "command %q does not exist", name)
		}
		return
	}

	if env.Runner == config.RunnerContainer {
		// The image's filesystem is not inspectable here.
		return
	}
	if venvCommands[name] {
		return
	}
	if provisioned {
		if _, err := os.Stat(filepath.Join(env.EnvBinDir, name)); err == nil {
			return
		}
	}
	if allowlisted(name, env.AllowlistExternals) {
		return
	}
	if _, err := opts.lookPath(name); err == nil {
		return
	}
	if !provisioned && !env.SkipInstall && len(env.Deps) > 0 {
		report.add(SeverityNote, env.Name, "command %q not found yet; expected from deps after provisioning", name)
		return
	}
	report.add(SeverityError, env.Name, "command %q resolves to no installed tool (line: %s)", name, cmd.Line)
}

func allowlisted(name string, patterns []string) bool {
	for _, pattern := range patterns {
		if matched, _ := path.Match(pattern, name); matched {
			return true
		}
	}
	return false
}
