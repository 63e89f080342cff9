// Where: internal/config/env.go
// What: Per-environment configuration resolution.
// Why: Collapse [testenv:NAME] over [testenv] into one runnable view.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/crucible-dev/crucible/internal/interp"
	"github.com/crucible-dev/crucible/internal/meta"
)

// DefaultInstallCommand provisions dependencies when install_command is unset.
const DefaultInstallCommand = "python -m pip install {opts} {packages}"

// Runner kinds accepted by the runner key.
const (
	RunnerVenv      = "venv"
	RunnerContainer = "container"
)

// basePassEnv lists variables every environment inherits without declaration.
var basePassEnv = []string{
	"HOME", "PATH", "TMPDIR", "LANG", "LANGUAGE", "LC_ALL",
	"LD_LIBRARY_PATH", "PIP_INDEX_URL", "REQUESTS_CA_BUNDLE", "SSL_CERT_FILE",
	"http_proxy", "https_proxy", "no_proxy", "HTTP_PROXY", "HTTPS_PROXY", "NO_PROXY",
}

var pythonFactor = regexp.MustCompile(`^py(\d)(\d+)?$`)

// Command is one resolved command line of an environment.
type Command struct {
	// Line is the display form after substitution.
	Line string
	// Argv is the word-split form handed to the runner.
	Argv []string
	// IgnoreFailure marks lines prefixed with '-'.
	IgnoreFailure bool
}

// Env is the fully resolved configuration of one environment.
type Env struct {
	Name        string
	Description string

	BasePython string
	EnvDir     string
	EnvTmpDir  string
	EnvBinDir  string
	EnvPython  string
	EnvLogDir  string
	ChangeDir  string

	Deps           []string
	SetEnv         map[string]string
	PassEnv        []string
	InstallCommand string
	UseDevelop     bool
	SkipInstall    bool
	IgnoreErrors   bool

	CommandsPre  []Command
	Commands     []Command
	CommandsPost []Command

	AllowlistExternals []string

	Runner         string
	ContainerImage string

	// Declared reports whether a [testenv:NAME] section exists.
	Declared bool

	ctx *interp.Context
}

// Env resolves the named environment, layering [testenv:NAME] over [testenv]
// over built-in defaults. Posargs feed {posargs} references in commands.
func (f *File) Env(core *Core, name string, posargs []string) (*Env, error) {
	if core == nil {
		var err error
		if core, err = f.Core(); err != nil {
			return nil, err
		}
	}

	env := &Env{
		Name:     name,
		Declared: f.HasSection(EnvSectionPrefix + name),
		Runner:   RunnerVenv,
		SetEnv:   map[string]string{},
	}

	lookup := func(key string) (string, bool) {
		if value, ok := f.Lookup(EnvSectionPrefix+name, key); ok {
			return value, true
		}
		return f.Lookup(BaseEnvSection, key)
	}

	vars := map[string]string{
		"toxinidir":  f.Root,
		"toxworkdir": core.WorkDir,
		"envname":    name,
		"/":          string(os.PathSeparator),
		":":          string(os.PathListSeparator),
	}
	if home, err := os.UserHomeDir(); err == nil {
		vars["homedir"] = home
	}
	ctx := &interp.Context{Vars: vars, Posargs: posargs, LookupSection: f.Lookup}
	env.ctx = ctx

	expand := func(key, raw string) (string, error) {
		value, err := interp.Expand(raw, ctx)
		if err != nil {
			return "", fmt.Errorf("%s: resolve %s: %w", name, key, err)
		}
		return value, nil
	}
	// Values are expanded before line splitting so a {[testenv]key}
	// reference splices the referenced list, not one oversized line.
	expandList := func(key, raw string) ([]string, error) {
		value, err := expand(key, raw)
		if err != nil {
			return nil, err
		}
		return SplitLines(value), nil
	}
	absolute := func(dir string) string {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(f.Root, dir)
		}
		return filepath.Clean(dir)
	}

	// Directories come first so later keys can reference them.
	envDirRaw := "{toxworkdir}/{envname}"
	if raw, ok := lookup("envdir"); ok {
		envDirRaw = raw
	}
	envDir, err := expand("envdir", envDirRaw)
	if err != nil {
		return nil, err
	}
	env.EnvDir = absolute(envDir)
	vars["envdir"] = env.EnvDir

	tmpDirRaw := "{envdir}/tmp"
	if raw, ok := lookup("envtmpdir"); ok {
		tmpDirRaw = raw
	}
	tmpDir, err := expand("envtmpdir", tmpDirRaw)
	if err != nil {
		return nil, err
	}
	env.EnvTmpDir = absolute(tmpDir)
	vars["envtmpdir"] = env.EnvTmpDir

	env.EnvBinDir = filepath.Join(env.EnvDir, "bin")
	vars["envbindir"] = env.EnvBinDir
	env.EnvPython = filepath.Join(env.EnvBinDir, "python")
	vars["envpython"] = env.EnvPython
	env.EnvLogDir = filepath.Join(env.EnvDir, meta.EnvLogDirName)
	vars["envlogdir"] = env.EnvLogDir

	env.BasePython = DeriveBasePython(name)
	if raw, ok := lookup("basepython"); ok {
		value, err := expand("basepython", raw)
		if err != nil {
			return nil, err
		}
		env.BasePython = value
	}

	if raw, ok := lookup("description"); ok {
		value, err := expand("description", raw)
		if err != nil {
			return nil, err
		}
		env.Description = value
	}

	env.ChangeDir = f.Root
	if raw, ok := lookup("changedir"); ok {
		dir, err := expand("changedir", raw)
		if err != nil {
			return nil, err
		}
		env.ChangeDir = absolute(dir)
	}

	if raw, ok := lookup("deps"); ok {
		if env.Deps, err = expandList("deps", raw); err != nil {
			return nil, err
		}
	}

	if raw, ok := lookup("setenv"); ok {
		lines, err := expandList("setenv", raw)
		if err != nil {
			return nil, err
		}
		for _, line := range lines {
			key, value, found := strings.Cut(line, "=")
			if !found {
				return nil, fmt.Errorf("%s: setenv line %q is not KEY=value", name, line)
			}
			env.SetEnv[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
	}

	env.PassEnv = append(env.PassEnv, basePassEnv...)
	if raw, ok := lookup("passenv"); ok {
		value, err := expand("passenv", raw)
		if err != nil {
			return nil, err
		}
		env.PassEnv = append(env.PassEnv, SplitList(value)...)
	}
	env.PassEnv = dedupStrings(env.PassEnv)

	env.InstallCommand = DefaultInstallCommand
	if raw, ok := lookup("install_command"); ok {
		// Kept raw: {opts} and {packages} are filled in at install time.
		env.InstallCommand = strings.Join(joinContinuations(SplitLines(raw)), " ")
	}

	for _, b := range []struct {
		key string
		dst *bool
	}{
		{"usedevelop", &env.UseDevelop},
		{"skip_install", &env.SkipInstall},
		{"ignore_errors", &env.IgnoreErrors},
	} {
		raw, ok := lookup(b.key)
		if !ok {
			continue
		}
		value, err := ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", name, b.key, err)
		}
		*b.dst = value
	}

	parseCommands := func(key string) ([]Command, error) {
		raw, ok := lookup(key)
		if !ok {
			return nil, nil
		}
		lines, err := expandList(key, raw)
		if err != nil {
			return nil, err
		}
		var cmds []Command
		for _, line := range joinContinuations(lines) {
			cmd := Command{}
			if strings.HasPrefix(line, "-") {
				cmd.IgnoreFailure = true
				line = strings.TrimSpace(strings.TrimPrefix(line, "-"))
			}
			cmd.Line = line
			if cmd.Argv, err = interp.SplitWords(line); err != nil {
				return nil, fmt.Errorf("%s: %s: %w", name, key, err)
			}
			if len(cmd.Argv) == 0 {
				return nil, fmt.Errorf("%s: %s line %q resolves to no words", name, key, line)
			}
			cmds = append(cmds, cmd)
		}
		return cmds, nil
	}
	if env.CommandsPre, err = parseCommands("commands_pre"); err != nil {
		return nil, err
	}
	if env.Commands, err = parseCommands("commands"); err != nil {
		return nil, err
	}
	if env.CommandsPost, err = parseCommands("commands_post"); err != nil {
		return nil, err
	}

	allowRaw, ok := lookup("allowlist_externals")
	if !ok {
		allowRaw, ok = lookup("whitelist_externals")
	}
	if ok {
		if env.AllowlistExternals, err = expandList("allowlist_externals", allowRaw); err != nil {
			return nil, err
		}
	}

	if raw, ok := lookup("runner"); ok {
		runner := strings.TrimSpace(raw)
		if runner != RunnerVenv && runner != RunnerContainer {
			return nil, fmt.Errorf("%s: unknown runner %q", name, runner)
		}
		env.Runner = runner
	}
	if raw, ok := lookup("container_image"); ok {
		image, err := expand("container_image", raw)
		if err != nil {
			return nil, err
		}
		env.ContainerImage = strings.TrimSpace(image)
	}
	if env.Runner == RunnerContainer && env.ContainerImage == "" {
		image, err := defaultContainerImage(env.BasePython)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		env.ContainerImage = image
	}

	return env, nil
}

// InstallArgv resolves install_command with {opts} and {packages} filled in.
func (e *Env) InstallArgv(opts, packages []string) ([]string, error) {
	vars := make(map[string]string, len(e.ctx.Vars)+2)
	for k, v := range e.ctx.Vars {
		vars[k] = v
	}
	vars["opts"] = interp.JoinWords(opts)
	vars["packages"] = interp.JoinWords(packages)
	ctx := &interp.Context{
		Vars:          vars,
		Posargs:       e.ctx.Posargs,
		LookupSection: e.ctx.LookupSection,
		Getenv:        e.ctx.Getenv,
	}
	words, err := interp.ExpandCommand(e.InstallCommand, ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: resolve install_command: %w", e.Name, err)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("%s: install_command resolves to nothing", e.Name)
	}
	return words, nil
}

// Expand resolves substitutions in raw using the environment's context.
func (e *Env) Expand(raw string) (string, error) {
	return interp.Expand(raw, e.ctx)
}

// DeriveBasePython maps name factors like py36 to an interpreter command.
// Hyphen-separated factors are scanned in order; the first python factor
// wins. Names without a python factor default to python3.
func DeriveBasePython(name string) string {
	for _, factor := range strings.Split(name, "-") {
		if factor == "pypy" || factor == "pypy2" || factor == "pypy3" {
			return factor
		}
		m := pythonFactor.FindStringSubmatch(factor)
		if m == nil {
			continue
		}
		if m[2] == "" {
			return "python" + m[1]
		}
		return "python" + m[1] + "." + m[2]
	}
	return "python3"
}

// HasPythonFactor reports whether the name carries an interpreter factor.
func HasPythonFactor(name string) bool {
	for _, factor := range strings.Split(name, "-") {
		if factor == "pypy" || factor == "pypy2" || factor == "pypy3" || pythonFactor.MatchString(factor) {
			return true
		}
	}
	return false
}

// defaultContainerImage maps pythonX.Y to the matching official image.
func defaultContainerImage(basePython string) (string, error) {
	version := strings.TrimPrefix(basePython, "python")
	if version == "" || version == basePython || strings.ContainsAny(version, "/ ") {
		return "", fmt.Errorf("container runner needs an explicit container_image for basepython %q", basePython)
	}
	return "python:" + version + "-slim", nil
}
