// Where: internal/app/show.go
// What: Show command: fully resolved environment configuration.
// Why: Display final values after interpolation, not raw config text.
package app

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/crucible-dev/crucible/internal/config"
)

func runShow(cli CLI, deps Dependencies, out io.Writer) int {
	cc, err := resolveCommandContext(cli, deps, out)
	if err != nil {
		return exitWithError(out, err)
	}
	names, err := cc.selectEnvs(cli.Show.Env)
	if err != nil {
		return exitWithError(out, err)
	}

	for _, name := range names {
		env, err := cc.file.Env(cc.core, name, nil)
		if err != nil {
			return exitWithError(out, err)
		}
		showEnv(cc, env)
	}
	return 0
}

func showEnv(cc *commandContext, env *config.Env) {
	console := cc.console
	console.BlockStart("🔍", "["+config.EnvSectionPrefix+env.Name+"]")
	if env.Description != "" {
		console.Item("description", env.Description)
	}
	console.Item("basepython", env.BasePython)
	console.Item("envdir", env.EnvDir)
	console.Item("changedir", env.ChangeDir)
	console.Item("runner", env.Runner)
	if env.Runner == config.RunnerContainer {
		console.Item("container_image", env.ContainerImage)
	}
	console.Item("skip_install", env.SkipInstall)
	console.Item("install_command", env.InstallCommand)

	if len(env.Deps) > 0 {
		console.Item("deps", strings.Join(env.Deps, ", "))
	}
	if len(env.SetEnv) > 0 {
		keys := make([]string, 0, len(env.SetEnv))
		for key := range env.SetEnv {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		console.ItemPlain("setenv:")
		for _, key := range keys {
			console.ItemPlain(fmt.Sprintf("   %s = %s", key, env.SetEnv[key]))
		}
	}
	if len(env.PassEnv) > 0 {
		console.Item("passenv", strings.Join(env.PassEnv, ", "))
	}
	if len(env.AllowlistExternals) > 0 {
		console.Item("allowlist_externals", strings.Join(env.AllowlistExternals, ", "))
	}

	printCommands := func(label string, cmds []config.Command) {
		if len(cmds) == 0 {
			return
		}
		console.ItemPlain(label + ":")
		for _, cmd := range cmds {
			line := cmd.Line
			if cmd.IgnoreFailure {
				line = "- " + line
			}
			console.ItemPlain("   " + line)
		}
	}
	printCommands("commands_pre", env.CommandsPre)
	printCommands("commands", env.Commands)
	printCommands("commands_post", env.CommandsPost)
	console.BlockEnd()
}
