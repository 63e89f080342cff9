// Where: internal/app/info.go
// What: Info output for invocations without a command.
// Why: Give users a quick view of the project and environment state.
package app

import (
	"fmt"
	"io"

	"github.com/crucible-dev/crucible/internal/meta"
	"github.com/crucible-dev/crucible/internal/provision"
	"github.com/crucible-dev/crucible/internal/version"
)

// runInfo displays configuration details and current environment state.
// Used when the CLI is invoked without arguments.
func runInfo(cli CLI, deps Dependencies, out io.Writer) int {
	cc, err := resolveCommandContext(cli, deps, out)
	if err != nil {
		fmt.Fprintln(out, err)
		fmt.Fprintf(out, "\nRun '%s init' to create a configuration.\n", meta.AppName)
		return 1
	}

	console := cc.console
	console.Header("⚙️", "Config")
	console.Item("version", version.GetVersion())
	console.Item("file", cc.file.Path)
	console.Item("workdir", cc.core.WorkDir)
	console.Item("global", cc.globalPath)

	console.BlockStart("🧪", "Environments")
	names := cc.file.EnvNames(cc.core)
	if len(names) == 0 {
		console.ItemPlain("none configured")
		console.BlockEnd()
		return 0
	}

	prov := provision.New(console, cc.global)
	listed := map[string]bool{}
	for _, name := range cc.core.Envlist {
		listed[name] = true
	}
	for _, name := range names {
		env, err := cc.file.Env(cc.core, name, nil)
		if err != nil {
			console.ItemPlain(fmt.Sprintf("%-20s unresolvable: %v", name, err))
			continue
		}
		line := fmt.Sprintf("%-20s %s", name, prov.Status(env))
		if !listed[name] {
			line += "  (not in envlist)"
		}
		console.ItemPlain(line)
	}
	console.BlockEnd()

	if p := cc.file.Pytest(); len(p.TestPaths) > 0 {
		console.Header("🧭", "Test paths")
		for _, path := range p.TestPaths {
			console.ItemPlain(path)
		}
	}

	return 0
}
