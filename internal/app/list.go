// Where: internal/app/list.go
// What: List command: environment names and their provisioning state.
// Why: Give a quick view of the matrix without resolving everything.
package app

import (
	"fmt"
	"io"

	"github.com/crucible-dev/crucible/internal/provision"
)

func runList(cli CLI, deps Dependencies, out io.Writer) int {
	cc, err := resolveCommandContext(cli, deps, out)
	if err != nil {
		return exitWithError(out, err)
	}

	names := cc.core.Envlist
	if cli.List.All {
		names = cc.file.EnvNames(cc.core)
	}
	if len(names) == 0 {
		cc.console.Info("no environments configured")
		return 0
	}

	listed := map[string]bool{}
	for _, name := range cc.core.Envlist {
		listed[name] = true
	}

	prov := provision.New(cc.console, cc.global)
	for _, name := range names {
		env, err := cc.file.Env(cc.core, name, nil)
		if err != nil {
			cc.console.ItemPlain(fmt.Sprintf("%-20s unresolvable: %v", name, err))
			continue
		}

		line := fmt.Sprintf("%-20s %s", name, prov.Status(env))
		if cli.List.All && !listed[name] {
			line += "  (not in envlist)"
		}
		if cli.List.Verbose && env.Description != "" {
			line += "  " + env.Description
		}
		cc.console.ItemPlain(line)
	}
	return 0
}
