// Where: internal/app/clean.go
// What: Clean command: remove environments or the whole work dir.
// Why: Give a supported path out of broken or obsolete environments.
package app

import (
	"fmt"
	"io"
	"os"

	"github.com/crucible-dev/crucible/internal/interaction"
	"github.com/crucible-dev/crucible/internal/provision"
)

func runClean(cli CLI, deps Dependencies, out io.Writer) int {
	cc, err := resolveCommandContext(cli, deps, out)
	if err != nil {
		return exitWithError(out, err)
	}

	if cli.Clean.All {
		if !cli.Clean.Yes {
			confirmed, err := interaction.PromptYesNo(fmt.Sprintf("Remove %s and all environments?", cc.core.WorkDir))
			if err != nil {
				return exitWithError(out, err)
			}
			if !confirmed {
				cc.console.Info("aborted")
				return 0
			}
		}
		if err := os.RemoveAll(cc.core.WorkDir); err != nil {
			return exitWithError(out, fmt.Errorf("remove work dir: %w", err))
		}
		cc.console.Success("removed " + cc.core.WorkDir)
		return 0
	}

	names, err := cc.selectEnvs(cli.Clean.Env)
	if err != nil {
		return exitWithError(out, err)
	}
	if !cli.Clean.Yes {
		confirmed, err := interaction.PromptYesNo(fmt.Sprintf("Remove %d environment(s)?", len(names)))
		if err != nil {
			return exitWithError(out, err)
		}
		if !confirmed {
			cc.console.Info("aborted")
			return 0
		}
	}

	prov := provision.New(cc.console, cc.global)
	removed := 0
	for _, name := range names {
		env, err := cc.file.Env(cc.core, name, nil)
		if err != nil {
			return exitWithError(out, err)
		}
		if _, err := os.Stat(env.EnvDir); err != nil {
			continue
		}
		if err := prov.Remove(env); err != nil {
			return exitWithError(out, err)
		}
		cc.console.ItemPlain("removed " + env.EnvDir)
		removed++
	}
	cc.console.Success(fmt.Sprintf("%d environment(s) removed", removed))
	return 0
}
