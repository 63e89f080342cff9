// Where: internal/app/command_context.go
// What: Shared resolution of config file, core settings, and global config.
// Why: Every project-scoped command starts from the same resolved view.
package app

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/crucible-dev/crucible/internal/config"
	"github.com/crucible-dev/crucible/internal/meta"
	"github.com/crucible-dev/crucible/internal/ui"
	"github.com/crucible-dev/crucible/internal/version"
)

// commandContext bundles everything a project-scoped command needs.
type commandContext struct {
	file       *config.File
	core       *config.Core
	global     config.GlobalConfig
	globalPath string
	console    *ui.Console
}

// resolveConfigPath finds the configuration file: the -c flag wins, then the
// walk up from the working directory.
func resolveConfigPath(cli CLI, deps Dependencies) (string, error) {
	if cli.Config != "" {
		return filepath.Abs(cli.Config)
	}
	return config.Locate(deps.WorkDir)
}

// resolveCommandContext loads the project and global configuration and gates
// on minversion so no command operates on a config written for a newer tool.
func resolveCommandContext(cli CLI, deps Dependencies, out io.Writer) (*commandContext, error) {
	path, err := resolveConfigPath(cli, deps)
	if err != nil {
		return nil, err
	}
	file, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	core, err := file.Core()
	if err != nil {
		return nil, err
	}
	if core.MinVersion != "" && !version.AtLeast(core.MinVersion) {
		return nil, fmt.Errorf("%s requires %s >= %s, running %s",
			filepath.Base(path), meta.AppName, core.MinVersion, version.Release)
	}

	globalPath, err := config.GlobalConfigPath()
	if err != nil {
		return nil, err
	}
	global, err := config.LoadGlobalConfig(globalPath)
	if err != nil {
		return nil, err
	}

	return &commandContext{
		file:       file,
		core:       core,
		global:     global,
		globalPath: globalPath,
		console:    ui.NewWithEmoji(out, !cli.NoEmoji && !global.NoEmoji),
	}, nil
}

// historyPath returns the run history database location for this project.
func (cc *commandContext) historyPath() string {
	return filepath.Join(cc.core.WorkDir, meta.HistoryDBName)
}

// selectEnvs resolves -e style selections against the configuration.
// An empty selection means the envlist; unknown names are errors naming the
// known set.
func (cc *commandContext) selectEnvs(selection string) ([]string, error) {
	names := splitEnvList(selection)
	if len(names) == 0 {
		return cc.core.Envlist, nil
	}

	known := map[string]bool{}
	for _, name := range cc.file.EnvNames(cc.core) {
		known[name] = true
	}
	for _, name := range names {
		if !known[name] {
			return nil, fmt.Errorf("unknown environment %q (known: %v)", name, cc.file.EnvNames(cc.core))
		}
	}
	return names, nil
}
