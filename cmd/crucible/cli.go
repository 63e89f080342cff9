// Where: cmd/crucible/cli.go
// What: CLI dependency wiring helpers.
// Why: Centralize construction for testability.
package main

import (
	"os"

	"github.com/crucible-dev/crucible/internal/app"
	"github.com/crucible-dev/crucible/internal/execenv"
	"github.com/crucible-dev/crucible/internal/interaction"
	"github.com/crucible-dev/crucible/internal/provision"
)

var getwd = os.Getwd

// buildDependencies constructs all runtime dependencies required by the CLI.
// The Docker client is built lazily: only runs that touch a container
// environment ever connect to the daemon.
func buildDependencies() (app.Dependencies, error) {
	workDir, err := getwd()
	if err != nil {
		return app.Dependencies{}, err
	}

	return app.Dependencies{
		WorkDir:       workDir,
		Out:           os.Stdout,
		Runner:        execenv.ExecRunner{},
		DockerFactory: provision.NewDockerClient,
		Prompter:      interaction.HuhPrompter{},
	}, nil
}
