// Where: internal/app/watch_cmd.go
// What: Watch command: re-run environments on file changes.
// Why: Tight feedback loops without re-invoking the CLI by hand.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/crucible-dev/crucible/internal/watch"
)

func runWatch(cli CLI, deps Dependencies, out io.Writer) int {
	cc, err := resolveCommandContext(cli, deps, out)
	if err != nil {
		return exitWithError(out, err)
	}
	if _, err := cc.selectEnvs(cli.Watch.Env); err != nil {
		return exitWithError(out, err)
	}

	// Watch reuses the run command wiring for each pass.
	runCLI := cli
	runCLI.Run = RunCmd{Env: cli.Watch.Env}

	lastStatus := runRun(runCLI, deps, out)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := watch.Options{
		Root:    cc.file.Root,
		Paths:   cc.file.Pytest().TestPaths,
		Exclude: []string{cc.core.WorkDir},
	}
	cc.console.Info(fmt.Sprintf("watching %s for changes (Ctrl-C to stop)", cc.file.Root))

	err = watch.Run(ctx, opts, func() {
		cc.console.BlockStart("🔁", "change detected")
		cc.console.BlockEnd()
		lastStatus = runRun(runCLI, deps, out)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return exitWithError(out, err)
	}
	return lastStatus
}
