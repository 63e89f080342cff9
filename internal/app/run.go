// Where: internal/app/run.go
// What: Run command: provision selected environments and execute their commands.
// Why: Orchestrate validate, provision, execute, and report per environment.
package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/crucible-dev/crucible/internal/config"
	"github.com/crucible-dev/crucible/internal/execenv"
	"github.com/crucible-dev/crucible/internal/history"
	"github.com/crucible-dev/crucible/internal/provision"
	"github.com/crucible-dev/crucible/internal/ui"
	"github.com/crucible-dev/crucible/internal/validate"
	"golang.org/x/sync/errgroup"
)

// Outcome values recorded per environment run.
const (
	outcomeOK          = "ok"
	outcomeFailed      = "failed"
	outcomeSkipped     = "skipped"
	outcomeInterrupted = "interrupted"
)

type envResult struct {
	Name     string
	Outcome  string
	Detail   string
	ExitCode int
	Duration time.Duration
}

func (r envResult) summaryLine() string {
	line := fmt.Sprintf("%s: %s", r.Name, r.Outcome)
	if r.Detail != "" {
		line += " (" + r.Detail + ")"
	}
	if r.Outcome == outcomeOK || r.Outcome == outcomeFailed {
		line += fmt.Sprintf(" [%.1fs]", r.Duration.Seconds())
	}
	return line
}

func runRun(cli CLI, deps Dependencies, out io.Writer) int {
	cc, err := resolveCommandContext(cli, deps, out)
	if err != nil {
		return exitWithError(out, err)
	}
	names, err := cc.selectEnvs(cli.Run.Env)
	if err != nil {
		return exitWithError(out, err)
	}
	if len(names) == 0 {
		return exitWithError(out, fmt.Errorf("no environments to run"))
	}

	// Pre-flight: a broken configuration fails before any env is touched.
	report := validate.Check(cc.file)
	for _, finding := range report.Findings {
		if finding.Severity == validate.SeverityError {
			cc.console.Fail(finding.String())
		}
	}
	if !report.OK() {
		return 1
	}

	posargs := trimPosargs(cli.Run.Posargs)
	envs := make([]*config.Env, 0, len(names))
	for _, name := range names {
		env, err := cc.file.Env(cc.core, name, posargs)
		if err != nil {
			return exitWithError(out, err)
		}
		envs = append(envs, env)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var docker provision.DockerClient
	if needsDocker(envs) && deps.DockerFactory != nil {
		if docker, err = deps.DockerFactory(); err != nil {
			return exitWithError(out, err)
		}
	}

	store, err := history.Open(cc.historyPath())
	if err != nil {
		cc.console.Warn(fmt.Sprintf("history disabled: %v", err))
		store = nil
	} else {
		defer store.Close()
	}

	opts := runOptions{
		recreate: cli.Run.Recreate,
		notest:   cli.Run.Notest,
		quiet:    cli.Run.Quiet,
		skipMissing: cli.Run.SkipMissingInterpreters ||
			cc.core.SkipMissingInterpreters ||
			cc.global.SkipMissingInterpreters,
		docker: docker,
	}

	results := make([]envResult, len(envs))
	if cli.Run.Parallel > 1 {
		runParallel(ctx, cc, deps, envs, results, store, opts, cli.Run.Parallel)
	} else {
		for i, env := range envs {
			results[i] = runOneEnv(ctx, cc, deps, env, cc.console, opts)
			appendHistory(ctx, store, cc.console, env, results[i])
		}
	}

	return printSummary(cc.console, results)
}

type runOptions struct {
	recreate    bool
	notest      bool
	quiet       bool
	skipMissing bool
	docker      provision.DockerClient
}

// runParallel executes up to limit environments concurrently. Each env writes
// to its own buffer, flushed atomically when the env finishes, so interleaved
// output never occurs.
func runParallel(ctx context.Context, cc *commandContext, deps Dependencies, envs []*config.Env, results []envResult, store *history.Store, opts runOptions, limit int) {
	var mu sync.Mutex
	group := new(errgroup.Group)
	group.SetLimit(limit)

	for i, env := range envs {
		group.Go(func() error {
			var buf bytes.Buffer
			console := ui.NewWithEmoji(&buf, cc.console.EmojiEnabled)
			result := runOneEnv(ctx, cc, deps, env, console, opts)

			mu.Lock()
			defer mu.Unlock()
			_, _ = cc.console.Out.Write(buf.Bytes())
			results[i] = result
			appendHistory(ctx, store, cc.console, env, result)
			return nil
		})
	}
	_ = group.Wait()
}

func runOneEnv(ctx context.Context, cc *commandContext, deps Dependencies, env *config.Env, console *ui.Console, opts runOptions) envResult {
	started := time.Now()
	result := envResult{Name: env.Name, Outcome: outcomeOK}

	title := env.Name
	if env.Description != "" {
		title += " — " + env.Description
	}
	console.BlockStart("🧪", title)
	defer console.BlockEnd()

	prov := &provision.Provisioner{
		Runner:  deps.Runner,
		Console: console,
		Global:  cc.global,
		Docker:  opts.docker,
	}

	err := prov.Ensure(ctx, env, provision.Options{Recreate: opts.recreate})
	switch {
	case err == nil:
	case ctx.Err() != nil:
		result.Outcome = outcomeInterrupted
		return result
	case errors.Is(err, provision.ErrMissingInterpreter) && opts.skipMissing:
		console.Warn(fmt.Sprintf("%s: skipped, interpreter %s not found", env.Name, env.BasePython))
		result.Outcome = outcomeSkipped
		result.Detail = "missing interpreter " + env.BasePython
		return result
	default:
		console.Fail(err.Error())
		result.Outcome = outcomeFailed
		result.Detail = "provisioning failed"
		result.ExitCode = 1
		result.Duration = time.Since(started)
		return result
	}

	if opts.notest {
		console.Success(env.Name + ": provisioned")
		result.Duration = time.Since(started)
		return result
	}

	err = execenv.Execute(ctx, env, execenv.Options{
		Runner:  deps.Runner,
		Console: console,
		Quiet:   opts.quiet,
	})
	result.Duration = time.Since(started)

	switch {
	case err == nil:
		console.Success(env.Name + ": ok")
	case ctx.Err() != nil:
		result.Outcome = outcomeInterrupted
		result.Detail = ""
	default:
		var cmdErr *execenv.CommandError
		if errors.As(err, &cmdErr) {
			result.ExitCode = cmdErr.ExitCode
			result.Detail = fmt.Sprintf("exit %d", cmdErr.ExitCode)
		} else {
			result.ExitCode = 1
			result.Detail = err.Error()
		}
		console.Fail(err.Error())
		result.Outcome = outcomeFailed
	}
	return result
}

func appendHistory(ctx context.Context, store *history.Store, console *ui.Console, env *config.Env, result envResult) {
	if store == nil {
		return
	}
	record := history.Record{
		StartedAt:   time.Now().Add(-result.Duration),
		Env:         result.Name,
		Outcome:     result.Outcome,
		ExitCode:    result.ExitCode,
		Duration:    result.Duration,
		Fingerprint: provision.RecordedFingerprint(env),
	}
	// History uses a background-derived context so an interrupt still records.
	if err := store.Append(context.WithoutCancel(ctx), record); err != nil {
		console.Warn(fmt.Sprintf("record history: %v", err))
	}
}

// printSummary writes the closing block and maps outcomes to the process
// exit code. Skips do not fail the run.
func printSummary(console *ui.Console, results []envResult) int {
	console.BlockStart("📋", "Summary")
	counts := map[string]int{}
	for _, result := range results {
		counts[result.Outcome]++
		console.ItemPlain(result.summaryLine())
	}
	console.BlockEnd()

	if counts[outcomeFailed] == 0 && counts[outcomeInterrupted] == 0 {
		console.Success(fmt.Sprintf("%d ok, %d skipped", counts[outcomeOK], counts[outcomeSkipped]))
		return 0
	}
	console.Fail(fmt.Sprintf("%d ok, %d failed, %d skipped, %d interrupted",
		counts[outcomeOK], counts[outcomeFailed], counts[outcomeSkipped], counts[outcomeInterrupted]))
	return 1
}

// trimPosargs drops the leading "--" separator kong passes through.
func trimPosargs(args []string) []string {
	if len(args) > 0 && args[0] == "--" {
		return args[1:]
	}
	return args
}

func needsDocker(envs []*config.Env) bool {
	for _, env := range envs {
		if env.Runner == config.RunnerContainer {
			return true
		}
	}
	return false
}
