// Where: internal/app/app.go
// What: CLI entrypoint logic.
// Why: Provide a testable command dispatcher.
package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/crucible-dev/crucible/internal/execenv"
	"github.com/crucible-dev/crucible/internal/interaction"
	"github.com/crucible-dev/crucible/internal/provision"
	"github.com/crucible-dev/crucible/internal/version"
	"github.com/joho/godotenv"
)

// Dependencies holds all injected dependencies required for CLI command
// execution. This structure enables dependency injection for testing and
// allows swapping implementations of various subsystems.
type Dependencies struct {
	// WorkDir is the directory configuration discovery starts from.
	WorkDir string
	Out     io.Writer
	Runner  execenv.CommandRunner
	// DockerFactory builds the image-query client, only consulted when a
	// selected environment uses the container runner.
	DockerFactory func() (provision.DockerClient, error)
	Prompter      interaction.Prompter
	Now           func() time.Time
}

func (d Dependencies) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// CLI defines the command-line interface structure parsed by Kong.
// It contains global flags and all subcommand definitions.
type CLI struct {
	Config  string `short:"c" help:"Path to configuration file (default: nearest crucible.ini or tox.ini)"`
	EnvFile string `name:"env-file" help:"Path to .env file"`
	NoEmoji bool   `name:"no-emoji" help:"Disable emoji output"`

	Run        RunCmd        `cmd:"" help:"Provision environments and run their commands"`
	List       ListCmd       `cmd:"" help:"List environments"`
	Show       ShowCmd       `cmd:"" help:"Show resolved environment configuration"`
	Validate   ValidateCmd   `cmd:"" help:"Check the configuration for problems"`
	Init       InitCmd       `cmd:"" help:"Write a starter configuration"`
	Clean      CleanCmd      `cmd:"" help:"Remove environments"`
	History    HistoryCmd    `cmd:"" help:"Show recent environment runs"`
	Watch      WatchCmd      `cmd:"" help:"Re-run environments when files change"`
	Complete   CompleteCmd   `cmd:"" name:"__complete" hidden:"" help:"Completion candidate provider"`
	Completion CompletionCmd `cmd:"" help:"Generate shell completion script"`
	Version    VersionCmd    `cmd:"" help:"Show version information"`
}

type (
	RunCmd struct {
		Env                     string   `short:"e" help:"Comma-separated environment names (default: envlist)"`
		Recreate                bool     `short:"r" help:"Recreate environments from scratch"`
		Notest                  bool     `help:"Provision only, skip commands"`
		Parallel                int      `short:"p" help:"Run up to N environments concurrently"`
		Quiet                   bool     `short:"q" help:"Keep passing command output in log files only"`
		SkipMissingInterpreters bool     `name:"skip-missing-interpreters" help:"Skip environments whose interpreter is missing"`
		Posargs                 []string `arg:"" optional:"" passthrough:"" help:"Arguments for {posargs}, after --"`
	}
	ListCmd struct {
		All     bool `short:"a" help:"Include environments absent from envlist"`
		Verbose bool `short:"v" help:"Show descriptions"`
	}
	ShowCmd struct {
		Env string `short:"e" help:"Comma-separated environment names (default: envlist)"`
	}
	ValidateCmd struct{}
	CleanCmd    struct {
		Env string `short:"e" help:"Comma-separated environment names"`
		All bool   `help:"Remove the whole work dir"`
		Yes bool   `short:"y" help:"Skip confirmation prompt"`
	}
	HistoryCmd struct {
		Limit int `help:"Number of rows to show" default:"0"`
	}
	WatchCmd struct {
		Env string `short:"e" help:"Comma-separated environment names (default: envlist)"`
	}
	VersionCmd struct{}
)

// Run is the main entry point for CLI command execution.
// It parses the command-line arguments, identifies the requested command,
// and dispatches to the appropriate handler. Returns 0 on success, 1 on error.
func Run(args []string, deps Dependencies) int {
	out := deps.Out
	if out == nil {
		out = os.Stdout
	}
	if deps.WorkDir == "" {
		if wd, err := os.Getwd(); err == nil {
			deps.WorkDir = wd
		} else {
			return exitWithError(out, err)
		}
	}
	if deps.Runner == nil {
		deps.Runner = execenv.ExecRunner{}
	}

	// Handle no arguments: show project info
	if len(args) == 0 {
		return runInfo(CLI{}, deps, out)
	}

	cli := CLI{}
	parser, err := kong.New(&cli)
	if err != nil {
		return exitWithError(out, err)
	}

	ctx, err := parser.Parse(args)
	if err != nil {
		return exitWithError(out, err)
	}

	loadDotenv(cli, deps, out)

	command := ctx.Command()
	if exitCode, handled := dispatchCommand(command, cli, deps, out); handled {
		return exitCode
	}

	fmt.Fprintln(out, "unknown command")
	return 1
}

// loadDotenv loads an explicit env file, or a .env next to the config when
// one exists, before any value resolution happens.
func loadDotenv(cli CLI, deps Dependencies, out io.Writer) {
	if cli.EnvFile != "" {
		if err := godotenv.Load(cli.EnvFile); err != nil {
			fmt.Fprintf(out, "Warning: failed to load env file %s: %v\n", cli.EnvFile, err)
		}
		return
	}

	dir := deps.WorkDir
	if path, err := resolveConfigPath(cli, deps); err == nil {
		dir = filepath.Dir(path)
	}
	dotenv := filepath.Join(dir, ".env")
	if _, err := os.Stat(dotenv); err == nil {
		if err := godotenv.Load(dotenv); err != nil {
			fmt.Fprintf(out, "Warning: failed to load .env: %v\n", err)
		}
	}
}

type commandHandler func(CLI, Dependencies, io.Writer) int

func dispatchCommand(command string, cli CLI, deps Dependencies, out io.Writer) (int, bool) {
	exactHandlers := map[string]commandHandler{
		"run":             runRun,
		"list":            runList,
		"show":            runShow,
		"validate":        runValidate,
		"init":            runInitCmd,
		"clean":           runClean,
		"history":         runHistory,
		"watch":           runWatch,
		"__complete env":  runCompleteEnv,
		"completion bash": func(_ CLI, _ Dependencies, out io.Writer) int { return runCompletionBash(cli, out) },
		"completion zsh":  func(_ CLI, _ Dependencies, out io.Writer) int { return runCompletionZsh(cli, out) },
		"completion fish": func(_ CLI, _ Dependencies, out io.Writer) int { return runCompletionFish(cli, out) },
		"version":         func(_ CLI, _ Dependencies, out io.Writer) int { return runVersion(out) },
	}

	if handler, ok := exactHandlers[command]; ok {
		return handler(cli, deps, out), true
	}

	// "run <posargs> ..." carries the passthrough args in its name.
	if strings.HasPrefix(command, "run ") {
		return runRun(cli, deps, out), true
	}

	return 1, false
}

// runVersion prints the version information of the CLI.
func runVersion(out io.Writer) int {
	fmt.Fprintln(out, version.GetVersion())
	return 0
}

// splitEnvList splits a comma-separated string of environment names
// into a slice. Returns nil if the input is empty.
func splitEnvList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	var names []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			names = append(names, trimmed)
		}
	}
	return names
}

// exitWithError prints the error and returns the failure exit code.
func exitWithError(out io.Writer, err error) int {
	fmt.Fprintln(out, err)
	return 1
}
