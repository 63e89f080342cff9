// Where: internal/app/complete.go
// What: Completion candidate provider for the hidden __complete command.
// Why: Shell scripts shell out here for dynamic environment names.
package app

import (
	"fmt"
	"io"
)

// CompleteCmd defines the hidden completion candidate command.
type CompleteCmd struct {
	Env CompleteEnvCmd `cmd:"" help:"List environment names"`
}

type CompleteEnvCmd struct{}

// runCompleteEnv prints one environment name per line. Errors are silent:
// completion must never spray diagnostics into the shell.
func runCompleteEnv(cli CLI, deps Dependencies, out io.Writer) int {
	cc, err := resolveCommandContext(cli, deps, io.Discard)
	if err != nil {
		return 0
	}
	for _, name := range cc.file.EnvNames(cc.core) {
		fmt.Fprintln(out, name)
	}
	return 0
}
