// Where: internal/app/completion.go
// What: Shell completion command implementation.
// Why: Provide tab completion for bash, zsh, and fish.
package app

import (
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/kong"
)

// CompletionCmd defines the structure for the completion command.
type CompletionCmd struct {
	Bash CompletionBashCmd `cmd:"" help:"Generate bash completion script"`
	Zsh  CompletionZshCmd  `cmd:"" help:"Generate zsh completion script"`
	Fish CompletionFishCmd `cmd:"" help:"Generate fish completion script"`
}

type (
	CompletionBashCmd struct{}
	CompletionZshCmd  struct{}
	CompletionFishCmd struct{}
)

// visibleCommands lists the top-level commands worth completing.
func visibleCommands(cli CLI) []*kong.Node {
	parser, _ := kong.New(&cli)

	var nodes []*kong.Node
	for _, node := range parser.Model.Children {
		if node.Hidden || strings.HasPrefix(node.Name, "__") {
			continue
		}
		nodes = append(nodes, node)
	}
	return nodes
}

func runCompletionBash(cli CLI, out io.Writer) int {
	var commands []string
	subcommands := make(map[string][]string)
	for _, node := range visibleCommands(cli) {
		commands = append(commands, node.Name)
		if len(node.Children) > 0 {
			var subs []string
			for _, sub := range node.Children {
				if sub.Hidden || strings.HasPrefix(sub.Name, "__") {
					continue
				}
				subs = append(subs, sub.Name)
			}
			subcommands[node.Name] = subs
		}
	}

	// Build case statements for subcommands
	var caseParts []string
	for cmd, subs := range subcommands {
		part := fmt.Sprintf(`        %s)
            COMPREPLY=( $(compgen -W "%s" -- "${cur}") )
            return 0
            ;;`, cmd, strings.Join(subs, " "))
		caseParts = append(caseParts, part)
	}

	script := `_crucible_completion() {
    local cur prev opts
    COMPREPLY=()
    cur="${COMP_WORDS[COMP_CWORD]}"
    prev="${COMP_WORDS[COMP_CWORD-1]}"
    opts="%s"

    if [[ "${prev}" == "--env" || "${prev}" == "-e" ]]; then
        COMPREPLY=( $(compgen -W "$(_crucible_complete env)" -- "${cur}") )
        return 0
    fi

    case "${prev}" in
%s
    esac

    COMPREPLY=( $(compgen -W "${opts}" -- "${cur}") )
}
_crucible_complete() {
    command crucible __complete "$1" 2>/dev/null
}
complete -F _crucible_completion crucible
`
	fmt.Fprintf(out, script, strings.Join(commands, " "), strings.Join(caseParts, "\n"))
	return 0
}

func runCompletionZsh(cli CLI, out io.Writer) int {
	var commands []string
	for _, node := range visibleCommands(cli) {
		commands = append(commands, node.Name)
	}

	script := `#compdef crucible
_crucible_completion() {
    local -a commands
    commands=(
        %s
    )
    local prev="${words[$CURRENT-1]}"
    if [[ "${prev}" == "--env" || "${prev}" == "-e" ]]; then
        _values 'environments' ${(f)"$(command crucible __complete env 2>/dev/null)"}
        return
    fi
    _describe 'commands' commands
}
compdef _crucible_completion crucible
`
	fmt.Fprintf(out, script, strings.Join(commands, "\n        "))
	return 0
}

func runCompletionFish(cli CLI, out io.Writer) int {
	for _, node := range visibleCommands(cli) {
		fmt.Fprintf(out, "complete -c crucible -f -a %s -d '%s'\n", node.Name, node.Help)
	}
	fmt.Fprintln(out, "complete -c crucible -f -l env -s e -r -a '(crucible __complete env)' -d 'Environment'")
	return 0
}
