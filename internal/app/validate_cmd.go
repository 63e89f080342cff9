// Where: internal/app/validate_cmd.go
// What: Validate command: static and host-level configuration checks.
// Why: Surface broken envlists, references, and unresolvable tools early.
package app

import (
	"fmt"
	"io"

	"github.com/crucible-dev/crucible/internal/validate"
)

func runValidate(cli CLI, deps Dependencies, out io.Writer) int {
	cc, err := resolveCommandContext(cli, deps, out)
	if err != nil {
		return exitWithError(out, err)
	}

	report := validate.Check(cc.file)
	validate.CheckTools(report, cc.file, nil, validate.Options{
		Interpreters: cc.global.Interpreters,
	})

	for _, finding := range report.Findings {
		switch finding.Severity {
		case validate.SeverityError:
			cc.console.Fail(finding.String())
		case validate.SeverityWarning:
			cc.console.Warn(finding.String())
		default:
			cc.console.ItemPlain(finding.String())
		}
	}

	if !report.OK() {
		cc.console.Fail(fmt.Sprintf("%d error(s), %d warning(s)", report.Errors(), report.Warnings()))
		return 1
	}
	cc.console.Success(fmt.Sprintf("configuration ok (%d warning(s))", report.Warnings()))
	return 0
}
