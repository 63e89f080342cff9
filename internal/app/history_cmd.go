// Where: internal/app/history_cmd.go
// What: History command: recent environment runs.
// Why: Make past outcomes visible without digging through log files.
package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/crucible-dev/crucible/internal/history"
)

func runHistory(cli CLI, deps Dependencies, out io.Writer) int {
	cc, err := resolveCommandContext(cli, deps, out)
	if err != nil {
		return exitWithError(out, err)
	}

	limit := cli.History.Limit
	if limit <= 0 {
		limit = cc.global.HistoryLimit
	}
	if limit <= 0 {
		limit = 20
	}

	store, err := history.Open(cc.historyPath())
	if err != nil {
		return exitWithError(out, err)
	}
	defer store.Close()

	records, err := store.Recent(context.Background(), limit)
	if err != nil {
		return exitWithError(out, err)
	}
	if len(records) == 0 {
		cc.console.Info("no runs recorded yet")
		return 0
	}

	cc.console.Header("🕘", "Recent runs")
	for _, record := range records {
		line := fmt.Sprintf("%s  %-20s %-11s %6.1fs",
			record.StartedAt.Local().Format(time.DateTime),
			record.Env,
			record.Outcome,
			record.Duration.Seconds(),
		)
		if record.Outcome == "failed" {
			line += fmt.Sprintf("  exit %d", record.ExitCode)
		}
		cc.console.ItemPlain(line)
	}
	return 0
}
