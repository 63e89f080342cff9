// Where: internal/app/history_cmd_test.go
// What: Tests for the history command.
// Why: Ensure run outcomes are recorded and reported.
package app

import (
	"bytes"
	"strings"
	"testing"

	"github.com/crucible-dev/crucible/internal/config"
)

func TestRunHistoryEmpty(t *testing.T) {
	isolateGlobalConfig(t)
	dir := writeProject(t, basicConfig)

	var out bytes.Buffer
	exitCode := Run([]string{"history"}, Dependencies{Out: &out, WorkDir: dir})
	if exitCode != 0 {
		t.Fatalf("expected exit code 0, got %d\n%s", exitCode, out.String())
	}
	if !strings.Contains(out.String(), "no runs recorded") {
		t.Fatalf("expected empty history message, got %q", out.String())
	}
}

func TestRunHistoryShowsRecordedRuns(t *testing.T) {
	setupGlobalConfig(t, config.GlobalConfig{
		Interpreters: map[string]string{"python3": fakeInterpreter(t)},
	})
	dir := writeProject(t, basicConfig)
	deps := Dependencies{Out: new(bytes.Buffer), WorkDir: dir, Runner: &fakeRunner{}}

	if exitCode := Run([]string{"run"}, deps); exitCode != 0 {
		t.Fatalf("expected run to pass, got %d", exitCode)
	}

	var out bytes.Buffer
	deps.Out = &out
	exitCode := Run([]string{"history"}, deps)
	if exitCode != 0 {
		t.Fatalf("expected exit code 0, got %d\n%s", exitCode, out.String())
	}
	if !strings.Contains(out.String(), "Recent runs") {
		t.Fatalf("expected history header, got %q", out.String())
	}
	if !strings.Contains(out.String(), "py3") || !strings.Contains(out.String(), "ok") {
		t.Fatalf("expected recorded outcome, got %q", out.String())
	}
}

func TestRunHistoryRecordsFailures(t *testing.T) {
	setupGlobalConfig(t, config.GlobalConfig{
		Interpreters: map[string]string{"python3": fakeInterpreter(t)},
	})
	dir := writeProject(t, basicConfig)
	deps := Dependencies{Out: new(bytes.Buffer), WorkDir: dir, Runner: &fakeRunner{failOn: "-m pytest"}}

	if exitCode := Run([]string{"run"}, deps); exitCode != 1 {
		t.Fatalf("expected run to fail, got %d", exitCode)
	}

	var out bytes.Buffer
	deps.Out = &out
	if exitCode := Run([]string{"history"}, deps); exitCode != 0 {
		t.Fatalf("expected exit code 0, got %d\n%s", exitCode, out.String())
	}
	if !strings.Contains(out.String(), "failed") {
		t.Fatalf("expected failed outcome in history, got %q", out.String())
	}
}
