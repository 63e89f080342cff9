// Where: internal/app/validate_cmd_test.go
// What: Tests for the validate command.
// Why: Ensure findings map to console output and exit codes.
package app

import (
	"bytes"
	"strings"
	"testing"

	"github.com/crucible-dev/crucible/internal/config"
)

func TestRunValidateAcceptsCleanConfig(t *testing.T) {
	setupGlobalConfig(t, config.GlobalConfig{
		Interpreters: map[string]string{"python3": fakeInterpreter(t)},
	})
	dir := writeProject(t, basicConfig)

	var out bytes.Buffer
	exitCode := Run([]string{"validate"}, Dependencies{Out: &out, WorkDir: dir})
	if exitCode != 0 {
		t.Fatalf("expected exit code 0, got %d\n%s", exitCode, out.String())
	}
	if !strings.Contains(out.String(), "configuration ok") {
		t.Fatalf("expected ok summary, got %q", out.String())
	}
}

func TestRunValidateRejectsBrokenConfig(t *testing.T) {
	isolateGlobalConfig(t)
	dir := writeProject(t, `[tox]
envlist = py3

[testenv]
runner = hovercraft
commands = python -m pytest
`)

	var out bytes.Buffer
	exitCode := Run([]string{"validate"}, Dependencies{Out: &out, WorkDir: dir})
	if exitCode != 1 {
		t.Fatalf("expected exit code 1, got %d\n%s", exitCode, out.String())
	}
	if !strings.Contains(out.String(), "error") {
		t.Fatalf("expected error summary, got %q", out.String())
	}
}

func TestRunValidateFlagsBadInstallCommand(t *testing.T) {
	setupGlobalConfig(t, config.GlobalConfig{
		Interpreters: map[string]string{"python3": fakeInterpreter(t)},
	})
	dir := writeProject(t, `[tox]
envlist = py3

[testenv]
install_command = python -m pip install
commands = python -m pytest
`)

	var out bytes.Buffer
	exitCode := Run([]string{"validate"}, Dependencies{Out: &out, WorkDir: dir})
	if exitCode != 1 {
		t.Fatalf("expected exit code 1, got %d\n%s", exitCode, out.String())
	}
	if !strings.Contains(out.String(), "{packages}") {
		t.Fatalf("expected install_command finding, got %q", out.String())
	}
}
