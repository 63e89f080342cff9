// Where: internal/execenv/exec_test.go
// What: Tests for command execution semantics.
// Why: Env assembly, failure propagation, and log teeing must hold without a real shell.
package execenv

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/crucible-dev/crucible/internal/config"
	"github.com/crucible-dev/crucible/internal/ui"
)

type fakeRunner struct {
	invocations []Invocation
	failOn      string
	output      string
}

func (f *fakeRunner) Run(_ context.Context, inv Invocation) error {
	f.invocations = append(f.invocations, inv)
	if f.output != "" && inv.Stdout != nil {
		_, _ = inv.Stdout.Write([]byte(f.output))
	}
	if f.failOn != "" && filepath.Base(inv.Argv[0]) == f.failOn {
		return errors.New("boom")
	}
	return nil
}

func (f *fakeRunner) RunOutput(_ context.Context, inv Invocation) ([]byte, error) {
	f.invocations = append(f.invocations, inv)
	return nil, nil
}

func testEnv(t *testing.T, commands ...config.Command) *config.Env {
	t.Helper()
	dir := t.TempDir()
	envDir := filepath.Join(dir, ".crucible", "py3")
	return &config.Env{
		Name:      "py3",
		EnvDir:    envDir,
		EnvBinDir: filepath.Join(envDir, "bin"),
		EnvLogDir: filepath.Join(envDir, "log"),
		ChangeDir: dir,
		Runner:    config.RunnerVenv,
		PassEnv:   []string{"HOME", "PATH", "PIP_*"},
		SetEnv:    map[string]string{"COVERAGE_FILE": ".coverage"},
		Commands:  commands,
	}
}

func TestEnvironFiltersAndOverlays(t *testing.T) {
	env := testEnv(t)
	base := []string{
		"HOME=/home/dev",
		"PATH=/usr/bin",
		"PIP_INDEX_URL=https://mirror.example/simple",
		"SECRET_TOKEN=hunter2",
	}

	got := Environ(env, base)

	want := []string{
		"HOME=/home/dev",
		"PIP_INDEX_URL=https://mirror.example/simple",
		"COVERAGE_FILE=.coverage",
		"PATH=" + env.EnvBinDir + string(os.PathListSeparator) + "/usr/bin",
		"VIRTUAL_ENV=" + env.EnvDir,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected environ %v, got %v", want, got)
	}
}

func TestExecuteStopsOnFirstFailure(t *testing.T) {
	env := testEnv(t,
		config.Command{Line: "pytest", Argv: []string{"pytest"}},
		config.Command{Line: "coverage report", Argv: []string{"coverage", "report"}},
	)
	runner := &fakeRunner{failOn: "pytest"}

	err := Execute(context.Background(), env, Options{Runner: runner, Console: ui.New(&bytes.Buffer{})})

	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("expected CommandError, got %v", err)
	}
	if cmdErr.Env != "py3" || cmdErr.Line != "pytest" {
		t.Fatalf("unexpected error detail: %+v", cmdErr)
	}
	if len(runner.invocations) != 1 {
		t.Fatalf("expected 1 invocation, got %d", len(runner.invocations))
	}
}

func TestExecuteIgnoresMarkedFailures(t *testing.T) {
	env := testEnv(t,
		config.Command{Line: "flake8", Argv: []string{"flake8"}, IgnoreFailure: true},
		config.Command{Line: "black --check .", Argv: []string{"black", "--check", "."}},
	)
	runner := &fakeRunner{failOn: "flake8"}
	var out bytes.Buffer

	if err := Execute(context.Background(), env, Options{Runner: runner, Console: ui.NewWithEmoji(&out, false)}); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(runner.invocations) != 2 {
		t.Fatalf("expected 2 invocations, got %d", len(runner.invocations))
	}
	if !strings.Contains(out.String(), "ignored failing command") {
		t.Fatalf("expected ignore warning, got %q", out.String())
	}
}

func TestExecuteRunsPostCommandsAfterFailure(t *testing.T) {
	env := testEnv(t, config.Command{Line: "pytest", Argv: []string{"pytest"}})
	env.CommandsPost = []config.Command{{Line: "coverage html", Argv: []string{"coverage", "html"}}}
	runner := &fakeRunner{failOn: "pytest"}

	err := Execute(context.Background(), env, Options{Runner: runner, Console: ui.New(&bytes.Buffer{})})
	if err == nil {
		t.Fatal("expected failure")
	}
	if len(runner.invocations) != 2 {
		t.Fatalf("expected post command to run, got %d invocations", len(runner.invocations))
	}
}

func TestExecuteWritesCommandLogs(t *testing.T) {
	env := testEnv(t, config.Command{Line: "pytest -q", Argv: []string{"pytest", "-q"}})
	runner := &fakeRunner{output: "3 passed\n"}

	if err := Execute(context.Background(), env, Options{Runner: runner, Console: ui.New(&bytes.Buffer{})}); err != nil {
		t.Fatalf("execute: %v", err)
	}

	payload, err := os.ReadFile(filepath.Join(env.EnvLogDir, "1-pytest.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if string(payload) != "3 passed\n" {
		t.Fatalf("expected teed output, got %q", payload)
	}
}

func TestExecuteQuietEchoesFailedOutput(t *testing.T) {
	env := testEnv(t, config.Command{Line: "pytest", Argv: []string{"pytest"}})
	runner := &fakeRunner{failOn: "pytest", output: "assertion failed\n"}
	var out bytes.Buffer

	err := Execute(context.Background(), env, Options{Runner: runner, Quiet: true, Console: ui.NewWithEmoji(&out, false)})
	if err == nil {
		t.Fatal("expected failure")
	}
	if !strings.Contains(out.String(), "assertion failed") {
		t.Fatalf("expected captured output echoed, got %q", out.String())
	}
}

func TestExecuteQuietKeepsPassingOutputInLogOnly(t *testing.T) {
	env := testEnv(t, config.Command{Line: "pytest", Argv: []string{"pytest"}})
	runner := &fakeRunner{output: "3 passed\n"}
	var out bytes.Buffer

	if err := Execute(context.Background(), env, Options{Runner: runner, Quiet: true, Console: ui.NewWithEmoji(&out, false)}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if strings.Contains(out.String(), "3 passed") {
		t.Fatalf("expected quiet console, got %q", out.String())
	}
}

func TestExecuteWarnsOnExternalCommand(t *testing.T) {
	env := testEnv(t, config.Command{Line: "/usr/bin/make lint", Argv: []string{"/usr/bin/make", "lint"}})
	runner := &fakeRunner{}
	var out bytes.Buffer

	if err := Execute(context.Background(), env, Options{Runner: runner, Console: ui.NewWithEmoji(&out, false)}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out.String(), "allowlist_externals") {
		t.Fatalf("expected external warning, got %q", out.String())
	}
}

func TestExecuteAllowlistSilencesExternalWarning(t *testing.T) {
	env := testEnv(t, config.Command{Line: "make lint", Argv: []string{"make", "lint"}})
	env.AllowlistExternals = []string{"make"}
	runner := &fakeRunner{}
	var out bytes.Buffer

	if err := Execute(context.Background(), env, Options{Runner: runner, Console: ui.NewWithEmoji(&out, false)}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if strings.Contains(out.String(), "allowlist_externals") {
		t.Fatalf("expected no warning, got %q", out.String())
	}
}

func TestContainerArgvWrapsCommand(t *testing.T) {
	env := testEnv(t)
	env.Runner = config.RunnerContainer
	env.ContainerImage = "python:3.7-slim"
	env.SetEnv = map[string]string{"CI": "1"}

	argv := ContainerArgv(env, config.Command{Line: "pytest", Argv: []string{"pytest", "-q"}})

	joined := strings.Join(argv, " ")
	for _, fragment := range []string{
		"docker run --rm",
		"-v " + env.ChangeDir + ":/workspace",
		"-w /workspace",
		"-e CI=1",
		"python:3.7-slim pytest -q",
	} {
		if !strings.Contains(joined, fragment) {
			t.Fatalf("expected %q in argv, got %q", fragment, joined)
		}
	}
}

func TestExitCodePassthrough(t *testing.T) {
	if got := ExitCode(nil); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if got := ExitCode(errors.New("plain")); got != -1 {
		t.Fatalf("expected -1, got %d", got)
	}
}
