// Where: internal/provision/provision_test.go
// What: Tests for environment lifecycle and fingerprinting.
// Why: Reuse, staleness, and recreation decisions must be deterministic.
package provision

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/crucible-dev/crucible/internal/config"
	"github.com/crucible-dev/crucible/internal/execenv"
	"github.com/crucible-dev/crucible/internal/ui"
	"github.com/docker/docker/api/types/image"
)

type fakeRunner struct {
	invocations [][]string
	err         error
}

func (f *fakeRunner) Run(_ context.Context, inv execenv.Invocation) error {
	f.invocations = append(f.invocations, inv.Argv)
	return f.err
}

func (f *fakeRunner) RunOutput(_ context.Context, inv execenv.Invocation) ([]byte, error) {
	f.invocations = append(f.invocations, inv.Argv)
	return nil, f.err
}

type fakeDocker struct {
	tags []string
	err  error
}

func (f *fakeDocker) ImageList(context.Context, image.ListOptions) ([]image.Summary, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []image.Summary{{RepoTags: f.tags}}, nil
}

func loadEnv(t *testing.T, content, name string) *config.Env {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "tox.ini")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	f, err := config.Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	env, err := f.Env(nil, name, nil)
	if err != nil {
		t.Fatalf("resolve env: %v", err)
	}
	return env
}

func testProvisioner(runner *fakeRunner) *Provisioner {
	return &Provisioner{
		Runner:   runner,
		Console:  ui.NewWithEmoji(&bytes.Buffer{}, false),
		Global:   config.DefaultGlobalConfig(),
		LookPath: func(name string) (string, error) { return "/usr/bin/" + name, nil },
	}
}

const basicConfig = `[tox]
envlist = py36

[testenv]
deps =
    pytest
    pytest-cov
commands = pytest
`

func TestFingerprintIgnoresDepOrder(t *testing.T) {
	env := loadEnv(t, basicConfig, "py36")
	a := Fingerprint(env, "/usr/bin/python3.6")

	env.Deps = []string{"pytest-cov", "pytest"}
	b := Fingerprint(env, "/usr/bin/python3.6")

	if a != b {
		t.Fatal("expected fingerprint to be stable under dep reordering")
	}
}

func TestFingerprintTracksChanges(t *testing.T) {
	env := loadEnv(t, basicConfig, "py36")
	base := Fingerprint(env, "/usr/bin/python3.6")

	env.Deps = append(env.Deps, "requests")
	if Fingerprint(env, "/usr/bin/python3.6") == base {
		t.Fatal("expected dep change to change the fingerprint")
	}

	env.Deps = env.Deps[:len(env.Deps)-1]
	if Fingerprint(env, "/usr/bin/python3.7") == base {
		t.Fatal("expected interpreter change to change the fingerprint")
	}
}

func TestEnsureCreatesVenvAndInstalls(t *testing.T) {
	env := loadEnv(t, basicConfig, "py36")
	runner := &fakeRunner{}
	p := testProvisioner(runner)

	if err := p.Ensure(context.Background(), env, Options{}); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	if len(runner.invocations) != 2 {
		t.Fatalf("expected venv + install invocations, got %v", runner.invocations)
	}
	venv := strings.Join(runner.invocations[0], " ")
	if !strings.Contains(venv, "-m venv "+env.EnvDir) || !strings.HasPrefix(venv, "/usr/bin/python3.6") {
		t.Fatalf("unexpected venv invocation %q", venv)
	}
	install := strings.Join(runner.invocations[1], " ")
	if !strings.Contains(install, "pip install") || !strings.Contains(install, "pytest-cov") {
		t.Fatalf("unexpected install invocation %q", install)
	}
	if p.Status(env) != StatusOK {
		t.Fatalf("expected status ok, got %s", p.Status(env))
	}
}

func TestEnsureReusesMatchingEnvironment(t *testing.T) {
	env := loadEnv(t, basicConfig, "py36")
	runner := &fakeRunner{}
	p := testProvisioner(runner)

	if err := p.Ensure(context.Background(), env, Options{}); err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	created := len(runner.invocations)

	if err := p.Ensure(context.Background(), env, Options{}); err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if len(runner.invocations) != created {
		t.Fatalf("expected silent reuse, got extra invocations: %v", runner.invocations[created:])
	}
}

func TestEnsureRecreatesOnChange(t *testing.T) {
	env := loadEnv(t, basicConfig, "py36")
	runner := &fakeRunner{}
	p := testProvisioner(runner)

	if err := p.Ensure(context.Background(), env, Options{}); err != nil {
		t.Fatalf("first ensure: %v", err)
	}

	env.Deps = append(env.Deps, "requests")
	if p.Status(env) != StatusStale {
		t.Fatalf("expected stale status, got %s", p.Status(env))
	}
	if err := p.Ensure(context.Background(), env, Options{}); err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if len(runner.invocations) != 4 {
		t.Fatalf("expected recreation invocations, got %v", runner.invocations)
	}
}

func TestEnsureForcedRecreate(t *testing.T) {
	env := loadEnv(t, basicConfig, "py36")
	runner := &fakeRunner{}
	p := testProvisioner(runner)

	if err := p.Ensure(context.Background(), env, Options{}); err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	if err := p.Ensure(context.Background(), env, Options{Recreate: true}); err != nil {
		t.Fatalf("recreate ensure: %v", err)
	}
	if len(runner.invocations) != 4 {
		t.Fatalf("expected forced recreation, got %v", runner.invocations)
	}
}

func TestEnsureMissingInterpreter(t *testing.T) {
	env := loadEnv(t, basicConfig, "py36")
	runner := &fakeRunner{}
	p := testProvisioner(runner)
	p.LookPath = func(string) (string, error) { return "", errors.New("not on PATH") }

	err := p.Ensure(context.Background(), env, Options{})
	if !errors.Is(err, ErrMissingInterpreter) {
		t.Fatalf("expected ErrMissingInterpreter, got %v", err)
	}
	if len(runner.invocations) != 0 {
		t.Fatalf("expected no invocations, got %v", runner.invocations)
	}
}

func TestInterpreterMapWinsOverPath(t *testing.T) {
	_ = loadEnv(t, basicConfig, "py36")
	runner := &fakeRunner{}
	p := testProvisioner(runner)

	custom := filepath.Join(t.TempDir(), "python3.6")
	if err := os.WriteFile(custom, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write interpreter stub: %v", err)
	}
	p.Global.Interpreters["python3.6"] = custom

	got, err := p.ResolveInterpreter("python3.6")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != custom {
		t.Fatalf("expected %s, got %s", custom, got)
	}
}

func TestStatusAbsent(t *testing.T) {
	env := loadEnv(t, basicConfig, "py36")
	p := testProvisioner(&fakeRunner{})
	if p.Status(env) != StatusAbsent {
		t.Fatalf("expected absent, got %s", p.Status(env))
	}
}

func TestStatusStaleOnUnreadableFingerprint(t *testing.T) {
	env := loadEnv(t, basicConfig, "py36")
	p := testProvisioner(&fakeRunner{})

	// A directory without a fingerprint file is stale, never an error.
	if err := os.MkdirAll(env.EnvDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if p.Status(env) != StatusStale {
		t.Fatalf("expected stale, got %s", p.Status(env))
	}
}

const containerConfig = `[tox]
envlist = py37

[testenv:py37]
runner = container
container_image = python:3.7-slim
commands = pytest
`

func TestEnsureContainerPullsMissingImage(t *testing.T) {
	env := loadEnv(t, containerConfig, "py37")
	runner := &fakeRunner{}
	p := testProvisioner(runner)
	p.Docker = &fakeDocker{tags: []string{"python:3.11-slim"}}

	if err := p.Ensure(context.Background(), env, Options{}); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if len(runner.invocations) != 1 {
		t.Fatalf("expected one pull invocation, got %v", runner.invocations)
	}
	if got := strings.Join(runner.invocations[0], " "); got != "docker pull python:3.7-slim" {
		t.Fatalf("unexpected pull invocation %q", got)
	}
}

func TestEnsureContainerReusesPresentImage(t *testing.T) {
	env := loadEnv(t, containerConfig, "py37")
	runner := &fakeRunner{}
	p := testProvisioner(runner)
	p.Docker = &fakeDocker{tags: []string{"python:3.7-slim"}}

	if err := p.Ensure(context.Background(), env, Options{}); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if len(runner.invocations) != 0 {
		t.Fatalf("expected no pull, got %v", runner.invocations)
	}
	if p.Status(env) != StatusOK {
		t.Fatalf("expected status ok, got %s", p.Status(env))
	}
}

func TestHasImageMatchesImplicitLatest(t *testing.T) {
	docker := &fakeDocker{tags: []string{"alpine:latest"}}
	found, err := HasImage(context.Background(), docker, "alpine")
	if err != nil {
		t.Fatalf("has image: %v", err)
	}
	if !found {
		t.Fatal("expected alpine to match alpine:latest")
	}
}
