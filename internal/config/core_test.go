// Where: internal/config/core_test.go
// What: Tests for orchestration-level settings.
// Why: Ensure envlist, work dir, and flags resolve with sane defaults.
package config

import (
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestCoreDefaults(t *testing.T) {
	f := loadConfig(t, `[testenv]
commands = pytest
`)

	core, err := f.Core()
	if err != nil {
		t.Fatalf("resolve core: %v", err)
	}
	if core.WorkDir != filepath.Join(f.Root, ".crucible") {
		t.Fatalf("unexpected work dir: %s", core.WorkDir)
	}
	if len(core.Envlist) != 0 {
		t.Fatalf("expected empty envlist, got %#v", core.Envlist)
	}
	if core.MinVersion != "" || core.SkipMissingInterpreters {
		t.Fatalf("unexpected defaults: %#v", core)
	}
}

func TestCoreEnvlist(t *testing.T) {
	f := loadConfig(t, `[tox]
envlist = format-py3, lint-py3, py{36,37}
`)

	core, err := f.Core()
	if err != nil {
		t.Fatalf("resolve core: %v", err)
	}
	want := []string{"format-py3", "lint-py3", "py36", "py37"}
	if !reflect.DeepEqual(core.Envlist, want) {
		t.Fatalf("unexpected envlist: %#v", core.Envlist)
	}
}

func TestCoreEnvlistFallsBackToSections(t *testing.T) {
	f := loadConfig(t, `[testenv]
commands = pytest

[testenv:lint-py3]
deps = flake8

[testenv:py36]
basepython = python3.6
`)

	core, err := f.Core()
	if err != nil {
		t.Fatalf("resolve core: %v", err)
	}
	if !reflect.DeepEqual(core.Envlist, []string{"lint-py3", "py36"}) {
		t.Fatalf("unexpected envlist: %#v", core.Envlist)
	}
}

func TestCoreWorkDirOverride(t *testing.T) {
	f := loadConfig(t, `[tox]
toxworkdir = {toxinidir}/build/envs
`)

	core, err := f.Core()
	if err != nil {
		t.Fatalf("resolve core: %v", err)
	}
	if core.WorkDir != filepath.Join(f.Root, "build", "envs") {
		t.Fatalf("unexpected work dir: %s", core.WorkDir)
	}
}

func TestCoreFlags(t *testing.T) {
	f := loadConfig(t, `[tox]
minversion = 1.2
skip_missing_interpreters = true
isolated_build = yes
skipsdist = 1
`)

	core, err := f.Core()
	if err != nil {
		t.Fatalf("resolve core: %v", err)
	}
	if core.MinVersion != "1.2" {
		t.Fatalf("unexpected minversion: %q", core.MinVersion)
	}
	if !core.SkipMissingInterpreters || !core.IsolatedBuild || !core.SkipSDist {
		t.Fatalf("expected all flags set: %#v", core)
	}
}

func TestCoreRejectsBadBool(t *testing.T) {
	f := loadConfig(t, "[tox]\nskip_missing_interpreters = maybe\n")

	_, err := f.Core()
	if err == nil || !strings.Contains(err.Error(), "skip_missing_interpreters") {
		t.Fatalf("expected bool parse error, got %v", err)
	}
}

func TestCoreReadsBrandSection(t *testing.T) {
	f := loadConfig(t, `[crucible]
envlist = py36
`)

	core, err := f.Core()
	if err != nil {
		t.Fatalf("resolve core: %v", err)
	}
	if !reflect.DeepEqual(core.Envlist, []string{"py36"}) {
		t.Fatalf("unexpected envlist: %#v", core.Envlist)
	}
}
