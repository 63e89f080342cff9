// Where: internal/validate/tools_test.go
// What: Tests for the host-dependent tool checks.
// Why: Command and interpreter resolution must degrade to notes, not noise.
package validate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func nothingOnPath(string) (string, error) {
	return "", errors.New("not found")
}

func everythingOnPath(name string) (string, error) {
	return "/usr/bin/" + name, nil
}

func TestCheckToolsCleanWithResolvableTools(t *testing.T) {
	f := loadFile(t, `[tox]
envlist = py36

[testenv]
deps = pytest
commands = pytest
`)
	report := &Report{}

	CheckTools(report, f, nil, Options{LookPath: everythingOnPath})
	if len(report.Findings) != 0 {
		t.Fatalf("expected no findings, got %+v", report.Findings)
	}
}

func TestCheckToolsMissingInterpreterIsError(t *testing.T) {
	f := loadFile(t, `[tox]
envlist = py36

[testenv]
deps = pytest
commands = pytest
`)
	report := &Report{}

	CheckTools(report, f, nil, Options{LookPath: nothingOnPath})
	if !hasFinding(report, SeverityError, "interpreter python3.6 not found") {
		t.Fatalf("expected interpreter error, got %+v", report.Findings)
	}
}

func TestCheckToolsSkipMissingInterpretersDowngrades(t *testing.T) {
	f := loadFile(t, `[tox]
envlist = py36
skip_missing_interpreters = true

[testenv]
deps = pytest
commands = pytest
`)
	report := &Report{}

	CheckTools(report, f, nil, Options{LookPath: nothingOnPath})
	if hasFinding(report, SeverityError, "interpreter") {
		t.Fatalf("expected no interpreter error, got %+v", report.Findings)
	}
	if !hasFinding(report, SeverityNote, "will be skipped") {
		t.Fatalf("expected skip note, got %+v", report.Findings)
	}
}

func TestCheckToolsUnprovisionedDepCommandIsNote(t *testing.T) {
	f := loadFile(t, `[tox]
envlist = py36

[testenv]
deps = pytest
commands = pytest
`)
	report := &Report{}

	lookPath := func(name string) (string, error) {
		if name == "python3.6" {
			return "/usr/bin/python3.6", nil
		}
		return "", errors.New("not found")
	}
	CheckTools(report, f, nil, Options{LookPath: lookPath})
	if !hasFinding(report, SeverityNote, "expected from deps") {
		t.Fatalf("expected provisioning note, got %+v", report.Findings)
	}
	if report.Errors() != 0 {
		t.Fatalf("expected no errors, got %+v", report.Findings)
	}
}

func TestCheckToolsUnresolvableCommandWithoutDepsIsError(t *testing.T) {
	f := loadFile(t, `[tox]
envlist = py36

[testenv]
skip_install = true
commands = missing-tool --flag
`)
	report := &Report{}

	lookPath := func(name string) (string, error) {
		if name == "python3.6" {
			return "/usr/bin/python3.6", nil
		}
		return "", errors.New("not found")
	}
	CheckTools(report, f, nil, Options{LookPath: lookPath})
	if !hasFinding(report, SeverityError, `command "missing-tool"`) {
		t.Fatalf("expected command error, got %+v", report.Findings)
	}
}

func TestCheckToolsAllowlistSatisfiesCommand(t *testing.T) {
	f := loadFile(t, `[tox]
envlist = py36

[testenv]
skip_install = true
allowlist_externals = make
commands = make lint
`)
	report := &Report{}

	lookPath := func(name string) (string, error) {
		if name == "python3.6" {
			return "/usr/bin/python3.6", nil
		}
		return "", errors.New("not found")
	}
	CheckTools(report, f, nil, Options{LookPath: lookPath})
	if report.Errors() != 0 {
		t.Fatalf("expected allowlisted command to pass, got %+v", report.Findings)
	}
}

func TestCheckToolsProvisionedBinDirResolves(t *testing.T) {
	f := loadFile(t, `[tox]
envlist = py36

[testenv]
skip_install = true
commands = pytest
`)
	// Simulate a provisioned env carrying the tool.
	binDir := filepath.Join(f.Root, ".crucible", "py36", "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(binDir, "pytest"), []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write tool stub: %v", err)
	}

	report := &Report{}
	lookPath := func(name string) (string, error) {
		if name == "python3.6" {
			return "/usr/bin/python3.6", nil
		}
		return "", errors.New("not found")
	}
	CheckTools(report, f, nil, Options{LookPath: lookPath})
	if report.Errors() != 0 {
		t.Fatalf("expected env-provided command to pass, got %+v", report.Findings)
	}
}

func TestCheckToolsInterpreterMapBeatsPath(t *testing.T) {
	f := loadFile(t, `[tox]
envlist = py36

[testenv]
deps = pytest
commands = pytest
`)
	custom := filepath.Join(t.TempDir(), "python3.6")
	if err := os.WriteFile(custom, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write interpreter stub: %v", err)
	}

	report := &Report{}
	CheckTools(report, f, nil, Options{
		LookPath:     nothingOnPath,
		Interpreters: map[string]string{"python3.6": custom},
	})
	if hasFinding(report, SeverityError, "interpreter") {
		t.Fatalf("expected mapped interpreter to satisfy the check, got %+v", report.Findings)
	}
}

func TestCheckToolsRejectsInstallCommandWithoutPackages(t *testing.T) {
	f := loadFile(t, fmt.Sprintf(`[tox]
envlist = py36

[testenv]
install_command = python -m pip install %s
deps = pytest
commands = pytest
`, "-q"))
	report := &Report{}

	CheckTools(report, f, nil, Options{LookPath: everythingOnPath})
	if !hasFinding(report, SeverityError, "{packages}") {
		t.Fatalf("expected install_command error, got %+v", report.Findings)
	}
}
