// Where: internal/validate/validate.go
// What: Static checks over a project configuration.
// Why: Catch broken envlists, references, and commands before anything runs.
package validate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/crucible-dev/crucible/internal/config"
	"github.com/crucible-dev/crucible/internal/version"
)

// Severity ranks a finding. Only errors fail validation.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityNote    Severity = "note"
)

// Finding is one issue discovered in a configuration.
type Finding struct {
	Severity Severity
	// Env names the environment the finding belongs to, empty for
	// file-level findings.
	Env     string
	Message string
}

func (f Finding) String() string {
	if f.Env == "" {
		return fmt.Sprintf("%s: %s", f.Severity, f.Message)
	}
	return fmt.Sprintf("%s: %s: %s", f.Severity, f.Env, f.Message)
}

// Report collects findings in discovery order.
type Report struct {
	Findings []Finding
}

func (r *Report) add(severity Severity, env, format string, args ...any) {
	r.Findings = append(r.Findings, Finding{
		Severity: severity,
		Env:      env,
		Message:  fmt.Sprintf(format, args...),
	})
}

// Errors counts error-level findings.
func (r *Report) Errors() int { return r.count(SeverityError) }

// Warnings counts warning-level findings.
func (r *Report) Warnings() int { return r.count(SeverityWarning) }

func (r *Report) count(severity Severity) int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == severity {
			n++
		}
	}
	return n
}

// OK reports whether the configuration passed without errors.
func (r *Report) OK() bool { return r.Errors() == 0 }

// Check runs every static rule against the file. Each environment in the
// envlist is fully resolved, so unresolvable references, cycles, and
// malformed values all surface here.
func Check(f *config.File) *Report {
	report := &Report{}

	core, err := f.Core()
	if err != nil {
		report.add(SeverityError, "", "resolve core settings: %v", err)
		return report
	}

	if core.MinVersion != "" && !version.AtLeast(core.MinVersion) {
		report.add(SeverityError, "", "configuration requires version >= %s, running %s", core.MinVersion, version.Release)
	}

	if len(core.Envlist) == 0 {
		report.add(SeverityWarning, "", "no environments configured")
	}

	listed := map[string]bool{}
	for _, name := range core.Envlist {
		listed[name] = true

		env, err := f.Env(core, name, nil)
		if err != nil {
			report.add(SeverityError, name, "%v", err)
			continue
		}
		checkEnv(report, env)
		if !env.Declared && !config.HasPythonFactor(name) {
			report.add(SeverityWarning, name, "no [%s%s] section and no python factor in the name; base [%s] settings apply",
				config.EnvSectionPrefix, name, config.BaseEnvSection)
		}
	}

	for _, name := range f.EnvSections() {
		if !listed[name] {
			report.add(SeverityWarning, name, "declared but absent from envlist; runs only when named explicitly")
		}
	}

	checkPytest(report, f)
	return report
}

func checkEnv(report *Report, env *config.Env) {
	if len(env.Commands) == 0 && len(env.CommandsPre) == 0 && len(env.CommandsPost) == 0 {
		report.add(SeverityWarning, env.Name, "no commands configured")
	}
	if len(env.Deps) == 0 && !env.SkipInstall && !env.UseDevelop {
		report.add(SeverityNote, env.Name, "no deps configured; only the install step will populate the environment")
	}
	if config.HasPythonFactor(env.Name) {
		derived := config.DeriveBasePython(env.Name)
		if env.BasePython != derived {
			report.add(SeverityWarning, env.Name, "basepython %s conflicts with the %s implied by the environment name", env.BasePython, derived)
		}
	}
}

func checkPytest(report *Report, f *config.File) {
	p := f.Pytest()
	for _, marker := range p.Markers {
		name, _, _ := strings.Cut(marker, ":")
		if strings.TrimSpace(name) == "" {
			report.add(SeverityNote, "", "malformed pytest marker %q", marker)
		}
	}
	for _, path := range p.TestPaths {
		full := path
		if !filepath.IsAbs(full) {
			full = filepath.Join(f.Root, full)
		}
		if _, err := os.Stat(full); err != nil {
			report.add(SeverityWarning, "", "pytest testpath %s does not exist", path)
		}
	}
}
