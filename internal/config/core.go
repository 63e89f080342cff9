// Where: internal/config/core.go
// What: Orchestration-level settings from the [crucible] / [tox] section.
// Why: Resolve envlist, work dir, and version gates before touching environments.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/crucible-dev/crucible/internal/interp"
	"github.com/crucible-dev/crucible/internal/meta"
)

// Core holds the orchestration-level settings of a project.
type Core struct {
	// Envlist is the default set of environments, in declared order.
	Envlist []string
	// WorkDir is the absolute directory holding the environments.
	WorkDir string
	// MinVersion gates execution on the orchestrator version, empty when unset.
	MinVersion string
	// SkipMissingInterpreters turns missing-interpreter errors into skips.
	SkipMissingInterpreters bool
	// IsolatedBuild and SkipSDist are accepted for compatibility. Packaging
	// is left to the commands themselves, so both are informational.
	IsolatedBuild bool
	SkipSDist     bool
}

// Core resolves the orchestration section of the file. An absent envlist
// falls back to the declared per-environment sections.
func (f *File) Core() (*Core, error) {
	section := f.CoreSectionName()
	ctx := &interp.Context{
		Vars:          map[string]string{"toxinidir": f.Root},
		LookupSection: f.Lookup,
	}

	core := &Core{WorkDir: filepath.Join(f.Root, meta.WorkDirName)}

	if raw, ok := f.Lookup(section, "toxworkdir"); ok {
		dir, err := interp.Expand(raw, ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve toxworkdir: %w", err)
		}
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(f.Root, dir)
		}
		core.WorkDir = filepath.Clean(dir)
	}

	if raw, ok := f.Lookup(section, "minversion"); ok {
		core.MinVersion = strings.TrimSpace(raw)
	}

	// Envlist braces are generative, not substitutions, so the raw value
	// goes straight to the envlist parser.
	if raw, ok := f.Lookup(section, "envlist"); ok {
		envlist, err := ParseEnvlist(raw)
		if err != nil {
			return nil, err
		}
		core.Envlist = envlist
	}
	if len(core.Envlist) == 0 {
		core.Envlist = f.EnvSections()
	}

	for _, b := range []struct {
		key string
		dst *bool
	}{
		{"skip_missing_interpreters", &core.SkipMissingInterpreters},
		{"isolated_build", &core.IsolatedBuild},
		{"skipsdist", &core.SkipSDist},
	} {
		raw, ok := f.Lookup(section, b.key)
		if !ok {
			continue
		}
		value, err := ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.key, err)
		}
		*b.dst = value
	}

	return core, nil
}

// EnvNames returns every runnable environment name: envlist entries first,
// then declared sections absent from the envlist, deduplicated. A nil core
// is resolved internally.
func (f *File) EnvNames(core *Core) []string {
	if core == nil {
		resolved, err := f.Core()
		if err != nil {
			return f.EnvSections()
		}
		core = resolved
	}

	seen := map[string]bool{}
	var names []string
	for _, name := range core.Envlist {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for _, name := range f.EnvSections() {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}
