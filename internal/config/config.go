// Where: internal/config/config.go
// What: Project configuration file model.
// Why: Locate and parse crucible.ini / tox.ini into raw sections for resolution.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/crucible-dev/crucible/internal/meta"
	"gopkg.in/ini.v1"
)

// Section names the resolver understands.
const (
	// CoreSection is the preferred orchestration section name.
	CoreSection = "crucible"
	// LegacyCoreSection keeps existing tox.ini files working unchanged.
	LegacyCoreSection = "tox"
	// BaseEnvSection holds defaults shared by every environment.
	BaseEnvSection = "testenv"
	// EnvSectionPrefix prefixes per-environment override sections.
	EnvSectionPrefix = "testenv:"
	// PytestSection carries the test-runner keys hosted in the same file.
	PytestSection = "pytest"
)

// ErrNotFound reports that no configuration file exists at or above the
// starting directory.
var ErrNotFound = errors.New("no " + meta.ConfigName + " or " + meta.FallbackConfigName + " found")

// File is a parsed configuration file plus its location.
type File struct {
	// Path is the absolute path of the parsed file.
	Path string
	// Root is the directory containing the file, the project root.
	Root string

	src *ini.File
}

// Locate walks from start upward and returns the first configuration file.
// crucible.ini wins over tox.ini within the same directory.
func Locate(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolve start dir: %w", err)
	}
	for {
		for _, name := range []string{meta.ConfigName, meta.FallbackConfigName} {
			candidate := filepath.Join(dir, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNotFound
		}
		dir = parent
	}
}

// Load parses the configuration file at path. Values stay raw; substitution
// happens during resolution.
func Load(path string) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	opts := ini.LoadOptions{
		// Indented lines continue the previous value, configparser style.
		AllowPythonMultilineValues: true,
		// '#' inside a value is data, not a comment.
		IgnoreInlineComment: true,
		// A trailing backslash stays in the value; command parsing joins
		// continuation lines itself.
		IgnoreContinuation: true,
	}
	src, err := ini.LoadSources(opts, abs)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(abs), err)
	}
	return &File{Path: abs, Root: filepath.Dir(abs), src: src}, nil
}

// Lookup returns the raw value of key in section. A key missing from an
// existing section falls back to [DEFAULT]; a missing section never matches.
func (f *File) Lookup(section, key string) (string, bool) {
	sec, err := f.src.GetSection(section)
	if err != nil {
		return "", false
	}
	if sec.HasKey(key) {
		return sec.Key(key).Value(), true
	}
	if section != ini.DefaultSection {
		if def, err := f.src.GetSection(ini.DefaultSection); err == nil && def.HasKey(key) {
			return def.Key(key).Value(), true
		}
	}
	return "", false
}

// HasSection reports whether the file declares the section.
func (f *File) HasSection(name string) bool {
	_, err := f.src.GetSection(name)
	return err == nil
}

// SectionNames returns the declared section names in file order, without the
// implicit DEFAULT section.
func (f *File) SectionNames() []string {
	var names []string
	for _, name := range f.src.SectionStrings() {
		if name == ini.DefaultSection {
			continue
		}
		names = append(names, name)
	}
	return names
}

// Keys returns the key names of a section in declaration order.
func (f *File) Keys(section string) []string {
	sec, err := f.src.GetSection(section)
	if err != nil {
		return nil
	}
	return sec.KeyStrings()
}

// EnvSections returns the environment names with a dedicated section, in
// file order.
func (f *File) EnvSections() []string {
	var names []string
	for _, name := range f.SectionNames() {
		if env, ok := strings.CutPrefix(name, EnvSectionPrefix); ok && env != "" {
			names = append(names, env)
		}
	}
	return names
}

// CoreSectionName returns the section holding orchestration keys, preferring
// [crucible] over [tox] when both are present.
func (f *File) CoreSectionName() string {
	if f.HasSection(CoreSection) {
		return CoreSection
	}
	return LegacyCoreSection
}

// Pytest carries the [pytest] keys the orchestrator itself makes use of.
// The section belongs to the test runner; watch mode and validation read it.
type Pytest struct {
	Markers   []string
	TestPaths []string
}

// Pytest returns the [pytest] configuration, zero-valued when absent.
func (f *File) Pytest() Pytest {
	var p Pytest
	if raw, ok := f.Lookup(PytestSection, "markers"); ok {
		p.Markers = SplitLines(raw)
	}
	if raw, ok := f.Lookup(PytestSection, "testpaths"); ok {
		p.TestPaths = strings.Fields(raw)
	}
	return p
}
