// Where: internal/app/init.go
// What: Init command: write a starter configuration.
// Why: Bootstrap projects with a working matrix instead of a blank file.
package app

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/crucible-dev/crucible/assets"
	"github.com/crucible-dev/crucible/internal/interaction"
	"github.com/crucible-dev/crucible/internal/meta"
)

// InitCmd defines the flags of the init command.
type InitCmd struct {
	Name    string `help:"Package name used in the generated commands (default: directory name)"`
	Pythons string `help:"Comma-separated interpreter list, e.g. 3.6,3.7"`
	Force   bool   `help:"Overwrite an existing configuration"`
}

const quickstartTemplate = "templates/quickstart.ini.tmpl"

// defaultPythonChoices are offered in the interactive picker.
var defaultPythonChoices = []string{"3.9", "3.10", "3.11", "3.12", "3.13"}

func runInitCmd(cli CLI, deps Dependencies, out io.Writer) int {
	path, err := runInit(cli, deps)
	if err != nil {
		return exitWithError(out, err)
	}
	fmt.Fprintf(out, "wrote %s\n", path)
	return 0
}

func runInit(cli CLI, deps Dependencies) (string, error) {
	name := strings.TrimSpace(cli.Init.Name)
	pythons := splitEnvList(cli.Init.Pythons)

	if (name == "" || len(pythons) == 0) && deps.Prompter != nil && interaction.IsTerminal(os.Stdin) {
		var err error
		if name, pythons, err = promptInitInputs(deps.Prompter, name, pythons, deps.WorkDir); err != nil {
			return "", err
		}
	}
	if name == "" {
		name = sanitizePackageName(filepath.Base(deps.WorkDir))
	}
	if len(pythons) == 0 {
		pythons = []string{"3"}
	}

	path := filepath.Join(deps.WorkDir, meta.FallbackConfigName)
	if _, err := os.Stat(path); err == nil && !cli.Init.Force {
		return "", fmt.Errorf("%s already exists (use --force to overwrite): %w",
			filepath.Base(path), os.ErrExist)
	}

	content, err := renderQuickstart(quickstartData{
		Package: name,
		Envlist: buildEnvlist(pythons),
	})
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return path, nil
}

func promptInitInputs(prompter interaction.Prompter, name string, pythons []string, workDir string) (string, []string, error) {
	if name == "" {
		suggested := sanitizePackageName(filepath.Base(workDir))
		input, err := prompter.Input("Package name", suggested)
		if err != nil {
			return "", nil, fmt.Errorf("prompt package name: %w", err)
		}
		name = strings.TrimSpace(input)
		if name == "" {
			name = suggested
		}
	}
	if len(pythons) == 0 {
		picked, err := prompter.MultiSelect("Python versions", defaultPythonChoices, defaultPythonChoices[:1])
		if err != nil {
			return "", nil, fmt.Errorf("prompt python versions: %w", err)
		}
		pythons = picked
	}
	return name, pythons, nil
}

type quickstartData struct {
	Package string
	Envlist []string
}

func renderQuickstart(data quickstartData) ([]byte, error) {
	payload, err := assets.TemplatesFS.ReadFile(quickstartTemplate)
	if err != nil {
		return nil, fmt.Errorf("load quickstart template: %w", err)
	}
	tmpl, err := template.New("quickstart").Funcs(sprig.TxtFuncMap()).Parse(string(payload))
	if err != nil {
		return nil, fmt.Errorf("parse quickstart template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render quickstart template: %w", err)
	}
	return buf.Bytes(), nil
}

// buildEnvlist pairs the format/lint envs with one test env per interpreter.
func buildEnvlist(pythons []string) []string {
	envlist := []string{"format-py3", "lint-py3"}
	for _, python := range pythons {
		envlist = append(envlist, pythonEnvName(python))
	}
	return envlist
}

// pythonEnvName maps "3.6" or "python3.6" or "py36" to "py36".
func pythonEnvName(python string) string {
	name := strings.TrimSpace(python)
	name = strings.TrimPrefix(name, "python")
	if strings.HasPrefix(name, "py") {
		return name
	}
	return "py" + strings.ReplaceAll(name, ".", "")
}

// sanitizePackageName makes a directory name usable as a Python package name.
func sanitizePackageName(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "-", "_")
	name = strings.ReplaceAll(name, " ", "_")
	if name == "" || name == "." {
		return "src"
	}
	return name
}
