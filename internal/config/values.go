// Where: internal/config/values.go
// What: Value parsing helpers shared across sections.
// Why: Line lists, word lists, and booleans follow configparser conventions.
package config

import (
	"fmt"
	"strings"
	"unicode"
)

// SplitLines splits a multi-line value into trimmed, non-empty lines and
// drops comment lines.
func SplitLines(raw string) []string {
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// SplitList splits a value on commas and whitespace.
func SplitList(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}

// ParseBool reads the configparser boolean vocabulary.
func ParseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "yes", "true", "on":
		return true, nil
	case "0", "no", "false", "off":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", raw)
}

// joinContinuations merges lines ending in a backslash with their successors.
func joinContinuations(lines []string) []string {
	var out []string
	var pending string
	for _, line := range lines {
		if strings.HasSuffix(line, "\\") {
			pending += strings.TrimSuffix(line, "\\") + " "
			continue
		}
		out = append(out, pending+line)
		pending = ""
	}
	if pending != "" {
		out = append(out, strings.TrimRight(pending, " "))
	}
	return out
}

func dedupStrings(items []string) []string {
	seen := make(map[string]bool, len(items))
	var out []string
	for _, item := range items {
		if seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}
