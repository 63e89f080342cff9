// Where: internal/config/envlist.go
// What: Envlist parsing with generative names.
// Why: Expand forms like py{36,37}-django{20,21} into concrete environments.
package config

import (
	"fmt"
	"strings"
)

// ParseEnvlist splits an envlist value on commas and newlines and expands
// generative braces. Duplicates collapse to their first occurrence.
func ParseEnvlist(raw string) ([]string, error) {
	tokens, err := splitEnvlist(raw)
	if err != nil {
		return nil, err
	}
	var names []string
	seen := map[string]bool{}
	for _, token := range tokens {
		expanded, err := expandGenerative(token)
		if err != nil {
			return nil, err
		}
		for _, name := range expanded {
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
	}
	return names, nil
}

// splitEnvlist separates entries on commas and newlines outside braces.
func splitEnvlist(raw string) ([]string, error) {
	var tokens []string
	depth := 0
	start := 0
	flush := func(end int) {
		if token := strings.TrimSpace(raw[start:end]); token != "" {
			tokens = append(tokens, token)
		}
		start = end + 1
	}
	for i := 0; i < len(raw); i++ {
		switch raw[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced '}' in envlist %q", raw)
			}
		case ',', '\n':
			if depth == 0 {
				flush(i)
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced '{' in envlist %q", raw)
	}
	flush(len(raw))
	return tokens, nil
}

// expandGenerative resolves the first brace group and recurses on the results.
func expandGenerative(token string) ([]string, error) {
	open := strings.IndexByte(token, '{')
	if open < 0 {
		return []string{token}, nil
	}
	depth := 0
	closing := -1
scan:
	for i := open; i < len(token); i++ {
		switch token[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				closing = i
				break scan
			}
		}
	}
	if closing < 0 {
		return nil, fmt.Errorf("unbalanced '{' in envlist entry %q", token)
	}

	var names []string
	for _, alt := range splitAlternatives(token[open+1 : closing]) {
		expanded, err := expandGenerative(token[:open] + alt + token[closing+1:])
		if err != nil {
			return nil, err
		}
		names = append(names, expanded...)
	}
	return names, nil
}

// splitAlternatives splits a brace body on its top-level commas.
func splitAlternatives(body string) []string {
	var alts []string
	depth := 0
	start := 0
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '{':
			depth++
		case '}':
			depth--
		case ',':
			if depth == 0 {
				alts = append(alts, strings.TrimSpace(body[start:i]))
				start = i + 1
			}
		}
	}
	alts = append(alts, strings.TrimSpace(body[start:]))
	return alts
}
