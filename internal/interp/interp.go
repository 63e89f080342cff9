// Where: internal/interp/interp.go
// What: Substitution language of the configuration format.
// Why: Resolve {placeholder}, {env:VAR}, {posargs}, and {[section]key} references.
package interp

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/shlex"
)

// maxDepth caps reference nesting as a backstop behind cycle detection.
const maxDepth = 32

// Context supplies the values a substitution can reach.
type Context struct {
	// Vars holds simple placeholders: toxinidir, toxworkdir, envname,
	// envdir, envtmpdir, envbindir, envpython. Values are literal.
	Vars map[string]string

	// Posargs are the words given after "--" on the command line.
	Posargs []string

	// LookupSection resolves {[section]key} references to raw values.
	LookupSection func(section, key string) (string, bool)

	// Getenv resolves {env:VAR} lookups. Defaults to os.LookupEnv.
	Getenv func(name string) (string, bool)
}

func (c *Context) getenv(name string) (string, bool) {
	if c.Getenv != nil {
		return c.Getenv(name)
	}
	return os.LookupEnv(name)
}

// CycleError reports a reference chain that loops back on itself.
type CycleError struct {
	Chain []string
}

func (e *CycleError) Error() string {
	return "substitution cycle: " + strings.Join(e.Chain, " -> ")
}

// RefError reports a {[section]key} reference to a missing section or key.
type RefError struct {
	Section string
	Key     string
}

func (e *RefError) Error() string {
	return fmt.Sprintf("reference {[%s]%s} does not resolve", e.Section, e.Key)
}

// Expand resolves every substitution in s and returns the final string.
// Posargs are joined with spaces, quoting words that contain whitespace.
func Expand(s string, ctx *Context) (string, error) {
	e := &expander{ctx: ctx}
	return e.expand(s)
}

// ExpandCommand resolves every substitution in a command line and then
// word-splits the result. Positional args are inserted shlex-quoted, so a
// posarg containing whitespace survives the split as one word.
func ExpandCommand(line string, ctx *Context) ([]string, error) {
	expanded, err := Expand(line, ctx)
	if err != nil {
		return nil, err
	}
	return SplitWords(expanded)
}

// SplitWords splits an already-expanded line into argv words.
func SplitWords(line string) ([]string, error) {
	words, err := shlex.Split(line)
	if err != nil {
		return nil, fmt.Errorf("split command %q: %w", line, err)
	}
	return words, nil
}

type expander struct {
	ctx   *Context
	stack []string
}

func (e *expander) expand(s string) (string, error) {
	if len(e.stack) > maxDepth {
		return "", &CycleError{Chain: append([]string(nil), e.stack...)}
	}

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s) && (s[i+1] == '{' || s[i+1] == '}'):
			b.WriteByte(s[i+1])
			i++
		case c == '{':
			end, err := matchBrace(s, i)
			if err != nil {
				return "", err
			}
			value, err := e.resolve(s[i+1 : end])
			if err != nil {
				return "", err
			}
			b.WriteString(value)
			i = end
		case c == '}':
			return "", fmt.Errorf("unbalanced '}' in %q", s)
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

// matchBrace returns the index of the brace closing the one at open,
// honoring nesting and backslash escapes.
func matchBrace(s string, open int) (int, error) {
	depth := 0
	for i := open; i < len(s); i++ {
		switch {
		case s[i] == '\\' && i+1 < len(s):
			i++
		case s[i] == '{':
			depth++
		case s[i] == '}':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("unbalanced '{' in %q", s)
}

func (e *expander) resolve(inner string) (string, error) {
	switch {
	case inner == "":
		return "", fmt.Errorf("empty substitution {}")

	case strings.HasPrefix(inner, "["):
		return e.resolveSectionRef(inner)

	case strings.HasPrefix(inner, "env:"):
		return e.resolveEnv(inner[len("env:"):])

	case inner == "posargs":
		return JoinWords(e.ctx.Posargs), nil

	case strings.HasPrefix(inner, "posargs:"):
		if len(e.ctx.Posargs) > 0 {
			return JoinWords(e.ctx.Posargs), nil
		}
		return e.expand(inner[len("posargs:"):])

	default:
		if value, ok := e.ctx.Vars[inner]; ok {
			return value, nil
		}
		return "", fmt.Errorf("unknown substitution {%s}", inner)
	}
}

func (e *expander) resolveSectionRef(inner string) (string, error) {
	closing := strings.Index(inner, "]")
	if closing < 0 {
		return "", fmt.Errorf("malformed section reference {%s}", inner)
	}
	section := inner[1:closing]
	key := strings.TrimSpace(inner[closing+1:])
	if section == "" || key == "" {
		return "", fmt.Errorf("malformed section reference {%s}", inner)
	}

	tag := fmt.Sprintf("{[%s]%s}", section, key)
	for _, seen := range e.stack {
		if seen == tag {
			return "", &CycleError{Chain: append(append([]string(nil), e.stack...), tag)}
		}
	}

	if e.ctx.LookupSection == nil {
		return "", &RefError{Section: section, Key: key}
	}
	raw, ok := e.ctx.LookupSection(section, key)
	if !ok {
		return "", &RefError{Section: section, Key: key}
	}

	e.stack = append(e.stack, tag)
	value, err := e.expand(raw)
	e.stack = e.stack[:len(e.stack)-1]
	return value, err
}

func (e *expander) resolveEnv(rest string) (string, error) {
	name := rest
	fallback := ""
	hasFallback := false
	if sep := strings.Index(rest, ":"); sep >= 0 {
		name = rest[:sep]
		fallback = rest[sep+1:]
		hasFallback = true
	}
	if name == "" {
		return "", fmt.Errorf("malformed environment reference {env:%s}", rest)
	}

	if value, ok := e.ctx.getenv(name); ok {
		return value, nil
	}
	if hasFallback {
		return e.expand(fallback)
	}
	return "", fmt.Errorf("environment variable %q is not set and has no default", name)
}

// JoinWords flattens args into one string. Words that would not survive a
// later word split intact are double-quoted with inner quotes escaped.
func JoinWords(words []string) string {
	quoted := make([]string, len(words))
	for i, word := range words {
		quoted[i] = quoteWord(word)
	}
	return strings.Join(quoted, " ")
}

func quoteWord(word string) string {
	if word == "" {
		return `""`
	}
	if !strings.ContainsAny(word, " \t\r\n\"'\\#") {
		return word
	}
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(word); i++ {
		if word[i] == '"' || word[i] == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(word[i])
	}
	b.WriteByte('"')
	return b.String()
}
