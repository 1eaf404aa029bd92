// Package matcher matches service and container names against glob or
// regular-expression patterns.
package matcher

import (
	"path"
	"regexp"
	"strings"

	"github.com/agentstation/lbmap/pkg/errors"
)

// PatternType represents the type of pattern matching to use.
type PatternType int

const (
	// Glob uses shell-style glob patterns (*, ?, []).
	Glob PatternType = iota
	// Regex uses regular expressions.
	Regex
	// Auto treats patterns wrapped in slashes (/^api-.*$/) as regex and
	// everything else as glob.
	Auto
)

// Matcher reports whether names match a compiled pattern. It is immutable
// and safe for concurrent use.
type Matcher struct {
	pattern         string
	patternType     PatternType
	compiled        *regexp.Regexp
	caseInsensitive bool
}

// Option configures a Matcher.
type Option func(*Matcher)

// CaseInsensitive makes matching ignore case.
func CaseInsensitive() Option {
	return func(m *Matcher) {
		m.caseInsensitive = true
	}
}

// New compiles pattern. Invalid patterns are ValidationErrors on field "pattern".
func New(patternType PatternType, pattern string, opts ...Option) (*Matcher, error) {
	m := &Matcher{pattern: pattern, patternType: patternType}
	for _, opt := range opts {
		opt(m)
	}

	if m.patternType == Auto {
		m.patternType = Glob
		if len(pattern) >= 2 && strings.HasPrefix(pattern, "/") && strings.HasSuffix(pattern, "/") {
			m.patternType = Regex
			m.pattern = pattern[1 : len(pattern)-1]
		}
	}

	switch m.patternType {
	case Glob:
		if m.caseInsensitive {
			m.pattern = strings.ToLower(m.pattern)
		}
		if _, err := path.Match(m.pattern, ""); err != nil {
			return nil, errors.NewValidationError("pattern", pattern, "invalid glob: "+err.Error())
		}
	case Regex:
		expr := m.pattern
		if m.caseInsensitive && !strings.HasPrefix(expr, "(?i)") {
			expr = "(?i)" + expr
		}
		compiled, err := regexp.Compile(expr)
		if err != nil {
			return nil, errors.NewValidationError("pattern", pattern, "invalid regex: "+err.Error())
		}
		m.compiled = compiled
	default:
		return nil, errors.NewValidationError("pattern", pattern, "unsupported pattern type")
	}
	return m, nil
}

// MustNew is New that panics on error. For patterns known at compile time.
func MustNew(patternType PatternType, pattern string, opts ...Option) *Matcher {
	m, err := New(patternType, pattern, opts...)
	if err != nil {
		panic(err)
	}
	return m
}

// Match reports whether input matches. Globs match the whole input.
func (m *Matcher) Match(input string) bool {
	if m.patternType == Regex {
		return m.compiled.MatchString(input)
	}
	if m.caseInsensitive {
		input = strings.ToLower(input)
	}
	matched, _ := path.Match(m.pattern, input)
	return matched
}

// Filter returns the inputs that match, in order.
func (m *Matcher) Filter(inputs ...string) []string {
	results := make([]string, 0, len(inputs))
	for _, input := range inputs {
		if m.Match(input) {
			results = append(results, input)
		}
	}
	return results
}

// Pattern returns the pattern as given to New.
func (m *Matcher) Pattern() string {
	return m.pattern
}

// Type returns the resolved pattern type; Auto is never returned.
func (m *Matcher) Type() PatternType {
	return m.patternType
}
