package watch

import (
	"github.com/gobwas/glob"
	"github.com/moby/patternmatcher"
	"github.com/pkg/errors"
)

var (
	DefaultInclude = []string{"**.{js,mjs,cjs,jsx,ts,tsx,json}"}
	DefaultExclude = []string{"node_modules", ".git", "cdk.out", "**/asset.*", "**/bundling-temp-*"}
)

// Matcher decides which paths, relative to the watched root, are sources.
type Matcher struct {
	include []glob.Glob
	exclude *patternmatcher.PatternMatcher
}

func NewMatcher(include, exclude []string) (*Matcher, error) {
	if len(include) == 0 {
		include = DefaultInclude
	}

	m := &Matcher{}

	for _, p := range include {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, errors.Wrapf(err, "invalid include pattern: %s", p)
		}

		m.include = append(m.include, g)
	}

	pm, err := patternmatcher.New(append(append([]string{}, DefaultExclude...), exclude...))
	if err != nil {
		return nil, errors.Wrap(err, "invalid exclude pattern")
	}

	m.exclude = pm

	return m, nil
}

// Skip reports whether rel or one of its parents is excluded.
func (m *Matcher) Skip(rel string) bool {
	excluded, err := m.exclude.MatchesOrParentMatches(rel)
	return err == nil && excluded
}

func (m *Matcher) Match(rel string) bool {
	if m.Skip(rel) {
		return false
	}

	for _, g := range m.include {
		if g.Match(rel) {
			return true
		}
	}

	return false
}
