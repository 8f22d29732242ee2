package image

import (
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
	"github.com/ryanuber/go-glob"
)

const (
	globPrefix   = "glob:"
	semverPrefix = "semver:"
	regexpPrefix = "regexp:"
)

// Pattern selects tags, e.g., to narrow a listing down to release
// tags.
type Pattern interface {
	Matches(tag string) bool
	String() string
}

// MatchAll is the pattern that selects every tag.
var MatchAll Pattern = GlobPattern("*")

// GlobPattern matches tags with `*` wildcards, e.g., `v1.*`.
type GlobPattern string

// SemverPattern matches tags that are versions satisfying a
// constraint, e.g., `~1.4`.
type SemverPattern struct {
	pattern    string
	constraint *semver.Constraints
}

// RegexpPattern matches tags against a regular expression.
type RegexpPattern struct {
	pattern string
	regexp  *regexp.Regexp
}

// ParsePattern reads a pattern: `semver:<constraint>`,
// `regexp:<expression>`, or a glob, optionally prefixed with `glob:`.
// An empty pattern matches everything.
func ParsePattern(pattern string) (Pattern, error) {
	switch {
	case pattern == "":
		return MatchAll, nil
	case strings.HasPrefix(pattern, semverPrefix):
		pattern = strings.TrimPrefix(pattern, semverPrefix)
		c, err := semver.NewConstraint(pattern)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing semver constraint %q", pattern)
		}
		return SemverPattern{pattern, c}, nil
	case strings.HasPrefix(pattern, regexpPrefix):
		pattern = strings.TrimPrefix(pattern, regexpPrefix)
		r, err := regexp.Compile(pattern)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing regular expression %q", pattern)
		}
		return RegexpPattern{pattern, r}, nil
	default:
		return GlobPattern(strings.TrimPrefix(pattern, globPrefix)), nil
	}
}

// Filter returns the infos whose tags match p, keeping their order.
func Filter(infos []Info, p Pattern) []Info {
	var matched []Info
	for _, info := range infos {
		if p.Matches(info.ID.Tag) {
			matched = append(matched, info)
		}
	}
	return matched
}

func (g GlobPattern) Matches(tag string) bool {
	return glob.Glob(string(g), tag)
}

func (g GlobPattern) String() string {
	return globPrefix + string(g)
}

func (s SemverPattern) Matches(tag string) bool {
	v, err := semver.NewVersion(tag)
	if err != nil {
		return false
	}
	return s.constraint.Check(v)
}

func (s SemverPattern) String() string {
	return semverPrefix + s.pattern
}

func (r RegexpPattern) Matches(tag string) bool {
	return r.regexp.MatchString(tag)
}

func (r RegexpPattern) String() string {
	return regexpPrefix + r.pattern
}
