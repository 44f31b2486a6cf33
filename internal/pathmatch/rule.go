package pathmatch

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// NameKind selects how the final path segment is compared.
type NameKind int

// Filename matcher kinds.
const (
	NameLiteral NameKind = iota
	NamePrefix
	NamePattern
)

func (k NameKind) String() string {
	switch k {
	case NameLiteral:
		return "literal"
	case NamePrefix:
		return "prefix"
	case NamePattern:
		return "pattern"
	default:
		return fmt.Sprintf("NameKind(%d)", int(k))
	}
}

// NameSpec is the configured form of a filename matcher. Exactly one field
// should be set.
type NameSpec struct {
	Literal string
	Prefix  string
	Pattern string
}

// NameMatcher matches the filename segment of a path.
type NameMatcher struct {
	re    *regexp.Regexp
	Value string
	Kind  NameKind
}

// NewNameMatcher builds a matcher of the given kind. Patterns are anchored at
// both ends.
func NewNameMatcher(kind NameKind, value string) (NameMatcher, error) {
	if value == "" {
		return NameMatcher{}, fmt.Errorf("%w: empty %s filename matcher", ErrInvalidPathToken, kind)
	}

	m := NameMatcher{Kind: kind, Value: value}
	if kind == NamePattern {
		re, err := regexp.Compile(`^(?:` + value + `)$`)
		if err != nil {
			return NameMatcher{}, fmt.Errorf("%w: filename pattern %q: %v", ErrInvalidPathToken, value, err)
		}
		m.re = re
	}
	return m, nil
}

// Match reports whether name satisfies the matcher.
func (m NameMatcher) Match(name string) bool {
	switch m.Kind {
	case NamePrefix:
		return strings.HasPrefix(name, m.Value)
	case NamePattern:
		return m.re != nil && m.re.MatchString(name)
	default:
		return name == m.Value
	}
}

func (m NameMatcher) String() string {
	return fmt.Sprintf("%s(%s)", m.Kind, m.Value)
}

// Rule is an ordered list of directory tokens plus a filename matcher.
type Rule struct {
	Name NameMatcher
	Dirs []Token
}

func (r Rule) String() string {
	parts := make([]string, 0, len(r.Dirs)+1)
	for _, t := range r.Dirs {
		parts = append(parts, t.String())
	}
	parts = append(parts, r.Name.String())
	return strings.Join(parts, "/")
}

// ParseRule builds a Rule from configured segments. When name is nil the last
// segment is the literal filename and the rest are directory tokens;
// otherwise every segment is a directory token.
func ParseRule(segments []string, name *NameSpec) (Rule, error) {
	dirSegs := segments
	var nm NameMatcher
	var err error

	if name == nil {
		if len(segments) == 0 {
			return Rule{}, fmt.Errorf("%w: rule has no filename", ErrInvalidPathToken)
		}
		last := segments[len(segments)-1]
		if tok, tokErr := ParseToken(last); tokErr != nil || tok.Kind != Literal {
			return Rule{}, fmt.Errorf("%w: filename segment %q must be literal", ErrInvalidPathToken, last)
		}
		dirSegs = segments[:len(segments)-1]
		nm, err = NewNameMatcher(NameLiteral, last)
	} else {
		nm, err = name.matcher()
	}
	if err != nil {
		return Rule{}, err
	}

	dirs, err := ParseTokens(dirSegs)
	if err != nil {
		return Rule{}, err
	}

	return Rule{Dirs: dirs, Name: nm}, nil
}

func (s NameSpec) matcher() (NameMatcher, error) {
	set := 0
	for _, v := range []string{s.Literal, s.Prefix, s.Pattern} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return NameMatcher{}, fmt.Errorf("%w: filename matcher needs exactly one of literal, prefix, pattern", ErrInvalidPathToken)
	}

	switch {
	case s.Prefix != "":
		return NewNameMatcher(NamePrefix, s.Prefix)
	case s.Pattern != "":
		return NewNameMatcher(NamePattern, s.Pattern)
	default:
		return NewNameMatcher(NameLiteral, s.Literal)
	}
}

// Split turns a file path into its segments. Separators are normalized to
// '/', the path is cleaned, and a leading '/' or "./" does not produce an
// empty segment.
func Split(p string) []string {
	p = strings.ReplaceAll(p, `\`, "/")
	p = path.Clean(p)
	p = strings.TrimPrefix(p, "/")
	if p == "" || p == "." {
		return nil
	}
	return strings.Split(p, "/")
}
