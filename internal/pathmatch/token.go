// Package pathmatch classifies file paths against ordered token rules.
//
// A rule is a sequence of directory tokens followed by a filename matcher.
// Directory tokens are written in configuration as path segments:
//
//	!ROOT!        the match must be anchored at the first path segment;
//	              without it a rule may start at any depth
//	!DIRS!        zero or more directory segments
//	!DIRS_N:<n>!  exactly n directory segments
//	anything else a literal segment, compared case-sensitively
//
// Matching a complete path yields Succeed or Fail. Matching a directory
// prefix (see MatchPartial) may also yield Undetermined when more segments
// are needed before the rule can be ruled in or out.
package pathmatch

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidPathToken is returned for bang-delimited tokens that are not part
// of the token vocabulary, and for malformed filename matchers.
var ErrInvalidPathToken = errors.New("invalid path token")

// TokenKind identifies the variant of a Token.
type TokenKind int

// Token kinds.
const (
	Literal TokenKind = iota
	Root
	AnyDirN
	AnyDirs
)

func (k TokenKind) String() string {
	switch k {
	case Literal:
		return "literal"
	case Root:
		return "root"
	case AnyDirN:
		return "any_dir_n"
	case AnyDirs:
		return "any_dirs"
	default:
		return fmt.Sprintf("TokenKind(%d)", int(k))
	}
}

// Token is one directory segment of a rule.
type Token struct {
	Text string // Literal only
	Kind TokenKind
	N    int // AnyDirN only
}

// LiteralToken returns a token matching exactly text.
func LiteralToken(text string) Token { return Token{Kind: Literal, Text: text} }

// RootToken returns the zero-width root assertion.
func RootToken() Token { return Token{Kind: Root} }

// DirsToken returns a token skipping zero or more segments.
func DirsToken() Token { return Token{Kind: AnyDirs} }

// DirsNToken returns a token skipping exactly n segments.
func DirsNToken(n int) Token { return Token{Kind: AnyDirN, N: n} }

func (t Token) String() string {
	switch t.Kind {
	case Root:
		return "!ROOT!"
	case AnyDirs:
		return "!DIRS!"
	case AnyDirN:
		return fmt.Sprintf("!DIRS_N:%d!", t.N)
	default:
		return t.Text
	}
}

var dirsNPattern = regexp.MustCompile(`^!DIRS_N:(\d+)!$`)

// ParseToken converts a configured path segment into a Token.
func ParseToken(s string) (Token, error) {
	switch s {
	case "!ROOT!":
		return RootToken(), nil
	case "!DIRS!":
		return DirsToken(), nil
	}

	if m := dirsNPattern.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return Token{}, fmt.Errorf("%w: %q: %v", ErrInvalidPathToken, s, err)
		}
		return DirsNToken(n), nil
	}

	// Anything else wrapped in bangs is almost certainly a typo of a special token.
	if len(s) >= 2 && strings.HasPrefix(s, "!") && strings.HasSuffix(s, "!") {
		return Token{}, fmt.Errorf("%w: %q", ErrInvalidPathToken, s)
	}
	if s == "" || strings.Contains(s, "/") {
		return Token{}, fmt.Errorf("%w: %q is not a single path segment", ErrInvalidPathToken, s)
	}

	return LiteralToken(s), nil
}

// ParseTokens parses each segment with ParseToken.
func ParseTokens(segments []string) ([]Token, error) {
	tokens := make([]Token, 0, len(segments))
	for i, s := range segments {
		tok, err := ParseToken(s)
		if err != nil {
			return nil, fmt.Errorf("token %d: %w", i, err)
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}
