package pathmatch

// Outcome is the three-valued result of matching a rule against a path.
type Outcome int

// Match outcomes. Undetermined is only produced by MatchPartial: the prefix
// seen so far is consistent with the rule but more segments are needed.
const (
	Fail Outcome = iota
	Succeed
	Undetermined
)

func (o Outcome) String() string {
	switch o {
	case Succeed:
		return "succeed"
	case Undetermined:
		return "undetermined"
	default:
		return "fail"
	}
}

// Match evaluates rule against the segments of a complete file path. The last
// segment is the filename. The directory tokens must consume the directories
// up to the filename, but may start at any depth: a rule is pinned to the
// top of the path only by a !ROOT! token. The result is always Succeed or
// Fail.
func Match(rule Rule, segments []string) Outcome {
	if len(segments) == 0 {
		return Fail
	}
	last := len(segments) - 1
	if !rule.Name.Match(segments[last]) {
		return Fail
	}
	return MatchDirs(rule.Dirs, segments[:last])
}

// MatchPath splits p and calls Match.
func MatchPath(rule Rule, p string) Outcome {
	return Match(rule, Split(p))
}

// MatchDirs evaluates tokens against a complete segment list. All tokens
// must be consumed and the match must end at the last segment; leading
// segments may be skipped unless a Root token forbids it.
func MatchDirs(tokens []Token, segments []string) Outcome {
	return search(tokens, segments, false)
}

// MatchPartial evaluates tokens against a directory prefix whose final depth
// is not yet known, as during a directory walk. It returns Succeed when the
// tokens can end exactly at the prefix, Undetermined when deeper directories
// could still complete the match, and Fail when no extension of the prefix
// can match. Only rooted rules can Fail, since an unrooted rule may start
// below any prefix.
func MatchPartial(tokens []Token, segments []string) Outcome {
	return search(tokens, segments, true)
}

type state struct {
	tok int
	seg int
}

// search explores (token, segment) states depth-first with an explicit stack.
// The first token may start at every segment offset; Root only holds at
// offset 0, so rooted rules stay anchored. Each state is visited at most
// once, so the cost is bounded by (len(tokens)+1) * (len(segments)+1)
// regardless of how many !DIRS! tokens the rule contains.
func search(tokens []Token, segments []string, partial bool) Outcome {
	nt, ns := len(tokens), len(segments)
	visited := make([]bool, (nt+1)*(ns+1))
	stack := make([]state, 0, ns+1)
	pending := false

	push := func(tok, seg int) {
		idx := tok*(ns+1) + seg
		if !visited[idx] {
			visited[idx] = true
			stack = append(stack, state{tok, seg})
		}
	}
	// Deepest offset first so the shallowest start is tried first.
	for seg := ns; seg >= 0; seg-- {
		push(0, seg)
	}

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if cur.tok == nt {
			if cur.seg == ns {
				return Succeed
			}
			continue
		}

		tok := tokens[cur.tok]
		switch tok.Kind {
		case Root:
			if cur.seg == 0 {
				push(cur.tok+1, cur.seg)
			}
		case Literal:
			switch {
			case cur.seg < ns && segments[cur.seg] == tok.Text:
				push(cur.tok+1, cur.seg+1)
			case cur.seg == ns && partial:
				pending = true
			}
		case AnyDirN:
			if cur.seg+tok.N <= ns {
				push(cur.tok+1, cur.seg+tok.N)
			} else if partial {
				pending = true
			}
		case AnyDirs:
			// Pushed widest first so the narrowest split is tried first.
			for seg := ns; seg >= cur.seg; seg-- {
				push(cur.tok+1, seg)
			}
		}
	}

	if pending {
		return Undetermined
	}
	return Fail
}
