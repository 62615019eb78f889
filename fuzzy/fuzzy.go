// Package fuzzy implements FZF-style subsequence matching for interactive
// selection menus.
//
// Characters of the pattern must appear in the candidate in the same order,
// but not necessarily consecutively. Strings are treated as raw byte
// sequences: only ASCII A-Z is ever case-folded, so multi-byte UTF-8
// sequences are matched verbatim and never split.
package fuzzy

// MaxPattern is the longest supported pattern, in bytes. Longer patterns
// never match. The cap keeps the matcher allocation-free.
const MaxPattern = 256

// NoMatch is returned as the score when the pattern is not a subsequence of
// the candidate.
const NoMatch = -1

// Algorithm selects a matching algorithm.
type Algorithm int

const (
	// AlgoSubseq is the single-pass subsequence matcher.
	AlgoSubseq Algorithm = iota
)

// Options control case handling and scoring.
type Options struct {
	// CaseSensitive disables ASCII case folding.
	CaseSensitive bool
	// SmartCase folds case unless the pattern contains an ASCII uppercase
	// letter. Ignored when CaseSensitive is set.
	SmartCase bool
	// PreferPrefix awards a bonus to matches anchored at the first byte.
	PreferPrefix bool
	// MaxPattern caps the pattern length. Zero or out-of-range values mean
	// the package default, MaxPattern.
	MaxPattern int
}

// Result describes a successful match.
type Result struct {
	Score int // composite score, always >= 0
	Span  int // End - Start + 1
	Start int // byte offset of the first matched byte
	End   int // byte offset of the last matched byte
}

func asciiLower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}

func lowerIf(c byte, fold bool) byte {
	if fold {
		return asciiLower(c)
	}
	return c
}

// foldCase reports whether matching should fold ASCII case. Smart case only
// examines ASCII bytes: a non-ASCII "uppercase" never disables folding.
func foldCase(pattern string, opts *Options) bool {
	if opts == nil {
		return true
	}
	if opts.CaseSensitive {
		return false
	}
	if opts.SmartCase {
		for i := 0; i < len(pattern); i++ {
			if pattern[i] >= 'A' && pattern[i] <= 'Z' {
				return false
			}
		}
	}
	return true
}

// Match matches pattern against candidate and returns the scored result.
// The second return value is false if the pattern is not a subsequence of
// the candidate, is empty, or exceeds the pattern cap.
func Match(pattern, candidate string, algo Algorithm, opts *Options) (Result, bool) {
	switch algo {
	case AlgoSubseq:
		return matchSubseq(pattern, candidate, opts)
	default:
		return Result{}, false
	}
}

// Score is a convenience wrapper around Match returning just the score, or
// NoMatch on a miss.
func Score(pattern, candidate string, algo Algorithm, opts *Options) int {
	res, ok := Match(pattern, candidate, algo, opts)
	if !ok {
		return NoMatch
	}
	return res.Score
}

func matchSubseq(pattern, candidate string, opts *Options) (Result, bool) {
	plen := len(pattern)
	if plen == 0 {
		return Result{}, false
	}

	maxPattern := MaxPattern
	if opts != nil && opts.MaxPattern > 0 && opts.MaxPattern <= MaxPattern {
		maxPattern = opts.MaxPattern
	}
	if plen > maxPattern {
		return Result{}, false
	}

	fold := foldCase(pattern, opts)

	var matchpos [MaxPattern]int

	pi := 0
	first := -1
	last := -1

	// Forward subsequence scan.
	for ci := 0; ci < len(candidate) && pi < plen; ci++ {
		if lowerIf(pattern[pi], fold) != lowerIf(candidate[ci], fold) {
			continue
		}
		matchpos[pi] = ci
		if first < 0 {
			first = ci
		}
		last = ci
		pi++
	}

	if pi != plen {
		return Result{}, false
	}

	score := plen * 10

	// Consecutive bonus and gap penalty.
	for i := 1; i < pi; i++ {
		gap := matchpos[i] - matchpos[i-1] - 1
		if gap == 0 {
			score += 15
		} else {
			score -= gap * 2
		}
	}

	span := last - first + 1
	score -= span

	if first == 0 && opts != nil && opts.PreferPrefix {
		score += 40
	}

	// Boundary bonuses: start of string, ASCII separators, CamelCase.
	for i := 0; i < pi; i++ {
		pos := matchpos[i]
		if pos == 0 {
			score += 30
			continue
		}
		prev := candidate[pos-1]
		curr := candidate[pos]
		switch {
		case prev == '/' || prev == '.' || prev == '-' || prev == '_':
			score += 15
		case prev >= 'a' && prev <= 'z' && curr >= 'A' && curr <= 'Z':
			score += 10
		}
	}

	score -= len(candidate) / 4

	if score < 0 {
		score = 0
	}

	return Result{Score: score, Span: span, Start: first, End: last}, true
}
