package memo

import "strings"

const (
	DefaultPrefixLen = 8
	DefaultSuffixLen = 12
)

// Matcher correlates settlement memos, possibly truncated to PREFIX...SUFFIX,
// with a known source transaction hash. A truncated match is a heuristic:
// two hashes sharing both fragments are indistinguishable.
type Matcher struct {
	PrefixLen int
	SuffixLen int
}

// NewMatcher returns a Matcher, substituting defaults for non-positive lengths.
func NewMatcher(prefixLen, suffixLen int) Matcher {
	if prefixLen <= 0 {
		prefixLen = DefaultPrefixLen
	}
	if suffixLen <= 0 {
		suffixLen = DefaultSuffixLen
	}
	return Matcher{PrefixLen: prefixLen, SuffixLen: suffixLen}
}

// Matches reports whether candidate is an OUT or REFUND memo referencing sourceHash.
func (m Matcher) Matches(candidate, sourceHash string) bool {
	parsed, err := Parse(candidate)
	if err != nil || parsed.Kind == KindSwap {
		return false
	}
	return m.MatchesHash(parsed.Hash, sourceHash)
}

// MatchesHash compares a bare, possibly truncated, hash fragment with sourceHash.
func (m Matcher) MatchesHash(fragment, sourceHash string) bool {
	payload := NormalizeHash(fragment)
	source := NormalizeHash(sourceHash)
	if payload == "" || source == "" || !isHex(source) {
		return false
	}

	prefix, suffix, truncated := strings.Cut(payload, ellipsis)
	if !truncated {
		return isHex(payload) && payload == source
	}
	if prefix == "" || suffix == "" || !isHex(prefix) || !isHex(suffix) {
		return false
	}
	if len(prefix)+len(suffix) > len(source) {
		return false
	}
	return strings.HasPrefix(source, prefix) && strings.HasSuffix(source, suffix)
}

// Truncate renders hash in the PREFIX...SUFFIX display form used by explorers.
func (m Matcher) Truncate(hash string) string {
	h := NormalizeHash(hash)
	if len(h) <= m.PrefixLen+m.SuffixLen {
		return h
	}
	return h[:m.PrefixLen] + ellipsis + h[len(h)-m.SuffixLen:]
}
