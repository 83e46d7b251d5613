package prompt

import "bytes"

// Set is an ordered list of literal prompts. Earlier entries win when two
// prompts match at the same offset.
type Set []string

// Match describes where a prompt was found in a buffer.
type Match struct {
	Index int // index of the matching prompt in the Set
	Start int // offset of the first prompt byte
	End   int // offset just past the last prompt byte
}

var defaultPrompts = Set{"NPS> ", "IPS> ", "NBB> "}

// Default returns the prompts emitted by known NPS firmware families.
func Default() Set {
	return append(Set(nil), defaultPrompts...)
}

// MaxLen returns the length of the longest prompt in the set.
func (s Set) MaxLen() int {
	n := 0
	for _, p := range s {
		if len(p) > n {
			n = len(p)
		}
	}
	return n
}

// Match finds the leftmost prompt in buf.
func (s Set) Match(buf []byte) (Match, bool) {
	return s.MatchFrom(buf, 0)
}

// MatchFrom finds the leftmost prompt in buf that ends after offset from.
// Callers that append to buf between calls can pass the previous length of
// buf so that data already searched is not searched again, while prompts
// straddling the old boundary are still found.
func (s Set) MatchFrom(buf []byte, from int) (Match, bool) {
	start := from - s.MaxLen() + 1
	if start < 0 {
		start = 0
	}
	if start > len(buf) {
		return Match{}, false
	}

	best := Match{Index: -1}
	for i, p := range s {
		if p == "" {
			continue
		}
		pos := bytes.Index(buf[start:], []byte(p))
		if pos < 0 {
			continue
		}
		pos += start
		if best.Index < 0 || pos < best.Start {
			best = Match{Index: i, Start: pos, End: pos + len(p)}
		}
	}

	if best.Index < 0 {
		return Match{}, false
	}
	return best, true
}

// String returns the prompt at index i, or an empty string when i is out of range.
func (s Set) String(i int) string {
	if i < 0 || i >= len(s) {
		return ""
	}
	return s[i]
}
