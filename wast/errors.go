package wast

import "fmt"

// SyntaxError reports a text-format scan or parse failure: an unbalanced
// S-expression, an unexpected token, an unknown instruction mnemonic, or a
// numeric literal out of range for its target immediate.
type SyntaxError struct {
	Line, Column int
	Message      string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("wast: %d:%d: %s", e.Line, e.Column, e.Message)
}

// DuplicateIdentifierError reports a text-format identifier ($name) bound
// more than once within the same index space.
type DuplicateIdentifierError string

func (e DuplicateIdentifierError) Error() string {
	return fmt.Sprintf("wast: duplicate identifier %q", string(e))
}

// TypeMismatchError reports a (type $id) use whose inline (param ...)
// (result ...) clauses disagree with the referenced type's signature.
type TypeMismatchError struct {
	Name string
}

func (e TypeMismatchError) Error() string {
	if e.Name == "" {
		return "wast: inline type use does not match referenced type"
	}
	return fmt.Sprintf("wast: inline type use does not match type %q", e.Name)
}

// UnresolvedIdentifierError reports a text-format identifier ($name) used
// but never defined in its index space. Suggestion holds the closest
// defined name in the same space, or "" if none is close enough to guess.
type UnresolvedIdentifierError struct {
	Name       string
	Suggestion string
}

func (e UnresolvedIdentifierError) Error() string {
	if e.Suggestion == "" {
		return fmt.Sprintf("wast: unresolved identifier %q", e.Name)
	}
	return fmt.Sprintf("wast: unresolved identifier %q (did you mean %q?)", e.Name, e.Suggestion)
}

// suggest returns the name in candidates closest to name by edit distance,
// within a tolerance proportional to the name's length. It returns "" when
// no candidate is close enough to be a plausible typo fix.
func suggest(name string, candidates map[string]int) string {
	best, bestDist := "", -1
	for c := range candidates {
		d := editDistance(name, c)
		if bestDist == -1 || d < bestDist {
			best, bestDist = c, d
		}
	}
	limit := len(name)/3 + 1
	if bestDist < 0 || bestDist > limit {
		return ""
	}
	return best
}

// editDistance computes the Levenshtein distance between a and b.
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := cur[j-1] + 1
			sub := prev[j-1] + cost
			m := del
			if ins < m {
				m = ins
			}
			if sub < m {
				m = sub
			}
			cur[j] = m
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
