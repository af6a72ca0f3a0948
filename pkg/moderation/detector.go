package moderation

import (
	"strings"
	"unicode"
)

// Detector scans outgoing plaintext for denylisted terms. Matching is by
// whole cleaned token only: each whitespace-separated token is stripped of
// non-alphanumeric runes and lowercased before the set lookup, so "ass"
// matches "Ass!" but never the inside of "classic".
type Detector struct {
	terms map[string]struct{}
}

// ScanResult lists matched terms in token order, duplicates preserved:
// a term appearing twice counts twice.
type ScanResult struct {
	Matches []string
}

// HasViolation reports whether the scan found at least one denylisted term.
func (r ScanResult) HasViolation() bool { return len(r.Matches) > 0 }

// NewDetector builds a detector over a fixed denylist. Terms are normalized
// the same way scanned tokens are; empty terms are dropped. The denylist is
// static configuration, not runtime-editable.
func NewDetector(terms []string) *Detector {
	set := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		if c := cleanToken(t); c != "" {
			set[c] = struct{}{}
		}
	}
	return &Detector{terms: set}
}

// Scan tokenizes text on whitespace and reports every denylist hit.
func (d *Detector) Scan(text string) ScanResult {
	var res ScanResult
	for _, tok := range strings.Fields(text) {
		c := cleanToken(tok)
		if c == "" {
			continue
		}
		if _, ok := d.terms[c]; ok {
			res.Matches = append(res.Matches, c)
		}
	}
	return res
}

func cleanToken(tok string) string {
	var b strings.Builder
	for _, r := range tok {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
