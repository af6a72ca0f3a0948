package moderation

import (
	"reflect"
	"testing"
)

func TestDetectorScan(t *testing.T) {
	d := NewDetector([]string{"ass", "idiot", "STUPID"})

	cases := []struct {
		name string
		text string
		want []string
	}{
		{"clean", "hello there, lovely portfolio", nil},
		{"single match", "you idiot", []string{"idiot"}},
		{"case and punctuation", "You IDIOT!!! so rude", []string{"idiot"}},
		{"punctuation stripped inside token", "Stup!id? yes", []string{"stupid"}},
		{"no substring matching", "what a classic assignment", nil},
		{"duplicates preserved in order", "idiot ass idiot", []string{"idiot", "ass", "idiot"}},
		{"empty text", "", nil},
		{"only punctuation", "?! ... --", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := d.Scan(tc.text)
			if !reflect.DeepEqual(got.Matches, tc.want) {
				t.Fatalf("Scan(%q) = %v, want %v", tc.text, got.Matches, tc.want)
			}
			if got.HasViolation() != (len(tc.want) > 0) {
				t.Fatalf("HasViolation mismatch for %q", tc.text)
			}
		})
	}
}

func TestDetectorNormalizesDenylistTerms(t *testing.T) {
	d := NewDetector([]string{" Jerk! ", ""})
	if res := d.Scan("what a jerk"); !res.HasViolation() {
		t.Fatalf("denylist term should have been normalized at construction")
	}
}
