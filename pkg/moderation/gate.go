package moderation

import (
	"time"

	"github.com/lenslink/messaging/pkg/models"
)

// Outcome classifies a send attempt after moderation.
type Outcome string

const (
	OutcomeAllowed Outcome = "allowed"
	OutcomeWarned  Outcome = "warned"
	OutcomeBanned  Outcome = "banned"
)

// State is the moderation state inferred from the ledger at send time.
type State string

const (
	StateClear  State = "clear"
	StateWarned State = "warned"
	StateBanned State = "banned"
)

// Decision is the gate's verdict on a single send attempt.
type Decision struct {
	Outcome Outcome
	// ViolationCount is the running cumulative total after this attempt.
	ViolationCount int
	// BanUntil is set for OutcomeBanned only.
	BanUntil time.Time
	// Matches lists the denylisted terms found in this message.
	Matches []string
}

// Allowed reports whether the message may be encrypted and persisted.
func (d Decision) Allowed() bool { return d.Outcome == OutcomeAllowed }

// Gate combines ban status and content scanning into the single decision
// point every send passes through. A banned sender is rejected before the
// content is even scanned; clean content from a clear or merely warned
// sender passes without touching the ledger, so scanning the same clean
// message twice never mutates anything.
type Gate struct {
	detector *Detector
	ledger   *Ledger
	now      func() time.Time
}

// NewGate wires a detector and a ledger into a moderation gate.
func NewGate(det *Detector, led *Ledger) *Gate {
	return &Gate{detector: det, ledger: led, now: time.Now}
}

// Check runs the full moderation flow for one send attempt. The error
// return is storage-layer only; policy rejections come back as Decisions.
func (g *Gate) Check(senderID, plaintext string) (Decision, error) {
	now := g.now().UTC()
	rec, err := g.ledger.Get(senderID)
	if err != nil {
		return Decision{}, err
	}
	if rec.Banned(now) {
		return Decision{Outcome: OutcomeBanned, ViolationCount: rec.Count, BanUntil: rec.BanUntil}, nil
	}

	res := g.detector.Scan(plaintext)
	if !res.HasViolation() {
		count := 0
		if rec != nil {
			count = rec.Count
		}
		return Decision{Outcome: OutcomeAllowed, ViolationCount: count}, nil
	}

	// One message carrying several denylisted terms records them all at
	// once, so a clean-history sender can jump straight to banned when the
	// message alone crosses the threshold.
	updated, err := g.ledger.Record(senderID, len(res.Matches))
	if err != nil {
		return Decision{}, err
	}
	if updated.Banned(now) {
		return Decision{Outcome: OutcomeBanned, ViolationCount: updated.Count, BanUntil: updated.BanUntil, Matches: res.Matches}, nil
	}
	return Decision{Outcome: OutcomeWarned, ViolationCount: updated.Count, Matches: res.Matches}, nil
}

// StateOf maps a ledger record onto the three moderation states.
func StateOf(rec *models.ViolationRecord, now time.Time) State {
	switch {
	case rec == nil || rec.Count == 0:
		return StateClear
	case rec.Banned(now):
		return StateBanned
	default:
		return StateWarned
	}
}
