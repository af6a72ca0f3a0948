package moderation

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/lenslink/messaging/pkg/metrics"
	"github.com/lenslink/messaging/pkg/models"
	"github.com/lenslink/messaging/pkg/store"
)

// Policy holds the escalation knobs. With the defaults, the second
// cumulative violation triggers the first ban and ban length in days is
// ceil(total/2)*2 — 2, 4, 6, ... strictly non-decreasing with the total.
// Whether a single very abusive message should ban on first offense is a
// policy choice: lowering BanThreshold to 1 does exactly that.
type Policy struct {
	// BanThreshold is the cumulative violation count at which a ban is
	// imposed instead of a warning.
	BanThreshold int
	// BanDayFactor scales the duration curve: days = ceil(total/f) * f.
	BanDayFactor int
}

// DefaultPolicy returns the stock warn-once-then-ban escalation.
func DefaultPolicy() Policy {
	return Policy{BanThreshold: 2, BanDayFactor: 2}
}

func (p Policy) normalized() Policy {
	if p.BanThreshold <= 0 {
		p.BanThreshold = 2
	}
	if p.BanDayFactor <= 0 {
		p.BanDayFactor = 2
	}
	return p
}

// BanDuration computes the ban window length for a cumulative total.
func (p Policy) BanDuration(total int) time.Duration {
	p = p.normalized()
	days := (total + p.BanDayFactor - 1) / p.BanDayFactor * p.BanDayFactor
	return time.Duration(days) * 24 * time.Hour
}

// Ledger is the persisted per-user violation counter. Record is the only
// mutator and serializes per user, so two near-simultaneous abusive sends
// from the same user can never collapse into one update. Different users
// take different stripes and proceed in parallel.
type Ledger struct {
	locks  [64]sync.Mutex
	policy Policy
	now    func() time.Time
}

// NewLedger builds a ledger applying the given escalation policy.
func NewLedger(p Policy) *Ledger {
	return &Ledger{policy: p.normalized(), now: time.Now}
}

func (l *Ledger) stripe(userID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return &l.locks[h.Sum32()%uint32(len(l.locks))]
}

// Get returns the user's record, or nil when the user has a clean history.
func (l *Ledger) Get(userID string) (*models.ViolationRecord, error) {
	return store.GetViolation(userID)
}

// Record adds k new violations to the user's total in one indivisible step
// and applies the escalation policy to the updated total. The count only
// ever grows; BanUntil is recomputed from the new total whenever it crosses
// the threshold, never accumulated. The updated record is persisted before
// Record returns, so a storage failure leaves the ledger untouched rather
// than half-applied.
func (l *Ledger) Record(userID string, k int) (models.ViolationRecord, error) {
	mu := l.stripe(userID)
	mu.Lock()
	defer mu.Unlock()

	cur, err := store.GetViolation(userID)
	if err != nil {
		return models.ViolationRecord{}, err
	}
	now := l.now().UTC()
	rec := models.ViolationRecord{UserID: userID}
	if cur != nil {
		rec = *cur
	}
	rec.Count += k
	rec.LastViolationAt = now
	banned := rec.Count >= l.policy.BanThreshold
	if banned {
		rec.BanUntil = now.Add(l.policy.BanDuration(rec.Count))
	}
	if err := store.SaveViolation(rec); err != nil {
		return models.ViolationRecord{}, err
	}
	metrics.Violations.Add(float64(k))
	if banned {
		metrics.Bans.Inc()
	}
	return rec, nil
}
