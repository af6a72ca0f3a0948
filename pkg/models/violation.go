package models

import "time"

// ViolationRecord is the per-user moderation ledger entry. One record per
// user, created on the first violation and updated in place afterwards.
// Count is monotonically non-decreasing and the record is never deleted;
// BanUntil is recomputed, not extended, each time a new ban is imposed.
type ViolationRecord struct {
	UserID string `json:"user_id"`
	Count  int    `json:"count"`
	// BanUntil is zero when the user has never been banned.
	BanUntil        time.Time `json:"ban_until,omitempty"`
	LastViolationAt time.Time `json:"last_violation_at"`
}

// Banned reports whether the record carries a ban window covering now.
func (r *ViolationRecord) Banned(now time.Time) bool {
	return r != nil && r.BanUntil.After(now)
}
